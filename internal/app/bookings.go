package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/screenseat/booking-engine/api"
	"github.com/screenseat/booking-engine/internal/domain"
)

// IdempotencyKeyHeader carries the caller-chosen retry key for hold
// creation. Keys are scoped per owner.
const IdempotencyKeyHeader = "Idempotency-Key"

func (app *application) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	var input api.CreateBookingRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	idempotencyKey := r.Header.Get(IdempotencyKeyHeader)

	if idempotencyKey != "" {
		booking, found, err := app.resolveIdempotencyKey(w, r, userId, idempotencyKey, input)
		if err != nil {
			return
		}
		if found {
			app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
			return
		}
	}

	showtime, err := app.showtimeRepo.GetByID(r.Context(), input.ShowtimeId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	if !showtime.IsActive {
		app.errorResponse(w, r, http.StatusUnprocessableEntity, "showtime is not open for booking")
		return
	}

	err = app.validateSeatsForShowtime(r.Context(), showtime, input.SeatIds, w, r)
	if err != nil {
		return
	}

	booking, err := app.bookingRepo.CreateHold(r.Context(), domain.CreateHoldParams{
		OwnerID:        userId,
		ShowtimeID:     input.ShowtimeId,
		SeatIDs:        input.SeatIds,
		UnitPrice:      showtime.UnitPrice,
		HoldDuration:   domain.HoldDuration,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSeatUnavailable):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeSeatUnavailable, "one or more of the requested seats are already taken")
		case errors.Is(err, domain.ErrReferenceExhausted):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeReferenceGeneration, "could not allocate a booking reference, please retry")
		case errors.Is(err, domain.ErrIdempotencyConflict):
			// lost a same-key race; the winner's booking is the answer
			booking, found, resolveErr := app.resolveIdempotencyKey(w, r, userId, idempotencyKey, input)
			if resolveErr != nil {
				return
			}
			if found {
				app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
				return
			}
			app.serverErrorResponse(w, r, err)
		case errors.Is(err, domain.ErrShowtimeNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.writeJSON(w, http.StatusCreated, toBookingResponse(booking), nil)
}

// resolveIdempotencyKey looks up a prior (owner, key) mapping. A replay
// with the identical showtime and seat set returns the stored booking;
// a different payload under the same key is rejected. The error return
// signals that a response has already been written.
func (app *application) resolveIdempotencyKey(
	w http.ResponseWriter,
	r *http.Request,
	userId int,
	key string,
	input api.CreateBookingRequest,
) (*domain.Booking, bool, error) {
	bookingId, err := app.bookingRepo.LookupIdempotencyKey(r.Context(), userId, key)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, false, nil
		}

		app.serverErrorResponse(w, r, err)
		return nil, false, err
	}

	booking, err := app.bookingRepo.GetByID(r.Context(), bookingId)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return nil, false, err
	}

	if !booking.SameRequest(input.ShowtimeId, input.SeatIds) {
		app.codedErrorResponse(w, r, http.StatusConflict, CodeIdempotencyKeyReused,
			"idempotency key was already used with a different request")
		return nil, false, domain.ErrIdempotencyKeyReused
	}

	return booking, true, nil
}

// validateSeatsForShowtime checks the requested seats against the
// static layout: every seat must exist in the showtime's studio and
// not be blocked. Live occupancy is re-checked later inside the hold
// transaction. A non-nil return means a response was written.
func (app *application) validateSeatsForShowtime(
	ctx context.Context,
	showtime *domain.Showtime,
	seatIds []int,
	w http.ResponseWriter,
	r *http.Request,
) error {
	seats, err := app.seatRepo.GetByIDs(ctx, seatIds)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return err
	}

	byId := make(map[int]domain.Seat, len(seats))
	for _, seat := range seats {
		byId[seat.ID] = seat
	}

	for _, id := range seatIds {
		seat, ok := byId[id]
		if !ok || seat.StudioID != showtime.StudioID {
			app.codedErrorResponse(w, r, http.StatusUnprocessableEntity, CodeSeatNotInStudio,
				fmt.Sprintf("seat %d does not exist in this showtime's studio", id))
			return domain.ErrSeatNotInStudio
		}
		if seat.IsBlocked {
			app.codedErrorResponse(w, r, http.StatusUnprocessableEntity, CodeSeatBlocked,
				fmt.Sprintf("seat %d is not available for booking", id))
			return domain.ErrSeatBlocked
		}
	}

	return nil
}

func (app *application) GetBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	booking, ok := app.fetchOwnedBooking(w, r, userId)
	if !ok {
		return
	}

	app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
}

func (app *application) ListBookings(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	var status *domain.BookingStatus

	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.BookingStatus(raw)
		if !s.IsValid() {
			app.errorResponse(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("unknown booking status: %q", raw))
			return
		}
		status = &s
	}

	bookings, err := app.bookingRepo.ListByOwner(r.Context(), userId, status)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.BookingListResponse{
		Bookings: make([]api.BookingSummary, 0, len(bookings)),
	}

	for i := range bookings {
		resp.Bookings = append(resp.Bookings, toBookingSummary(&bookings[i]))
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func (app *application) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	booking, ok := app.fetchOwnedBooking(w, r, userId)
	if !ok {
		return
	}

	wasPending := booking.Status == domain.BookingStatusPending

	booking, err := app.bookingRepo.Cancel(r.Context(), booking.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingFinalized):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeBookingFinalized,
				"a confirmed or claimed booking cannot be cancelled")
		case errors.Is(err, domain.ErrBookingClosed):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeBookingClosed,
				"the booking has already expired")
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	if wasPending {
		app.publishBookingEvent(r.Context(), domain.BookingEventCancelled, booking)
		app.logger.Info("booking cancelled", "bookingId", booking.ID, "reference", booking.Reference)
	}

	app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
}

func (app *application) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	booking, ok := app.fetchOwnedBooking(w, r, userId)
	if !ok {
		return
	}

	wasPending := booking.Status == domain.BookingStatusPending

	booking, err := app.bookingRepo.Confirm(r.Context(), booking.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingNotConfirmable):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeBookingNotConfirmable,
				"a cancelled, expired or claimed booking cannot be confirmed")
		case errors.Is(err, domain.ErrSeatUnavailable):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeSeatUnavailable,
				"the held seats were released and are no longer available")
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	if wasPending {
		app.publishBookingEvent(r.Context(), domain.BookingEventConfirmed, booking)
		app.logger.Info("booking confirmed", "bookingId", booking.ID, "reference", booking.Reference)
	}

	app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
}

func (app *application) ClaimBooking(w http.ResponseWriter, r *http.Request) {
	bookingId, err := app.readIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := app.bookingRepo.Claim(r.Context(), bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrOnlyConfirmedClaimed):
			app.codedErrorResponse(w, r, http.StatusConflict, CodeOnlyConfirmedClaimed,
				"only a confirmed booking can be claimed")
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.logger.Info("booking claimed", "bookingId", booking.ID, "reference", booking.Reference)

	app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
}

// fetchOwnedBooking loads the booking from the URL parameter and
// enforces ownership. A false return means a response was written.
func (app *application) fetchOwnedBooking(w http.ResponseWriter, r *http.Request, userId int) (*domain.Booking, bool) {
	bookingId, err := app.readIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, false
	}

	booking, err := app.bookingRepo.GetByID(r.Context(), bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return nil, false
	}

	if booking.OwnerID != userId {
		app.forbiddenResponse(w, r)
		return nil, false
	}

	return booking, true
}

func (app *application) publishBookingEvent(ctx context.Context, eventType domain.BookingEventType, booking *domain.Booking) {
	event := domain.BookingEvent{
		Type:        eventType,
		BookingID:   booking.ID,
		Reference:   booking.Reference,
		OwnerID:     booking.OwnerID,
		ShowtimeID:  booking.ShowtimeID,
		TotalAmount: booking.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}

	err := app.eventPublisher.PublishBookingEvent(ctx, event)
	if err != nil {
		app.logger.Error("failed to publish booking event",
			"type", eventType, "bookingId", booking.ID, "error", err)
	}
}

func toBookingResponse(booking *domain.Booking) api.BookingResponse {
	seats := make([]api.BookingSeat, 0, len(booking.Seats))
	for _, seat := range booking.Seats {
		seats = append(seats, api.BookingSeat{
			SeatId:     seat.SeatID,
			RowLetter:  seat.RowLetter,
			SeatNumber: seat.SeatNumber,
			UnitPrice:  seat.UnitPrice,
		})
	}

	return api.BookingResponse{
		BookingId:        booking.ID,
		BookingReference: booking.Reference,
		Status:           string(booking.Status),
		ShowtimeId:       booking.ShowtimeID,
		HoldExpiresAt:    booking.HoldExpiresAt,
		TotalAmount:      booking.TotalAmount,
		Seats:            seats,
		CreatedAt:        booking.CreatedAt,
	}
}

func toBookingSummary(booking *domain.Booking) api.BookingSummary {
	return api.BookingSummary{
		BookingId:        booking.ID,
		BookingReference: booking.Reference,
		Status:           string(booking.Status),
		ShowtimeId:       booking.ShowtimeID,
		TotalAmount:      booking.TotalAmount,
		CreatedAt:        booking.CreatedAt,
	}
}
