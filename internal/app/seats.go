package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/screenseat/booking-engine/api"
	"github.com/screenseat/booking-engine/internal/domain"
)

func (app *application) GetSeatAvailability(w http.ResponseWriter, r *http.Request) {
	showtimeId, err := app.readIDParam(r, "showtimeId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	showtime, err := app.showtimeRepo.GetByID(r.Context(), showtimeId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	seats, err := app.seatRepo.GetByStudio(r.Context(), showtime.StudioID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	claims, err := app.bookingRepo.GetClaimsByShowtime(r.Context(), showtimeId)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	now := time.Now().UTC()

	// Only one live claim can exist per seat; lapsed and released
	// claims fall out here without any row update.
	liveClaims := make(map[int]domain.SeatClaim, len(claims))
	for _, claim := range claims {
		if claim.Occupies(now) {
			liveClaims[claim.SeatID] = claim
		}
	}

	resp := api.SeatAvailabilityResponse{
		ShowtimeId: showtimeId,
		Seats:      make([]api.SeatAvailability, 0, len(seats)),
	}

	for _, seat := range seats {
		entry := api.SeatAvailability{
			SeatId:     seat.ID,
			RowLetter:  seat.RowLetter,
			SeatNumber: seat.SeatNumber,
			Status:     string(domain.SeatAvailable),
		}

		claim, occupied := liveClaims[seat.ID]

		switch {
		case seat.IsBlocked:
			entry.Status = string(domain.SeatBlocked)
		case occupied && claim.Status == domain.BookingStatusPending:
			entry.Status = string(domain.SeatHeld)
			entry.HoldExpiresAt = claim.HoldExpiresAt
		case occupied:
			entry.Status = string(domain.SeatBooked)
		}

		resp.Seats = append(resp.Seats, entry)
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}
