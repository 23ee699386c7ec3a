package integration_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/screenseat/booking-engine/internal/domain"
)

type BookingEngineSuite struct {
	BaseSuite
}

func (s *BookingEngineSuite) createHold(ownerID, showtimeID int, seatIDs []int, key string) *domain.Booking {
	booking, err := s.bookingRepo.CreateHold(context.Background(), domain.CreateHoldParams{
		OwnerID:        ownerID,
		ShowtimeID:     showtimeID,
		SeatIDs:        seatIDs,
		UnitPrice:      1500,
		HoldDuration:   domain.HoldDuration,
		IdempotencyKey: key,
	})
	s.Require().NoError(err)

	return booking
}

func (s *BookingEngineSuite) TestHoldCreation() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 4)

	booking := s.createHold(1, showtimeID, seatIDs[:2], "")

	s.Equal(domain.BookingStatusPending, booking.Status)
	s.Len(booking.Reference, 8)
	s.EqualValues(3000, booking.TotalAmount)
	s.Len(booking.Seats, 2)
	s.Require().NotNil(booking.HoldExpiresAt)
	s.WithinDuration(time.Now().Add(domain.HoldDuration), *booking.HoldExpiresAt, 10*time.Second)

	fetched, err := s.bookingRepo.GetByReference(context.Background(), booking.Reference)
	s.Require().NoError(err)
	s.Equal(booking.ID, fetched.ID)
}

func (s *BookingEngineSuite) TestReferenceCollisionRetried() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 3)

	taken := s.createHold(1, showtimeID, seatIDs[:1], "")

	defer s.bookingRepo.SetReferenceGenerator(domain.NewBookingReference)

	// replay the taken reference twice before yielding a fresh one
	attempts := 0
	s.bookingRepo.SetReferenceGenerator(func() (string, error) {
		attempts++
		if attempts <= 2 {
			return taken.Reference, nil
		}
		return "ZZ99YY88", nil
	})

	booking := s.createHold(2, showtimeID, seatIDs[1:2], "")
	s.Equal("ZZ99YY88", booking.Reference)
	s.Equal(3, attempts)
}

func (s *BookingEngineSuite) TestReferenceCollisionExhausted() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 3)

	taken := s.createHold(1, showtimeID, seatIDs[:1], "")

	defer s.bookingRepo.SetReferenceGenerator(domain.NewBookingReference)

	attempts := 0
	s.bookingRepo.SetReferenceGenerator(func() (string, error) {
		attempts++
		return taken.Reference, nil
	})

	_, err := s.bookingRepo.CreateHold(context.Background(), domain.CreateHoldParams{
		OwnerID:      2,
		ShowtimeID:   showtimeID,
		SeatIDs:      seatIDs[1:2],
		UnitPrice:    1500,
		HoldDuration: domain.HoldDuration,
	})
	s.Require().ErrorIs(err, domain.ErrReferenceExhausted)
	s.Equal(domain.ReferenceMaxAttempts, attempts)

	// the exhausted allocation must not leave a booking behind
	var count int
	err = s.pool.QueryRow(context.Background(), `SELECT count(*) FROM bookings`).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *BookingEngineSuite) TestConflictingHoldLoses() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 4)

	s.createHold(1, showtimeID, seatIDs[:2], "")

	// partial overlap is still a full rejection
	_, err := s.bookingRepo.CreateHold(context.Background(), domain.CreateHoldParams{
		OwnerID:      2,
		ShowtimeID:   showtimeID,
		SeatIDs:      []int{seatIDs[1], seatIDs[2]},
		UnitPrice:    1500,
		HoldDuration: domain.HoldDuration,
	})
	s.Require().ErrorIs(err, domain.ErrSeatUnavailable)

	var count int
	err = s.pool.QueryRow(context.Background(), `SELECT count(*) FROM bookings`).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count, "losing request must not write a partial hold")
}

func (s *BookingEngineSuite) TestLapsedHoldFreesSeats() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	first := s.createHold(1, showtimeID, seatIDs, "")
	s.forceHoldLapse(first.ID)

	// the seats came free without any row being updated
	second := s.createHold(2, showtimeID, seatIDs, "")
	s.Equal(domain.BookingStatusPending, second.Status)

	// the original hold can no longer confirm, its seats are gone
	_, err := s.bookingRepo.Confirm(context.Background(), first.ID)
	s.Require().ErrorIs(err, domain.ErrSeatUnavailable)
}

func (s *BookingEngineSuite) TestCancelReleasesSeats() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	booking := s.createHold(1, showtimeID, seatIDs, "")

	cancelled, err := s.bookingRepo.Cancel(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusCancelled, cancelled.Status)
	s.Nil(cancelled.HoldExpiresAt)

	// repeat cancel is a no-op
	again, err := s.bookingRepo.Cancel(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusCancelled, again.Status)

	rebooked := s.createHold(2, showtimeID, seatIDs, "")
	s.Equal(domain.BookingStatusPending, rebooked.Status)
}

func (s *BookingEngineSuite) TestConfirmAndClaim() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	booking := s.createHold(1, showtimeID, seatIDs, "")

	confirmed, err := s.bookingRepo.Confirm(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusConfirmed, confirmed.Status)
	s.Nil(confirmed.HoldExpiresAt)

	// confirming again returns the booking unchanged
	_, err = s.bookingRepo.Confirm(context.Background(), booking.ID)
	s.Require().NoError(err)

	// a confirmed booking occupies its seats with no expiry
	_, err = s.bookingRepo.CreateHold(context.Background(), domain.CreateHoldParams{
		OwnerID:      2,
		ShowtimeID:   showtimeID,
		SeatIDs:      seatIDs[:1],
		UnitPrice:    1500,
		HoldDuration: domain.HoldDuration,
	})
	s.Require().ErrorIs(err, domain.ErrSeatUnavailable)

	claimed, err := s.bookingRepo.Claim(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusClaimed, claimed.Status)

	_, err = s.bookingRepo.Claim(context.Background(), booking.ID)
	s.Require().ErrorIs(err, domain.ErrOnlyConfirmedClaimed)

	_, err = s.bookingRepo.Cancel(context.Background(), booking.ID)
	s.Require().ErrorIs(err, domain.ErrBookingFinalized)
}

func (s *BookingEngineSuite) TestExpiredBookingIsClosed() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 1)

	booking := s.createHold(1, showtimeID, seatIDs, "")
	s.forceHoldLapse(booking.ID)

	expired, err := s.bookingRepo.ExpireLapsedHolds(context.Background(), time.Now().UTC())
	s.Require().NoError(err)
	s.EqualValues(1, expired)

	fetched, err := s.bookingRepo.GetByID(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusExpired, fetched.Status)
	s.Nil(fetched.HoldExpiresAt)

	_, err = s.bookingRepo.Confirm(context.Background(), booking.ID)
	s.Require().ErrorIs(err, domain.ErrBookingNotConfirmable)

	_, err = s.bookingRepo.Cancel(context.Background(), booking.ID)
	s.Require().ErrorIs(err, domain.ErrBookingClosed)
}

func (s *BookingEngineSuite) TestExpirySweepSkipsLiveHolds() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	lapsed := s.createHold(1, showtimeID, seatIDs[:1], "")
	live := s.createHold(2, showtimeID, seatIDs[1:], "")
	s.forceHoldLapse(lapsed.ID)

	expired, err := s.bookingRepo.ExpireLapsedHolds(context.Background(), time.Now().UTC())
	s.Require().NoError(err)
	s.EqualValues(1, expired)

	fetched, err := s.bookingRepo.GetByID(context.Background(), live.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusPending, fetched.Status)
}

func (s *BookingEngineSuite) TestIdempotencyKeyMapping() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	booking := s.createHold(1, showtimeID, seatIDs, "retry-key")

	bookingID, err := s.bookingRepo.LookupIdempotencyKey(context.Background(), 1, "retry-key")
	s.Require().NoError(err)
	s.Equal(booking.ID, bookingID)

	// same key, another owner: no cross-tenant collision
	_, err = s.bookingRepo.LookupIdempotencyKey(context.Background(), 2, "retry-key")
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)

	// a concurrent duplicate insert surfaces as a conflict, not a
	// second booking
	_, err = s.bookingRepo.CreateHold(context.Background(), domain.CreateHoldParams{
		OwnerID:        1,
		ShowtimeID:     showtimeID,
		SeatIDs:        s.seedSeats(3, 1),
		UnitPrice:      1500,
		HoldDuration:   domain.HoldDuration,
		IdempotencyKey: "retry-key",
	})
	s.Require().Error(err)
	s.True(errors.Is(err, domain.ErrIdempotencyConflict) || errors.Is(err, domain.ErrSeatUnavailable))
}

func (s *BookingEngineSuite) TestListByOwner() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 3)

	first := s.createHold(1, showtimeID, seatIDs[:1], "")
	s.createHold(1, showtimeID, seatIDs[1:2], "")
	s.createHold(9, showtimeID, seatIDs[2:], "")

	_, err := s.bookingRepo.Confirm(context.Background(), first.ID)
	s.Require().NoError(err)

	all, err := s.bookingRepo.ListByOwner(context.Background(), 1, nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	status := domain.BookingStatusConfirmed
	confirmed, err := s.bookingRepo.ListByOwner(context.Background(), 1, &status)
	s.Require().NoError(err)
	s.Require().Len(confirmed, 1)
	s.Equal(first.ID, confirmed[0].ID)
}

func (s *BookingEngineSuite) TestPaymentSettlement() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	booking := s.createHold(1, showtimeID, seatIDs, "")

	payment := &domain.Payment{
		BookingID: booking.ID,
		Amount:    booking.TotalAmount,
		Status:    domain.PaymentStatusDelayed,
		GatewayID: uuid.NewString(),
	}
	s.Require().NoError(s.paymentRepo.CreateAttempt(context.Background(), payment))

	result, err := s.paymentRepo.ApplyOutcome(context.Background(), payment.ID, domain.PaymentStatusSuccess)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.True(result.BookingConfirmed)
	s.Require().NotNil(result.Booking)
	s.Equal(domain.BookingStatusConfirmed, result.Booking.Status)

	paid, err := s.paymentRepo.SumSuccessful(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.EqualValues(0, domain.RemainingBalance(booking.TotalAmount, paid))

	// the gateway retries: the outcome must not apply twice
	replay, err := s.paymentRepo.ApplyOutcome(context.Background(), payment.ID, domain.PaymentStatusSuccess)
	s.Require().NoError(err)
	s.False(replay.Applied)
}

func (s *BookingEngineSuite) TestPartialPaymentKeepsBookingPending() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 2)

	booking := s.createHold(1, showtimeID, seatIDs, "")

	payment := &domain.Payment{
		BookingID: booking.ID,
		Amount:    booking.TotalAmount / 2,
		Status:    domain.PaymentStatusDelayed,
		GatewayID: uuid.NewString(),
	}
	s.Require().NoError(s.paymentRepo.CreateAttempt(context.Background(), payment))

	result, err := s.paymentRepo.ApplyOutcome(context.Background(), payment.ID, domain.PaymentStatusSuccess)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.False(result.BookingConfirmed)

	fetched, err := s.bookingRepo.GetByID(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Equal(domain.BookingStatusPending, fetched.Status)
}

func (s *BookingEngineSuite) TestFailedOutcomeLeavesBalance() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 1)

	booking := s.createHold(1, showtimeID, seatIDs, "")

	payment := &domain.Payment{
		BookingID: booking.ID,
		Amount:    booking.TotalAmount,
		Status:    domain.PaymentStatusDelayed,
		GatewayID: uuid.NewString(),
	}
	s.Require().NoError(s.paymentRepo.CreateAttempt(context.Background(), payment))

	result, err := s.paymentRepo.ApplyOutcome(context.Background(), payment.ID, domain.PaymentStatusFailed)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.False(result.BookingConfirmed)

	paid, err := s.paymentRepo.SumSuccessful(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.EqualValues(booking.TotalAmount, domain.RemainingBalance(booking.TotalAmount, paid))

	payments, err := s.paymentRepo.ListByBooking(context.Background(), booking.ID)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(domain.PaymentStatusFailed, payments[0].Status)
}

func (s *BookingEngineSuite) TestSeatClaimsView() {
	showtimeID := s.seedShowtime(2, 1500, true)
	seatIDs := s.seedSeats(2, 3)

	held := s.createHold(1, showtimeID, seatIDs[:1], "")
	cancelled := s.createHold(2, showtimeID, seatIDs[1:2], "")

	_, err := s.bookingRepo.Cancel(context.Background(), cancelled.ID)
	s.Require().NoError(err)

	claims, err := s.bookingRepo.GetClaimsByShowtime(context.Background(), showtimeID)
	s.Require().NoError(err)

	occupied := domain.OccupiedSeats(claims, time.Now().UTC(), 0)
	s.True(occupied[held.Seats[0].SeatID])
	s.False(occupied[cancelled.Seats[0].SeatID])
	s.False(occupied[seatIDs[2]])
}
