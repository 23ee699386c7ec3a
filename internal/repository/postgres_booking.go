package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/screenseat/booking-engine/internal/domain"
)

type PostgresBookingRepository struct {
	db *pgxpool.Pool

	// newReference is swappable so tests can force collisions.
	newReference func() (string, error)
}

// SetReferenceGenerator replaces the booking reference source. Tests
// use this to force collisions.
func (p *PostgresBookingRepository) SetReferenceGenerator(gen func() (string, error)) {
	p.newReference = gen
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db:           db,
		newReference: domain.NewBookingReference,
	}
}

// CreateHold writes a Pending booking and its seat lines in one
// transaction. The showtime row lock plus the in-transaction occupancy
// check make the validate-then-write sequence atomic; unique
// violations that slip through anyway are translated to the same
// conflicts the pre-checks produce, so a caller cannot tell losing the
// race from the seat having been taken all along.
func (p *PostgresBookingRepository) CreateHold(
	ctx context.Context,
	params domain.CreateHoldParams) (*domain.Booking, error) {

	var bookingID int

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		if err := lockShowtime(ctx, tx, params.ShowtimeID); err != nil {
			return err
		}

		now := time.Now().UTC()

		claims, err := seatClaimsByShowtime(ctx, tx, params.ShowtimeID)
		if err != nil {
			return err
		}

		occupied := domain.OccupiedSeats(claims, now, 0)
		for _, seatID := range params.SeatIDs {
			if occupied[seatID] {
				return domain.ErrSeatUnavailable
			}
		}

		reference, err := p.allocateReference(ctx, tx)
		if err != nil {
			return err
		}

		holdExpiresAt := now.Add(params.HoldDuration)
		totalAmount := params.UnitPrice * int64(len(params.SeatIDs))

		query := `
			INSERT INTO bookings (owner_id, showtime_id, status, hold_expires_at, total_amount, booking_reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`

		err = tx.QueryRow(
			ctx,
			query,
			params.OwnerID,
			params.ShowtimeID,
			domain.BookingStatusPending,
			holdExpiresAt,
			totalAmount,
			reference,
			now).Scan(&bookingID)

		if err != nil {
			return err
		}

		lines := make([][]any, 0, len(params.SeatIDs))
		for _, seatID := range params.SeatIDs {
			lines = append(lines, []any{bookingID, params.ShowtimeID, seatID, params.UnitPrice})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"booking_seats"},
			[]string{"booking_id", "showtime_id", "seat_id", "unit_price"},
			pgx.CopyFromRows(lines),
		)
		if err != nil {
			return err
		}

		if params.IdempotencyKey != "" {
			query = `
				INSERT INTO idempotency_keys (owner_id, idem_key, booking_id)
				VALUES ($1, $2, $3)
			`

			_, err = tx.Exec(ctx, query, params.OwnerID, params.IdempotencyKey, bookingID)
			if err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, translateUniqueViolation(err)
	}

	return p.GetByID(ctx, bookingID)
}

// allocateReference generates a booking reference and verifies it is
// unused within the running transaction, retrying a bounded number of
// times. The unique constraint on bookings.booking_reference remains
// the backstop for generators racing across transactions.
func (p *PostgresBookingRepository) allocateReference(ctx context.Context, tx pgx.Tx) (string, error) {
	for range domain.ReferenceMaxAttempts {
		reference, err := p.newReference()
		if err != nil {
			return "", err
		}

		var exists bool
		err = tx.QueryRow(
			ctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_reference = $1)`,
			reference).Scan(&exists)

		if err != nil {
			return "", err
		}

		if !exists {
			return reference, nil
		}
	}

	return "", domain.ErrReferenceExhausted
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case "bookings_booking_reference_key":
			return domain.ErrReferenceExhausted
		case "idempotency_keys_pkey":
			return domain.ErrIdempotencyConflict
		}
	}

	return err
}

func (p *PostgresBookingRepository) GetByID(ctx context.Context, id int) (*domain.Booking, error) {
	return p.getBooking(ctx, `WHERE b.id = $1`, id)
}

func (p *PostgresBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return p.getBooking(ctx, `WHERE b.booking_reference = $1`, reference)
}

func (p *PostgresBookingRepository) getBooking(ctx context.Context, where string, arg any) (*domain.Booking, error) {
	query := `
		SELECT b.id, b.owner_id, b.showtime_id, b.status, b.hold_expires_at, b.total_amount, b.booking_reference, b.created_at
		FROM bookings b ` + where

	var booking domain.Booking

	err := p.db.QueryRow(ctx, query, arg).Scan(
		&booking.ID,
		&booking.OwnerID,
		&booking.ShowtimeID,
		&booking.Status,
		&booking.HoldExpiresAt,
		&booking.TotalAmount,
		&booking.Reference,
		&booking.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	seats, err := p.getBookingSeats(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	booking.Seats = seats

	return &booking, nil
}

func (p *PostgresBookingRepository) getBookingSeats(ctx context.Context, bookingID int) ([]domain.BookingSeat, error) {
	query := `
		SELECT bs.booking_id, bs.showtime_id, bs.seat_id, bs.unit_price, s.row_letter, s.seat_number
		FROM booking_seats bs
		JOIN seats s ON bs.seat_id = s.id
		WHERE bs.booking_id = $1
		ORDER BY s.row_letter, s.seat_number
	`

	rows, err := p.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.BookingSeat, 0)

	for rows.Next() {
		var seat domain.BookingSeat

		err = rows.Scan(
			&seat.BookingID,
			&seat.ShowtimeID,
			&seat.SeatID,
			&seat.UnitPrice,
			&seat.RowLetter,
			&seat.SeatNumber,
		)
		if err != nil {
			return nil, err
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seats, nil
}

func (p *PostgresBookingRepository) ListByOwner(
	ctx context.Context,
	ownerID int,
	status *domain.BookingStatus) ([]domain.Booking, error) {

	query := `
		SELECT b.id, b.owner_id, b.showtime_id, b.status, b.hold_expires_at, b.total_amount, b.booking_reference, b.created_at
		FROM bookings b
		WHERE b.owner_id = $1
		  AND ($2::text IS NULL OR b.status = $2)
		ORDER BY b.created_at DESC
	`

	rows, err := p.db.Query(ctx, query, ownerID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)

	for rows.Next() {
		var booking domain.Booking

		err = rows.Scan(
			&booking.ID,
			&booking.OwnerID,
			&booking.ShowtimeID,
			&booking.Status,
			&booking.HoldExpiresAt,
			&booking.TotalAmount,
			&booking.Reference,
			&booking.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (p *PostgresBookingRepository) LookupIdempotencyKey(ctx context.Context, ownerID int, key string) (int, error) {
	var bookingID int

	err := p.db.QueryRow(
		ctx,
		`SELECT booking_id FROM idempotency_keys WHERE owner_id = $1 AND idem_key = $2`,
		ownerID,
		key).Scan(&bookingID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrRecordNotFound
		}
		return 0, err
	}

	return bookingID, nil
}

// Cancel moves a Pending booking to Cancelled and drops its hold so
// the seats free up on the next occupancy evaluation. Cancelling an
// already-Cancelled booking is a no-op; finalized bookings reject.
func (p *PostgresBookingRepository) Cancel(ctx context.Context, id int) (*domain.Booking, error) {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		status, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}

		switch status {
		case domain.BookingStatusCancelled:
			return nil
		case domain.BookingStatusConfirmed, domain.BookingStatusClaimed:
			return domain.ErrBookingFinalized
		case domain.BookingStatusExpired:
			return domain.ErrBookingClosed
		}

		_, err = tx.Exec(
			ctx,
			`UPDATE bookings SET status = $1, hold_expires_at = NULL WHERE id = $2`,
			domain.BookingStatusCancelled,
			id,
		)

		return err
	})

	if err != nil {
		return nil, err
	}

	return p.GetByID(ctx, id)
}

// Confirm moves a Pending booking to Confirmed after re-validating,
// inside the transaction, that no other active booking has taken its
// seats in the meantime. Confirming an already-Confirmed booking is a
// no-op.
func (p *PostgresBookingRepository) Confirm(ctx context.Context, id int) (*domain.Booking, error) {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var showtimeID int

		err := tx.QueryRow(ctx, `SELECT showtime_id FROM bookings WHERE id = $1`, id).Scan(&showtimeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}
			return err
		}

		// Same lock order as CreateHold: showtime first, then booking.
		if err := lockShowtime(ctx, tx, showtimeID); err != nil {
			return err
		}

		status, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}

		switch status {
		case domain.BookingStatusConfirmed:
			return nil
		case domain.BookingStatusCancelled, domain.BookingStatusExpired:
			return domain.ErrBookingNotConfirmable
		case domain.BookingStatusClaimed:
			return domain.ErrBookingNotConfirmable
		}

		if err := checkOwnSeatsStillFree(ctx, tx, id, showtimeID); err != nil {
			return err
		}

		_, err = tx.Exec(
			ctx,
			`UPDATE bookings SET status = $1, hold_expires_at = NULL WHERE id = $2`,
			domain.BookingStatusConfirmed,
			id,
		)

		return err
	})

	if err != nil {
		return nil, err
	}

	return p.GetByID(ctx, id)
}

// Claim marks a Confirmed booking's ticket as redeemed. Every other
// starting state rejects, including a second claim.
func (p *PostgresBookingRepository) Claim(ctx context.Context, id int) (*domain.Booking, error) {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		status, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}

		if status != domain.BookingStatusConfirmed {
			return domain.ErrOnlyConfirmedClaimed
		}

		_, err = tx.Exec(
			ctx,
			`UPDATE bookings SET status = $1 WHERE id = $2`,
			domain.BookingStatusClaimed,
			id,
		)

		return err
	})

	if err != nil {
		return nil, err
	}

	return p.GetByID(ctx, id)
}

func (p *PostgresBookingRepository) GetClaimsByShowtime(ctx context.Context, showtimeID int) ([]domain.SeatClaim, error) {
	return seatClaimsByShowtime(ctx, p.db, showtimeID)
}

// ExpireLapsedHolds flips Pending bookings whose hold has lapsed to
// Expired. Availability never depends on this running; it only keeps
// the stored status honest for reads and reporting.
func (p *PostgresBookingRepository) ExpireLapsedHolds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.db.Exec(
		ctx,
		`UPDATE bookings SET status = $1, hold_expires_at = NULL WHERE status = $2 AND hold_expires_at <= $3`,
		domain.BookingStatusExpired,
		domain.BookingStatusPending,
		now,
	)

	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func lockBooking(ctx context.Context, tx pgx.Tx, id int) (domain.BookingStatus, error) {
	var status domain.BookingStatus

	err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrRecordNotFound
		}
		return "", err
	}

	return status, nil
}

// checkOwnSeatsStillFree re-runs the occupancy oracle over the
// booking's own seats, excluding the booking itself, and fails if any
// seat is now occupied by another active booking.
func checkOwnSeatsStillFree(ctx context.Context, tx pgx.Tx, bookingID, showtimeID int) error {
	claims, err := seatClaimsByShowtime(ctx, tx, showtimeID)
	if err != nil {
		return err
	}

	occupied := domain.OccupiedSeats(claims, time.Now().UTC(), bookingID)

	for _, claim := range claims {
		if claim.BookingID == bookingID && occupied[claim.SeatID] {
			return domain.ErrSeatUnavailable
		}
	}

	return nil
}
