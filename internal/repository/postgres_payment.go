package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/screenseat/booking-engine/internal/domain"
)

type PostgresPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPaymentRepository(db *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db: db,
	}
}

func (p *PostgresPaymentRepository) CreateAttempt(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (booking_id, amount, status, gateway_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	payment.CreatedAt = time.Now().UTC()

	return p.db.QueryRow(
		ctx,
		query,
		payment.BookingID,
		payment.Amount,
		payment.Status,
		payment.GatewayID,
		payment.CreatedAt,
	).Scan(&payment.ID)
}

func (p *PostgresPaymentRepository) GetByID(ctx context.Context, id int) (*domain.Payment, error) {
	query := `
		SELECT id, booking_id, amount, status, gateway_ref, created_at
		FROM payments
		WHERE id = $1
	`

	var payment domain.Payment

	err := p.db.QueryRow(ctx, query, id).Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Status,
		&payment.GatewayID,
		&payment.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return &payment, nil
}

func (p *PostgresPaymentRepository) ListByBooking(ctx context.Context, bookingID int) ([]domain.Payment, error) {
	query := `
		SELECT id, booking_id, amount, status, gateway_ref, created_at
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at DESC
	`

	rows, err := p.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)

	for rows.Next() {
		var payment domain.Payment

		err = rows.Scan(
			&payment.ID,
			&payment.BookingID,
			&payment.Amount,
			&payment.Status,
			&payment.GatewayID,
			&payment.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		payments = append(payments, payment)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (p *PostgresPaymentRepository) SumSuccessful(ctx context.Context, bookingID int) (int64, error) {
	var paid int64

	err := p.db.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE booking_id = $1 AND status = $2`,
		bookingID,
		domain.PaymentStatusSuccess,
	).Scan(&paid)

	return paid, err
}

// ApplyOutcome records a gateway outcome for one payment attempt
// exactly once. A replay of a terminal outcome is a no-op. When a
// Success pushes the paid sum up to the booking total and the booking
// is still Pending, the booking is confirmed in the same transaction,
// after the seats are re-validated against other active bookings.
func (p *PostgresPaymentRepository) ApplyOutcome(
	ctx context.Context,
	paymentID int,
	outcome domain.PaymentStatus) (*domain.OutcomeResult, error) {

	result := &domain.OutcomeResult{}

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var payment domain.Payment

		query := `
			SELECT id, booking_id, amount, status, gateway_ref, created_at
			FROM payments
			WHERE id = $1
			FOR UPDATE
		`

		err := tx.QueryRow(ctx, query, paymentID).Scan(
			&payment.ID,
			&payment.BookingID,
			&payment.Amount,
			&payment.Status,
			&payment.GatewayID,
			&payment.CreatedAt,
		)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}
			return err
		}

		result.Payment = &payment

		// Terminal attempts never change again; replays fall through
		// here and stay no-ops.
		if payment.Status.IsTerminal() {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE payments SET status = $1 WHERE id = $2`, outcome, paymentID)
		if err != nil {
			return err
		}

		payment.Status = outcome
		result.Applied = true

		if outcome != domain.PaymentStatusSuccess {
			return nil
		}

		return p.maybeConfirmBooking(ctx, tx, payment.BookingID, result)
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (p *PostgresPaymentRepository) maybeConfirmBooking(
	ctx context.Context,
	tx pgx.Tx,
	bookingID int,
	result *domain.OutcomeResult) error {

	var booking domain.Booking

	err := tx.QueryRow(
		ctx,
		`SELECT id, owner_id, showtime_id, status, total_amount, booking_reference FROM bookings WHERE id = $1`,
		bookingID,
	).Scan(
		&booking.ID,
		&booking.OwnerID,
		&booking.ShowtimeID,
		&booking.Status,
		&booking.TotalAmount,
		&booking.Reference,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}
		return err
	}

	result.Booking = &booking

	if booking.Status != domain.BookingStatusPending {
		return nil
	}

	if err := lockShowtime(ctx, tx, booking.ShowtimeID); err != nil {
		return err
	}

	status, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if status != domain.BookingStatusPending {
		booking.Status = status
		return nil
	}

	var paid int64
	err = tx.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE booking_id = $1 AND status = $2`,
		bookingID,
		domain.PaymentStatusSuccess,
	).Scan(&paid)

	if err != nil {
		return err
	}

	if paid < booking.TotalAmount {
		return nil
	}

	// Lapsed holds can have been rebooked by someone else; the payment
	// stays recorded but the booking must not steal the seats back.
	if err := checkOwnSeatsStillFree(ctx, tx, bookingID, booking.ShowtimeID); err != nil {
		if errors.Is(err, domain.ErrSeatUnavailable) {
			return nil
		}
		return err
	}

	_, err = tx.Exec(
		ctx,
		`UPDATE bookings SET status = $1, hold_expires_at = NULL WHERE id = $2`,
		domain.BookingStatusConfirmed,
		bookingID,
	)
	if err != nil {
		return err
	}

	booking.Status = domain.BookingStatusConfirmed
	result.BookingConfirmed = true

	return nil
}
