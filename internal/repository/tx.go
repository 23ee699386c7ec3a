package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/screenseat/booking-engine/internal/domain"
)

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so the seat
// claim lookup can run standalone or inside a hold/confirm transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// lockShowtime serializes every seat-affecting write for one showtime.
// Two concurrent holds for the same seat both reach the occupancy
// check, but only one at a time holds the showtime row; the loser sees
// the winner's committed lines and fails the check instead of
// double-selling.
func lockShowtime(ctx context.Context, tx pgx.Tx, showtimeID int) error {
	var id int

	err := tx.QueryRow(ctx, `SELECT id FROM showtimes WHERE id = $1 FOR UPDATE`, showtimeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrShowtimeNotFound
		}
		return err
	}

	return nil
}

func seatClaimsByShowtime(ctx context.Context, q querier, showtimeID int) ([]domain.SeatClaim, error) {
	query := `
		SELECT bs.seat_id, b.id, b.status, b.hold_expires_at
		FROM booking_seats bs
		JOIN bookings b ON bs.booking_id = b.id
		WHERE bs.showtime_id = $1
	`

	rows, err := q.Query(ctx, query, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := make([]domain.SeatClaim, 0)

	for rows.Next() {
		var claim domain.SeatClaim

		err = rows.Scan(&claim.SeatID, &claim.BookingID, &claim.Status, &claim.HoldExpiresAt)
		if err != nil {
			return nil, err
		}

		claims = append(claims, claim)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return claims, nil
}
