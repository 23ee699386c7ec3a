package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/screenseat/booking-engine/internal/domain"
)

type PostgresSeatRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSeatRepository(db *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{
		db: db,
	}
}

func (p *PostgresSeatRepository) GetByStudio(ctx context.Context, studioID int) ([]domain.Seat, error) {
	query := `
		SELECT id, studio_id, row_letter, seat_number, is_blocked
		FROM seats
		WHERE studio_id = $1
		ORDER BY row_letter, seat_number
	`

	return p.querySeats(ctx, query, studioID)
}

func (p *PostgresSeatRepository) GetByIDs(ctx context.Context, ids []int) ([]domain.Seat, error) {
	query := `
		SELECT id, studio_id, row_letter, seat_number, is_blocked
		FROM seats
		WHERE id = ANY($1)
		ORDER BY row_letter, seat_number
	`

	return p.querySeats(ctx, query, ids)
}

func (p *PostgresSeatRepository) querySeats(ctx context.Context, query string, arg any) ([]domain.Seat, error) {
	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)

	for rows.Next() {
		var seat domain.Seat

		err = rows.Scan(&seat.ID, &seat.StudioID, &seat.RowLetter, &seat.SeatNumber, &seat.IsBlocked)
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
