package domain

import (
	"context"
	"time"
)

// Showtime is read-only to the booking engine; the catalog service
// owns these rows. UnitPrice is in minor currency units and immutable
// for the showtime's lifetime.
type Showtime struct {
	ID        int
	MovieID   int
	StudioID  int
	StartsAt  time.Time
	UnitPrice int64
	IsActive  bool
}

type ShowtimeRepository interface {
	GetByID(ctx context.Context, id int) (*Showtime, error)
}
