package domain

import "context"

// Seat is part of the static studio layout, read-only to the engine.
// IsBlocked is a permanent admin flag (pillar, broken seat) and has
// nothing to do with bookings.
type Seat struct {
	ID         int
	StudioID   int
	RowLetter  string
	SeatNumber int
	IsBlocked  bool
}

type SeatRepository interface {
	GetByStudio(ctx context.Context, studioID int) ([]Seat, error)
	GetByIDs(ctx context.Context, ids []int) ([]Seat, error)
}

// SeatAvailability is the live status of one seat for one showtime.
type SeatAvailabilityStatus string

const (
	SeatBlocked   SeatAvailabilityStatus = "BLOCKED"
	SeatHeld      SeatAvailabilityStatus = "HELD"
	SeatBooked    SeatAvailabilityStatus = "BOOKED"
	SeatAvailable SeatAvailabilityStatus = "AVAILABLE"
)
