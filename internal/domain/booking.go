package domain

import (
	"context"
	"time"
)

// HoldDuration is how long a Pending booking keeps its seats. It is the
// only timer in the system: a hold that outlives it simply stops
// occupying seats on the next availability evaluation.
const HoldDuration = 10 * time.Minute

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "Pending"
	BookingStatusConfirmed BookingStatus = "Confirmed"
	BookingStatusClaimed   BookingStatus = "Claimed"
	BookingStatusCancelled BookingStatus = "Cancelled"
	BookingStatusExpired   BookingStatus = "Expired"
)

// transitions is the closed transition table of the booking state
// machine. Cancelled, Claimed and Expired are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusConfirmed: {BookingStatusClaimed},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsValid reports whether s is one of the five known statuses.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusClaimed,
		BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

type Booking struct {
	ID            int
	OwnerID       int
	ShowtimeID    int
	Status        BookingStatus
	HoldExpiresAt *time.Time
	TotalAmount   int64
	Reference     string
	Seats         []BookingSeat
	CreatedAt     time.Time
}

// BookingSeat is a line item of a booking. Rows are immutable once
// written; the price is a snapshot of the showtime's unit price at
// hold time.
type BookingSeat struct {
	BookingID  int
	ShowtimeID int
	SeatID     int
	UnitPrice  int64
	RowLetter  string
	SeatNumber int
}

// HoldIsLive reports whether a Pending booking still occupies its
// seats at the given instant.
func (b *Booking) HoldIsLive(now time.Time) bool {
	return b.Status == BookingStatusPending && b.HoldExpiresAt != nil && b.HoldExpiresAt.After(now)
}

// SeatIDSet returns the booking's seat ids as a set.
func (b *Booking) SeatIDSet() map[int]bool {
	set := make(map[int]bool, len(b.Seats))
	for _, s := range b.Seats {
		set[s.SeatID] = true
	}
	return set
}

// SameRequest reports whether a replayed hold request targets the same
// showtime and the exact same seat set as this booking. Used by the
// idempotency resolver to distinguish a retry from a key reuse.
func (b *Booking) SameRequest(showtimeID int, seatIDs []int) bool {
	if b.ShowtimeID != showtimeID || len(seatIDs) != len(b.Seats) {
		return false
	}

	set := b.SeatIDSet()
	for _, id := range seatIDs {
		if !set[id] {
			return false
		}
	}

	return true
}

// CreateHoldParams carries everything the repository needs to write a
// hold atomically. Seats are pre-validated against the static layout;
// the repository re-checks live occupancy inside the transaction.
type CreateHoldParams struct {
	OwnerID        int
	ShowtimeID     int
	SeatIDs        []int
	UnitPrice      int64
	HoldDuration   time.Duration
	IdempotencyKey string
}

type BookingRepository interface {
	CreateHold(ctx context.Context, params CreateHoldParams) (*Booking, error)
	GetByID(ctx context.Context, id int) (*Booking, error)
	GetByReference(ctx context.Context, reference string) (*Booking, error)
	ListByOwner(ctx context.Context, ownerID int, status *BookingStatus) ([]Booking, error)
	LookupIdempotencyKey(ctx context.Context, ownerID int, key string) (int, error)
	Cancel(ctx context.Context, id int) (*Booking, error)
	Confirm(ctx context.Context, id int) (*Booking, error)
	Claim(ctx context.Context, id int) (*Booking, error)
	GetClaimsByShowtime(ctx context.Context, showtimeID int) ([]SeatClaim, error)
	ExpireLapsedHolds(ctx context.Context, now time.Time) (int64, error)
}
