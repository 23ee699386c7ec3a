package domain

import "time"

// SeatClaim is one booking line joined with the state of its parent
// booking, the minimal view the occupancy check needs.
type SeatClaim struct {
	SeatID        int
	BookingID     int
	Status        BookingStatus
	HoldExpiresAt *time.Time
}

// Occupies reports whether the claim keeps its seat unavailable at the
// given instant. Confirmed and Claimed bookings always occupy; a
// Pending booking occupies only while its hold is live. Cancelled and
// Expired claims never occupy, no matter what the rows say about
// their history.
func (c SeatClaim) Occupies(now time.Time) bool {
	switch c.Status {
	case BookingStatusConfirmed, BookingStatusClaimed:
		return true
	case BookingStatusPending:
		return c.HoldExpiresAt != nil && c.HoldExpiresAt.After(now)
	}
	return false
}

// OccupiedSeats computes the set of seat ids unavailable at the given
// instant. It is pure and lazy: a lapsed hold drops out of the result
// without any row having been touched. excludeBookingID lets a booking
// ignore its own claims while re-validating during confirmation; pass
// zero to exclude nothing.
func OccupiedSeats(claims []SeatClaim, now time.Time, excludeBookingID int) map[int]bool {
	occupied := make(map[int]bool)

	for _, c := range claims {
		if excludeBookingID != 0 && c.BookingID == excludeBookingID {
			continue
		}
		if c.Occupies(now) {
			occupied[c.SeatID] = true
		}
	}

	return occupied
}
