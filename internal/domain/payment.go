package domain

import (
	"context"
	"strings"
	"time"
)

type PaymentStatus string

const (
	// PaymentStatusDelayed marks an attempt handed to the gateway and
	// awaiting its outcome.
	PaymentStatusDelayed PaymentStatus = "Delayed"
	PaymentStatusSuccess PaymentStatus = "Success"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// ParseGatewayOutcome maps the free-form status strings gateways send
// into a PaymentStatus. Unknown values return false so the webhook can
// accept-and-ignore them instead of signalling an error to a retrying
// gateway.
func ParseGatewayOutcome(raw string) (PaymentStatus, bool) {
	switch strings.ToLower(raw) {
	case "success", "succeeded":
		return PaymentStatusSuccess, true
	case "failed", "failure":
		return PaymentStatusFailed, true
	case "pending", "delayed":
		return PaymentStatusDelayed, true
	}
	return "", false
}

type Payment struct {
	ID        int
	BookingID int
	Amount    int64
	Status    PaymentStatus
	GatewayID string
	CreatedAt time.Time
}

// OutcomeResult reports what applying a gateway outcome actually did,
// so the caller can log and publish events without re-reading state.
type OutcomeResult struct {
	Payment          *Payment
	Applied          bool
	BookingConfirmed bool
	Booking          *Booking
}

type PaymentRepository interface {
	CreateAttempt(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id int) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID int) ([]Payment, error)
	SumSuccessful(ctx context.Context, bookingID int) (int64, error)
	ApplyOutcome(ctx context.Context, paymentID int, outcome PaymentStatus) (*OutcomeResult, error)
}

// RemainingBalance is the amount still owed on a booking, floored at
// zero so an overpaying gateway can never drive it negative.
func RemainingBalance(totalAmount, paid int64) int64 {
	if remaining := totalAmount - paid; remaining > 0 {
		return remaining
	}
	return 0
}
