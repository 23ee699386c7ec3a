package domain

import (
	"context"
	"time"
)

type BookingEventType string

const (
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is published on lifecycle transitions for downstream
// consumers (ticketing, analytics). Delivery of user-facing
// notifications is somebody else's job.
type BookingEvent struct {
	Type        BookingEventType `json:"type"`
	BookingID   int              `json:"bookingId"`
	Reference   string           `json:"bookingReference"`
	OwnerID     int              `json:"ownerId"`
	ShowtimeID  int              `json:"showtimeId"`
	TotalAmount int64            `json:"totalAmount"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event BookingEvent) error
}
