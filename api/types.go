// Package api holds the wire types of the booking engine's HTTP
// surface.
package api

import "time"

type ErrorResponse struct {
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type CreateBookingRequest struct {
	ShowtimeId int   `json:"showtimeId" validate:"required,min=1"`
	SeatIds    []int `json:"seatIds" validate:"required,seat_ids"`
}

type BookingSeat struct {
	SeatId     int    `json:"seatId"`
	RowLetter  string `json:"rowLetter"`
	SeatNumber int    `json:"seatNumber"`
	UnitPrice  int64  `json:"unitPrice"`
}

type BookingResponse struct {
	BookingId        int           `json:"bookingId"`
	BookingReference string        `json:"bookingReference"`
	Status           string        `json:"status"`
	ShowtimeId       int           `json:"showtimeId"`
	HoldExpiresAt    *time.Time    `json:"holdExpiresAt,omitempty"`
	TotalAmount      int64         `json:"totalAmount"`
	Seats            []BookingSeat `json:"seats"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type BookingSummary struct {
	BookingId        int       `json:"bookingId"`
	BookingReference string    `json:"bookingReference"`
	Status           string    `json:"status"`
	ShowtimeId       int       `json:"showtimeId"`
	TotalAmount      int64     `json:"totalAmount"`
	CreatedAt        time.Time `json:"createdAt"`
}

type BookingListResponse struct {
	Bookings []BookingSummary `json:"bookings"`
}

type SeatAvailability struct {
	SeatId        int        `json:"seatId"`
	RowLetter     string     `json:"rowLetter"`
	SeatNumber    int        `json:"seatNumber"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
}

type SeatAvailabilityResponse struct {
	ShowtimeId int                `json:"showtimeId"`
	Seats      []SeatAvailability `json:"seats"`
}

type PaymentAttempt struct {
	PaymentId int       `json:"paymentId"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreatePaymentAttemptResponse struct {
	PaymentAttempt
	RedirectUrl string `json:"redirectUrl"`
}

type PaymentListResponse struct {
	Payments []PaymentAttempt `json:"payments"`
}

type PaymentWebhookRequest struct {
	PaymentId int    `json:"paymentId"`
	BookingId int    `json:"bookingId"`
	Status    string `json:"status"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}
