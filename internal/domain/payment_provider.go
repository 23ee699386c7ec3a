package domain

import "context"

// PaymentProvider turns a payment attempt into a gateway redirect URL.
// The engine never talks to a gateway synchronously beyond this; all
// outcomes arrive through the payment webhook.
type PaymentProvider interface {
	CreateRedirect(ctx context.Context, booking *Booking, payment *Payment) (string, error)
}
