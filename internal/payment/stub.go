package payment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/screenseat/booking-engine/internal/domain"
)

// StubProvider builds deterministic checkout URLs without talking to
// any gateway. Useful for dev environments and for gateways that are
// integrated purely through the payment webhook.
type StubProvider struct {
	checkoutBaseURL string
}

func NewStubProvider(checkoutBaseURL string) *StubProvider {
	return &StubProvider{
		checkoutBaseURL: checkoutBaseURL,
	}
}

func (s *StubProvider) CreateRedirect(
	ctx context.Context,
	booking *domain.Booking,
	payment *domain.Payment) (string, error) {

	return fmt.Sprintf(
		"%s/checkout?booking=%s&pid=%d",
		s.checkoutBaseURL,
		url.QueryEscape(booking.Reference),
		payment.ID,
	), nil
}
