package payment

import (
	"context"
	"fmt"

	"github.com/screenseat/booking-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeProvider creates a Stripe Checkout session per payment
// attempt. Outcomes still arrive through the generic payment webhook,
// so apart from the redirect URL nothing else depends on Stripe.
type StripeProvider struct {
	successURL string
	failureURL string
	currency   string
}

func NewStripeProvider(successURL, failureURL, currency string) *StripeProvider {
	return &StripeProvider{
		successURL: successURL,
		failureURL: failureURL,
		currency:   currency,
	}
}

func (s *StripeProvider) CreateRedirect(
	ctx context.Context,
	booking *domain.Booking,
	payment *domain.Payment) (string, error) {

	var lineItems []*stripe.CheckoutSessionLineItemParams

	for _, seat := range booking.Seats {
		displayPrice := decimal.NewFromInt(seat.UnitPrice).Div(decimal.NewFromInt(100))

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(seat.UnitPrice),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("Seat %s%d", seat.RowLetter, seat.SeatNumber)),
					Description: stripe.String(fmt.Sprintf(
						"Booking %s, seat %s%d, %s %s",
						booking.Reference,
						seat.RowLetter,
						seat.SeatNumber,
						displayPrice.StringFixed(2),
						s.currency,
					)),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		LineItems:  lineItems,
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.failureURL),
		Metadata: map[string]string{
			"booking_reference": booking.Reference,
			"payment_id":        fmt.Sprint(payment.ID),
			"gateway_ref":       payment.GatewayID,
		},
		ClientReferenceID: stripe.String(booking.Reference),
	}

	checkoutSession, err := session.New(params)
	if err != nil {
		return "", err
	}

	return checkoutSession.URL, nil
}
