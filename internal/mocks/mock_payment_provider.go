package mocks

import (
	"context"

	"github.com/screenseat/booking-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
	domain.PaymentProvider
}

func (m *MockPaymentProvider) CreateRedirect(ctx context.Context, booking *domain.Booking, payment *domain.Payment) (string, error) {
	args := m.Called(ctx, booking, payment)
	return args.String(0), args.Error(1)
}
