package mocks

import (
	"context"
	"sync"

	"github.com/screenseat/booking-engine/internal/domain"
)

// MockEventPublisher records published events for assertion.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []domain.BookingEvent
	Err    error
}

func (m *MockEventPublisher) PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Events = append(m.Events, event)
	return nil
}
