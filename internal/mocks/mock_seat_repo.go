package mocks

import (
	"context"

	"github.com/screenseat/booking-engine/internal/domain"
)

type MockSeatRepo struct {
	GetByStudioFunc func(ctx context.Context, studioID int) ([]domain.Seat, error)
	GetByIDsFunc    func(ctx context.Context, ids []int) ([]domain.Seat, error)
}

func (m *MockSeatRepo) GetByStudio(ctx context.Context, studioID int) ([]domain.Seat, error) {
	return m.GetByStudioFunc(ctx, studioID)
}

func (m *MockSeatRepo) GetByIDs(ctx context.Context, ids []int) ([]domain.Seat, error) {
	return m.GetByIDsFunc(ctx, ids)
}
