package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRun(ctx context.Context, run Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) FinishRun(ctx context.Context, id uuid.UUID, accuracy float64, reasoningScore *float64) error {
	args := m.Called(ctx, id, accuracy, reasoningScore)
	return args.Error(0)
}

func (m *MockStore) FailRun(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) SaveOutcomes(ctx context.Context, outcomes []Outcome) error {
	args := m.Called(ctx, outcomes)
	return args.Error(0)
}

func (m *MockStore) RefreshRunMetrics(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Run), args.Error(1)
}

func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Run), args.Error(1)
}

func (m *MockStore) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]Outcome, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Outcome), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
