package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Answer(ctx context.Context, question, context string) (Answer, error) {
	args := m.Called(ctx, question, context)
	return args.Get(0).(Answer), args.Error(1)
}

func (m *MockClient) AssessReasoning(ctx context.Context, actualSteps, modelReasoning, context string) (int, error) {
	args := m.Called(ctx, actualSteps, modelReasoning, context)
	return args.Int(0), args.Error(1)
}
