package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

func TestEnqueueWithRetrySucceedsFirstAttempt(t *testing.T) {
	q := &MockQueue{}
	q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, Task{Type: TaskTypeAnswer}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryRetriesThenSucceeds(t *testing.T) {
	q := &MockQueue{}
	q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()
	q.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, Task{Type: TaskTypeAnswer}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryExhaustsAttempts(t *testing.T) {
	q := &MockQueue{}
	q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("nats down")).Times(3)

	err := EnqueueWithRetry(context.Background(), q, Task{Type: TaskTypeAnswer}, 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected the final error to surface")
	}
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryHonorsContext(t *testing.T) {
	q := &MockQueue{}
	q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := EnqueueWithRetry(ctx, q, Task{Type: TaskTypeAnswer}, 5, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
