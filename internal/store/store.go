package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusComplete RunStatus = "complete"
	StatusFailed   RunStatus = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one evaluation run over a dataset sample.
type Run struct {
	ID          uuid.UUID
	Model       string
	DatasetPath string
	SampleSize  int
	Seed        int64
	// TaskCount is the number of answer tasks enqueued for a distributed
	// run; 0 for local runs, which finish in-process via FinishRun.
	TaskCount      int
	Status         RunStatus
	Accuracy       *float64
	ReasoningScore *float64
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Outcome is the scored result for one record within a run.
type Outcome struct {
	RunID          uuid.UUID
	RecordID       string
	Question       string
	Expected       string
	Predicted      string
	Reasoning      string
	Diff           float64
	Result         string
	ReasoningScore *int
	StepList       []string
}

// Store defines persistence contract for runs and their outcomes.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id uuid.UUID, accuracy float64, reasoningScore *float64) error
	FailRun(ctx context.Context, id uuid.UUID) error
	SaveOutcomes(ctx context.Context, outcomes []Outcome) error
	// RefreshRunMetrics recomputes a run's aggregate metrics from its stored
	// outcomes. Workers call this after each outcome in distributed runs;
	// once stored outcomes reach the run's TaskCount the run is marked
	// complete.
	RefreshRunMetrics(ctx context.Context, id uuid.UUID) error
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListOutcomes(ctx context.Context, runID uuid.UUID) ([]Outcome, error)
	Close() error
}
