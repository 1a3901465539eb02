package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"convfinqa-eval/internal/cache"
	"convfinqa-eval/internal/dataset"
	"convfinqa-eval/internal/llm"
	"convfinqa-eval/internal/metrics"
	"convfinqa-eval/internal/store"
)

// Params control a single evaluation run.
type Params struct {
	DatasetPath   string
	SampleSize    int
	Seed          int64
	Concurrency   int
	SkipReasoning bool
}

// Summary is the final report of a run.
type Summary struct {
	RunID          uuid.UUID         `json:"run_id,omitempty"`
	Model          string            `json:"model"`
	DatasetPath    string            `json:"dataset_path"`
	Records        int               `json:"records"`
	Accuracy       float64           `json:"accuracy"`
	ReasoningScore *float64          `json:"reasoning_score,omitempty"`
	DurationMS     int64             `json:"duration_ms"`
	Outcomes       []metrics.Outcome `json:"-"`
}

// Runner executes the evaluation pipeline: load, answer, score, report.
type Runner struct {
	log      *slog.Logger
	llm      llm.Client
	cache    cache.Cache
	store    store.Store // nil disables persistence
	model    string
	cacheTTL time.Duration
}

func New(log *slog.Logger, llmClient llm.Client, c cache.Cache, st store.Store, model string, cacheTTL time.Duration) *Runner {
	return &Runner{
		log:      log,
		llm:      llmClient,
		cache:    c,
		store:    st,
		model:    model,
		cacheTTL: cacheTTL,
	}
}

// Run executes the pipeline stages in order. Each stage fails fast with a
// wrapped error naming the stage.
func (r *Runner) Run(ctx context.Context, p Params) (Summary, error) {
	started := time.Now()

	records, err := r.Load(p)
	if err != nil {
		return Summary{}, fmt.Errorf("load stage: %w", err)
	}
	answers, err := r.AnswerAll(ctx, records, p.Concurrency)
	if err != nil {
		return Summary{}, fmt.Errorf("answer stage: %w", err)
	}
	summary := r.score(ctx, p, records, answers)
	summary.DatasetPath = p.DatasetPath
	summary.DurationMS = time.Since(started).Milliseconds()

	if err := r.report(ctx, p, records, answers, &summary); err != nil {
		return Summary{}, fmt.Errorf("report stage: %w", err)
	}
	return summary, nil
}

// Load reads the dataset, samples it deterministically, and flattens the
// sample into records.
func (r *Runner) Load(p Params) ([]dataset.Record, error) {
	entries, err := dataset.LoadFile(p.DatasetPath)
	if err != nil {
		return nil, err
	}
	sampled := dataset.Sample(entries, p.SampleSize, p.Seed)
	records := dataset.Records(sampled)
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s produced no records", p.DatasetPath)
	}
	r.log.Info("dataset loaded", "entries", len(entries), "sampled", len(sampled), "records", len(records))
	return records, nil
}

// AnswerAll fans questions out to the model with bounded concurrency.
// Answers keep the record order.
func (r *Runner) AnswerAll(ctx context.Context, records []dataset.Record, concurrency int) ([]llm.Answer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	answers := make([]llm.Answer, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range records {
		g.Go(func() error {
			ans, err := r.AnswerOne(ctx, rec)
			if err != nil {
				return fmt.Errorf("record %s: %w", rec.ID, err)
			}
			answers[i] = ans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// AnswerOne returns the cached answer when available, otherwise asks the
// model and populates the cache.
func (r *Runner) AnswerOne(ctx context.Context, rec dataset.Record) (llm.Answer, error) {
	key := cache.Key(r.model, rec.ID, rec.Question)
	if cached, err := r.cache.GetAnswer(ctx, key); err == nil && cached != nil {
		r.log.Debug("answer cache hit", "record_id", rec.ID)
		return *cached, nil
	}

	ans, err := r.llm.Answer(ctx, rec.Question, rec.Context)
	if err != nil {
		return llm.Answer{}, err
	}
	if err := r.cache.SetAnswer(ctx, key, &ans, r.cacheTTL); err != nil {
		r.log.Warn("failed to cache answer", "record_id", rec.ID, "err", err)
	}
	return ans, nil
}

func (r *Runner) score(ctx context.Context, p Params, records []dataset.Record, answers []llm.Answer) Summary {
	outcomes := metrics.ScoreAnswers(r.log, records, answers)
	summary := Summary{
		Model:    r.model,
		Records:  len(records),
		Accuracy: metrics.Accuracy(outcomes),
		Outcomes: outcomes,
	}
	if !p.SkipReasoning {
		if avg, ok := metrics.AverageReasoningScore(ctx, r.log, r.llm, records, answers); ok {
			summary.ReasoningScore = &avg
		}
	}
	return summary
}

func (r *Runner) report(ctx context.Context, p Params, records []dataset.Record, answers []llm.Answer, summary *Summary) error {
	r.log.Info("evaluation complete",
		"records", summary.Records,
		"accuracy", summary.Accuracy,
		"reasoning_score", summary.ReasoningScore,
		"duration_ms", summary.DurationMS,
	)
	if r.store == nil {
		return nil
	}

	run := store.Run{
		ID:          uuid.New(),
		Model:       r.model,
		DatasetPath: p.DatasetPath,
		SampleSize:  p.SampleSize,
		Seed:        p.Seed,
		Status:      store.StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if err := r.store.SaveOutcomes(ctx, toStoreOutcomes(run.ID, records, answers, summary.Outcomes)); err != nil {
		r.failRun(ctx, run.ID)
		return fmt.Errorf("failed to save outcomes: %w", err)
	}
	if err := r.store.FinishRun(ctx, run.ID, summary.Accuracy, summary.ReasoningScore); err != nil {
		r.failRun(ctx, run.ID)
		return fmt.Errorf("failed to finish run: %w", err)
	}
	summary.RunID = run.ID
	return nil
}

// failRun marks a run failed so it does not linger as running. Best effort;
// the original error is what surfaces to the caller.
func (r *Runner) failRun(ctx context.Context, id uuid.UUID) {
	if err := r.store.FailRun(ctx, id); err != nil {
		r.log.Error("failed to mark run failed", "run_id", id, "err", err)
	}
}

func toStoreOutcomes(runID uuid.UUID, records []dataset.Record, answers []llm.Answer, outcomes []metrics.Outcome) []store.Outcome {
	out := make([]store.Outcome, len(outcomes))
	for i, o := range outcomes {
		rec := records[o.Index]
		out[i] = store.Outcome{
			RunID:     runID,
			RecordID:  o.RecordID,
			Question:  rec.Question,
			Expected:  o.Expected,
			Predicted: o.Predicted,
			Reasoning: answers[o.Index].Reasoning,
			Diff:      o.Diff,
			Result:    o.Result,
			StepList:  rec.StepList,
		}
	}
	return out
}
