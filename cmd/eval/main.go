package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"convfinqa-eval/internal/app"
	"convfinqa-eval/internal/config"
	"convfinqa-eval/internal/queue"
	"convfinqa-eval/internal/runner"
	"convfinqa-eval/internal/store"
)

type answerTaskPayload struct {
	RunID         uuid.UUID       `json:"run_id"`
	Record        json.RawMessage `json:"record"`
	SkipReasoning bool            `json:"skip_reasoning"`
}

func main() {
	os.Exit(run())
}

func run() int {
	dataPath := flag.String("data", "", "dataset path (overrides DATASET_PATH)")
	sample := flag.Int("sample", 0, "entries to sample (overrides SAMPLE_SIZE)")
	seed := flag.Int64("seed", -1, "sampling seed (overrides SAMPLE_SEED)")
	queueMode := flag.Bool("queue", false, "enqueue answer tasks for workers instead of running locally")
	skipReasoning := flag.Bool("skip-reasoning", false, "skip the LLM-judged reasoning score")
	flag.Parse()

	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		return 1
	}
	defer deps.Close()

	params := buildParams(deps.Config, *dataPath, *sample, *seed, *skipReasoning)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(deps.Log, deps.LLM, deps.Cache, deps.Store, deps.Config.LLMModel,
		time.Duration(deps.Config.CacheTTL)*time.Second)

	if *queueMode {
		return enqueueRun(ctx, deps, r, params)
	}

	summary, err := r.Run(ctx, params)
	if err != nil {
		deps.Log.Error("evaluation failed", "err", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		deps.Log.Error("failed to write summary", "err", err)
		return 1
	}
	return 0
}

// buildParams layers CLI flag overrides on top of the env-derived defaults.
// A seed of -1 means the flag was not set, so 0 stays usable as a seed.
func buildParams(cfg config.Config, dataPath string, sample int, seed int64, skipReasoning bool) runner.Params {
	params := runner.Params{
		DatasetPath:   cfg.DatasetPath,
		SampleSize:    cfg.SampleSize,
		Seed:          cfg.SampleSeed,
		Concurrency:   cfg.Concurrency,
		SkipReasoning: skipReasoning,
	}
	if dataPath != "" {
		params.DatasetPath = dataPath
	}
	if sample > 0 {
		params.SampleSize = sample
	}
	if seed >= 0 {
		params.Seed = seed
	}
	return params
}

// enqueueRun records the run and hands one answer task per record to the
// worker pool. Workers fill in outcomes and the run metrics as they go.
func enqueueRun(ctx context.Context, deps app.Deps, r *runner.Runner, params runner.Params) int {
	if deps.Queue == nil {
		deps.Log.Error("-queue requires QUEUE_PROVIDER=nats and QUEUE_URL")
		return 1
	}
	if deps.Store == nil {
		deps.Log.Error("-queue requires STORE_PROVIDER=postgres so workers have somewhere to write outcomes")
		return 1
	}

	records, err := r.Load(params)
	if err != nil {
		deps.Log.Error("failed to load dataset", "err", err)
		return 1
	}

	// Workers flip the run to complete once stored outcomes reach TaskCount.
	run := store.Run{
		ID:          uuid.New(),
		Model:       deps.Config.LLMModel,
		DatasetPath: params.DatasetPath,
		SampleSize:  params.SampleSize,
		Seed:        params.Seed,
		TaskCount:   len(records),
		Status:      store.StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := deps.Store.CreateRun(ctx, run); err != nil {
		deps.Log.Error("failed to create run", "err", err)
		return 1
	}

	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			deps.Log.Error("failed to encode record", "record_id", rec.ID, "err", err)
			failRun(ctx, deps, run.ID)
			return 1
		}
		payload, err := json.Marshal(answerTaskPayload{
			RunID:         run.ID,
			Record:        raw,
			SkipReasoning: params.SkipReasoning,
		})
		if err != nil {
			deps.Log.Error("failed to encode task payload", "record_id", rec.ID, "err", err)
			failRun(ctx, deps, run.ID)
			return 1
		}
		task := queue.Task{Type: queue.TaskTypeAnswer, Payload: payload}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, time.Second); err != nil {
			deps.Log.Error("failed to enqueue task", "record_id", rec.ID, "err", err)
			failRun(ctx, deps, run.ID)
			return 1
		}
	}

	deps.Log.Info("run enqueued", "run_id", run.ID, "tasks", len(records))
	fmt.Println(run.ID)
	return 0
}

// failRun marks a partially enqueued run failed so the results API does not
// report it as running forever.
func failRun(ctx context.Context, deps app.Deps, id uuid.UUID) {
	if err := deps.Store.FailRun(ctx, id); err != nil {
		deps.Log.Error("failed to mark run failed", "run_id", id, "err", err)
	}
}
