package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"convfinqa-eval/internal/app"
	"convfinqa-eval/internal/dataset"
	"convfinqa-eval/internal/httputil"
	"convfinqa-eval/internal/llm"
	"convfinqa-eval/internal/metrics"
	"convfinqa-eval/internal/queue"
	"convfinqa-eval/internal/runner"
	"convfinqa-eval/internal/store"
)

type answerTaskPayload struct {
	RunID         uuid.UUID      `json:"run_id"`
	Record        dataset.Record `json:"record"`
	SkipReasoning bool           `json:"skip_reasoning"`
}

func main() {
	deps, err := app.BuildWorker()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("answer worker starting")

	r := runner.New(deps.Log, deps.LLM, deps.Cache, deps.Store, deps.Config.LLMModel,
		time.Duration(deps.Config.CacheTTL)*time.Second)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeAnswer, func(ctx context.Context, task queue.Task) error {
			var payload answerTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleAnswer(ctx, deps, r, payload)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(deps.Log, deps.Config.Port, "worker")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("worker stopped", "err", err)
	}
}

// handleAnswer answers a single record, scores it, and writes the outcome.
// Run-level metrics are refreshed after every outcome so partial runs stay
// readable from the results service.
func handleAnswer(ctx context.Context, deps app.Deps, r *runner.Runner, payload answerTaskPayload) error {
	rec := payload.Record

	ans, err := r.AnswerOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	outcomes := metrics.ScoreAnswers(deps.Log, []dataset.Record{rec}, []llm.Answer{ans})
	if len(outcomes) != 1 {
		return fmt.Errorf("record %s: expected one outcome, got %d", rec.ID, len(outcomes))
	}
	o := outcomes[0]

	var reasoningScore *int
	if !payload.SkipReasoning {
		score, err := metrics.ScoreReasoning(ctx, deps.LLM, rec, ans)
		if err != nil {
			deps.Log.Error("reasoning assessment failed", "record_id", rec.ID, "err", err)
		} else {
			reasoningScore = &score
		}
	}

	err = deps.Store.SaveOutcomes(ctx, []store.Outcome{{
		RunID:          payload.RunID,
		RecordID:       o.RecordID,
		Question:       rec.Question,
		Expected:       o.Expected,
		Predicted:      o.Predicted,
		Reasoning:      ans.Reasoning,
		Diff:           o.Diff,
		Result:         o.Result,
		ReasoningScore: reasoningScore,
		StepList:       rec.StepList,
	}})
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	if err := deps.Store.RefreshRunMetrics(ctx, payload.RunID); err != nil {
		return fmt.Errorf("failed to refresh run %s: %w", payload.RunID, err)
	}
	return nil
}
