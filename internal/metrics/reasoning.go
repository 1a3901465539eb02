package metrics

import (
	"context"
	"log/slog"
	"strings"

	"convfinqa-eval/internal/dataset"
	"convfinqa-eval/internal/llm"
)

// Judge scores how closely model reasoning matches annotated steps, 1-10.
type Judge interface {
	AssessReasoning(ctx context.Context, actualSteps, modelReasoning, context string) (int, error)
}

// ScoreReasoning judges a single record/answer pair against the annotated
// dialogue break.
func ScoreReasoning(ctx context.Context, judge Judge, record dataset.Record, answer llm.Answer) (int, error) {
	actual := strings.Join(record.DialogueBreak, "\n")
	return judge.AssessReasoning(ctx, actual, answer.Reasoning, record.Context)
}

// AverageReasoningScore judges every pair and averages the scores. Pairs
// whose judge call fails are skipped with a logged error; ok is false when
// no pair produced a score.
func AverageReasoningScore(ctx context.Context, log *slog.Logger, judge Judge, records []dataset.Record, answers []llm.Answer) (avg float64, ok bool) {
	var scores []float64
	n := min(len(records), len(answers))
	for i := 0; i < n; i++ {
		score, err := ScoreReasoning(ctx, judge, records[i], answers[i])
		if err != nil {
			log.Error("reasoning assessment failed", "record_id", records[i].ID, "err", err)
			continue
		}
		log.Info("reasoning score", "record_id", records[i].ID, "score", score)
		scores = append(scores, float64(score))
	}
	if len(scores) == 0 {
		log.Info("no reasoning scores to average")
		return 0, false
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), true
}
