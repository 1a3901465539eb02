package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"convfinqa-eval/internal/cache"
	"convfinqa-eval/internal/dataset"
	"convfinqa-eval/internal/llm"
	"convfinqa-eval/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDataset(t *testing.T, entries int) string {
	t.Helper()
	var body string
	for i := 0; i < entries; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{
			"id": "entry-%d",
			"pre_text": ["report text %d"],
			"table": [["", "2008"], ["value", "%d"]],
			"qa": {"question": "what is value %d?", "answer": "%d"},
			"annotation": {"dialogue_break": ["find the value"]}
		}`, i, i, i*100, i, i*100)
	}
	path := filepath.Join(t.TempDir(), "train.json")
	if err := os.WriteFile(path, []byte("["+body+"]"), 0o600); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	return path
}

func TestRunEndToEnd(t *testing.T) {
	path := writeDataset(t, 4)

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(llm.Answer{Reasoning: "looked it up", Answer: "0"}, nil)
	client.On("AssessReasoning", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(6, nil)

	r := New(testLogger(), client, cache.NewNoOpCache(), nil, "gpt-4o", time.Hour)
	summary, err := r.Run(context.Background(), Params{
		DatasetPath: path,
		SampleSize:  4,
		Seed:        10,
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Records != 4 {
		t.Errorf("expected 4 records, got %d", summary.Records)
	}
	if summary.ReasoningScore == nil || *summary.ReasoningScore != 6.0 {
		t.Errorf("expected reasoning score 6.0, got %v", summary.ReasoningScore)
	}
	// predicted "0" matches only entries whose value is within 1 of 0
	if summary.Accuracy != 25.0 {
		t.Errorf("expected accuracy 25.0, got %v", summary.Accuracy)
	}
}

func TestRunSkipReasoning(t *testing.T) {
	path := writeDataset(t, 2)

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(llm.Answer{Answer: "0"}, nil)

	r := New(testLogger(), client, cache.NewNoOpCache(), nil, "gpt-4o", time.Hour)
	summary, err := r.Run(context.Background(), Params{
		DatasetPath:   path,
		SampleSize:    2,
		Seed:          10,
		Concurrency:   1,
		SkipReasoning: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ReasoningScore != nil {
		t.Errorf("expected no reasoning score, got %v", *summary.ReasoningScore)
	}
	client.AssertNotCalled(t, "AssessReasoning", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunMissingDataset(t *testing.T) {
	client := &llm.MockClient{}
	r := New(testLogger(), client, cache.NewNoOpCache(), nil, "gpt-4o", time.Hour)

	_, err := r.Run(context.Background(), Params{
		DatasetPath: filepath.Join(t.TempDir(), "absent.json"),
		SampleSize:  1,
		Concurrency: 1,
	})
	if err == nil {
		t.Fatal("expected an error for a missing dataset")
	}
	client.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerAllKeepsOrder(t *testing.T) {
	records := make([]dataset.Record, 10)
	for i := range records {
		records[i] = dataset.Record{ID: fmt.Sprintf("r%d", i), Question: fmt.Sprintf("q%d", i)}
	}

	client := &llm.MockClient{}
	for i := range records {
		client.On("Answer", mock.Anything, fmt.Sprintf("q%d", i), mock.Anything).
			Return(llm.Answer{Answer: fmt.Sprintf("%d", i)}, nil)
	}

	r := New(testLogger(), client, cache.NewNoOpCache(), nil, "gpt-4o", time.Hour)
	answers, err := r.AnswerAll(context.Background(), records, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ans := range answers {
		if ans.Answer != fmt.Sprintf("%d", i) {
			t.Errorf("answer %d out of order: got %q", i, ans.Answer)
		}
	}
}

func TestAnswerAllPropagatesFailure(t *testing.T) {
	records := []dataset.Record{{ID: "r0", Question: "q0"}}

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(llm.Answer{}, errors.New("rate limited"))

	r := New(testLogger(), client, cache.NewNoOpCache(), nil, "gpt-4o", time.Hour)
	if _, err := r.AnswerAll(context.Background(), records, 2); err == nil {
		t.Fatal("expected the model failure to propagate")
	}
}

func TestAnswerOneUsesCache(t *testing.T) {
	rec := dataset.Record{ID: "r0", Question: "q0", Context: "ctx"}
	cached := &llm.Answer{Reasoning: "cached", Answer: "42"}

	c := &cache.MockCache{}
	c.On("GetAnswer", mock.Anything, cache.Key("gpt-4o", "r0", "q0")).Return(cached, nil).Once()

	client := &llm.MockClient{}
	r := New(testLogger(), client, c, nil, "gpt-4o", time.Hour)

	ans, err := r.AnswerOne(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != "42" {
		t.Errorf("expected cached answer, got %q", ans.Answer)
	}
	client.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
	c.AssertExpectations(t)
}

func TestAnswerOnePopulatesCache(t *testing.T) {
	rec := dataset.Record{ID: "r0", Question: "q0", Context: "ctx"}

	c := &cache.MockCache{}
	c.On("GetAnswer", mock.Anything, mock.Anything).Return(nil, nil).Once()
	c.On("SetAnswer", mock.Anything, mock.Anything, mock.Anything, time.Hour).Return(nil).Once()

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, "q0", "ctx").
		Return(llm.Answer{Answer: "7"}, nil).Once()

	r := New(testLogger(), client, c, nil, "gpt-4o", time.Hour)
	ans, err := r.AnswerOne(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != "7" {
		t.Errorf("expected model answer, got %q", ans.Answer)
	}
	c.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestRunPersistsToStore(t *testing.T) {
	path := writeDataset(t, 2)

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(llm.Answer{Reasoning: "looked it up", Answer: "0"}, nil)

	st := &store.MockStore{}
	st.On("CreateRun", mock.Anything, mock.MatchedBy(func(run store.Run) bool {
		return run.Status == store.StatusRunning && run.Model == "gpt-4o"
	})).Return(nil).Once()
	st.On("SaveOutcomes", mock.Anything, mock.MatchedBy(func(outcomes []store.Outcome) bool {
		if len(outcomes) != 2 {
			return false
		}
		for _, o := range outcomes {
			if o.Reasoning != "looked it up" {
				return false
			}
		}
		return true
	})).Return(nil).Once()
	st.On("FinishRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	r := New(testLogger(), client, cache.NewNoOpCache(), st, "gpt-4o", time.Hour)
	summary, err := r.Run(context.Background(), Params{
		DatasetPath:   path,
		SampleSize:    2,
		Seed:          10,
		Concurrency:   1,
		SkipReasoning: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RunID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a run id after persistence")
	}
	st.AssertExpectations(t)
}

func TestRunMarksRunFailedWhenPersistenceFails(t *testing.T) {
	path := writeDataset(t, 2)

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(llm.Answer{Answer: "0"}, nil)

	st := &store.MockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(nil).Once()
	st.On("SaveOutcomes", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	st.On("FailRun", mock.Anything, mock.Anything).Return(nil).Once()

	r := New(testLogger(), client, cache.NewNoOpCache(), st, "gpt-4o", time.Hour)
	_, err := r.Run(context.Background(), Params{
		DatasetPath:   path,
		SampleSize:    2,
		Seed:          10,
		Concurrency:   1,
		SkipReasoning: true,
	})
	if err == nil {
		t.Fatal("expected the persistence failure to surface")
	}
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "FinishRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunMarksRunFailedWhenFinishFails(t *testing.T) {
	path := writeDataset(t, 2)

	client := &llm.MockClient{}
	client.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(llm.Answer{Answer: "0"}, nil)

	st := &store.MockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(nil).Once()
	st.On("SaveOutcomes", mock.Anything, mock.Anything).Return(nil).Once()
	st.On("FinishRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()
	st.On("FailRun", mock.Anything, mock.Anything).Return(nil).Once()

	r := New(testLogger(), client, cache.NewNoOpCache(), st, "gpt-4o", time.Hour)
	_, err := r.Run(context.Background(), Params{
		DatasetPath:   path,
		SampleSize:    2,
		Seed:          10,
		Concurrency:   1,
		SkipReasoning: true,
	})
	if err == nil {
		t.Fatal("expected the finish failure to surface")
	}
	st.AssertExpectations(t)
}
