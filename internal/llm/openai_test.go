package llm

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(testLogger(), "", "gpt-4o", ""); err == nil {
		t.Fatal("expected an error for a missing api key")
	}
}

func TestNewOpenAIClientDefaults(t *testing.T) {
	c, err := NewOpenAIClient(testLogger(), "test-key", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model == "" {
		t.Error("expected a default answer model")
	}
	if c.judgeModel != c.model {
		t.Errorf("expected judge model to default to the answer model, got %q", c.judgeModel)
	}
	if c.temperature != answerTemperature {
		t.Errorf("expected temperature %v, got %v", answerTemperature, c.temperature)
	}
}

func TestNewOpenAIClientO1Overrides(t *testing.T) {
	c, err := NewOpenAIClient(testLogger(), "test-key", "o1-mini", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.temperature != 1.0 {
		t.Errorf("expected temperature forced to 1.0 for o1 models, got %v", c.temperature)
	}
	if c.maxTokens != o1MinCompletionTokens {
		t.Errorf("expected completion token floor %d, got %d", o1MinCompletionTokens, c.maxTokens)
	}
}
