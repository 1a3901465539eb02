package llm

import (
	"strings"
	"testing"
)

func TestSplitAnswerWithAnswerLine(t *testing.T) {
	content := "1. Take revenue of 100.\n2. Divide by 50.\n\nAnswer: 2.0"
	reasoning, answer := splitAnswer(content)
	if answer != "2.0" {
		t.Errorf("expected answer 2.0, got %q", answer)
	}
	if !strings.Contains(reasoning, "Take revenue of 100.") {
		t.Errorf("expected reasoning to keep the steps, got %q", reasoning)
	}
	if strings.Contains(reasoning, "Answer:") {
		t.Errorf("expected answer line removed from reasoning, got %q", reasoning)
	}
}

func TestSplitAnswerVariants(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"final answer prefix", "Some steps\nFinal Answer: 42", "42"},
		{"bold markdown", "steps\n**Answer**: -1.5", "-1.5"},
		{"equals separator", "steps\nanswer = 3.14", "3.14"},
		{"last answer line wins", "Answer: 1\nmore work\nAnswer: 2", "2"},
		{"no answer line falls back to last line", "reasoning only\n7.5\n", "7.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, answer := splitAnswer(tt.content)
			if answer != tt.want {
				t.Errorf("splitAnswer(%q) answer = %q, want %q", tt.content, answer, tt.want)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		content string
		want    int
		ok      bool
	}{
		{"8", 8, true},
		{"10", 10, true},
		{"Score: 7 out of 10", 7, true},
		{"I would rate this a 3.", 3, true},
		{"no digits here", 0, false},
		{"0", 0, false},
		{"11", 0, false}, // out of range, not a standalone 1-10 token
	}
	for _, tt := range tests {
		got, ok := parseScore(tt.content)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseScore(%q) = (%d, %v), want (%d, %v)", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}
