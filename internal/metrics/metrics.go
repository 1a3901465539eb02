package metrics

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"convfinqa-eval/internal/dataset"
	"convfinqa-eval/internal/llm"
)

const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"

	// Predicted and reference values within this absolute difference count
	// as a match; dataset answers round inconsistently.
	tolerance = 1.0
)

// Symbols the dataset decorates numeric answers with.
var symbolPattern = regexp.MustCompile(`[()$£%]`)

// Outcome records how one predicted answer compared with its reference.
type Outcome struct {
	Index     int     `json:"index"`
	RecordID  string  `json:"record_id"`
	Expected  string  `json:"expected"`
	Predicted string  `json:"predicted"`
	Diff      float64 `json:"diff"`
	Result    string  `json:"result"`
}

// ScoreAnswers pairs reference records with predicted answers up to the
// shorter length and marks each pair correct when both sides parse as
// numbers within the tolerance. Anything that fails to parse is incorrect.
func ScoreAnswers(log *slog.Logger, records []dataset.Record, answers []llm.Answer) []Outcome {
	if len(records) == 0 || len(answers) == 0 {
		log.Warn("one or both input lists are empty; nothing to score")
		return nil
	}
	if len(records) != len(answers) {
		log.Warn("record and answer counts differ; scoring up to the shorter length",
			"records", len(records), "answers", len(answers))
	}

	n := min(len(records), len(answers))
	outcomes := make([]Outcome, 0, n)
	for i := 0; i < n; i++ {
		o := Outcome{
			Index:     i,
			RecordID:  records[i].ID,
			Expected:  records[i].Answer,
			Predicted: answers[i].Answer,
			Result:    ResultIncorrect,
		}
		expected, errE := parseNumber(o.Expected)
		predicted, errP := parseNumber(o.Predicted)
		if errE == nil && errP == nil {
			o.Diff = math.Abs(predicted - expected)
			if o.Diff <= tolerance {
				o.Result = ResultCorrect
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Accuracy returns the percentage of correct outcomes, 0.0 when empty.
func Accuracy(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0.0
	}
	correct := 0
	for _, o := range outcomes {
		if o.Result == ResultCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes)) * 100
}

// parseNumber strips decoration symbols and parses the remainder as a float.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(symbolPattern.ReplaceAllString(s, "")), 64)
}
