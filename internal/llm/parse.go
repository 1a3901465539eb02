package llm

import (
	"regexp"
	"strconv"
	"strings"
)

var answerLine = regexp.MustCompile(`(?i)^\**(?:final\s+)?answer\**\s*[:=]\s*(.+)$`)

// splitAnswer separates a model reply into reasoning and the final answer.
// The answer comes from the last "Answer:" line; when the model ignores the
// format, the last non-empty line is taken instead. Everything else becomes
// the reasoning.
func splitAnswer(content string) (reasoning, answer string) {
	lines := strings.Split(content, "\n")

	answerIdx := -1
	for i, line := range lines {
		if m := answerLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			answerIdx = i
			answer = strings.TrimSpace(m[1])
		}
	}
	if answerIdx == -1 {
		for i := len(lines) - 1; i >= 0; i-- {
			if t := strings.TrimSpace(lines[i]); t != "" {
				answerIdx = i
				answer = t
				break
			}
		}
	}

	var kept []string
	for i, line := range lines {
		if i == answerIdx {
			continue
		}
		if t := strings.TrimSpace(line); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n"), answer
}

var scorePattern = regexp.MustCompile(`\b(10|[1-9])\b`)

// parseScore extracts the first integer between 1 and 10 from a judge reply.
func parseScore(content string) (int, bool) {
	m := scorePattern.FindString(content)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
