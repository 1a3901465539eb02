package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"math/rand"
	"os"
	"slices"
	"strings"
)

// QA is a single question/answer pair from a dataset entry.
type QA struct {
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	ExeAnswer json.Number       `json:"exe_ans"`
	Steps     []json.RawMessage `json:"steps"`
}

// Annotation carries the turn-level reasoning annotations of an entry. Key
// names vary per entry (step_list vs step_list_0, step_list_1, ...), so values
// stay raw until a caller asks for a specific key.
type Annotation map[string]json.RawMessage

// StringList decodes the named annotation as a list of strings.
// Missing or malformed keys yield nil.
func (a Annotation) StringList(key string) []string {
	raw, ok := a[key]
	if !ok {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// Entry is one document of the ConvFinQA train split: report text around a
// table, with one unnumbered QA pair or several numbered ones.
type Entry struct {
	ID         string
	PreText    []string
	PostText   []string
	Table      [][]string
	QA         *QA
	QAs        map[string]QA // numbered qa_0, qa_1, ... keys
	Annotation Annotation
}

// UnmarshalJSON decodes the fixed fields, then sweeps the raw object for
// numbered qa_N keys, which the schema does not enumerate up front.
func (e *Entry) UnmarshalJSON(b []byte) error {
	type fixed struct {
		ID         string     `json:"id"`
		PreText    []string   `json:"pre_text"`
		PostText   []string   `json:"post_text"`
		Table      [][]string `json:"table"`
		QA         *QA        `json:"qa"`
		Annotation Annotation `json:"annotation"`
	}
	var f fixed
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*e = Entry{
		ID:         f.ID,
		PreText:    f.PreText,
		PostText:   f.PostText,
		Table:      f.Table,
		QA:         f.QA,
		Annotation: f.Annotation,
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if !strings.HasPrefix(key, "qa_") {
			continue
		}
		var qa QA
		if err := json.Unmarshal(val, &qa); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		if e.QAs == nil {
			e.QAs = make(map[string]QA)
		}
		e.QAs[key] = qa
	}
	return nil
}

// LoadFile reads a JSON array of entries from path. A missing file gets a
// distinct, actionable error since the dataset is supplied out-of-band.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dataset file %s not found; download the ConvFinQA train split and place it there: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", path, err)
	}
	return entries, nil
}

// Sample shuffles entries with a seeded RNG and keeps the first n, so repeat
// runs with the same seed evaluate the same slice of the dataset.
// n <= 0 keeps everything.
func Sample(entries []Entry, n int, seed int64) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Record is one evaluation unit: a question paired with its rendered context,
// the reference answer, and the reasoning annotations used for judging.
type Record struct {
	ID            string   `json:"id"`
	Context       string   `json:"context"`
	Question      string   `json:"question"`
	StepList      []string `json:"step_list"`
	DialogueBreak []string `json:"dialogue_break"`
	Answer        string   `json:"answer"`
	ExeAnswer     string   `json:"exe_answer"`
}

// Records flattens entries into one record per QA pair. Numbered qa_N keys
// are emitted in sorted key order so output is deterministic.
func Records(entries []Entry) []Record {
	var out []Record
	for _, e := range entries {
		context := BuildContext(e)
		if len(e.QAs) > 0 {
			for _, key := range slices.Sorted(maps.Keys(e.QAs)) {
				n := strings.TrimPrefix(key, "qa_")
				out = append(out, newRecord(e, context, e.QAs[key], "step_list_"+n))
			}
			continue
		}
		if e.QA != nil {
			out = append(out, newRecord(e, context, *e.QA, "step_list"))
		}
	}
	return out
}

func newRecord(e Entry, context string, qa QA, stepKey string) Record {
	steps := e.Annotation.StringList(stepKey)
	if len(steps) == 0 {
		steps = stepStrings(qa.Steps)
	}
	return Record{
		ID:            e.ID,
		Context:       context,
		Question:      qa.Question,
		StepList:      steps,
		DialogueBreak: e.Annotation.StringList("dialogue_break"),
		Answer:        qa.Answer,
		ExeAnswer:     qa.ExeAnswer.String(),
	}
}

// stepStrings renders the qa.steps fallback, where each step may be a plain
// string or a structured operation object.
func stepStrings(steps []json.RawMessage) []string {
	var out []string
	for _, s := range steps {
		var str string
		if err := json.Unmarshal(s, &str); err == nil {
			out = append(out, str)
			continue
		}
		out = append(out, string(s))
	}
	return out
}
