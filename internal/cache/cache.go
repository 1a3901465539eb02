package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"convfinqa-eval/internal/llm"
)

// Cache stores model answers so re-runs over the same sample do not pay for
// the same completions twice.
type Cache interface {
	// GetAnswer retrieves a cached answer by key. Returns nil on a miss.
	GetAnswer(ctx context.Context, key string) (*llm.Answer, error)

	// SetAnswer stores an answer with TTL.
	SetAnswer(ctx context.Context, key string, answer *llm.Answer, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Key derives the cache key for one record's answer under a given model.
func Key(model, recordID, question string) string {
	sum := sha256.Sum256([]byte(model + "|" + recordID + "|" + question))
	return hex.EncodeToString(sum[:])
}
