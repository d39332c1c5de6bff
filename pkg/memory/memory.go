// Package memory persists conversation context: one append-only record per
// handled message, queryable newest first. Records are never mutated after
// creation; unreadable records are skipped and logged, never propagated as a
// failure of the enclosing read.
package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the timestamp-derived record naming format.
const TimestampLayout = "20060102_150405"

// ContextRecord is one persisted (message, agent, response) tuple.
type ContextRecord struct {
	ID        string          `json:"id,omitempty"`
	Timestamp string          `json:"timestamp"`
	Agent     string          `json:"agent"`
	Message   string          `json:"message"`
	Response  json.RawMessage `json:"response"`
}

// ContextStore is the append-only conversation history.
type ContextStore interface {
	// Append durably writes one record. The store assigns the ID and
	// timestamp when the record carries none.
	Append(ctx context.Context, record ContextRecord) error

	// Recent returns up to limit records, newest first. Corrupt records are
	// skipped, not surfaced as errors.
	Recent(ctx context.Context, limit int) ([]ContextRecord, error)
}

// stamp fills in the record identity fields when absent.
func stamp(record *ContextRecord, now time.Time) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp == "" {
		record.Timestamp = now.Format(TimestampLayout)
	}
}
