// Package llm holds the shared conversation types used across the chronos
// system: raw dialogue turns, compacted summaries, and the ephemeral
// messages a reasoning prompt is built from.
package llm

import "time"

// Role values for a recorded turn or a prompt message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatTurn is one recorded dialogue message. Turns are append-only: the
// Compacted flag is the only field ever mutated after insert, and only by
// the historian.
type ChatTurn struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch seconds
	Compacted bool   `json:"compacted"`
}

// Time returns the turn's timestamp as a local time.Time.
func (t *ChatTurn) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// Summary is a compacted factual digest of one calendar day's turns.
// At most one summary exists per date key; a later compaction run for the
// same day replaces the prior text (last write wins, not accumulation).
type Summary struct {
	DateKey string `json:"date_key"` // YYYY-MM-DD
	Content string `json:"content"`
}
