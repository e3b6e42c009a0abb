package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRecorded is emitted after an assistant turn is persisted.
	EventTypeTurnRecorded = "chronos.turn.recorded"
)

// TurnRecordedEvent is a transport-neutral event payload for a completed
// conversational turn.
type TurnRecordedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	TraceID       string    `json:"trace_id"`
	UserID        string    `json:"user_id"`
	TurnID        int64     `json:"turn_id"`
	RecallUsed    bool      `json:"recall_used"`
	DurationMs    int64     `json:"duration_ms"`
}
