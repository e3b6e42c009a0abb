// Package eventstream publishes turn lifecycle events to a stream backend.
// Publishing is best-effort: the engine logs failures and moves on, so a
// broker outage never breaks a conversational turn.
package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnRecordedEvent) error
	Close() error
}
