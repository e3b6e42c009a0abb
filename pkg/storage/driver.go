// Package storage
package storage

import (
	"context"
	"time"

	"github.com/misaka-coder/chronos/pkg/llm"
)

// Driver defines the interface for persisting and retrieving chat turns and
// daily summaries in a storage backend. The Driver is the only owner of
// ChatTurn and Summary state; everything above it works through this
// interface.
type Driver interface {
	// AppendTurn records a dialogue turn for a user, assigning the next id
	// and the current timestamp. Turns are never deleted.
	AppendTurn(ctx context.Context, userID, role, content string) (*llm.ChatTurn, error)

	// RecentTurns returns up to limit turns for a user, newest first.
	// Returns an empty slice when the user has no turns.
	RecentTurns(ctx context.Context, userID string, limit int) ([]llm.ChatTurn, error)

	// UncompactedTurns returns all turns for a user that have not yet been
	// consumed by compaction, oldest first.
	UncompactedTurns(ctx context.Context, userID string) ([]llm.ChatTurn, error)

	// MarkCompacted flips the compacted flag for the given turn ids.
	// Idempotent: marking an already-compacted id is a no-op, not an error.
	MarkCompacted(ctx context.Context, ids []int64) error

	// TurnsOnDate returns every turn, across all users, whose timestamp
	// falls within [day, day+24h) in local calendar semantics, oldest first.
	TurnsOnDate(ctx context.Context, day time.Time) ([]llm.ChatTurn, error)

	// SaveSummary upserts the summary for a date key. A later write for the
	// same key replaces the prior content.
	SaveSummary(ctx context.Context, dateKey, content string) error

	// GetSummary retrieves the summary for a date key.
	// Returns ErrNotFound if no summary exists for that key.
	GetSummary(ctx context.Context, dateKey string) (*llm.Summary, error)

	// Close closes the store and releases any resources.
	Close() error
}
