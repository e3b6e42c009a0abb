// Package inmemory provides an in-process implementation of storage.Driver
// for tests and local development. Data does not survive a restart.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// Driver implements storage.Driver using in-process data structures.
type Driver struct {
	mu        sync.RWMutex
	turns     []llm.ChatTurn
	summaries map[string]string
	nextID    int64
	now       func() time.Time
}

// Option configures a Driver created with NewDriver.
type Option func(*Driver)

// WithClock overrides the timestamp source used by AppendTurn.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// NewDriver creates an empty in-memory store.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		summaries: make(map[string]string),
		nextID:    1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AppendTurn records a turn with the next id and the current timestamp.
func (d *Driver) AppendTurn(_ context.Context, userID, role, content string) (*llm.ChatTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := llm.ChatTurn{
		ID:        d.nextID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: d.now().Unix(),
	}
	d.nextID++
	d.turns = append(d.turns, t)

	out := t
	return &out, nil
}

// RecentTurns returns up to limit turns for a user, newest first.
func (d *Driver) RecentTurns(_ context.Context, userID string, limit int) ([]llm.ChatTurn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matched := d.userTurns(userID)
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp != matched[j].Timestamp {
			return matched[i].Timestamp > matched[j].Timestamp
		}
		return matched[i].ID > matched[j].ID
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// UncompactedTurns returns all not-yet-compacted turns for a user, oldest first.
func (d *Driver) UncompactedTurns(_ context.Context, userID string) ([]llm.ChatTurn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matched := []llm.ChatTurn{}
	for _, t := range d.turns {
		if t.UserID == userID && !t.Compacted {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// MarkCompacted flips the compacted flag for the given ids. Idempotent.
func (d *Driver) MarkCompacted(_ context.Context, ids []int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	for i := range d.turns {
		if wanted[d.turns[i].ID] {
			d.turns[i].Compacted = true
		}
	}
	return nil
}

// TurnsOnDate returns every turn across all users within the local calendar
// day, oldest first.
func (d *Driver) TurnsOnDate(_ context.Context, day time.Time) ([]llm.ChatTurn, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).Unix()
	end := start + 86400

	d.mu.RLock()
	defer d.mu.RUnlock()

	matched := []llm.ChatTurn{}
	for _, t := range d.turns {
		if t.Timestamp >= start && t.Timestamp < end {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// SaveSummary upserts the summary for a date key (last write wins).
func (d *Driver) SaveSummary(_ context.Context, dateKey, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.summaries[dateKey] = content
	return nil
}

// GetSummary retrieves the summary for a date key.
func (d *Driver) GetSummary(_ context.Context, dateKey string) (*llm.Summary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	content, ok := d.summaries[dateKey]
	if !ok {
		return nil, storage.ErrNotFound{DateKey: dateKey}
	}
	return &llm.Summary{DateKey: dateKey, Content: content}, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) userTurns(userID string) []llm.ChatTurn {
	matched := []llm.ChatTurn{}
	for _, t := range d.turns {
		if t.UserID == userID {
			matched = append(matched, t)
		}
	}
	return matched
}
