package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// DateKeyLayout is the calendar-day key format shared by summaries and the
// recall directive.
const DateKeyLayout = "2006-01-02"

// Display tag layouts for rendered history. Same-day turns get the short
// clock tag; older turns carry the month and day.
const (
	tagToday = "15:04"
	tagOlder = "01-02 15:04"
)

// Formatter renders recent turns into time-tagged prompt messages.
// It is a pure read over stored data and the current time; each Render
// recomputes the sequence fresh.
type Formatter struct {
	store storage.Driver
	now   func() time.Time
}

// NewFormatter creates a history formatter over the given store.
func NewFormatter(store storage.Driver, now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	return &Formatter{store: store, now: now}
}

// Render returns the limit most recent turns for a user as messages in
// chronological order (oldest first), each tagged with its display time:
// "[HH:MM] content" for turns from today, "[MM-DD HH:MM] content" otherwise.
func (f *Formatter) Render(ctx context.Context, userID string, limit int) ([]llm.Message, error) {
	turns, err := f.store.RecentTurns(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("render history: %w", err)
	}

	nowY, nowM, nowD := f.now().Date()

	// RecentTurns is newest-first; the prompt wants oldest-first.
	msgs := make([]llm.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		at := t.Time()

		layout := tagOlder
		if y, m, d := at.Date(); y == nowY && m == nowM && d == nowD {
			layout = tagToday
		}

		msgs = append(msgs, llm.Message{
			Role:    t.Role,
			Content: fmt.Sprintf("[%s] %s", at.Format(layout), t.Content),
		})
	}

	return msgs, nil
}
