package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/observability"
	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// NoEventSentinel is the marker the reasoning step returns when a batch
// holds nothing worth keeping. The summary is then discarded, but the batch
// is still consumed.
const NoEventSentinel = "[NO_EVENT]"

// DefaultThreshold is the uncompacted-turn count that arms the historian.
const DefaultThreshold = 30

// softLandingFloor is how many of the newest uncompacted turns are always
// excluded from a batch, preserving immediate conversational context across
// compaction boundaries.
const softLandingFloor = 2

const historianPrompt = `You are a dispassionate third-party chronicler.
Task: condense the chat log below into objective facts for an AI's long-term memory.
Rules:
1. Every fact must begin with [date + rough time of day].
2. Describe events in the third person (the user, the assistant).
3. Record only durable information. If there is nothing worth keeping, reply ` + NoEventSentinel + `.

Date anchor: %s
Raw log:
%s`

// Historian batches stale uncompacted turns into dated factual summaries.
type Historian struct {
	store     storage.Driver
	call      reasoner.CallFunc
	threshold int
	log       *slog.Logger
	metrics   *observability.Metrics
}

// NewHistorian creates a historian over the given store and reasoning
// caller. A threshold <= 0 falls back to DefaultThreshold. metrics may be
// nil.
func NewHistorian(store storage.Driver, call reasoner.CallFunc, threshold int, log *slog.Logger, metrics *observability.Metrics) *Historian {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Historian{
		store:     store,
		call:      call,
		threshold: threshold,
		log:       log,
		metrics:   metrics,
	}
}

// MaybeCompact runs one compaction pass for a user if enough uncompacted
// turns have piled up. It returns how many turns were consumed (0 when the
// trigger did not fire). A reasoning or storage failure aborts the attempt
// with nothing written and nothing marked, leaving the batch eligible for a
// future pass.
func (h *Historian) MaybeCompact(ctx context.Context, userID string) (int, error) {
	turns, err := h.store.UncompactedTurns(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load uncompacted turns: %w", err)
	}

	if len(turns) < h.threshold+softLandingFloor {
		return 0, nil
	}

	// The newest turns stay uncompacted regardless of age.
	batch := turns[:len(turns)-softLandingFloor]

	h.log.Info("historian compacting",
		"user", userID,
		"batch", len(batch),
		"floor", softLandingFloor,
	)

	if h.metrics != nil {
		h.metrics.CompactionRuns.Inc()
	}

	if err := h.compact(ctx, batch); err != nil {
		if h.metrics != nil {
			h.metrics.CompactionFailures.Inc()
		}
		return 0, err
	}

	if h.metrics != nil {
		h.metrics.CompactedTurns.Add(float64(len(batch)))
	}

	return len(batch), nil
}

// compact summarizes one batch and marks it consumed. The anchor date comes
// from the earliest turn in the batch.
func (h *Historian) compact(ctx context.Context, batch []llm.ChatTurn) error {
	dateKey := batch[0].Time().Format(DateKeyLayout)

	var transcript strings.Builder
	for _, t := range batch {
		fmt.Fprintf(&transcript, "[%s] %s: %s\n", t.Time().Format(tagToday), t.Role, t.Content)
	}

	summary, err := h.call(ctx, fmt.Sprintf(historianPrompt, dateKey, strings.TrimRight(transcript.String(), "\n")))
	if err != nil {
		return fmt.Errorf("summarize batch: %w", err)
	}

	if strings.Contains(summary, NoEventSentinel) {
		// The batch is consumed anyway; its facts remain reachable only
		// through the investigator's raw-day lookup.
		h.log.Warn("historian found no durable content, discarding summary",
			"date", dateKey,
			"batch", len(batch),
		)
	} else {
		if err := h.store.SaveSummary(ctx, dateKey, summary); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
	}

	ids := make([]int64, len(batch))
	for i, t := range batch {
		ids[i] = t.ID
	}

	if err := h.store.MarkCompacted(ctx, ids); err != nil {
		return fmt.Errorf("mark compacted: %w", err)
	}

	return nil
}
