// Package memory implements the tiered conversational memory engine:
// raw turn retention, threshold-triggered compaction (the historian),
// date-indexed recall (the investigator), and the per-turn orchestration
// loop that intercepts in-band recall directives.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/misaka-coder/chronos/pkg/eventstream"
	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/observability"
	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
	"github.com/misaka-coder/chronos/pkg/utils"
)

// DefaultHistoryLimit is how many recent turns are rendered into a prompt.
const DefaultHistoryLimit = 30

const recallReport = `Recall report:
%s
Incorporate this result into a final reply to the user.`

// Engine drives one conversational turn end to end: record input, render
// history, reason, honor at most one recall directive, record output, then
// opportunistically compact. It is the sole writer of turn and summary
// state for a user; turns for the same user must be processed sequentially.
type Engine struct {
	store        storage.Driver
	call         reasoner.CallFunc
	formatter    *Formatter
	historian    *Historian
	investigator *Investigator
	publisher    eventstream.Publisher
	log          *slog.Logger
	metrics      *observability.Metrics
	historyLimit int
	now          func() time.Time
}

// Options configures an Engine beyond its required collaborators.
type Options struct {
	// Threshold arms the historian once this many uncompacted turns exist
	// (plus the soft-landing floor). Zero means DefaultThreshold.
	Threshold int

	// HistoryLimit caps how many recent turns are rendered into a prompt.
	// Zero means DefaultHistoryLimit.
	HistoryLimit int

	// Publisher receives a TurnRecordedEvent after each completed turn.
	// Nil disables publishing.
	Publisher eventstream.Publisher

	// Metrics receives engine instruments. Nil disables them.
	Metrics *observability.Metrics

	// Clock overrides the time source for history tagging. Nil means
	// time.Now. Store timestamps are the store's own concern.
	Clock func() time.Time
}

// NewEngine wires an engine over a store and a reasoning caller.
func NewEngine(store storage.Driver, call reasoner.CallFunc, log *slog.Logger, opts Options) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		store:        store,
		call:         call,
		formatter:    NewFormatter(store, opts.Clock),
		historian:    NewHistorian(store, call, opts.Threshold, log, opts.Metrics),
		investigator: NewInvestigator(store, call, log),
		publisher:    opts.Publisher,
		log:          log,
		metrics:      opts.Metrics,
		historyLimit: opts.HistoryLimit,
		now:          opts.Clock,
	}

	return e
}

// Investigator exposes the engine's investigator for direct recall lookups.
func (e *Engine) Investigator() *Investigator {
	return e.investigator
}

// ProcessTurn runs the full turn state machine for one user message and
// returns the assistant's final reply. Storage and reasoning failures
// surface to the caller; compaction failures never do.
func (e *Engine) ProcessTurn(ctx context.Context, userID, message string) (string, error) {
	if userID == "" {
		return "", errors.New("user id required")
	}

	started := e.now()
	traceID := uuid.NewString()
	log := e.log.With("trace_id", traceID, "user", userID)
	log.Debug("processing turn", "message", utils.Truncate(message, 120))

	if _, err := e.store.AppendTurn(ctx, userID, llm.RoleUser, message); err != nil {
		e.countFailure("storage")
		return "", fmt.Errorf("record input: %w", err)
	}

	msgs, err := e.formatter.Render(ctx, userID, e.historyLimit)
	if err != nil {
		e.countFailure("storage")
		return "", err
	}
	msgs = append(msgs, llm.NewMessage(llm.RoleUser, message))

	reply, err := e.invoke(ctx, renderContext(msgs))
	if err != nil {
		e.countFailure("reasoning")
		return "", fmt.Errorf("first reasoning pass: %w", err)
	}

	recallUsed := false
	if d, ok := ParseRecallDirective(reply); ok {
		recallUsed = true
		log.Info("recall directive intercepted", "date", d.Date, "query", d.Query)
		if e.metrics != nil {
			e.metrics.RecallLookups.Inc()
		}

		evidence, err := e.investigator.Recall(ctx, d.Date, d.Query)
		if err != nil {
			// A recall can fail in either tier: reading the day's log is
			// a storage failure, answering from it a reasoning one.
			e.countFailure(ClassifyError(err))
			return "", fmt.Errorf("recall: %w", err)
		}

		msgs = append(msgs,
			llm.NewMessage(llm.RoleAssistant, reply),
			llm.NewMessage(llm.RoleSystem, fmt.Sprintf(recallReport, evidence)),
		)

		// A directive in this second reply is not honored: recall is
		// single-hop to keep lookups bounded.
		reply, err = e.invoke(ctx, renderContext(msgs))
		if err != nil {
			e.countFailure("reasoning")
			return "", fmt.Errorf("second reasoning pass: %w", err)
		}
	}

	turn, err := e.store.AppendTurn(ctx, userID, llm.RoleAssistant, reply)
	if err != nil {
		e.countFailure("storage")
		return "", fmt.Errorf("record output: %w", err)
	}

	if e.metrics != nil {
		e.metrics.TurnsProcessed.Inc()
	}

	e.publishTurn(ctx, log, traceID, turn, recallUsed, e.now().Sub(started))

	// Compaction reads the log only after this turn's writes committed,
	// and its failure never reaches the caller.
	if _, err := e.historian.MaybeCompact(ctx, userID); err != nil {
		log.Warn("compaction failed", "error", err)
	}

	return reply, nil
}

// invoke times one reasoning-step round trip.
func (e *Engine) invoke(ctx context.Context, prompt string) (string, error) {
	started := time.Now()
	reply, err := e.call(ctx, prompt)
	if e.metrics != nil {
		e.metrics.ObserveReasonerLatency(time.Since(started))
	}
	return reply, err
}

func (e *Engine) publishTurn(ctx context.Context, log *slog.Logger, traceID string, turn *llm.ChatTurn, recallUsed bool, elapsed time.Duration) {
	if e.publisher == nil {
		return
	}

	event := &eventstream.TurnRecordedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTurnRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     e.now(),
		TraceID:       traceID,
		UserID:        turn.UserID,
		TurnID:        turn.ID,
		RecallUsed:    recallUsed,
		DurationMs:    elapsed.Milliseconds(),
	}

	if err := e.publisher.PublishTurn(ctx, event); err != nil {
		log.Warn("turn event publish failed", "error", err)
	}
}

// renderContext flattens prompt messages into the text handed to the
// reasoning step.
func renderContext(msgs []llm.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// ClassifyError reports the error kind for a failed turn: "storage" for
// persistence failures, "reasoning" for reasoning-step failures, "" for
// anything else.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		return "storage"
	case errors.Is(err, reasoner.ErrUnavailable):
		return "reasoning"
	default:
		return ""
	}
}

func (e *Engine) countFailure(kind string) {
	if e.metrics != nil && kind != "" {
		e.metrics.TurnFailures.WithLabelValues(kind).Inc()
	}
}
