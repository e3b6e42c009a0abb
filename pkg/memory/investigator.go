package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// NoRecordSentinel is returned when the requested day has no raw turns at
// all. The reasoning step is not invoked in that case.
const NoRecordSentinel = "(no raw log found for that date)"

// HazySentinel is the reply the reasoning step is instructed to give when
// the day's log holds no matching detail, instead of fabricating one.
const HazySentinel = "That memory is hazy; no matching detail was found."

const investigatorPrompt = `You are a rigorous memory investigator.
Task: answer the question using only the raw log below.
Rules:
1. Answer strictly from the log; never infer or fabricate.
2. If the log holds no relevant detail, reply exactly: "` + HazySentinel + `"

Question: %s
Raw log:
%s`

// Investigator answers questions strictly from one calendar day's raw
// turns. It never reads or writes summaries: it supplies the ground truth
// that the historian's compacted prose may have smoothed over.
type Investigator struct {
	store storage.Driver
	call  reasoner.CallFunc
	log   *slog.Logger
}

// NewInvestigator creates an investigator over the given store and
// reasoning caller.
func NewInvestigator(store storage.Driver, call reasoner.CallFunc, log *slog.Logger) *Investigator {
	if log == nil {
		log = slog.Default()
	}
	return &Investigator{store: store, call: call, log: log}
}

// Recall retrieves the raw turns for dateKey (YYYY-MM-DD, local calendar
// semantics) and answers the query from them alone. An empty day yields
// NoRecordSentinel without a reasoning call.
func (inv *Investigator) Recall(ctx context.Context, dateKey, query string) (string, error) {
	day, err := time.ParseInLocation(DateKeyLayout, dateKey, time.Local)
	if err != nil {
		return "", fmt.Errorf("invalid recall date %q: %w", dateKey, err)
	}

	turns, err := inv.store.TurnsOnDate(ctx, day)
	if err != nil {
		return "", fmt.Errorf("load turns for %s: %w", dateKey, err)
	}

	if len(turns) == 0 {
		inv.log.Debug("recall found no raw log", "date", dateKey)
		return NoRecordSentinel, nil
	}

	var transcript strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Role, t.Content)
	}

	answer, err := inv.call(ctx, fmt.Sprintf(investigatorPrompt, query, strings.TrimRight(transcript.String(), "\n")))
	if err != nil {
		return "", fmt.Errorf("investigate %s: %w", dateKey, err)
	}

	return answer, nil
}
