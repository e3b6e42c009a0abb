package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/misaka-coder/chronos/pkg/eventstream"
	"github.com/misaka-coder/chronos/pkg/observability"
	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/reasoner"
	"github.com/misaka-coder/chronos/pkg/storage"
	"github.com/misaka-coder/chronos/pkg/storage/inmemory"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []*eventstream.TurnRecordedEvent
	err    error
}

func (p *capturePublisher) PublishTurn(_ context.Context, event *eventstream.TurnRecordedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// brokenDayStore fails date-window reads while leaving the rest of the
// store working.
type brokenDayStore struct {
	storage.Driver
}

func (s *brokenDayStore) TurnsOnDate(context.Context, time.Time) ([]llm.ChatTurn, error) {
	return nil, storage.Unavailable("turns on date", errors.New("disk gone"))
}

var _ = Describe("Engine", func() {
	var (
		ctx   context.Context
		clock *testClock
		store *inmemory.Driver
	)

	now := time.Date(2026, 2, 27, 14, 0, 0, 0, time.Local)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &testClock{t: now}
		store = inmemory.NewDriver(inmemory.WithClock(clock.Now))
	})

	newEngine := func(call reasoner.CallFunc, opts memory.Options) *memory.Engine {
		if opts.Threshold == 0 {
			// Keep compaction out of the way unless a test wants it.
			opts.Threshold = 1000
		}
		if opts.Clock == nil {
			opts.Clock = clock.Now
		}
		return memory.NewEngine(store, call, nil, opts)
	}

	Describe("ProcessTurn", func() {
		It("rejects an empty user id", func() {
			mock := reasoner.NewMock("hi")
			engine := newEngine(mock.Call, memory.Options{})
			_, err := engine.ProcessTurn(ctx, "", "hello")
			Expect(err).To(HaveOccurred())
		})

		It("records both sides of an ordinary turn", func() {
			mock := reasoner.NewMock("hello alice")
			engine := newEngine(mock.Call, memory.Options{})

			reply, err := engine.ProcessTurn(ctx, "alice", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("hello alice"))
			Expect(mock.CallCount()).To(Equal(1))

			turns, err := store.UncompactedTurns(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Role).To(Equal(llm.RoleUser))
			Expect(turns[0].Content).To(Equal("hello"))
			Expect(turns[1].Role).To(Equal(llm.RoleAssistant))
			Expect(turns[1].Content).To(Equal("hello alice"))
		})

		It("includes tagged history in the prompt", func() {
			mock := reasoner.NewMock("first reply", "second reply")
			engine := newEngine(mock.Call, memory.Options{})

			_, err := engine.ProcessTurn(ctx, "alice", "remember the code is 42")
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.ProcessTurn(ctx, "alice", "what was the code?")
			Expect(err).NotTo(HaveOccurred())

			prompts := mock.Prompts()
			Expect(prompts).To(HaveLen(2))
			Expect(prompts[1]).To(ContainSubstring("[14:00] remember the code is 42"))
			Expect(prompts[1]).To(ContainSubstring("[14:00] first reply"))
		})

		It("honors a recall directive and stores only the final reply", func() {
			// Seed a prior day's raw log.
			clock.Set(time.Date(2026, 2, 26, 19, 0, 0, 0, time.Local))
			_, err := store.AppendTurn(ctx, "alice", llm.RoleUser, "we adopted a cat, Miso")
			Expect(err).NotTo(HaveOccurred())
			clock.Set(now)

			mock := reasoner.NewMock(
				"[RECALL|2026-02-26|the cat's name]",
				"The log says the cat is named Miso.",
				"Your cat is named Miso.",
			)
			engine := newEngine(mock.Call, memory.Options{})

			reply, err := engine.ProcessTurn(ctx, "alice", "what is my cat called?")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("Your cat is named Miso."))
			Expect(mock.CallCount()).To(Equal(3))

			prompts := mock.Prompts()
			// Second call is the investigator's scoped lookup.
			Expect(prompts[1]).To(ContainSubstring("Question: the cat's name"))
			Expect(prompts[1]).To(ContainSubstring("we adopted a cat, Miso"))
			// Third call carries the recall evidence back to the model.
			Expect(prompts[2]).To(ContainSubstring("Recall report:"))
			Expect(prompts[2]).To(ContainSubstring("The log says the cat is named Miso."))

			turns, err := store.UncompactedTurns(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			last := turns[len(turns)-1]
			Expect(last.Role).To(Equal(llm.RoleAssistant))
			Expect(last.Content).To(Equal("Your cat is named Miso."))

			for _, t := range turns {
				Expect(t.Content).NotTo(ContainSubstring("[RECALL|"))
			}
		})

		It("feeds the no-record sentinel through when the recalled day is empty", func() {
			mock := reasoner.NewMock(
				"[RECALL|2026-01-15|anything]",
				"I have no record of that day.",
			)
			engine := newEngine(mock.Call, memory.Options{})

			reply, err := engine.ProcessTurn(ctx, "alice", "what about January 15th?")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("I have no record of that day."))

			// The investigator skips the reasoner for an empty day, so only
			// the two reasoning passes happen.
			Expect(mock.CallCount()).To(Equal(2))
			Expect(mock.Prompts()[1]).To(ContainSubstring(memory.NoRecordSentinel))
		})

		It("treats a malformed directive as an ordinary reply", func() {
			mock := reasoner.NewMock("[RECALL|26-02-2026|cats]")
			engine := newEngine(mock.Call, memory.Options{})

			reply, err := engine.ProcessTurn(ctx, "alice", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("[RECALL|26-02-2026|cats]"))
			Expect(mock.CallCount()).To(Equal(1))

			turns, err := store.UncompactedTurns(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns[1].Content).To(Equal("[RECALL|26-02-2026|cats]"))
		})

		It("does not honor a second directive in the follow-up reply", func() {
			mock := reasoner.NewMock(
				"[RECALL|2026-01-15|first hop]",
				"[RECALL|2026-01-16|second hop]",
			)
			engine := newEngine(mock.Call, memory.Options{})

			reply, err := engine.ProcessTurn(ctx, "alice", "dig deep")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("[RECALL|2026-01-16|second hop]"))
			Expect(mock.CallCount()).To(Equal(2))
		})

		It("surfaces a reasoning failure after recording the user turn", func() {
			mock := reasoner.NewMock()
			mock.FailWith(errors.New("backend down"))
			engine := newEngine(mock.Call, memory.Options{})

			_, err := engine.ProcessTurn(ctx, "alice", "hello")
			Expect(err).To(HaveOccurred())

			turns, uerr := store.UncompactedTurns(ctx, "alice")
			Expect(uerr).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Role).To(Equal(llm.RoleUser))
		})

		It("leaves the turn unanswered when the pass after a recall fails", func() {
			clock.Set(time.Date(2026, 2, 26, 19, 0, 0, 0, time.Local))
			_, err := store.AppendTurn(ctx, "alice", llm.RoleUser, "we adopted a cat, Miso")
			Expect(err).NotTo(HaveOccurred())
			clock.Set(now)

			calls := 0
			call := func(_ context.Context, _ string) (string, error) {
				calls++
				switch calls {
				case 1:
					return "[RECALL|2026-02-26|the cat's name]", nil
				case 2:
					return "The log says Miso.", nil
				default:
					return "", reasoner.ErrUnavailable
				}
			}
			engine := newEngine(call, memory.Options{})

			_, err = engine.ProcessTurn(ctx, "alice", "what is my cat called?")
			Expect(err).To(MatchError(reasoner.ErrUnavailable))
			Expect(calls).To(Equal(3))

			// The user turn stands; the recall itself left nothing behind
			// and no assistant turn was recorded.
			turns, uerr := store.UncompactedTurns(ctx, "alice")
			Expect(uerr).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[len(turns)-1].Role).To(Equal(llm.RoleUser))

			_, serr := store.GetSummary(ctx, "2026-02-26")
			Expect(serr).To(BeAssignableToTypeOf(storage.ErrNotFound{}))
		})

		It("counts a failed recall read against the storage label", func() {
			metrics := observability.NewMetrics("chronos_memory_test")
			mock := reasoner.NewMock("[RECALL|2026-02-26|the cat's name]")
			engine := memory.NewEngine(&brokenDayStore{Driver: store}, mock.Call, nil, memory.Options{
				Threshold: 1000,
				Metrics:   metrics,
				Clock:     clock.Now,
			})

			_, err := engine.ProcessTurn(ctx, "alice", "what is my cat called?")
			Expect(err).To(HaveOccurred())
			Expect(memory.ClassifyError(err)).To(Equal("storage"))

			Expect(testutil.ToFloat64(metrics.TurnFailures.WithLabelValues("storage"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.TurnFailures.WithLabelValues("reasoning"))).To(BeZero())
		})

		It("never propagates a compaction failure", func() {
			call := func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "chronicler") {
					return "", errors.New("summarizer down")
				}
				return "ok", nil
			}
			engine := newEngine(call, memory.Options{Threshold: 1})

			// Two turns leave four stored, clearing threshold+floor, so the
			// second ProcessTurn triggers the failing compaction.
			_, err := engine.ProcessTurn(ctx, "alice", "one")
			Expect(err).NotTo(HaveOccurred())
			reply, err := engine.ProcessTurn(ctx, "alice", "two")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("ok"))

			// Nothing was consumed by the failed pass.
			turns, err := store.UncompactedTurns(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(4))
		})

		It("compacts opportunistically after a successful turn", func() {
			call := func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "chronicler") {
					return "On 2026-02-27 the user chatted.", nil
				}
				return "ok", nil
			}
			engine := newEngine(call, memory.Options{Threshold: 1})

			_, err := engine.ProcessTurn(ctx, "alice", "one")
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.ProcessTurn(ctx, "alice", "two")
			Expect(err).NotTo(HaveOccurred())

			turns, err := store.UncompactedTurns(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))

			summary, err := store.GetSummary(ctx, "2026-02-27")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Content).To(ContainSubstring("chatted"))
		})

		It("publishes a turn event with trace metadata", func() {
			pub := &capturePublisher{}
			mock := reasoner.NewMock("hello")
			engine := newEngine(mock.Call, memory.Options{Publisher: pub})

			_, err := engine.ProcessTurn(ctx, "alice", "hi")
			Expect(err).NotTo(HaveOccurred())

			Expect(pub.events).To(HaveLen(1))
			event := pub.events[0]
			Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
			Expect(event.EventType).To(Equal(eventstream.EventTypeTurnRecorded))
			Expect(event.EventID).NotTo(BeEmpty())
			Expect(event.TraceID).NotTo(BeEmpty())
			Expect(event.UserID).To(Equal("alice"))
			Expect(event.RecallUsed).To(BeFalse())
		})

		It("completes the turn even when publishing fails", func() {
			pub := &capturePublisher{err: errors.New("broker down")}
			mock := reasoner.NewMock("hello")
			engine := newEngine(mock.Call, memory.Options{Publisher: pub})

			reply, err := engine.ProcessTurn(ctx, "alice", "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("hello"))
		})
	})
})

var _ = Describe("ClassifyError", func() {
	It("classifies storage failures", func() {
		err := storage.Unavailable("append turn", errors.New("disk full"))
		Expect(memory.ClassifyError(err)).To(Equal("storage"))
	})

	It("classifies reasoning failures", func() {
		err := fmt.Errorf("first reasoning pass: %w", reasoner.ErrUnavailable)
		Expect(memory.ClassifyError(err)).To(Equal("reasoning"))
	})

	It("leaves other errors unclassified", func() {
		Expect(memory.ClassifyError(errors.New("mystery"))).To(Equal(""))
	})
})
