package memory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/storage/inmemory"
)

// testClock is a settable time source shared between a store and the
// component under test.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.t = t
}

var _ = Describe("Formatter", func() {
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

	It("tags same-day turns with the short clock form", func() {
		clock.Set(time.Date(2026, 2, 27, 9, 30, 0, 0, time.Local))
		_, err := store.AppendTurn(ctx, "alice", llm.RoleUser, "morning")
		Expect(err).NotTo(HaveOccurred())

		clock.Set(now)
		f := memory.NewFormatter(store, clock.Now)
		msgs, err := f.Render(ctx, "alice", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("[09:30] morning"))
		Expect(msgs[0].Role).To(Equal(llm.RoleUser))
	})

	It("tags older turns with month and day", func() {
		clock.Set(time.Date(2026, 2, 26, 20, 15, 0, 0, time.Local))
		_, err := store.AppendTurn(ctx, "alice", llm.RoleAssistant, "good night")
		Expect(err).NotTo(HaveOccurred())

		clock.Set(now)
		f := memory.NewFormatter(store, clock.Now)
		msgs, err := f.Render(ctx, "alice", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("[02-26 20:15] good night"))
	})

	It("renders oldest first", func() {
		clock.Set(time.Date(2026, 2, 27, 9, 0, 0, 0, time.Local))
		_, err := store.AppendTurn(ctx, "alice", llm.RoleUser, "first")
		Expect(err).NotTo(HaveOccurred())

		clock.Set(time.Date(2026, 2, 27, 10, 0, 0, 0, time.Local))
		_, err = store.AppendTurn(ctx, "alice", llm.RoleAssistant, "second")
		Expect(err).NotTo(HaveOccurred())

		clock.Set(now)
		f := memory.NewFormatter(store, clock.Now)
		msgs, err := f.Render(ctx, "alice", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Content).To(ContainSubstring("first"))
		Expect(msgs[1].Content).To(ContainSubstring("second"))
	})

	It("honors the limit by keeping the newest turns", func() {
		for i, text := range []string{"one", "two", "three"} {
			clock.Set(time.Date(2026, 2, 27, 9+i, 0, 0, 0, time.Local))
			_, err := store.AppendTurn(ctx, "alice", llm.RoleUser, text)
			Expect(err).NotTo(HaveOccurred())
		}

		clock.Set(now)
		f := memory.NewFormatter(store, clock.Now)
		msgs, err := f.Render(ctx, "alice", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Content).To(ContainSubstring("two"))
		Expect(msgs[1].Content).To(ContainSubstring("three"))
	})

	It("keeps users separate", func() {
		_, err := store.AppendTurn(ctx, "alice", llm.RoleUser, "mine")
		Expect(err).NotTo(HaveOccurred())
		_, err = store.AppendTurn(ctx, "bob", llm.RoleUser, "yours")
		Expect(err).NotTo(HaveOccurred())

		f := memory.NewFormatter(store, clock.Now)
		msgs, err := f.Render(ctx, "alice", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(ContainSubstring("mine"))
	})
})
