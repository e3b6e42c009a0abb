package memory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/misaka-coder/chronos/pkg/memory"
)

var _ = Describe("ParseRecallDirective", func() {
	It("parses a bare directive", func() {
		d, ok := memory.ParseRecallDirective("[RECALL|2026-02-26|the cat's name]")
		Expect(ok).To(BeTrue())
		Expect(d.Date).To(Equal("2026-02-26"))
		Expect(d.Query).To(Equal("the cat's name"))
	})

	It("parses a directive embedded in surrounding prose", func() {
		d, ok := memory.ParseRecallDirective("Let me check. [RECALL|2026-02-26|dinner plans] One moment.")
		Expect(ok).To(BeTrue())
		Expect(d.Date).To(Equal("2026-02-26"))
		Expect(d.Query).To(Equal("dinner plans"))
	})

	It("allows an empty query", func() {
		d, ok := memory.ParseRecallDirective("[RECALL|2026-02-26|]")
		Expect(ok).To(BeTrue())
		Expect(d.Query).To(Equal(""))
	})

	It("skips a false start and finds a later valid directive", func() {
		d, ok := memory.ParseRecallDirective("[RECALL|oops] then [RECALL|2026-02-26|cats]")
		Expect(ok).To(BeTrue())
		Expect(d.Date).To(Equal("2026-02-26"))
		Expect(d.Query).To(Equal("cats"))
	})

	It("returns only the first valid directive", func() {
		d, ok := memory.ParseRecallDirective("[RECALL|2026-02-26|first] [RECALL|2026-02-27|second]")
		Expect(ok).To(BeTrue())
		Expect(d.Date).To(Equal("2026-02-26"))
		Expect(d.Query).To(Equal("first"))
	})

	DescribeTable("rejecting malformed near-matches",
		func(text string) {
			_, ok := memory.ParseRecallDirective(text)
			Expect(ok).To(BeFalse())
		},
		Entry("plain text", "what a lovely day"),
		Entry("day-first date order", "[RECALL|26-02-2026|cats]"),
		Entry("missing zero padding", "[RECALL|2026-2-26|cats]"),
		Entry("impossible calendar date", "[RECALL|2026-13-40|cats]"),
		Entry("missing second pipe", "[RECALL|2026-02-26 cats]"),
		Entry("missing closing bracket", "[RECALL|2026-02-26|cats"),
		Entry("pipe inside the query", "[RECALL|2026-02-26|cats|dogs]"),
		Entry("lowercase keyword", "[recall|2026-02-26|cats]"),
		Entry("truncated body", "[RECALL|2026-02]"),
	)
})
