package memory

import (
	"strings"
	"time"
)

// directivePrefix opens an in-band recall directive emitted by the
// reasoning step. The full wire format is [RECALL|YYYY-MM-DD|query].
const directivePrefix = "[RECALL|"

// RecallDirective is a parsed in-band request for a scoped lookup of one
// day's raw log.
type RecallDirective struct {
	Date  string // ISO calendar date, YYYY-MM-DD
	Query string
}

// ParseRecallDirective scans text for the first recall directive and
// returns it. Matching is case-sensitive and requires the exact bracketed
// structure: malformed near-matches (wrong date format, missing pipe, a
// pipe inside the query) are ordinary text, not directives. At most one
// directive is recognized per text.
func ParseRecallDirective(text string) (*RecallDirective, bool) {
	for rest := text; ; {
		start := strings.Index(rest, directivePrefix)
		if start < 0 {
			return nil, false
		}
		rest = rest[start+len(directivePrefix):]

		d, ok := parseBody(rest)
		if ok {
			return d, true
		}
		// Keep scanning past this false start.
	}
}

// parseBody parses "YYYY-MM-DD|query]" at the head of s.
func parseBody(s string) (*RecallDirective, bool) {
	if len(s) < len(DateKeyLayout)+1 {
		return nil, false
	}

	date := s[:len(DateKeyLayout)]
	if _, err := time.Parse(DateKeyLayout, date); err != nil {
		return nil, false
	}

	if s[len(DateKeyLayout)] != '|' {
		return nil, false
	}

	query, _, found := strings.Cut(s[len(DateKeyLayout)+1:], "]")
	if !found {
		return nil, false
	}

	// No escaping of | is supported inside the query; a pipe there breaks
	// the parse rather than being silently handled.
	if strings.Contains(query, "|") {
		return nil, false
	}

	return &RecallDirective{Date: date, Query: query}, true
}
