package reasoner

import (
	"context"
	"sync"
)

// Mock is a scripted reasoning caller for tests. Replies are returned in
// order; once the script is exhausted the last reply repeats. Every prompt
// is recorded for assertions.
type Mock struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

// NewMock creates a mock that replays the given replies in order.
func NewMock(replies ...string) *Mock {
	return &Mock{replies: replies}
}

// FailWith makes every subsequent call return err.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Call implements CallFunc.
func (m *Mock) Call(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)

	if m.err != nil {
		return "", m.err
	}

	if len(m.replies) == 0 {
		return "", nil
	}

	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

// Prompts returns a copy of every prompt seen so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// CallCount returns how many times the mock was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
