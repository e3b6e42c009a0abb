package llm

// Message is a single entry in an in-memory prompt context. It is never
// persisted as its own entity - the context is rebuilt each turn from
// ChatTurn history plus any recall evidence.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}
