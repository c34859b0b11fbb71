package chat

import "time"

// Sender values carried by every message.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is one entry in a bot conversation. The ID is stable for the
// lifetime of the entry; the timestamp is reassigned when a bot reply is
// finalized so it reflects completion order.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Streaming bool      `json:"isStreaming,omitempty"`
}

// Finalized reports whether the message may be used as backend context.
// Streaming placeholders and empty entries are excluded from history.
func (m Message) Finalized() bool {
	return !m.Streaming && m.Text != ""
}
