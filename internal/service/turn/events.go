package turn

import "github.com/wanderinn/roleplay-backend/internal/model/chat"

// Event is a tagged mutation of a conversation. The whole turn lifecycle is
// expressed as events folded over the message list by Apply, which keeps the
// state machine pure and independent of any transport.
type Event interface {
	event()
}

// MessageAppended adds a message at the end of the conversation.
type MessageAppended struct {
	Message chat.Message
}

// ChunkReceived overwrites a message's text with the cumulative buffer so
// far and marks it streaming. A reset at the start of a regeneration is the
// same event with an empty buffer.
type ChunkReceived struct {
	MessageID string
	Text      string
}

// MessageFinalized replaces a message with its terminal form: streaming
// cleared, text settled, timestamp refreshed.
type MessageFinalized struct {
	Message chat.Message
}

// MessageEdited replaces a message's text in place, leaving its timestamp
// and position untouched.
type MessageEdited struct {
	MessageID string
	Text      string
}

func (MessageAppended) event()  {}
func (ChunkReceived) event()    {}
func (MessageFinalized) event() {}
func (MessageEdited) event()    {}

// Apply folds one event into the conversation, returning the new message
// list. Events addressing an unknown message ID are ignored.
func Apply(conv []chat.Message, ev Event) []chat.Message {
	switch e := ev.(type) {
	case MessageAppended:
		out := make([]chat.Message, 0, len(conv)+1)
		out = append(out, conv...)
		return append(out, e.Message)
	case ChunkReceived:
		return replace(conv, e.MessageID, func(m chat.Message) chat.Message {
			m.Text = e.Text
			m.Streaming = true
			return m
		})
	case MessageFinalized:
		return replace(conv, e.Message.ID, func(chat.Message) chat.Message {
			return e.Message
		})
	case MessageEdited:
		return replace(conv, e.MessageID, func(m chat.Message) chat.Message {
			m.Text = e.Text
			return m
		})
	}
	return conv
}

func replace(conv []chat.Message, id string, fn func(chat.Message) chat.Message) []chat.Message {
	out := make([]chat.Message, len(conv))
	copy(out, conv)
	for i := range out {
		if out[i].ID == id {
			out[i] = fn(out[i])
			break
		}
	}
	return out
}
