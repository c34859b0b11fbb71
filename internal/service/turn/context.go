package turn

import "github.com/wanderinn/roleplay-backend/internal/model/chat"

// Context is the backend-relevant view of a conversation: the finalized
// messages usable as history and the most recent user prompt, if any.
type Context struct {
	FinalizedHistory []chat.Message
	LastPrompt       *chat.Message
}

// DeriveContext extracts the backend context from a conversation. Streaming
// placeholders and empty messages never reach the backend.
func DeriveContext(conv []chat.Message) Context {
	var ctx Context
	for _, m := range conv {
		if !m.Finalized() {
			continue
		}
		ctx.FinalizedHistory = append(ctx.FinalizedHistory, m)
		if m.Sender == chat.SenderUser {
			prompt := m
			ctx.LastPrompt = &prompt
		}
	}
	return ctx
}
