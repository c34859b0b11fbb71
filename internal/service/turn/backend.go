package turn

import (
	"context"

	"github.com/wanderinn/roleplay-backend/internal/model/bot"
	"github.com/wanderinn/roleplay-backend/internal/model/chat"
	"github.com/wanderinn/roleplay-backend/internal/model/persona"
)

// Session is an opaque backend handle. The controller never inspects it; it
// only hands it back to the backend's StreamReply call. Sessions become
// stale whenever the conversation, bot or persona changes and are rebuilt
// before the next send.
type Session any

// Stream is a finite, non-restartable sequence of reply fragments.
// Recv returns io.EOF when the reply is complete and any other error when
// the transport or service fails mid-stream.
type Stream interface {
	Recv() (string, error)
	Close()
}

// Backend abstracts the generative service. It is injected at controller
// construction so tests can substitute a fake.
type Backend interface {
	// CreateSession derives a session from the bot, the user persona and the
	// finalized conversation prefix.
	CreateSession(ctx context.Context, b bot.Config, p persona.Persona, history []chat.Message) (Session, error)

	// CreateRegenSession seeds a session for regenerating a reply: history is
	// truncated strictly before the prompt, and the system instruction asks
	// for a response distinct from prior attempts.
	CreateRegenSession(ctx context.Context, b bot.Config, p persona.Persona, history []chat.Message, prompt string) (Session, error)

	// StreamReply sends the prompt on the session and streams the reply.
	StreamReply(ctx context.Context, s Session, prompt string) (Stream, error)
}
