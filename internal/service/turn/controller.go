package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wanderinn/roleplay-backend/internal/model/bot"
	"github.com/wanderinn/roleplay-backend/internal/model/chat"
	"github.com/wanderinn/roleplay-backend/internal/model/persona"
)

var (
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrBusy            = errors.New("a reply is already in flight")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotBotMessage   = errors.New("message is not a bot reply")
	ErrNoPrompt        = errors.New("no preceding user message to regenerate from")
)

// Fallback texts a bot message is finalized with when the stream produces
// nothing or fails.
const (
	emptyReplyFallback = "..."
	sendErrorFallback  = "Sorry, I encountered an error."
	regenErrorFallback = "Sorry, I couldn't regenerate that."
)

// Saver receives the full conversation after every state-affecting
// operation. Writes are fire-and-forget: the implementation logs failures
// instead of surfacing them into the turn.
type Saver interface {
	SaveConversation(botID string, messages []chat.Message)
}

// Listener observes conversation events as they are applied, in order.
// Transports use it to forward streaming progress to clients. It is invoked
// with the controller lock held and must not call back into the controller.
type Listener func(Event)

// Controller owns one bot's conversation and drives the turn lifecycle:
// sending a prompt, streaming the reply onto a placeholder message, editing
// past bot replies and regenerating a reply from its original prompt. At
// most one send or regenerate is in flight at a time; overlapping calls are
// rejected rather than queued.
type Controller struct {
	mu       sync.Mutex
	log      zerolog.Logger
	backend  Backend
	saver    Saver
	listener Listener
	bot      bot.Config
	persona  persona.Persona
	conv     []chat.Message
	session  Session
	inFlight bool
}

// Config wires a controller.
type Config struct {
	Log     zerolog.Logger
	Backend Backend
	Saver   Saver
	Bot     bot.Config
	Persona persona.Persona
	History []chat.Message
}

// NewController builds a controller seeded with the stored conversation.
func NewController(cfg Config) *Controller {
	return &Controller{
		log:     cfg.Log.With().Str("component", "turn").Str("bot", cfg.Bot.ID).Logger(),
		backend: cfg.Backend,
		saver:   cfg.Saver,
		bot:     cfg.Bot,
		persona: cfg.Persona,
		conv:    append([]chat.Message(nil), cfg.History...),
	}
}

// SetListener installs the event listener for subsequent operations.
func (c *Controller) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// Messages returns a snapshot of the conversation.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.conv...)
}

// Send appends the user prompt and a streaming bot placeholder, then
// streams the reply onto the placeholder. The conversation is persisted
// once, after the reply is finalized.
func (c *Controller) Send(ctx context.Context, promptText string) error {
	prompt := strings.TrimSpace(promptText)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	session := c.session
	if session == nil {
		derived := DeriveContext(c.conv)
		var err error
		session, err = c.backend.CreateSession(ctx, c.bot, c.persona, derived.FinalizedHistory)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("create session: %w", err)
		}
		c.session = session
	}
	c.inFlight = true

	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderUser,
		Text:      promptText,
		Timestamp: now,
	}
	placeholder := chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderBot,
		Timestamp: now.Add(time.Millisecond),
		Streaming: true,
	}
	c.apply(MessageAppended{Message: userMsg})
	c.apply(MessageAppended{Message: placeholder})
	c.mu.Unlock()

	stream, err := c.backend.StreamReply(ctx, session, prompt)
	if err != nil {
		c.finalize(placeholder.ID, sendErrorFallback)
		return fmt.Errorf("stream reply: %w", err)
	}
	return c.consume(stream, placeholder.ID, sendErrorFallback)
}

// Edit replaces a bot message's text in place. Editing is a no-op when the
// text is unchanged; otherwise the conversation is persisted immediately
// and the backend session is invalidated so the next send sees the edit.
func (c *Controller) Edit(messageID, newText string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(messageID)
	if idx < 0 {
		return ErrMessageNotFound
	}
	msg := c.conv[idx]
	if msg.Sender != chat.SenderBot {
		return ErrNotBotMessage
	}
	if msg.Text == newText {
		return nil
	}

	c.apply(MessageEdited{MessageID: messageID, Text: newText})
	c.session = nil
	c.save()
	return nil
}

// Regenerate discards the targeted bot reply and streams a fresh one for
// the same prompt. The replaced reply and everything after its prompt are
// excluded from the request context; the message keeps its identifier
// across the reset.
func (c *Controller) Regenerate(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	idx := c.indexOf(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrMessageNotFound
	}
	if c.conv[idx].Sender != chat.SenderBot {
		c.mu.Unlock()
		return ErrNotBotMessage
	}
	if idx == 0 || c.conv[idx-1].Sender != chat.SenderUser {
		c.mu.Unlock()
		return ErrNoPrompt
	}

	promptMsg := c.conv[idx-1]
	truncated := DeriveContext(c.conv[:idx-1]).FinalizedHistory
	session, err := c.backend.CreateRegenSession(ctx, c.bot, c.persona, truncated, promptMsg.Text)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("create regen session: %w", err)
	}

	c.inFlight = true
	c.apply(ChunkReceived{MessageID: messageID, Text: ""})
	c.mu.Unlock()

	stream, err := c.backend.StreamReply(ctx, session, promptMsg.Text)
	if err != nil {
		c.finalize(messageID, regenErrorFallback)
		return fmt.Errorf("stream reply: %w", err)
	}
	return c.consume(stream, messageID, regenErrorFallback)
}

// consume drains the stream onto the target message, then finalizes it with
// the accumulated text, the empty-reply fallback, or the error fallback.
func (c *Controller) consume(stream Stream, messageID, errFallback string) error {
	defer stream.Close()

	var buf strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.finalize(messageID, errFallback)
			return fmt.Errorf("receive chunk: %w", err)
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		c.mu.Lock()
		c.apply(ChunkReceived{MessageID: messageID, Text: buf.String()})
		c.mu.Unlock()
	}

	text := buf.String()
	if text == "" {
		text = emptyReplyFallback
	}
	c.finalize(messageID, text)
	return nil
}

// finalize settles the in-flight message, clears the in-flight flag,
// invalidates the session and persists the conversation. It is the single
// exit point for both the success and the error path, so a message is never
// left streaming.
func (c *Controller) finalize(messageID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(messageID)
	if idx >= 0 {
		final := c.conv[idx]
		final.Text = text
		final.Streaming = false
		final.Timestamp = time.Now().UTC()
		c.apply(MessageFinalized{Message: final})
	}
	c.inFlight = false
	c.session = nil
	c.save()
}

// apply folds the event into the conversation and notifies the listener.
// Callers hold c.mu.
func (c *Controller) apply(ev Event) {
	c.conv = Apply(c.conv, ev)
	if c.listener != nil {
		c.listener(ev)
	}
}

// save hands the conversation snapshot to the saver. Callers hold c.mu.
func (c *Controller) save() {
	if c.saver == nil {
		return
	}
	c.saver.SaveConversation(c.bot.ID, append([]chat.Message(nil), c.conv...))
}

func (c *Controller) indexOf(messageID string) int {
	for i := range c.conv {
		if c.conv[i].ID == messageID {
			return i
		}
	}
	return -1
}
