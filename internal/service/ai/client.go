package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/wanderinn/roleplay-backend/internal/config"
	"github.com/wanderinn/roleplay-backend/internal/model/bot"
	"github.com/wanderinn/roleplay-backend/internal/model/chat"
	"github.com/wanderinn/roleplay-backend/internal/model/persona"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
)

// Client talks to the generative backend through an eino chain: a prompt
// template (system instruction + history placeholder + query) feeding the
// configured chat model. It implements turn.Backend.
type Client struct {
	cfg   config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]
	log   zerolog.Logger
}

// NewClient builds the chat model from configuration and compiles the chain
// once; sessions only vary the template inputs.
func NewClient(ctx context.Context, cfg config.AIConfig, log zerolog.Logger) (*Client, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &Client{
		cfg:   cfg,
		chain: runnable,
		log:   log.With().Str("component", "ai").Logger(),
	}, nil
}

// session is the opaque handle handed to the turn controller: the rendered
// system instruction plus the history snapshot valid at creation time.
type session struct {
	system  string
	history []*schema.Message
}

// CreateSession derives a session for regular sends.
func (c *Client) CreateSession(_ context.Context, b bot.Config, p persona.Persona, history []chat.Message) (turn.Session, error) {
	return &session{
		system:  SystemInstruction(b, p),
		history: c.historyMessages(history),
	}, nil
}

// CreateRegenSession derives a session whose instruction asks for a reply
// distinct from prior attempts for the given prompt.
func (c *Client) CreateRegenSession(_ context.Context, b bot.Config, p persona.Persona, history []chat.Message, promptText string) (turn.Session, error) {
	return &session{
		system:  RegenInstruction(b, p, promptText),
		history: c.historyMessages(history),
	}, nil
}

// StreamReply runs the chain in streaming mode for the session and prompt.
func (c *Client) StreamReply(ctx context.Context, s turn.Session, promptText string) (turn.Stream, error) {
	sess, ok := s.(*session)
	if !ok {
		return nil, fmt.Errorf("unexpected session type %T", s)
	}

	input := map[string]any{
		"system":  sess.system,
		"history": sess.history,
		"query":   promptText,
	}
	reader, err := c.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("stream chain output: %w", err)
	}
	return &chunkStream{reader: reader}, nil
}

// historyMessages converts the finalized conversation prefix into model
// messages, keeping only the most recent window.
func (c *Client) historyMessages(messages []chat.Message) []*schema.Message {
	limit := c.cfg.HistoryLimit
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}

// chunkStream adapts the eino stream reader to turn.Stream, skipping
// contentless frames.
type chunkStream struct {
	reader *schema.StreamReader[*schema.Message]
}

func (s *chunkStream) Recv() (string, error) {
	for {
		msg, err := s.reader.Recv()
		if err != nil {
			return "", err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		return msg.Content, nil
	}
}

func (s *chunkStream) Close() {
	s.reader.Close()
}
