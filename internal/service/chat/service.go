package chat

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	chatmodel "github.com/wanderinn/roleplay-backend/internal/model/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
	"github.com/wanderinn/roleplay-backend/internal/store"
)

var (
	ErrBotNotFound        = errors.New("bot not found")
	ErrPersonaRequired    = errors.New("user persona is not set up")
	ErrBackendUnavailable = errors.New("generative backend is not configured")
)

// Service is the registry of per-bot turn controllers. Each conversation is
// exclusively owned by one controller; controllers are built lazily from
// the stored history and dropped whenever their bot or the user persona
// changes, so the next turn sees fresh context.
type Service struct {
	mu          sync.Mutex
	log         zerolog.Logger
	backend     turn.Backend
	store       *store.Store
	profiles    *profile.Service
	controllers map[string]*turn.Controller
	histories   map[string][]chatmodel.Message
}

// NewService loads the stored conversations. The backend may be nil when
// credentials are missing; chatting then fails with ErrBackendUnavailable
// until the service is restarted with credentials.
func NewService(st *store.Store, profiles *profile.Service, backend turn.Backend, log zerolog.Logger) (*Service, error) {
	s := &Service{
		log:         log.With().Str("component", "chat").Logger(),
		backend:     backend,
		store:       st,
		profiles:    profiles,
		controllers: make(map[string]*turn.Controller),
		histories:   make(map[string][]chatmodel.Message),
	}
	if _, err := st.LoadJSON(store.KeyChatHistories, &s.histories); err != nil {
		return nil, err
	}
	if s.histories == nil {
		s.histories = make(map[string][]chatmodel.Message)
	}
	return s, nil
}

// Controller returns the turn controller for the bot, building it on first
// use from the stored history, the bot config and the user persona.
func (s *Service) Controller(botID string) (*turn.Controller, error) {
	if s.backend == nil {
		return nil, ErrBackendUnavailable
	}

	b, ok := s.profiles.GetBot(botID)
	if !ok {
		return nil, ErrBotNotFound
	}
	p, ok := s.profiles.UserPersona()
	if !ok {
		return nil, ErrPersonaRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl, ok := s.controllers[botID]; ok {
		return ctrl, nil
	}

	ctrl := turn.NewController(turn.Config{
		Log:     s.log,
		Backend: s.backend,
		Saver:   s,
		Bot:     b,
		Persona: p,
		History: s.histories[botID],
	})
	s.controllers[botID] = ctrl
	return ctrl, nil
}

// Transcript returns the conversation for a bot without building a
// controller.
func (s *Service) Transcript(botID string) []chatmodel.Message {
	s.mu.Lock()
	if ctrl, ok := s.controllers[botID]; ok {
		s.mu.Unlock()
		return ctrl.Messages()
	}
	defer s.mu.Unlock()
	return append([]chatmodel.Message(nil), s.histories[botID]...)
}

// Invalidate drops the controller for a bot so the next turn rebuilds it,
// e.g. after the bot config was edited.
func (s *Service) Invalidate(botID string) {
	s.mu.Lock()
	delete(s.controllers, botID)
	s.mu.Unlock()
}

// InvalidateAll drops every controller, e.g. after the user persona was
// edited.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	s.controllers = make(map[string]*turn.Controller)
	s.mu.Unlock()
}

// DeleteConversation discards a bot's conversation and controller and
// persists the remaining histories.
func (s *Service) DeleteConversation(botID string) {
	s.mu.Lock()
	delete(s.controllers, botID)
	delete(s.histories, botID)
	s.persistHistories()
	s.mu.Unlock()
}

// SaveConversation implements turn.Saver. The whole history map is replaced
// on every write; failures are logged, never surfaced into the turn.
func (s *Service) SaveConversation(botID string, messages []chatmodel.Message) {
	s.mu.Lock()
	s.histories[botID] = messages
	s.persistHistories()
	s.mu.Unlock()
}

// persistHistories writes the history map. Callers hold s.mu.
func (s *Service) persistHistories() {
	if err := s.store.SaveJSON(store.KeyChatHistories, s.histories); err != nil {
		s.log.Error().Err(err).Msg("persist chat histories")
	}
}
