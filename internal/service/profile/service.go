package profile

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wanderinn/roleplay-backend/internal/model/bot"
	"github.com/wanderinn/roleplay-backend/internal/model/persona"
	"github.com/wanderinn/roleplay-backend/internal/model/settings"
	"github.com/wanderinn/roleplay-backend/internal/store"
)

var (
	ErrPersonaInvalid = errors.New("persona name is required")
	ErrBotInvalid     = errors.New("bot name is required")
	ErrBotNotFound    = errors.New("bot not found")
)

// Service owns the user persona, the bot roster and the app settings. All
// three are loaded from the store once at startup and written through on
// every mutation.
type Service struct {
	mu       sync.RWMutex
	log      zerolog.Logger
	store    *store.Store
	persona  *persona.Persona
	bots     []bot.Config
	settings settings.AppSettings
}

// NewService loads the persisted records and returns the service.
func NewService(st *store.Store, log zerolog.Logger) (*Service, error) {
	s := &Service{
		log:      log.With().Str("component", "profile").Logger(),
		store:    st,
		settings: settings.Default(),
	}

	var p persona.Persona
	ok, err := st.LoadJSON(store.KeyUserPersona, &p)
	if err != nil {
		return nil, err
	}
	if ok {
		s.persona = &p
	}

	if _, err := st.LoadJSON(store.KeyBots, &s.bots); err != nil {
		return nil, err
	}

	var stored settings.AppSettings
	ok, err = st.LoadJSON(store.KeyAppSettings, &stored)
	if err != nil {
		return nil, err
	}
	if ok {
		s.settings = stored.Sanitize()
	}

	return s, nil
}

// UserPersona returns the persona and whether one has been set up yet.
func (s *Service) UserPersona() (persona.Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.persona == nil {
		return persona.Persona{}, false
	}
	return *s.persona, true
}

// SaveUserPersona validates and persists the persona.
func (s *Service) SaveUserPersona(p persona.Persona) (persona.Persona, error) {
	if !p.Valid() {
		return persona.Persona{}, ErrPersonaInvalid
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = &p
	if err := s.store.SaveJSON(store.KeyUserPersona, p); err != nil {
		s.log.Error().Err(err).Msg("persist persona")
	}
	return p, nil
}

// ListBots returns the roster in insertion order.
func (s *Service) ListBots() []bot.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]bot.Config(nil), s.bots...)
}

// GetBot looks up one bot by identifier.
func (s *Service) GetBot(id string) (bot.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bots {
		if b.ID == id {
			return b, true
		}
	}
	return bot.Config{}, false
}

// SaveBot inserts or replaces a bot and persists the roster.
func (s *Service) SaveBot(b bot.Config) (bot.Config, error) {
	if !b.Valid() {
		return bot.Config{}, ErrBotInvalid
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.bots {
		if s.bots[i].ID == b.ID {
			s.bots[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		s.bots = append(s.bots, b)
	}
	s.persistBots()
	return b, nil
}

// DeleteBot removes a bot from the roster. The caller is responsible for
// discarding its conversation.
func (s *Service) DeleteBot(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bots {
		if s.bots[i].ID == id {
			s.bots = append(s.bots[:i], s.bots[i+1:]...)
			s.persistBots()
			return nil
		}
	}
	return ErrBotNotFound
}

// Settings returns the current app settings.
func (s *Service) Settings() settings.AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings sanitizes and persists the given settings.
func (s *Service) UpdateSettings(in settings.AppSettings) settings.AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = in.Sanitize()
	if err := s.store.SaveJSON(store.KeyAppSettings, s.settings); err != nil {
		s.log.Error().Err(err).Msg("persist settings")
	}
	return s.settings
}

// persistBots writes the roster. Callers hold s.mu.
func (s *Service) persistBots() {
	if err := s.store.SaveJSON(store.KeyBots, s.bots); err != nil {
		s.log.Error().Err(err).Msg("persist bots")
	}
}
