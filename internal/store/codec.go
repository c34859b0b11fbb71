package store

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// LoadJSON decodes the record stored under key into out, reporting whether
// the key was present. A malformed blob is logged and treated as absent so
// one bad record cannot wedge startup.
func (s *Store) LoadJSON(key string, out any) (bool, error) {
	raw, err := s.Get(key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("skipping malformed stored record")
		return false, nil
	}
	return true, nil
}

// SaveJSON encodes v and replaces the record stored under key.
func (s *Store) SaveJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
