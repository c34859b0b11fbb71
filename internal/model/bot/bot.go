package bot

import "strings"

// MaxStarterPrompts caps how many starter prompts a bot may offer.
const MaxStarterPrompts = 3

// Config describes one roleplay bot persona.
type Config struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Picture           *string  `json:"picture"` // base64 data URL, nil when unset
	Description       string   `json:"description"`
	Background        string   `json:"background"`
	PersonalityTraits string   `json:"personalityTraits"`
	StarterPrompts    []string `json:"starterPrompts,omitempty"`
}

// Valid reports whether the bot can be saved.
func (c Config) Valid() bool {
	return strings.TrimSpace(c.Name) != ""
}

// Normalize trims starter prompts, drops empty ones and enforces the cap.
func (c *Config) Normalize() {
	prompts := make([]string, 0, len(c.StarterPrompts))
	for _, p := range c.StarterPrompts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		prompts = append(prompts, p)
		if len(prompts) == MaxStarterPrompts {
			break
		}
	}
	if len(prompts) == 0 {
		prompts = nil
	}
	c.StarterPrompts = prompts
}
