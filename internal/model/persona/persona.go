package persona

import "strings"

// Persona is the identity the user roleplays as. It is supplied to the
// generative backend alongside the bot configuration on every session.
type Persona struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Picture     *string `json:"picture"` // base64 data URL, nil when unset
}

// Valid reports whether the persona is complete enough to chat with.
func (p Persona) Valid() bool {
	return strings.TrimSpace(p.Name) != ""
}
