package ai

import (
	"fmt"

	"github.com/wanderinn/roleplay-backend/internal/model/bot"
	"github.com/wanderinn/roleplay-backend/internal/model/persona"
)

const instructionTail = `
Maintain your persona as %s consistently.
Respond naturally and engage in roleplay based on your character and the user's persona.
The user may edit your previous messages for corrections or to guide the story. Adapt to these changes.
The user may also ask you to regenerate a response. Provide a varied and creative alternative.
You should be able to understand and incorporate common internet slang and colloquialisms naturally into your responses when appropriate for your persona.
Be concise but descriptive. Aim for responses that are a few sentences long unless more detail is needed.
Remember the conversation history provided.`

// SystemInstruction renders the roleplay instruction for regular sends.
func SystemInstruction(b bot.Config, p persona.Persona) string {
	return fmt.Sprintf(`You are %s, an interactive roleplaying bot.
Your description: %s
Your background: %s
Your personality traits: %s

You are interacting with %s.
User's description: %s
%s`,
		b.Name,
		b.Description,
		b.Background,
		b.PersonalityTraits,
		p.Name,
		p.Description,
		fmt.Sprintf(instructionTail, b.Name),
	)
}

// RegenInstruction renders the instruction used when a reply is being
// regenerated. It names the prompt being retried and asks for a response
// different from earlier attempts, so the backend does not anchor on the
// reply being replaced.
func RegenInstruction(b bot.Config, p persona.Persona, promptText string) string {
	return fmt.Sprintf(`You are %s, an interactive roleplaying bot.
Your description: %s
Your background: %s
Your personality traits: %s

You are interacting with %s.
User's description: %s

You are being asked to regenerate a response for the user's message: %q.
Provide a creative and different response than you might have before.
The conversation history up to this point is provided below.
%s`,
		b.Name,
		b.Description,
		b.Background,
		b.PersonalityTraits,
		p.Name,
		p.Description,
		promptText,
		fmt.Sprintf(instructionTail, b.Name),
	)
}
