package persona

// DefaultID identifies the persona used when a client does not pick one.
const DefaultID = "atom"

// DefaultPrimingMessage introduces the assistant before any user turn.
const DefaultPrimingMessage = "Your name is Atom. You are a friendly chat assistant in an early stage of development, currently version 1. Keep answers clear and concise."

// Persona captures the assistant identity a session is primed with.
type Persona struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	PrimingMessage string `json:"-"`
	VoiceID        string `json:"voiceId,omitempty"`
	Description    string `json:"description,omitempty"`
}

// Seed provides the built-in personas. A non-empty priming overrides the
// default persona's priming message.
func Seed(priming string) []Persona {
	if priming == "" {
		priming = DefaultPrimingMessage
	}

	return []Persona{
		{
			ID:             DefaultID,
			Name:           "Atom",
			Title:          "Chat assistant v1",
			PrimingMessage: priming,
			VoiceID:        "atom",
			Description:    "General purpose assistant that answers text questions and describes images.",
		},
		{
			ID:             "atom-concise",
			Name:           "Atom (concise)",
			Title:          "Short answers",
			PrimingMessage: priming + " Answer in at most three sentences.",
			VoiceID:        "default",
			Description:    "Same assistant, tuned for brief spoken replies.",
		},
	}
}
