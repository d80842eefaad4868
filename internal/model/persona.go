// Package model defines data structures for the persona chat broker.
package model

// Persona is one of the two synthetic identities driving an AI conversation.
type Persona struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// PersonaSlot identifies which of the two personas is speaking.
type PersonaSlot int

const (
	PersonaOne PersonaSlot = iota
	PersonaTwo
)

// Other returns the opposite slot.
func (s PersonaSlot) Other() PersonaSlot {
	if s == PersonaOne {
		return PersonaTwo
	}
	return PersonaOne
}

func (s PersonaSlot) String() string {
	if s == PersonaOne {
		return "persona_one"
	}
	return "persona_two"
}

// PersonaPair holds the two personas of a run, indexed by slot.
type PersonaPair [2]Persona

// Get returns the persona occupying slot.
func (p PersonaPair) Get(slot PersonaSlot) Persona {
	return p[slot]
}

// IDs returns both persona IDs, PersonaOne first.
func (p PersonaPair) IDs() []string {
	return []string{p[PersonaOne].ID, p[PersonaTwo].ID}
}

// DefaultPersonas returns the built-in persona pair.
func DefaultPersonas() PersonaPair {
	return PersonaPair{
		{ID: "ai_character_1", Name: "AI Character 1"},
		{ID: "ai_character_2", Name: "AI Character 2"},
	}
}
