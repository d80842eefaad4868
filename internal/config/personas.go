package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/persona-chat/internal/model"
)

type personasFile struct {
	Personas []model.Persona `yaml:"personas"`
}

// LoadPersonas reads the persona pair from a YAML file. An empty path yields
// the built-in defaults.
//
//	personas:
//	  - id: ai_character_1
//	    name: AI Character 1
//	  - id: ai_character_2
//	    name: AI Character 2
func LoadPersonas(path string) (model.PersonaPair, error) {
	if path == "" {
		return model.DefaultPersonas(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.PersonaPair{}, fmt.Errorf("failed to read personas file: %w", err)
	}

	return ParsePersonas(data)
}

// ParsePersonas decodes a YAML persona definition.
func ParsePersonas(data []byte) (model.PersonaPair, error) {
	var f personasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.PersonaPair{}, fmt.Errorf("failed to parse personas: %w", err)
	}

	if len(f.Personas) != 2 {
		return model.PersonaPair{}, fmt.Errorf("expected exactly 2 personas, got %d", len(f.Personas))
	}
	for _, p := range f.Personas {
		if p.ID == "" {
			return model.PersonaPair{}, errors.New("persona id is required")
		}
		if p.Name == "" {
			return model.PersonaPair{}, fmt.Errorf("persona %q has no name", p.ID)
		}
	}
	if f.Personas[0].ID == f.Personas[1].ID {
		return model.PersonaPair{}, fmt.Errorf("persona ids must differ, both are %q", f.Personas[0].ID)
	}

	return model.PersonaPair{f.Personas[0], f.Personas[1]}, nil
}
