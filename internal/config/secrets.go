package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/persona-chat/internal/paramstore"
)

// SecretGetter fetches a named secret.
type SecretGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ResolveSecrets fills empty credential fields from parameters stored under
// prefix. Values already present in the environment win; absent parameters
// are skipped.
func (c *Config) ResolveSecrets(ctx context.Context, getter SecretGetter, prefix string) error {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil
	}

	fields := []struct {
		name string
		dst  *string
	}{
		{"stream-api-key", &c.StreamAPIKey},
		{"stream-api-secret", &c.StreamAPISecret},
		{"openai-api-key", &c.OpenAIAPIKey},
		{"anthropic-api-key", &c.AnthropicAPIKey},
		{"jwt-secret", &c.JWTSecret},
		{"redis-password", &c.RedisPassword},
		{"nats-token", &c.NATSToken},
	}

	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		value, err := getter.GetParameter(ctx, prefix+"/"+f.name)
		if errors.Is(err, paramstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f.name, err)
		}
		*f.dst = strings.TrimSpace(value)
	}

	return nil
}
