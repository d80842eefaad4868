// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/persona-chat/internal/llm"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSAllowedOrigins []string

	// Chat platform settings
	StreamAPIKey    string
	StreamAPISecret string
	StreamTokenTTL  time.Duration

	// LLM settings
	LLMProvider     string
	LLMModel        string
	LLMMaxTokens    int
	LLMTemperature  float64
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string

	// Conversation settings
	TurnCount    int
	CallTimeout  time.Duration
	RunTimeout   time.Duration
	PersonasFile string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Redis settings
	RedisURL      string
	RedisPassword string
	RunTTL        time.Duration

	// Secrets
	SSMParamPrefix string

	// JWT settings, auth is disabled when the secret is empty
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 6*time.Minute),
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Stream
		StreamAPIKey:    getEnv("STREAM_API_KEY", getEnv("REACT_APP_STREAM_API_KEY", "")),
		StreamAPISecret: getEnv("STREAM_API_SECRET", ""),
		StreamTokenTTL:  getDurationEnv("STREAM_TOKEN_TTL", 0),

		// LLM
		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		LLMModel:        getEnv("LLM_MODEL", ""),
		LLMMaxTokens:    getIntEnv("LLM_MAX_TOKENS", 150),
		LLMTemperature:  getFloatEnv("LLM_TEMPERATURE", 0.7),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		// Conversation
		TurnCount:    getIntEnv("TURN_COUNT", 5),
		CallTimeout:  getDurationEnv("CALL_TIMEOUT", 30*time.Second),
		RunTimeout:   getDurationEnv("RUN_TIMEOUT", 5*time.Minute),
		PersonasFile: getEnv("PERSONAS_FILE", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Redis
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RunTTL:        getDurationEnv("RUN_TTL", 24*time.Hour),

		// Secrets
		SSMParamPrefix: getEnv("SSM_PARAM_PREFIX", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	if cfg.LLMModel == "" {
		cfg.LLMModel = llm.DefaultModel(llm.Provider(cfg.LLMProvider))
	}

	return cfg
}

// writeTimeoutSlack covers response encoding and snapshot bookkeeping after
// the last turn.
const writeTimeoutSlack = 15 * time.Second

// WriteTimeout returns the HTTP write timeout. An /ai_chat response can only
// be written after the run deadline plus one in-flight turn (a completion
// and a send, each bounded by CallTimeout), so the configured value is raised
// to cover that. A zero RunTimeout leaves runs unbounded and disables the
// write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.RunTimeout <= 0 {
		return 0
	}
	needed := c.RunTimeout + 2*c.CallTimeout + writeTimeoutSlack
	if c.ServerWriteTimeout <= 0 || c.ServerWriteTimeout >= needed {
		return c.ServerWriteTimeout
	}
	return needed
}


func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
