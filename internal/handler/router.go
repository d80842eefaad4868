package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/persona-chat/internal/middleware"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
)

// ScopeProvision is required, when auth is enabled, to create users and
// channels.
const ScopeProvision = "chat:provision"

// RouterConfig carries the HTTP policy knobs.
type RouterConfig struct {
	AllowedOrigins    []string
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter wires every endpoint onto a chi router.
func NewRouter(cfg RouterConfig, chat *ChatHandler, runs *RunHandler, health *HealthHandler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", chat.Home)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.With(middleware.RequireScope(cfg.JWTSecret, ScopeProvision)).Post("/create_user", chat.CreateUser)
		r.With(middleware.RequireScope(cfg.JWTSecret, ScopeProvision)).Post("/create_chat", chat.CreateChat)
		r.Post("/ai_chat", chat.AIChat)

		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", runs.Get)
			r.Get("/events", runs.Events)
		})
	})

	return r
}
