// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-chat/internal/chatplatform"
	"github.com/capitalize-ai/persona-chat/internal/config"
	"github.com/capitalize-ai/persona-chat/internal/handler"
	"github.com/capitalize-ai/persona-chat/internal/llm"
	natsclient "github.com/capitalize-ai/persona-chat/internal/nats"
	"github.com/capitalize-ai/persona-chat/internal/paramstore"
	"github.com/capitalize-ai/persona-chat/internal/runstore"
	"github.com/capitalize-ai/persona-chat/internal/service"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
	"github.com/capitalize-ai/persona-chat/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()

	// Resolve secrets from SSM when a prefix is configured
	if cfg.SSMParamPrefix != "" {
		params, err := paramstore.NewFromEnvironment(ctx)
		if err != nil {
			log.Fatal("failed to create parameter store client", zap.Error(err))
		}
		if err := cfg.ResolveSecrets(ctx, params, cfg.SSMParamPrefix); err != nil {
			log.Fatal("failed to resolve secrets", zap.Error(err))
		}
	}

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "persona-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	personas, err := config.LoadPersonas(cfg.PersonasFile)
	if err != nil {
		log.Fatal("failed to load personas", zap.Error(err))
	}

	platform, err := chatplatform.NewStreamPlatform(cfg.StreamAPIKey, cfg.StreamAPISecret, cfg.StreamTokenTTL)
	if err != nil {
		log.Fatal("failed to create Stream Chat client", zap.Error(err))
	}

	// Initialize LLM client
	llmOpts := llm.Options{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}
	if llm.Provider(cfg.LLMProvider) == llm.ProviderAnthropic {
		llmOpts = llm.Options{APIKey: cfg.AnthropicAPIKey}
	}
	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), llmOpts)
	if err != nil {
		log.Fatal("failed to create LLM client", zap.String("provider", cfg.LLMProvider), zap.Error(err))
	}

	checks := map[string]handler.Check{}

	// Run store
	var runs runstore.Store = runstore.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisStore, err := runstore.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RunTTL)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisStore.Close()
		runs = redisStore
		checks["redis"] = redisStore.Ping
	}

	// Run event log
	var (
		publisher service.EventPublisher
		eventLog  handler.RunEventSource
	)
	if cfg.NATSURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err := natsclient.Connect(dialCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		cancel()
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = streamManager
		eventLog = streamManager
		checks["nats"] = natsClient.Ping
	}

	// Initialize services
	conversationSvc := service.NewConversationService(platform, llmClient, runs, publisher, service.ConversationConfig{
		TurnCount:   cfg.TurnCount,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		CallTimeout: cfg.CallTimeout,
		RunTimeout:  cfg.RunTimeout,
		Personas:    personas,
	}, log)
	provisioningSvc := service.NewProvisioningService(platform, log)

	// Initialize handlers
	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	},
		handler.NewChatHandler(provisioningSvc, conversationSvc, log),
		handler.NewRunHandler(conversationSvc, eventLog, log),
		handler.NewHealthHandler(checks),
		log,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening",
			zap.String("port", cfg.ServerPort),
			zap.String("llm_provider", llmClient.Name()),
			zap.Int("turn_count", cfg.TurnCount),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
