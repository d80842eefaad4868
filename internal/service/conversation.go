// Package service provides business logic for the persona chat broker.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-chat/internal/chatplatform"
	"github.com/capitalize-ai/persona-chat/internal/llm"
	"github.com/capitalize-ai/persona-chat/internal/model"
	"github.com/capitalize-ai/persona-chat/internal/runstore"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
	"github.com/capitalize-ai/persona-chat/pkg/metrics"
	"github.com/capitalize-ai/persona-chat/pkg/tracing"
)

const (
	// DefaultPrompt seeds a run when the caller supplies none.
	DefaultPrompt = "Hello, how are you?"

	// SystemInstruction is sent ahead of every turn prompt.
	SystemInstruction = "You are a character engaging in a conversation."
)

// EventPublisher receives run lifecycle events.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error)
}

// ConversationConfig holds the run policy.
type ConversationConfig struct {
	TurnCount   int
	Model       string
	MaxTokens   int
	Temperature float64
	CallTimeout time.Duration
	RunTimeout  time.Duration
	Personas    model.PersonaPair
}

// ConversationService runs scripted exchanges between two personas.
type ConversationService struct {
	platform chatplatform.Platform
	llm      llm.Client
	runs     runstore.Store
	events   EventPublisher
	cfg      ConversationConfig
	logger   *logger.Logger
}

// NewConversationService creates a new conversation service. events may be
// nil when no event log is configured; a nil log uses the global logger.
func NewConversationService(
	platform chatplatform.Platform,
	llmClient llm.Client,
	runs runstore.Store,
	events EventPublisher,
	cfg ConversationConfig,
	log *logger.Logger,
) *ConversationService {
	if cfg.TurnCount < 0 {
		cfg.TurnCount = 0
	}
	if cfg.Personas == (model.PersonaPair{}) {
		cfg.Personas = model.DefaultPersonas()
	}
	if runs == nil {
		runs = runstore.NewMemoryStore()
	}
	if log == nil {
		log = logger.Global()
	}
	return &ConversationService{
		platform: platform,
		llm:      llmClient,
		runs:     runs,
		events:   events,
		cfg:      cfg,
		logger:   log,
	}
}

// GetRun returns the latest snapshot of a run.
func (s *ConversationService) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return s.runs.Get(ctx, runID)
}

// RunConversation registers both personas, ensures the channel and then
// alternates TurnCount turns between them, starting with PersonaOne. The
// returned run is non-nil once validation passes, also on failure, so callers
// can report partial progress.
func (s *ConversationService) RunConversation(ctx context.Context, channelID, prompt string) (*model.Run, error) {
	if err := chatplatform.ValidateID("channel_id", channelID); err != nil {
		return nil, newError(ErrorValidation, err.Error(), 0, nil)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}

	run := &model.Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ChannelID: channelID,
		Status:    model.RunStatusRunning,
		TurnCount: s.cfg.TurnCount,
		Turns:     []model.Turn{},
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.WithRun(run.ID, channelID)

	ctx, span := tracing.Tracer().Start(ctx, "conversation.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("channel.id", channelID),
		attribute.Int("run.turn_count", s.cfg.TurnCount),
	))
	defer span.End()

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	s.record(ctx, log, run, &model.RunEvent{Type: model.RunEventStarted, Text: prompt})
	log.Info("conversation run started", zap.Int("turn_count", s.cfg.TurnCount))

	if svcErr := s.execute(ctx, log, run, prompt); svcErr != nil {
		span.RecordError(svcErr)
		span.SetStatus(codes.Error, string(svcErr.Code))
		s.finish(ctx, log, run, svcErr)
		return run, svcErr
	}

	s.finish(ctx, log, run, nil)
	return run, nil
}

func (s *ConversationService) execute(ctx context.Context, log *logger.Logger, run *model.Run, prompt string) *Error {
	personas := s.cfg.Personas
	one, two := personas.Get(model.PersonaOne), personas.Get(model.PersonaTwo)

	callCtx, cancel := s.withCallTimeout(ctx)
	err := s.platform.UpsertUsers(callCtx,
		chatplatform.User{ID: one.ID, Name: one.Name, Image: one.Image},
		chatplatform.User{ID: two.ID, Name: two.Name, Image: two.Image},
	)
	cancel()
	if err != nil {
		return classify(ErrorDelivery, "failed to register personas", 0, err)
	}

	callCtx, cancel = s.withCallTimeout(ctx)
	_, err = s.platform.EnsureChannel(callCtx, chatplatform.ChannelTypeMessaging, run.ChannelID, one.ID, personas.IDs())
	cancel()
	if err != nil {
		return classify(ErrorDelivery, "failed to ensure channel", 0, err)
	}

	speaker := model.PersonaOne
	current := prompt

	for i := 1; i <= s.cfg.TurnCount; i++ {
		// Turns are atomic: stop only at a turn boundary.
		if err := ctx.Err(); err != nil {
			return newError(ErrorUpstreamUnavailable, "run stopped between turns", i, err)
		}

		turn, turnErr := s.takeTurn(ctx, run.ChannelID, i, speaker, current)
		if turnErr != nil {
			return turnErr
		}

		run.Turns = append(run.Turns, *turn)
		run.TurnsCompleted = i
		s.record(ctx, log, run, &model.RunEvent{
			Type:      model.RunEventTurnCompleted,
			Turn:      i,
			SpeakerID: turn.SpeakerID,
			Text:      turn.Response,
		})
		log.Debug("turn delivered", zap.Int("turn", i), zap.String("speaker", turn.SpeakerID))

		speaker = speaker.Other()
		current = turn.Response
	}

	return nil
}

// takeTurn generates and delivers one message. It runs detached from the
// caller's cancellation so a started turn is never cut in half; each call is
// still bounded by the call timeout.
func (s *ConversationService) takeTurn(ctx context.Context, channelID string, index int, speaker model.PersonaSlot, prompt string) (*model.Turn, *Error) {
	persona := s.cfg.Personas.Get(speaker)

	ctx, span := tracing.Tracer().Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.Int("turn.index", index),
		attribute.String("turn.speaker", persona.ID),
	))
	defer span.End()

	turnCtx := context.WithoutCancel(ctx)

	callCtx, cancel := s.withCallTimeout(turnCtx)
	start := time.Now()
	resp, err := s.llm.Complete(callCtx, &llm.CompletionRequest{
		Model: s.cfg.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: SystemInstruction},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	cancel()

	if err != nil {
		metrics.RecordCompletion(s.llm.Name(), "", "error", time.Since(start).Seconds(), 0, 0)
		span.RecordError(err)
		return nil, classify(ErrorGeneration, "completion failed", index, err)
	}
	metrics.RecordCompletion(s.llm.Name(), resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, newError(ErrorGeneration, "completion returned no text", index, nil)
	}

	callCtx, cancel = s.withCallTimeout(turnCtx)
	sent, err := s.platform.SendMessage(callCtx, chatplatform.ChannelTypeMessaging, channelID, persona.ID, text)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, classify(ErrorDelivery, "failed to send message", index, err)
	}

	metrics.TurnsTotal.WithLabelValues(speaker.String()).Inc()

	turn := &model.Turn{
		Index:     index,
		Speaker:   speaker,
		SpeakerID: persona.ID,
		Prompt:    prompt,
		Response:  text,
	}
	if sent != nil {
		turn.MessageID = sent.ID
	}
	return turn, nil
}

func (s *ConversationService) finish(ctx context.Context, log *logger.Logger, run *model.Run, runErr *Error) {
	now := time.Now().UTC()
	run.FinishedAt = &now

	if runErr == nil {
		run.Status = model.RunStatusCompleted
		s.record(ctx, log, run, &model.RunEvent{Type: model.RunEventCompleted, Turn: run.TurnsCompleted})
		metrics.RecordRun(string(run.Status), "")
		log.Info("conversation run completed",
			zap.Int("turns", run.TurnsCompleted),
			zap.Duration("duration", now.Sub(run.StartedAt)),
		)
		return
	}

	run.Status = model.RunStatusFailed
	run.ErrorCode = string(runErr.Code)
	run.Error = runErr.Error()
	s.record(ctx, log, run, &model.RunEvent{
		Type:   model.RunEventFailed,
		Turn:   runErr.Turn,
		Reason: run.Error,
	})
	metrics.RecordRun(string(run.Status), run.ErrorCode)
	log.Warn("conversation run failed",
		zap.String("code", run.ErrorCode),
		zap.Int("turn", runErr.Turn),
		zap.Int("turns_completed", run.TurnsCompleted),
		zap.Error(runErr),
	)
}

// record saves the run snapshot and publishes event. Bookkeeping failures are
// logged and never fail the run.
func (s *ConversationService) record(ctx context.Context, log *logger.Logger, run *model.Run, event *model.RunEvent) {
	ctx = context.WithoutCancel(ctx)

	if err := s.runs.Save(ctx, run); err != nil {
		log.Warn("failed to save run snapshot", zap.Error(err))
	}

	if s.events == nil {
		return
	}

	event.ID = uuid.Must(uuid.NewV7()).String()
	event.RunID = run.ID
	event.ChannelID = run.ChannelID
	event.CreatedAt = time.Now().UTC()

	if _, err := s.events.PublishRunEvent(ctx, event); err != nil {
		log.Warn("failed to publish run event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func (s *ConversationService) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}
