package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/persona-chat/internal/chatplatform"
	"github.com/capitalize-ai/persona-chat/internal/chatplatform/chatplatformtest"
	"github.com/capitalize-ai/persona-chat/internal/llm"
	"github.com/capitalize-ai/persona-chat/internal/llm/llmtest"
	"github.com/capitalize-ai/persona-chat/internal/model"
	"github.com/capitalize-ai/persona-chat/internal/runstore"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
)

const (
	p1 = "ai_character_1"
	p2 = "ai_character_2"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.RunEvent
	err    error
}

func (p *recordingPublisher) PublishRunEvent(_ context.Context, event *model.RunEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return uint64(len(p.events)), p.err
}

func (p *recordingPublisher) types() []model.RunEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.RunEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	platform *chatplatformtest.Fake
	llm      *llmtest.Fake
	runs     *runstore.MemoryStore
	events   *recordingPublisher
	svc      *ConversationService
}

func newFixture(t *testing.T, turns int) *fixture {
	t.Helper()
	f := &fixture{
		platform: chatplatformtest.New(),
		llm:      &llmtest.Fake{},
		runs:     runstore.NewMemoryStore(),
		events:   &recordingPublisher{},
	}
	f.svc = NewConversationService(f.platform, f.llm, f.runs, f.events, ConversationConfig{
		TurnCount:   turns,
		Model:       "gpt-4",
		MaxTokens:   150,
		Temperature: 0.7,
	}, logger.NewNop())
	return f
}

func requireCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	require.Error(t, err)
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr), "expected *service.Error, got %T", err)
	require.Equal(t, code, svcErr.Code, "error: %v", err)
	return svcErr
}

func TestRunConversationAlternatesSpeakers(t *testing.T) {
	f := newFixture(t, 5)

	run, err := f.svc.RunConversation(context.Background(), "c1", "Tell me a joke")
	require.NoError(t, err)

	assert.Equal(t, []string{p1, p2, p1, p2, p1}, f.platform.Authors())
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 5, run.TurnsCompleted)
	require.Len(t, run.Turns, 5)
	for i, turn := range run.Turns {
		assert.Equal(t, i+1, turn.Index)
		assert.Equal(t, fmt.Sprintf("msg-%d", i+1), turn.MessageID)
	}
}

func TestRunConversationChainsTrimmedResponses(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.RunConversation(context.Background(), "c1", "Tell me a joke")
	require.NoError(t, err)

	prompts := f.llm.Prompts()
	texts := f.platform.Texts()
	require.Len(t, prompts, 5)
	require.Len(t, texts, 5)

	assert.Equal(t, "Tell me a joke", prompts[0])
	for k := 0; k < 4; k++ {
		assert.Equal(t, texts[k], prompts[k+1], "turn %d", k+2)
	}
	assert.Equal(t, "reply 1 to: Tell me a joke", texts[0])
}

func TestRunConversationSendsExactlyTurnCountMessages(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 8} {
		t.Run(fmt.Sprintf("turns=%d", n), func(t *testing.T) {
			f := newFixture(t, n)

			run, err := f.svc.RunConversation(context.Background(), "c1", "")
			require.NoError(t, err)

			assert.Len(t, f.platform.Messages, n)
			assert.Len(t, f.llm.Requests, n)
			assert.Equal(t, n, run.TurnsCompleted)
			assert.Equal(t, 1, f.platform.ChannelCalls)
		})
	}
}

func TestRunConversationFallbackPrompt(t *testing.T) {
	for _, prompt := range []string{"", "   "} {
		f := newFixture(t, 1)

		_, err := f.svc.RunConversation(context.Background(), "c1", prompt)
		require.NoError(t, err)
		assert.Equal(t, []string{DefaultPrompt}, f.llm.Prompts())
	}
}

func TestRunConversationRequestPolicy(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	require.NoError(t, err)

	for _, req := range f.llm.Requests {
		assert.Equal(t, "gpt-4", req.Model)
		assert.Equal(t, 150, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.ChatMessage{Role: llm.RoleSystem, Content: SystemInstruction}, req.Messages[0])
		assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	}
}

func TestRunConversationEnsuresPersonasAndChannel(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	require.NoError(t, err)

	assert.Equal(t, "AI Character 1", f.platform.Users[p1].Name)
	assert.Equal(t, "AI Character 2", f.platform.Users[p2].Name)

	ch := f.platform.Channel(chatplatform.ChannelTypeMessaging, "c1")
	require.NotNil(t, ch)
	assert.ElementsMatch(t, []string{p1, p2}, ch.Members)
	assert.Equal(t, p1, f.platform.Creators["messaging:c1"])
}

func TestRunConversationReconcilesExistingChannel(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.platform.EnsureChannel(context.Background(), chatplatform.ChannelTypeMessaging, "c1", "human", []string{"human", p2})
	require.NoError(t, err)

	_, err = f.svc.RunConversation(context.Background(), "c1", "hi")
	require.NoError(t, err)

	ch := f.platform.Channel(chatplatform.ChannelTypeMessaging, "c1")
	assert.Equal(t, []string{"human", p2, p1}, ch.Members)
	assert.Equal(t, "human", f.platform.Creators["messaging:c1"])
}

func TestRunConversationRepeatedRunsAreIdempotent(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	require.NoError(t, err)
	_, err = f.svc.RunConversation(context.Background(), "c1", "hi again")
	require.NoError(t, err)

	ch := f.platform.Channel(chatplatform.ChannelTypeMessaging, "c1")
	assert.Len(t, ch.Members, 2)
	assert.Len(t, f.platform.Messages, 4)
}

func TestRunConversationGenerationFailureAborts(t *testing.T) {
	f := newFixture(t, 5)
	f.llm.Respond = func(n int, req *llm.CompletionRequest) (string, error) {
		if n == 3 {
			return "", errors.New("model overloaded")
		}
		return llmtest.EchoReply(n, req)
	}

	run, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	svcErr := requireCode(t, err, ErrorGeneration)

	assert.Equal(t, 3, svcErr.Turn)
	assert.Len(t, f.platform.Messages, 2)
	assert.Len(t, f.llm.Requests, 3)

	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, 2, run.TurnsCompleted)
	assert.Equal(t, string(ErrorGeneration), run.ErrorCode)
	assert.NotNil(t, run.FinishedAt)
}

func TestRunConversationEmptyCompletionIsGenerationFailure(t *testing.T) {
	f := newFixture(t, 5)
	f.llm.Respond = func(n int, req *llm.CompletionRequest) (string, error) {
		if n == 2 {
			return " \n\t ", nil
		}
		return llmtest.EchoReply(n, req)
	}

	_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	svcErr := requireCode(t, err, ErrorGeneration)

	assert.Equal(t, 2, svcErr.Turn)
	assert.Len(t, f.platform.Messages, 1)
}

func TestRunConversationDeliveryFailure(t *testing.T) {
	f := newFixture(t, 5)
	f.platform.SendErr = errors.New("channel frozen")
	f.platform.FailSendAt = 2

	run, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	svcErr := requireCode(t, err, ErrorDelivery)

	assert.Equal(t, 2, svcErr.Turn)
	assert.Len(t, f.platform.Messages, 1)
	assert.Len(t, f.llm.Requests, 2)
	assert.Equal(t, 1, run.TurnsCompleted)
}

func TestRunConversationProvisioningFailures(t *testing.T) {
	t.Run("personas", func(t *testing.T) {
		f := newFixture(t, 5)
		f.platform.UpsertErr = errors.New("bad credentials")

		_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
		requireCode(t, err, ErrorDelivery)
		assert.Zero(t, f.platform.ChannelCalls)
		assert.Empty(t, f.llm.Requests)
	})

	t.Run("channel", func(t *testing.T) {
		f := newFixture(t, 5)
		f.platform.ChannelErr = errors.New("forbidden")

		_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
		requireCode(t, err, ErrorDelivery)
		assert.Empty(t, f.llm.Requests)
	})
}

func TestRunConversationTimeoutIsUpstreamUnavailable(t *testing.T) {
	f := newFixture(t, 5)
	f.llm.Respond = func(int, *llm.CompletionRequest) (string, error) {
		return "", fmt.Errorf("post completions: %w", context.DeadlineExceeded)
	}

	_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	requireCode(t, err, ErrorUpstreamUnavailable)
	assert.Empty(t, f.platform.Messages)
}

func TestRunConversationStopsOnlyBetweenTurns(t *testing.T) {
	f := newFixture(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while turn 2 is generating; turn 2 must still be delivered.
	f.llm.BeforeComplete = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	run, err := f.svc.RunConversation(ctx, "c1", "hi")
	svcErr := requireCode(t, err, ErrorUpstreamUnavailable)

	assert.Equal(t, 3, svcErr.Turn)
	assert.Equal(t, []string{p1, p2}, f.platform.Authors())
	assert.Equal(t, 2, run.TurnsCompleted)
}

func TestRunConversationValidatesChannelID(t *testing.T) {
	f := newFixture(t, 5)

	for _, id := range []string{"", "has space", "a.b"} {
		run, err := f.svc.RunConversation(context.Background(), id, "hi")
		requireCode(t, err, ErrorValidation)
		assert.Nil(t, run)
	}
	assert.Zero(t, f.platform.UpsertCalls)
}

func TestRunConversationRecordsSnapshotsAndEvents(t *testing.T) {
	f := newFixture(t, 3)

	run, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	require.NoError(t, err)

	stored, err := f.svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.Len(t, stored.Turns, 3)

	assert.Equal(t, []model.RunEventType{
		model.RunEventStarted,
		model.RunEventTurnCompleted,
		model.RunEventTurnCompleted,
		model.RunEventTurnCompleted,
		model.RunEventCompleted,
	}, f.events.types())
	for _, e := range f.events.events {
		assert.Equal(t, run.ID, e.RunID)
		assert.Equal(t, "c1", e.ChannelID)
	}
}

func TestRunConversationIgnoresEventLogFailures(t *testing.T) {
	f := newFixture(t, 2)
	f.events.err = errors.New("nats down")

	run, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, run.TurnsCompleted)
}

func TestRunConversationFailedEventCarriesTurn(t *testing.T) {
	f := newFixture(t, 5)
	f.llm.Respond = func(n int, req *llm.CompletionRequest) (string, error) {
		if n == 3 {
			return "", errors.New("boom")
		}
		return llmtest.EchoReply(n, req)
	}

	_, err := f.svc.RunConversation(context.Background(), "c1", "hi")
	require.Error(t, err)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, model.RunEventFailed, last.Type)
	assert.Equal(t, 3, last.Turn)
	assert.Contains(t, last.Reason, "boom")
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	f := newFixture(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.RunConversation(context.Background(), fmt.Sprintf("c%d", i), "hi")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.platform.Messages, 12)
	perChannel := map[string][]string{}
	for _, m := range f.platform.Messages {
		perChannel[m.ChannelID] = append(perChannel[m.ChannelID], m.AuthorID)
	}
	for id, authors := range perChannel {
		assert.Equal(t, []string{p1, p2, p1}, authors, "channel %s", id)
	}
}

func TestCustomPersonas(t *testing.T) {
	platform := chatplatformtest.New()
	svc := NewConversationService(platform, &llmtest.Fake{}, nil, nil, ConversationConfig{
		TurnCount: 3,
		Personas: model.PersonaPair{
			{ID: "pirate", Name: "Captain"},
			{ID: "robot", Name: "Unit 7"},
		},
	}, logger.NewNop())

	_, err := svc.RunConversation(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"pirate", "robot", "pirate"}, platform.Authors())
}
