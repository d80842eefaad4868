package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/persona-chat/internal/model"
)

const (
	// StreamName is the name of the run events stream.
	StreamName = "CONVERSATION_RUNS"

	// SubjectPrefix is the prefix for all run event subjects.
	SubjectPrefix = "runs"

	// replayBatch is the page size of a replay fetch. Replay keeps
	// fetching until a page comes back short.
	replayBatch = 100
)

// ErrInvalidRunID is returned for run ids that are not a single subject token.
var ErrInvalidRunID = errors.New("nats: invalid run id")

// ValidateRunID rejects ids that are empty or would widen a subject filter.
func ValidateRunID(runID string) error {
	if runID == "" || strings.ContainsAny(runID, ".*> \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the run events stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Conversation run lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a run event. Event types contain a dot
// so they span the last two tokens.
func EventSubject(runID string, eventType model.RunEventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, runID, eventType)
}

// RunFilter returns the filter subject for all events of a run.
func RunFilter(runID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, runID)
}

// PublishRunEvent publishes a run event to JetStream.
func (m *StreamManager) PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error) {
	if err := ValidateRunID(event.RunID); err != nil {
		return 0, err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.RunID, event.Type), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// GetRunEvents replays every event recorded for a run in publication order.
func (m *StreamManager) GetRunEvents(ctx context.Context, runID string) ([]model.RunEvent, uint64, error) {
	if err := ValidateRunID(runID); err != nil {
		return nil, 0, err
	}

	js := m.client.JetStream()

	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{RunFilter(runID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create consumer: %w", err)
	}

	return drainReplay(ctx, replayBatch, func(size int) ([]model.RunEvent, int, error) {
		batch, err := consumer.Fetch(size, jetstream.FetchMaxWait(time.Second))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
		}

		var events []model.RunEvent
		received := 0
		for msg := range batch.Messages() {
			received++

			var event model.RunEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				continue
			}
			if meta, err := msg.Metadata(); err == nil {
				event.Sequence = meta.Sequence.Stream
			}
			events = append(events, event)
		}

		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("batch error: %w", err)
		}
		return events, received, nil
	})
}

// fetchPage fetches up to size messages and returns the decoded events and
// the number of messages received, undecodable ones included.
type fetchPage func(size int) ([]model.RunEvent, int, error)

// drainReplay fetches pages until one comes back short.
func drainReplay(ctx context.Context, size int, fetch fetchPage) ([]model.RunEvent, uint64, error) {
	var events []model.RunEvent
	var lastSequence uint64

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		page, received, err := fetch(size)
		if err != nil {
			return nil, 0, err
		}
		for _, event := range page {
			if event.Sequence > lastSequence {
				lastSequence = event.Sequence
			}
		}
		events = append(events, page...)

		if received < size {
			return events, lastSequence, nil
		}
	}
}
