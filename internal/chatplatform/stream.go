package chatplatform

import (
	"context"
	"errors"
	"fmt"
	"time"

	stream "github.com/GetStream/stream-chat-go/v6"

	"github.com/capitalize-ai/persona-chat/pkg/metrics"
)

// StreamPlatform implements Platform on top of Stream Chat.
type StreamPlatform struct {
	client   *stream.Client
	tokenTTL time.Duration
}

// NewStreamPlatform creates a Stream Chat backed platform. A zero tokenTTL
// issues tokens without expiry.
func NewStreamPlatform(apiKey, apiSecret string, tokenTTL time.Duration) (*StreamPlatform, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("Stream API key and secret are required")
	}

	client, err := stream.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream client: %w", err)
	}

	return &StreamPlatform{client: client, tokenTTL: tokenTTL}, nil
}

// UpsertUsers creates or updates users in one call.
func (p *StreamPlatform) UpsertUsers(ctx context.Context, users ...User) error {
	if len(users) == 0 {
		return nil
	}

	payload := make([]*stream.User, len(users))
	for i, u := range users {
		payload[i] = &stream.User{ID: u.ID, Name: u.Name, Image: u.Image}
	}

	_, err := p.client.UpsertUsers(ctx, payload...)
	metrics.RecordPlatformCall("upsert_users", err)
	if err != nil {
		return fmt.Errorf("failed to upsert users: %w", err)
	}
	return nil
}

// CreateToken issues a user token signed with the API secret.
func (p *StreamPlatform) CreateToken(userID string) (string, error) {
	var expire time.Time
	if p.tokenTTL > 0 {
		expire = time.Now().Add(p.tokenTTL)
	}

	token, err := p.client.CreateToken(userID, expire)
	metrics.RecordPlatformCall("create_token", err)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

// EnsureChannel relies on Stream's get-or-create semantics for channel
// creation, then adds any requested member the existing channel lacks.
func (p *StreamPlatform) EnsureChannel(ctx context.Context, channelType, channelID, creatorID string, members []string) (*Channel, error) {
	resp, err := p.client.CreateChannel(ctx, channelType, channelID, creatorID, &stream.ChannelRequest{
		Members: members,
	})
	metrics.RecordPlatformCall("create_channel", err)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %s: %w", channelID, err)
	}

	ch := resp.Channel
	current := make([]string, 0, len(ch.Members))
	for _, m := range ch.Members {
		if m != nil {
			current = append(current, m.UserID)
		}
	}

	if missing := MissingMembers(current, members); len(missing) > 0 {
		_, err := ch.AddMembers(ctx, missing)
		metrics.RecordPlatformCall("add_members", err)
		if err != nil {
			return nil, fmt.Errorf("failed to add members to channel %s: %w", channelID, err)
		}
		current = append(current, missing...)
	}

	return &Channel{Type: channelType, ID: channelID, Members: current}, nil
}

// SendMessage posts a text message on behalf of authorID.
func (p *StreamPlatform) SendMessage(ctx context.Context, channelType, channelID, authorID, text string) (*SentMessage, error) {
	ch := p.client.Channel(channelType, channelID)

	resp, err := ch.SendMessage(ctx, &stream.Message{Text: text}, authorID)
	metrics.RecordPlatformCall("send_message", err)
	if err != nil {
		return nil, fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}

	sent := &SentMessage{}
	if resp.Message != nil {
		sent.ID = resp.Message.ID
	}
	return sent, nil
}
