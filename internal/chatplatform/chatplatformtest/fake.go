// Package chatplatformtest provides an in-memory chatplatform.Platform.
package chatplatformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/capitalize-ai/persona-chat/internal/chatplatform"
)

// Message is a message recorded by Fake.
type Message struct {
	ChannelType string
	ChannelID   string
	AuthorID    string
	Text        string
}

// Fake records every call and keeps users and channels in memory.
type Fake struct {
	mu sync.Mutex

	Users    map[string]chatplatform.User
	Channels map[string]*chatplatform.Channel
	Creators map[string]string
	Messages []Message
	Tokens   int

	UpsertErr  error
	TokenErr   error
	ChannelErr error
	// SendErr fails the FailSendAt-th send (1-based); zero fails every send.
	SendErr    error
	FailSendAt int

	UpsertCalls  int
	ChannelCalls int
	sendCalls    int
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		Users:    make(map[string]chatplatform.User),
		Channels: make(map[string]*chatplatform.Channel),
		Creators: make(map[string]string),
	}
}

// UpsertUsers implements chatplatform.Platform.
func (f *Fake) UpsertUsers(_ context.Context, users ...chatplatform.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.UpsertCalls++
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	for _, u := range users {
		f.Users[u.ID] = u
	}
	return nil
}

// CreateToken implements chatplatform.Platform.
func (f *Fake) CreateToken(userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.TokenErr != nil {
		return "", f.TokenErr
	}
	f.Tokens++
	return fmt.Sprintf("token-%s-%d", userID, f.Tokens), nil
}

// EnsureChannel implements chatplatform.Platform with get-or-create and
// member reconciliation semantics.
func (f *Fake) EnsureChannel(_ context.Context, channelType, channelID, creatorID string, members []string) (*chatplatform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ChannelCalls++
	if f.ChannelErr != nil {
		return nil, f.ChannelErr
	}

	key := channelType + ":" + channelID
	ch, ok := f.Channels[key]
	if !ok {
		ch = &chatplatform.Channel{Type: channelType, ID: channelID}
		f.Channels[key] = ch
		f.Creators[key] = creatorID
	}
	ch.Members = append(ch.Members, chatplatform.MissingMembers(ch.Members, members)...)

	cp := *ch
	cp.Members = append([]string(nil), ch.Members...)
	return &cp, nil
}

// SendMessage implements chatplatform.Platform.
func (f *Fake) SendMessage(_ context.Context, channelType, channelID, authorID, text string) (*chatplatform.SentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sendCalls++
	if f.SendErr != nil && (f.FailSendAt == 0 || f.FailSendAt == f.sendCalls) {
		return nil, f.SendErr
	}

	f.Messages = append(f.Messages, Message{
		ChannelType: channelType,
		ChannelID:   channelID,
		AuthorID:    authorID,
		Text:        text,
	})
	return &chatplatform.SentMessage{ID: fmt.Sprintf("msg-%d", len(f.Messages))}, nil
}

// Channel returns a recorded channel or nil.
func (f *Fake) Channel(channelType, channelID string) *chatplatform.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Channels[channelType+":"+channelID]
}

// Authors returns the author of every delivered message in order.
func (f *Fake) Authors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.Messages))
	for i, m := range f.Messages {
		out[i] = m.AuthorID
	}
	return out
}

// Texts returns the text of every delivered message in order.
func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.Messages))
	for i, m := range f.Messages {
		out[i] = m.Text
	}
	return out
}
