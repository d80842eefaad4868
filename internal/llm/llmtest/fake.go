// Package llmtest provides a scripted llm.Client.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/capitalize-ai/persona-chat/internal/llm"
)

// Fake answers completions with Respond and records every request.
type Fake struct {
	mu sync.Mutex

	// Respond builds the reply for the n-th call (1-based). The default
	// replies "  reply N to: <prompt>  " so tests can check trimming.
	Respond func(n int, req *llm.CompletionRequest) (string, error)

	// BeforeComplete runs at the start of every call.
	BeforeComplete func(n int)

	Requests []llm.CompletionRequest
}

// Name implements llm.Client.
func (f *Fake) Name() string { return "fake" }

// Complete implements llm.Client.
func (f *Fake) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, *req)
	n := len(f.Requests)
	respond := f.Respond
	before := f.BeforeComplete
	f.mu.Unlock()

	if before != nil {
		before(n)
	}
	if respond == nil {
		respond = EchoReply
	}

	text, err := respond(n, req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: text, Model: "fake-model", TokensIn: 1, TokensOut: 1}, nil
}

// Prompts returns the user-role content of every request in order.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.Requests))
	for _, req := range f.Requests {
		for _, msg := range req.Messages {
			if msg.Role == llm.RoleUser {
				out = append(out, msg.Content)
			}
		}
	}
	return out
}

// EchoReply is the default Respond function.
func EchoReply(n int, req *llm.CompletionRequest) (string, error) {
	last := req.Messages[len(req.Messages)-1].Content
	return fmt.Sprintf("  reply %d to: %s  ", n, last), nil
}
