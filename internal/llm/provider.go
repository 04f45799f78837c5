// Package llm is the text-completion layer used to generate exam
// questions: provider adapters, typed transport errors and the retry,
// timeout and audit-logging decorators.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider sends a prompt to a generation model and returns its text.
type Provider interface {
	// Generate runs one completion. A response cut off by MaxTokens is
	// returned as *ErrMaxTokensExceeded, and an empty completion as
	// *ErrInvalidResponse.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Named is implemented by providers that can report their backend name
// ("anthropic", "openai", ...). Decorators forward it.
type Named interface {
	Name() string
}

// ProviderName returns p's backend name, or its model ID when p does not
// implement Named.
func ProviderName(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return p.ModelID()
}

// Request is one completion request.
type Request struct {
	// System sets the model's role and output rules.
	System string

	// Messages is the conversation. Exam generation sends a single user
	// message carrying the context and the instruction.
	Messages []Message

	// MaxTokens caps the completion length.
	MaxTokens int

	// Temperature controls randomness, 0.0 to 1.0. Zero leaves the
	// provider default.
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason is the normalized reason a completion ended.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
)

// Response is a finished completion.
type Response struct {
	// Text is the model output, untouched.
	Text string

	Usage Usage

	// Model is the model that served the request, which may differ from
	// the configured alias.
	Model string

	StopReason StopReason
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// finish turns a raw completion into a Response, rejecting truncated and
// empty output.
func finish(provider, text string, usage Usage, model string, stop StopReason, maxTokens int) (*Response, error) {
	if stop == StopMaxTokens {
		return nil, &ErrMaxTokensExceeded{Partial: text, MaxTokens: maxTokens}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ErrInvalidResponse{Text: text, Err: fmt.Errorf("%s returned an empty completion", provider)}
	}
	return &Response{Text: text, Usage: usage, Model: model, StopReason: stop}, nil
}
