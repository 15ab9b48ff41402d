// Package llm talks to language-model backends. Every backend is reached
// through Provider; callers never see a vendor SDK type.
package llm

import "context"

// Provider is the core abstraction for LLM interaction.
type Provider interface {
	// Generate sends a prompt and returns the model's text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Messages is the conversation; the appliance only ever sends one user turn.
	Messages []Message

	MaxTokens int

	// Temperature controls randomness. Zero leaves the backend default.
	Temperature float64
}

// UserPrompt builds the common single-turn request.
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response holds the LLM's output.
type Response struct {
	Text  string
	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Pinger is implemented by providers that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type unwrapper interface {
	Unwrap() Provider
}

// Ping probes the first Pinger found through any decorators. Providers with
// no probe report nil.
func Ping(ctx context.Context, p Provider) error {
	for p != nil {
		if pg, ok := p.(Pinger); ok {
			return pg.Ping(ctx)
		}
		u, ok := p.(unwrapper)
		if !ok {
			return nil
		}
		p = u.Unwrap()
	}
	return nil
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
