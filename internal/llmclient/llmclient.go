// Package llmclient is the single chokepoint every other package uses to
// talk to a language model. It wraps three pluggable Provider
// implementations (Anthropic, OpenAI-compatible, Google Gemini) behind
// shared Message/Request/Response types. Client itself only delegates to
// the provider and measures latency; it opens no span, logs nothing and
// records no debug traces.
package llmclient

import (
	"context"
	"time"
)

// Message is one turn of a chat-style conversation sent to a provider.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Request is one generation call. ResponseJSON, when true, asks the
// provider for a strict JSON object (used by the classifier, quality
// controller, and metacognition packages).
type Request struct {
	Model        string
	System       string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	ResponseJSON bool
}

// Response is one provider completion.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Provider is one concrete LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Client is the chokepoint every package depends on instead of a Provider
// directly, so call-site code never branches on which backend is active.
type Client struct {
	provider Provider
}

// New wraps a Provider.
func New(p Provider) *Client {
	return &Client{provider: p}
}

// Generate delegates to the configured provider.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	resp.Latency = time.Since(start)
	return resp, nil
}

// ProviderName reports which backend this Client is wired to, for logging.
func (c *Client) ProviderName() string {
	return c.provider.Name()
}
