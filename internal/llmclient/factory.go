package llmclient

import (
	"context"
	"fmt"

	"ragmux/internal/config"
	"ragmux/internal/llmclient/providers/anthropicprov"
	"ragmux/internal/llmclient/providers/googleprov"
	"ragmux/internal/llmclient/providers/openaiprov"
)

// Build constructs the Client for the configured provider.
func Build(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return New(openaiprov.New(cfg.OpenAI)), nil
	case "anthropic":
		return New(anthropicprov.New(cfg.Anthropic)), nil
	case "google":
		p, err := googleprov.New(ctx, cfg.Google)
		if err != nil {
			return nil, fmt.Errorf("init google provider: %w", err)
		}
		return New(p), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
