// Package anthropicprov adapts the anthropics/anthropic-sdk-go client to
// the llmclient.Provider interface: option.WithAPIKey/WithBaseURL setup,
// per-call error/debug logging (model and duration, never the prompt)
// via internal/observability; no span is opened here.
package anthropicprov

import (
	"context"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"ragmux/internal/config"
	"ragmux/internal/llmclient"
	"ragmux/internal/observability"
)

const defaultMaxTokens int64 = 2048

// Provider is the Anthropic Messages API backend.
type Provider struct {
	sdk   anthropic.Client
	model string
}

// New builds a Provider from the Anthropic section of config.LLMConfig.
func New(cfg config.ProviderConfig) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	return &Provider{sdk: anthropic.NewClient(opts...), model: model}
}

func (p *Provider) Name() string { return "anthropic" }

// Generate sends one request to the Messages API.
func (p *Provider) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	system := req.System
	if req.ResponseJSON {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and no surrounding prose.")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	logger := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := p.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("anthropic_generate_error")
		return llmclient.Response{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	log.Debug().Str("model", model).Dur("duration", dur).Msg("anthropic_generate_ok")

	return llmclient.Response{
		Content:      text.String(),
		Model:        model,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}
