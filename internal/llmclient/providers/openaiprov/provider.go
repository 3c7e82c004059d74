// Package openaiprov adapts the openai/openai-go/v2 client (also usable
// against any OpenAI-compatible self-hosted endpoint via BaseURL) to the
// llmclient.Provider interface: option.WithAPIKey/WithBaseURL setup and
// chat-completions usage.
package openaiprov

import (
	"context"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"

	"ragmux/internal/config"
	"ragmux/internal/llmclient"
	"ragmux/internal/observability"
)

// Provider is the OpenAI-compatible Chat Completions backend.
type Provider struct {
	sdk   sdk.Client
	model string
}

// New builds a Provider from the OpenAI section of config.LLMConfig.
func New(cfg config.ProviderConfig) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = sdk.ChatModelGPT4oMini
	}
	return &Provider{sdk: sdk.NewClient(opts...), model: model}
}

func (p *Provider) Name() string { return "openai" }

// Generate sends one request to the chat completions endpoint.
func (p *Provider) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	system := req.System
	if req.ResponseJSON {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and no surrounding prose.")
	}
	if system != "" {
		msgs = append(msgs, sdk.SystemMessage(system))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, sdk.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, sdk.UserMessage(m.Content))
		}
	}

	params := sdk.ChatCompletionNewParams{
		Model:    model,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.ResponseJSON {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		}
	}

	logger := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := p.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("openai_generate_error")
		return llmclient.Response{}, err
	}
	if len(resp.Choices) == 0 {
		return llmclient.Response{}, errEmptyChoices
	}
	log.Debug().Str("model", model).Dur("duration", dur).Msg("openai_generate_ok")

	return llmclient.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        string(resp.Model),
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

var errEmptyChoices = &noChoicesError{}

type noChoicesError struct{}

func (*noChoicesError) Error() string { return "openai: response contained no choices" }
