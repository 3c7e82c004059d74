// Package googleprov adapts google.golang.org/genai to the
// llmclient.Provider interface: genai.NewClient construction and
// Models.GenerateContent usage with per-call error logging (no span).
package googleprov

import (
	"context"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"ragmux/internal/config"
	"ragmux/internal/llmclient"
	"ragmux/internal/observability"
)

// Provider is the Gemini GenerateContent backend.
type Provider struct {
	client *genai.Client
	model  string
}

// New builds a Provider from the Google section of config.LLMConfig.
func New(ctx context.Context, cfg config.ProviderConfig) (*Provider, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) Name() string { return "google" }

// Generate sends one request to Models.GenerateContent.
func (p *Provider) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		sys := req.System
		if req.ResponseJSON {
			sys = strings.TrimSpace(sys + "\nRespond with a single JSON object and no surrounding prose.")
		}
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: sys}}}
	}
	if req.ResponseJSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}

	logger := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	dur := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("google_generate_error")
		return llmclient.Response{}, err
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}

	usage := resp.UsageMetadata
	var in, out int
	if usage != nil {
		in = int(usage.PromptTokenCount)
		out = int(usage.CandidatesTokenCount)
	}
	return llmclient.Response{Content: text.String(), Model: model, InputTokens: in, OutputTokens: out}, nil
}
