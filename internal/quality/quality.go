// Package quality validates an agent's draft answer against a five-axis
// LLM-judged rubric before it reaches the user, and can retry once with
// targeted feedback.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragmux/internal/llmclient"
)

// Verdict is the five-axis rubric result for one response.
type Verdict struct {
	Relevance          float64  `json:"relevance"`
	Completeness       float64  `json:"completeness"`
	AccuracySignals    float64  `json:"accuracy_signals"`
	LanguageMatch      float64  `json:"language_match"`
	HarmfulContentFree float64  `json:"harmful_content_free"`
	Overall            float64  `json:"overall"`
	Passed             bool     `json:"passed"`
	Issues             []string `json:"issues"`
	RetryHint          string   `json:"retry_hint"`
	ShouldRetry        bool     `json:"-"`
	// Low is set by the Manager when a response still fails validation
	// after its one retry, so the caller gets a visible low-quality marker
	// on the returned answer instead of the answer being discarded.
	Low bool `json:"low"`
}

// Input is what Validate needs to judge one response.
type Input struct {
	Query    string
	Response string
	Sources  []string
}

// Controller judges responses and retries with feedback. It fails open:
// if the judging call itself errors, the response is treated as passing
// with a conservative default score, so a flaky validator never blocks a
// user-visible answer outright.
type Controller struct {
	llm *llmclient.Client
}

// New builds a Controller backed by llm.
func New(llm *llmclient.Client) *Controller {
	return &Controller{llm: llm}
}

const rubricPrompt = `You are a strict quality reviewer for an AI assistant's response.
Score the RESPONSE against the QUERY on five axes, each from 0.0 to 1.0:
- relevance: does it address the query
- completeness: does it fully answer what was asked
- accuracy_signals: does it avoid unsupported or contradictory claims
- language_match: does it reply in the same language as the query
- harmful_content_free: is it free of harmful, unsafe, or policy-violating content

Return a single JSON object with exactly these fields:
{"relevance": number, "completeness": number, "accuracy_signals": number,
 "language_match": number, "harmful_content_free": number,
 "issues": [string, ...]}
No prose, no markdown fences, just the JSON object.`

// Validate judges one response, computing an overall score as the mean of
// the five axes and flagging a retry when it failed and scored below 0.6.
func (c *Controller) Validate(ctx context.Context, in Input) Verdict {
	resp, err := c.llm.Generate(ctx, llmclient.Request{
		System:       rubricPrompt,
		ResponseJSON: true,
		Messages: []llmclient.Message{
			{Role: "user", Content: fmt.Sprintf("QUERY: %s\n\nRESPONSE: %s", in.Query, in.Response)},
		},
	})
	if err != nil {
		return Verdict{Overall: 0.7, Passed: true}
	}

	v, ok := parseVerdict(resp.Content)
	if !ok {
		return Verdict{Overall: 0.7, Passed: true}
	}

	v.Overall = (v.Relevance + v.Completeness + v.AccuracySignals + v.LanguageMatch + v.HarmfulContentFree) / 5
	v.Passed = v.Overall >= 0.6 && v.HarmfulContentFree >= 0.5
	v.ShouldRetry = !v.Passed && v.Overall < 0.6
	return v
}

func parseVerdict(raw string) (Verdict, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{}, false
	}
	return v, true
}

// RetryWithFeedback builds a targeted retry prompt referencing the
// verdict's issues and the top sources, and asks the LLM for a revised
// response. On any failure it falls back to the original response rather
// than surfacing an error, since a retry is a best-effort improvement.
func (c *Controller) RetryWithFeedback(ctx context.Context, in Input, v Verdict) string {
	var sourceBlock strings.Builder
	for i, s := range in.Sources {
		if i >= 5 {
			break
		}
		sourceBlock.WriteString("- ")
		sourceBlock.WriteString(s)
		sourceBlock.WriteString("\n")
	}

	issues := strings.Join(v.Issues, "; ")
	prompt := fmt.Sprintf(
		"Your previous response had quality issues: %s\nHint: %s\n\nSources available:\n%s\nQuery: %s\nPrevious response: %s\n\nRewrite the response to address the issues above.",
		issues, v.RetryHint, sourceBlock.String(), in.Query, in.Response)

	resp, err := c.llm.Generate(ctx, llmclient.Request{
		Messages: []llmclient.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return in.Response
	}
	return resp.Content
}
