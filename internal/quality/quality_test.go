package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragmux/internal/llmclient"
)

type stubProvider struct {
	content string
	err     error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	if s.err != nil {
		return llmclient.Response{}, s.err
	}
	return llmclient.Response{Content: s.content}, nil
}

func TestValidate_HighScoresPass(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: `{"relevance":0.9,"completeness":0.9,"accuracy_signals":0.9,"language_match":1.0,"harmful_content_free":1.0,"issues":[]}`}))
	v := c.Validate(context.Background(), Input{Query: "q", Response: "r"})
	assert.True(t, v.Passed)
	assert.False(t, v.ShouldRetry)
	assert.InDelta(t, 0.94, v.Overall, 0.01)
}

func TestValidate_LowScoresFailAndRequestRetry(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: `{"relevance":0.2,"completeness":0.1,"accuracy_signals":0.2,"language_match":0.3,"harmful_content_free":1.0,"issues":["off topic"]}`}))
	v := c.Validate(context.Background(), Input{Query: "q", Response: "r"})
	assert.False(t, v.Passed)
	assert.True(t, v.ShouldRetry)
}

func TestValidate_HarmfulContentFailsRegardlessOfOverall(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: `{"relevance":1.0,"completeness":1.0,"accuracy_signals":1.0,"language_match":1.0,"harmful_content_free":0.1,"issues":["unsafe"]}`}))
	v := c.Validate(context.Background(), Input{Query: "q", Response: "r"})
	assert.False(t, v.Passed)
}

func TestValidate_FailsOpenOnLLMError(t *testing.T) {
	c := New(llmclient.New(stubProvider{err: errors.New("upstream down")}))
	v := c.Validate(context.Background(), Input{Query: "q", Response: "r"})
	assert.True(t, v.Passed)
	assert.Equal(t, 0.7, v.Overall)
}

func TestValidate_FailsOpenOnUnparseableResponse(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: "not json"}))
	v := c.Validate(context.Background(), Input{Query: "q", Response: "r"})
	assert.True(t, v.Passed)
}

func TestRetryWithFeedback_ReturnsOriginalOnLLMError(t *testing.T) {
	c := New(llmclient.New(stubProvider{err: errors.New("down")}))
	out := c.RetryWithFeedback(context.Background(), Input{Query: "q", Response: "original"}, Verdict{Issues: []string{"vague"}})
	assert.Equal(t, "original", out)
}

func TestRetryWithFeedback_ReturnsRevisedResponse(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: "revised answer"}))
	out := c.RetryWithFeedback(context.Background(), Input{Query: "q", Response: "original", Sources: []string{"doc1"}}, Verdict{Issues: []string{"vague"}, RetryHint: "be specific"})
	assert.Equal(t, "revised answer", out)
}
