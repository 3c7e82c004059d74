package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestClassify_UsesLLMResponseWhenParseable(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: `{"category":"calculation","complexity":"high","confidence":0.92}`}))
	cl, err := c.Classify(context.Background(), "what is 2+2", nil)
	require.NoError(t, err)
	assert.Equal(t, CategoryCalculation, cl.Category)
	assert.Equal(t, ComplexityHigh, cl.Complexity)
	assert.Equal(t, 0.92, cl.Confidence)
}

func TestClassify_StripsMarkdownFences(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: "```json\n{\"category\":\"translation\",\"complexity\":\"medium\",\"confidence\":0.7}\n```"}))
	cl, err := c.Classify(context.Background(), "translate hello", nil)
	require.NoError(t, err)
	assert.Equal(t, CategoryTranslation, cl.Category)
}

func TestClassify_FallsBackToKeywordsOnUnparseableResponse(t *testing.T) {
	c := New(llmclient.New(stubProvider{content: "not json at all"}))
	cl, err := c.Classify(context.Background(), "please calculate the sum of these numbers", nil)
	require.NoError(t, err)
	assert.Equal(t, CategoryCalculation, cl.Category)
}

func TestClassify_FallsBackToKeywordsOnLLMError(t *testing.T) {
	c := New(llmclient.New(stubProvider{err: assertErr{}}))
	cl, err := c.Classify(context.Background(), "translate this into french please", nil)
	require.NoError(t, err)
	assert.Equal(t, CategoryTranslation, cl.Category)
}

func TestClassifyByKeywords_DetectsMultiStepFromConjunction(t *testing.T) {
	cl := classifyByKeywords("please calculate the total and summarize the results")
	assert.Equal(t, CategoryMultiStep, cl.Category)
}

func TestClassifyByKeywords_DefaultsToSimpleChat(t *testing.T) {
	cl := classifyByKeywords("hi there, how are you?")
	assert.Equal(t, CategorySimpleChat, cl.Category)
	assert.Equal(t, ComplexityLow, cl.Complexity)
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }
