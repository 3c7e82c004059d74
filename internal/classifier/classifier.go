// Package classifier assigns a conversational category and complexity
// level to a user query, using an LLM JSON call with a deterministic
// keyword-based fallback, extended with per-category keyword sets for the
// fallback path.
package classifier

import (
	"context"
	"encoding/json"
	"strings"

	"ragmux/internal/llmclient"
)

// Complexity is a coarse estimate of how much work a query needs.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Classification is the result of classifying one query.
type Classification struct {
	Category   string     `json:"category"`
	Complexity Complexity `json:"complexity"`
	Confidence float64    `json:"confidence"`
}

// Categories are the left-hand keys of the strategy adapter's
// agent-selection table, so Classification.Category feeds directly into
// internal/strategy's agent-selection rules.
const (
	CategorySimpleChat  = "simple_chat"
	CategoryRAGSearch   = "rag_search"
	CategoryCalculation = "calculation"
	CategoryTranslation = "translation"
	CategorySummarization = "summarization"
	CategoryAnalysis    = "analysis"
	CategoryPlanning    = "planning"
	CategoryCreative    = "creative"
	CategoryMultiStep   = "multi_step"
	CategoryToolUse     = "tool_use"
)

// Classifier classifies queries via the LLM, falling back to a keyword
// scan when the LLM response is unavailable or not parseable JSON.
type Classifier struct {
	llm *llmclient.Client
}

// New builds a Classifier backed by llm.
func New(llm *llmclient.Client) *Classifier {
	return &Classifier{llm: llm}
}

const classifyPrompt = `You classify a user's chat message for a multi-agent assistant.
Return a single JSON object with exactly these fields:
{"category": one of ["simple_chat","rag_search","calculation","translation","summarization","analysis","planning","creative","multi_step","tool_use"],
 "complexity": one of ["low","medium","high"],
 "confidence": a number between 0 and 1}
No prose, no markdown fences, just the JSON object.`

// Classify categorizes query, using the last few turns of history as context.
func (c *Classifier) Classify(ctx context.Context, query string, history []string) (Classification, error) {
	var historyBlock strings.Builder
	for _, h := range history {
		historyBlock.WriteString("- ")
		historyBlock.WriteString(h)
		historyBlock.WriteString("\n")
	}

	if c.llm != nil {
		resp, err := c.llm.Generate(ctx, llmclient.Request{
			System:       classifyPrompt,
			ResponseJSON: true,
			Messages: []llmclient.Message{
				{Role: "user", Content: "Recent history:\n" + historyBlock.String() + "\nMessage: " + query},
			},
		})
		if err == nil {
			if cl, ok := parseClassification(resp.Content); ok {
				return cl, nil
			}
		}
	}

	return classifyByKeywords(query), nil
}

func parseClassification(raw string) (Classification, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var cl Classification
	if err := json.Unmarshal([]byte(raw), &cl); err != nil {
		return Classification{}, false
	}
	if cl.Category == "" {
		return Classification{}, false
	}
	if cl.Complexity == "" {
		cl.Complexity = ComplexityMedium
	}
	return cl, true
}

// complexityKeywords is the fallback complexity detector's keyword table.
var complexityKeywords = map[Complexity][]string{
	ComplexityHigh:   {"analyze", "compare", "evaluate", "plan", "design", "complex", "multiple"},
	ComplexityMedium: {"explain", "describe", "calculate", "translate", "summarize"},
	ComplexityLow:    {"hello", "hi", "thanks", "what", "who", "when"},
}

// categoryKeywords is the fallback category detector used when the LLM
// call fails or returns unparseable output.
var categoryKeywords = map[string][]string{
	CategoryCalculation:   {"calculate", "compute", "sum", "average", "how much", "how many"},
	CategoryTranslation:   {"translate", "translation", "in spanish", "in french", "in german"},
	CategorySummarization: {"summarize", "summarise", "tl;dr", "shorter version"},
	CategoryPlanning:      {"plan", "roadmap", "steps to", "how do i get"},
	CategoryCreative:      {"write a story", "poem", "imagine", "brainstorm"},
	CategoryAnalysis:      {"analyze", "analyse", "evaluate", "compare", "pros and cons"},
	CategoryRAGSearch:     {"find", "search", "lookup", "document", "according to"},
	CategoryToolUse:       {"run", "execute", "fetch", "call the api"},
}

func classifyByKeywords(query string) Classification {
	low := strings.ToLower(query)

	category := CategorySimpleChat
	best := 0
	for cat, words := range categoryKeywords {
		hits := countHits(low, words)
		if hits > best {
			best = hits
			category = cat
		}
	}

	complexity := ComplexityMedium
	bestC := 0
	for lvl, words := range complexityKeywords {
		hits := countHits(low, words)
		if hits > bestC {
			bestC = hits
			complexity = lvl
		}
	}
	if strings.Count(low, " and ") >= 1 && best > 0 {
		category = CategoryMultiStep
	}

	return Classification{Category: category, Complexity: complexity, Confidence: 0.5}
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
