package agents

import (
	"context"
	"fmt"
	"strings"

	"ragmux/internal/llmclient"
)

// llmAgent is the shared shape for every specialist whose Handle is a
// single system-prompted LLM call over the assembled TaskContext. Most of
// the specialists below are thin configurations of this one pattern: one
// prompt template wrapped around the shared LLM client.
type llmAgent struct {
	name   string
	caps   []string
	system string
	llm    *llmclient.Client
}

func (a *llmAgent) Name() string           { return a.name }
func (a *llmAgent) Capabilities() []string { return a.caps }

func (a *llmAgent) Handle(ctx context.Context, tc *TaskContext) (Result, error) {
	var b strings.Builder
	if tc.Context != "" {
		b.WriteString("Context:\n")
		b.WriteString(tc.Context)
		b.WriteString("\n\n")
	}
	if len(tc.History) > 0 {
		b.WriteString("Recent turns:\n")
		for _, h := range tc.History {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Query: ")
	b.WriteString(tc.Query)

	resp, err := a.llm.Generate(ctx, llmclient.Request{
		System:   a.system,
		Messages: []llmclient.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("agents: %s: %w", a.name, err)
	}
	return Result{Output: resp.Content}, nil
}

// NewCasualChatAgent handles greetings and small talk with a short,
// friendly system prompt and no retrieval.
func NewCasualChatAgent(llm *llmclient.Client) Agent {
	return &llmAgent{
		name: "casual_chat_agent",
		caps: []string{"greeting", "small_talk"},
		system: "You are a friendly assistant. Reply briefly and naturally to " +
			"greetings and small talk. Do not pad with unnecessary caveats.",
		llm: llm,
	}
}

// NewThinkingAgent performs open-ended reasoning over the assembled
// context, used for analysis, creative requests, and as a RAG fallback.
func NewThinkingAgent(llm *llmclient.Client) Agent {
	return &llmAgent{
		name: "thinking_agent",
		caps: []string{"reasoning", "analysis", "creative"},
		system: "You are a careful reasoning assistant. Think through the " +
			"query step by step using any supplied context, then give a " +
			"clear, direct answer.",
		llm: llm,
	}
}

// NewTranslateAgent translates text between languages.
func NewTranslateAgent(llm *llmclient.Client) Agent {
	return &llmAgent{
		name: "translate_agent",
		caps: []string{"translation"},
		system: "You are a translation assistant. Translate the query's " +
			"content faithfully, preserving tone and meaning. If the target " +
			"language is not stated, infer it from the query, and otherwise " +
			"state the ambiguity.",
		llm: llm,
	}
}

// NewSummarizeAgent condenses long content into a shorter form.
func NewSummarizeAgent(llm *llmclient.Client) Agent {
	return &llmAgent{
		name: "summarize_agent",
		caps: []string{"summarization"},
		system: "You are a summarization assistant. Condense the supplied " +
			"content into its key points, preserving anything load-bearing " +
			"and dropping filler.",
		llm: llm,
	}
}

// NewValidationAgent double-checks a calculation or claim produced by
// another agent, used as the supporting agent for calculation_agent.
func NewValidationAgent(llm *llmclient.Client) Agent {
	return &llmAgent{
		name: "validation_agent",
		caps: []string{"validation"},
		system: "You are a validation assistant. Re-derive the answer to " +
			"the query independently and report whether it matches the " +
			"context's claimed result; if it doesn't, show the correct one.",
		llm: llm,
	}
}
