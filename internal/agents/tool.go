package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragmux/internal/classifier"
	"ragmux/internal/llmclient"
	"ragmux/internal/vectorstore"
)

// builtinTool is one callable the tool_agent can dispatch to without an
// LLM round trip: name in, string out, down to the handful of tools the
// tool_use category actually needs — a clock and a knowledge-base search.
type builtinTool struct {
	name        string
	description string
	run         func(ctx context.Context, query string) (string, error)
}

// toolAgent invokes the first builtin tool whose name is mentioned in the
// query, falling back to an LLM call describing what it would have done
// when no builtin matches (no external tool transport is in scope here).
type toolAgent struct {
	llm   *llmclient.Client
	tools []builtinTool
}

// NewToolAgent builds the tool_agent with the current_time and
// knowledge_base_search builtins wired over cl/store.
func NewToolAgent(llm *llmclient.Client, cl *classifier.Classifier, store *vectorstore.Facade) Agent {
	a := &toolAgent{llm: llm}
	a.tools = []builtinTool{
		{
			name:        "current_time",
			description: "reports the current UTC time",
			run: func(ctx context.Context, query string) (string, error) {
				return time.Now().UTC().Format(time.RFC3339), nil
			},
		},
		{
			name:        "knowledge_base_search",
			description: "names the knowledge-base collection that would be searched for the query",
			run: func(ctx context.Context, query string) (string, error) {
				if store == nil {
					return "", fmt.Errorf("no knowledge base configured")
				}
				collection, err := store.SmartSuggest(ctx, cl, query)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("would search collection %q for: %s", collection, query), nil
			},
		},
	}
	return a
}

func (a *toolAgent) Name() string { return "tool_agent" }

func (a *toolAgent) Capabilities() []string { return []string{"tool_use"} }

func (a *toolAgent) Handle(ctx context.Context, tc *TaskContext) (Result, error) {
	lower := strings.ToLower(tc.Query)
	for _, t := range a.tools {
		if strings.Contains(lower, t.name) || strings.Contains(lower, strings.ReplaceAll(t.name, "_", " ")) {
			out, err := t.run(ctx, tc.Query)
			if err != nil {
				return Result{}, fmt.Errorf("agents: tool_agent: %s: %w", t.name, err)
			}
			return Result{Output: out}, nil
		}
	}

	var available strings.Builder
	for _, t := range a.tools {
		available.WriteString("- ")
		available.WriteString(t.name)
		available.WriteString(": ")
		available.WriteString(t.description)
		available.WriteString("\n")
	}

	resp, err := a.llm.Generate(ctx, llmclient.Request{
		System: "You are a tool-dispatching assistant. The following tools are " +
			"available but none matched the query directly:\n" + available.String() +
			"Explain which tool (if any) would help and what result to expect.",
		Messages: []llmclient.Message{{Role: "user", Content: tc.Query}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("agents: tool_agent: %w", err)
	}
	return Result{Output: resp.Content}, nil
}
