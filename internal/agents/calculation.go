package agents

import (
	"context"
	"fmt"

	"ragmux/internal/llmclient"
)

// calculationAgent performs numeric computation via the LLM rather than a
// hand-rolled expression evaluator; no expression-parsing library is wired
// in, and the one available code-execution sandbox runs arbitrary
// interpreted code rather than evaluating arithmetic, so it's out of scope
// for this narrower need. A strict system prompt keeps it to
// show-your-work arithmetic instead of prose.
type calculationAgent struct {
	llm *llmclient.Client
}

// NewCalculationAgent builds the calculation_agent.
func NewCalculationAgent(llm *llmclient.Client) Agent {
	return &calculationAgent{llm: llm}
}

func (a *calculationAgent) Name() string { return "calculation_agent" }

func (a *calculationAgent) Capabilities() []string { return []string{"calculation", "arithmetic"} }

const calculationSystemPrompt = `You are a precise calculation assistant. Work the
problem step by step, showing each intermediate step, then give the final
numeric result on its own line prefixed with "Result: ". Do not round unless
asked to.`

func (a *calculationAgent) Handle(ctx context.Context, tc *TaskContext) (Result, error) {
	resp, err := a.llm.Generate(ctx, llmclient.Request{
		System:   calculationSystemPrompt,
		Messages: []llmclient.Message{{Role: "user", Content: tc.Query}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("agents: calculation_agent: %w", err)
	}
	return Result{Output: resp.Content}, nil
}
