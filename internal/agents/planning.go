package agents

import (
	"context"
	"fmt"

	"ragmux/internal/llmclient"
)

// planningAgent breaks a goal into ordered steps, used as the primary
// agent for planning/multi_step categories per the strategy adapter's
// category table.
type planningAgent struct {
	llm *llmclient.Client
}

// NewPlanningAgent builds the planning_agent.
func NewPlanningAgent(llm *llmclient.Client) Agent {
	return &planningAgent{llm: llm}
}

func (a *planningAgent) Name() string { return "planning_agent" }

func (a *planningAgent) Capabilities() []string { return []string{"planning", "decomposition"} }

const planningSystemPrompt = `You are a planning assistant. Break the query's goal
into a short numbered list of concrete, ordered steps. Keep each step to one
sentence. If the goal is already a single step, say so instead of padding
the list.`

func (a *planningAgent) Handle(ctx context.Context, tc *TaskContext) (Result, error) {
	resp, err := a.llm.Generate(ctx, llmclient.Request{
		System:   planningSystemPrompt,
		Messages: []llmclient.Message{{Role: "user", Content: tc.Query}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("agents: planning_agent: %w", err)
	}
	return Result{Output: resp.Content}, nil
}
