// Package react implements the bounded think/act/observe/reflect loop that
// drives one task to completion: on each step an LLM call (Think) chooses
// the next action from a fixed verb set, the named specialist agent runs
// (Act), the result is folded into the running context (Observe), and a
// second LLM call (Reflect) decides whether the evidence gathered so far
// confidently answers the query. The loop follows a persist-then-hook-then-
// continue shape, generalized from "tool calls" to "agent invocations via
// the Registry".
package react

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ragmux/internal/agents"
	"ragmux/internal/apperror"
	"ragmux/internal/debugtrace"
	"ragmux/internal/eventbus"
	"ragmux/internal/llmclient"
	"ragmux/internal/model"
	"ragmux/internal/store"
	"ragmux/internal/strategy"
)

// Action is one of the fixed verbs the Think step can choose between.
type Action string

const (
	ActionRetrieve  Action = "retrieve"
	ActionCompute   Action = "compute"
	ActionTranslate Action = "translate"
	ActionSummarize Action = "summarize"
	ActionReason    Action = "reason"
	ActionFinish    Action = "finish"
)

// thought is the parsed result of one Think call.
type thought struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionQuery string `json:"action_query"`
	FinalAnswer string `json:"final_answer"`
}

// reflection is the parsed result of one Reflect call.
type reflection struct {
	Done        bool    `json:"done"`
	Confidence  float64 `json:"confidence"`
	FinalAnswer string  `json:"final_answer"`
}

// StepRecord is one think/act/observe entry in the Outcome trace.
type StepRecord struct {
	Step        int
	Agent       string
	Action      string
	Thought     string
	Observation string
	Sources     []string
	DurationMS  int64
	Success     bool
	Err         error
}

// Outcome is the result of running the loop to completion or exhaustion.
type Outcome struct {
	Output            string
	Sources           []string
	StepsUsed         int
	AgentsUsed        []string
	Steps             []StepRecord
	Partial           bool
	TerminationReason string
}

// Engine runs one task's ReAct loop.
type Engine struct {
	registry *agents.Registry
	bus      *eventbus.Bus
	trace    *debugtrace.Ring
	llm      *llmclient.Client
	store    store.Store
}

// New builds an Engine over the shared agent registry, event bus, debug
// trace ring, LLM client, and the durable store used to persist each
// ThinkingStep. store may be nil, in which case steps are not persisted
// (used in tests that don't exercise the store layer).
func New(registry *agents.Registry, bus *eventbus.Bus, trace *debugtrace.Ring, llm *llmclient.Client, st store.Store) *Engine {
	return &Engine{registry: registry, bus: bus, trace: trace, llm: llm, store: st}
}

const thinkPrompt = `You are the reasoning step of a bounded agent loop answering a user's
query with the help of specialist agents. Given the query, any assembled
context, and the actions already taken, choose the single best next action.

Return a single JSON object with exactly these fields:
{"thought": string, "action": one of %s, "action_query": string, "final_answer": string}
Set "action" to "finish" once you can answer the query directly from the
evidence gathered so far, and put the answer in "final_answer". Otherwise
leave "final_answer" empty and put the refined query to hand the chosen
agent in "action_query".
No prose, no markdown fences, just the JSON object.`

const reflectPrompt = `You judge whether a bounded agent loop has gathered enough evidence to
confidently answer the user's query, after its latest step.

Return a single JSON object with exactly these fields:
{"done": boolean, "confidence": number between 0 and 1, "final_answer": string}
Set "final_answer" only when done is true, synthesizing it from the
observations provided. Prefer done=true once the evidence clearly answers
the query; don't wait for exhaustive confirmation.
No prose, no markdown fences, just the JSON object.`

// actionAgents maps each non-finish action to the specialist agent that
// carries it out.
var actionAgents = map[Action]string{
	ActionRetrieve:  "rag_agent",
	ActionCompute:   "calculation_agent",
	ActionTranslate: "translate_agent",
	ActionSummarize: "summarize_agent",
	ActionReason:    "thinking_agent",
}

// Run executes plan against tc, consuming up to plan.MaxSteps iterations of
// the think/act/observe/reflect cycle.
func (e *Engine) Run(ctx context.Context, plan strategy.ExecutionPlan, tc *agents.TaskContext) (*Outcome, error) {
	out := &Outcome{}
	maxSteps := plan.MaxSteps
	if maxSteps < 1 {
		maxSteps = 1
	}

	skip := make(map[string]bool, len(plan.SkipAgents))
	for _, s := range plan.SkipAgents {
		skip[s] = true
	}

	offered := offeredActions(skip)
	var history []string

	for stepNum := 1; stepNum <= maxSteps; stepNum++ {
		if err := ctx.Err(); err != nil {
			out.TerminationReason = "cancelled"
			return out, apperror.Wrap(apperror.CodeCancelled, "task cancelled", err)
		}

		th, err := e.think(ctx, stepNum, offered, history, plan, tc)
		thinkFailed := err != nil
		if thinkFailed {
			// Think failing open falls back to the primary agent so the
			// loop still makes forward progress instead of stalling.
			th = thought{Thought: "reasoning step unavailable, falling back to primary agent", Action: string(ActionReason), ActionQuery: tc.Query}
		}
		e.persistThinkingStep(ctx, tc, int64(stepNum), "", th.Thought, th.Action, "")

		if Action(th.Action) == ActionFinish {
			out.Output = strings.TrimSpace(th.FinalAnswer)
			if out.Output == "" {
				out.Output = th.Thought
			}
			out.TerminationReason = "finish"
			return out, nil
		}

		agentName := e.resolveAgent(Action(th.Action), plan, skip)
		if thinkFailed {
			agentName = plan.PrimaryAgent
		}
		if e.registry.Interrupted(agentName) {
			out.TerminationReason = "cancelled"
			return out, apperror.New(apperror.CodeCancelled, fmt.Sprintf("agent %q interrupted", agentName))
		}

		actTc := *tc
		if th.ActionQuery != "" {
			actTc.Query = th.ActionQuery
		}
		rec, err := e.act(ctx, stepNum, th.Action, th.Thought, agentName, &actTc)
		out.Steps = append(out.Steps, rec)
		out.StepsUsed++

		if err != nil {
			out.TerminationReason = "error"
			return out, apperror.Wrap(apperror.CodeAgentFailed, fmt.Sprintf("agent %q failed", agentName), err)
		}

		out.AgentsUsed = append(out.AgentsUsed, agentName)
		out.Sources = append(out.Sources, rec.Sources...)
		out.Output = rec.Observation
		tc.Context = appendObservation(tc.Context, agentName, rec.Observation)
		history = append(history, fmt.Sprintf("step %d: action=%s agent=%s observation=%s", stepNum, th.Action, agentName, truncate(rec.Observation, 400)))

		if stepNum == maxSteps {
			break
		}

		refl, err := e.reflect(ctx, stepNum, history, tc)
		if err == nil && refl.Done {
			if refl.FinalAnswer != "" {
				out.Output = refl.FinalAnswer
			}
			out.TerminationReason = "reflect"
			return out, nil
		}
	}

	// Step budget exhausted without an explicit finish: synthesize a
	// best-effort answer from whatever was observed rather than erroring
	// out, matching the fail-open posture of the rest of the pipeline.
	out.Partial = true
	out.TerminationReason = "step_budget_exceeded"
	if out.Output == "" {
		out.Output = "Unable to fully resolve the request within the allotted steps; partial findings: " + strings.Join(history, "; ")
	}
	return out, nil
}

// offeredActions lists the actions worth presenting to Think: every
// non-finish action whose backing agent isn't in the plan's skip set,
// plus finish and reason as guaranteed fallbacks.
func offeredActions(skip map[string]bool) []Action {
	offered := []Action{ActionReason, ActionFinish}
	for _, a := range []Action{ActionRetrieve, ActionCompute, ActionTranslate, ActionSummarize} {
		if !skip[actionAgents[a]] {
			offered = append(offered, a)
		}
	}
	return offered
}

// resolveAgent maps a chosen action to the agent that should run it. It
// falls back to the plan's primary agent when that agent was marked
// skipped by the strategy plan, or isn't registered at all (e.g. a
// deployment that never wired up a "reason" specialist).
func (e *Engine) resolveAgent(action Action, plan strategy.ExecutionPlan, skip map[string]bool) string {
	name, ok := actionAgents[action]
	if !ok || skip[name] {
		return plan.PrimaryAgent
	}
	if _, err := e.registry.Get(name); err != nil {
		return plan.PrimaryAgent
	}
	return name
}

func (e *Engine) think(ctx context.Context, stepNum int, offered []Action, history []string, plan strategy.ExecutionPlan, tc *agents.TaskContext) (thought, error) {
	names := make([]string, len(offered))
	for i, a := range offered {
		names[i] = string(a)
	}
	system := fmt.Sprintf(thinkPrompt, jsonStringArray(names))

	var historyBlock strings.Builder
	for _, h := range history {
		historyBlock.WriteString("- ")
		historyBlock.WriteString(h)
		historyBlock.WriteString("\n")
	}

	start := time.Now()
	e.trace.RecordLLMRequest(tc.SessionID, tc.TaskUID, "react_think", tc.Query)
	resp, err := e.llm.Generate(ctx, llmclient.Request{
		System:       system,
		ResponseJSON: true,
		Messages: []llmclient.Message{
			{Role: "user", Content: fmt.Sprintf("Query: %s\nContext so far: %s\nActions taken so far:\n%sPrimary agent: %s",
				tc.Query, truncate(tc.Context, 2000), historyBlock.String(), plan.PrimaryAgent)},
		},
	})
	if err != nil {
		e.trace.RecordError(tc.SessionID, tc.TaskUID, "react_think", err.Error())
		return thought{}, err
	}
	e.trace.RecordLLMResponse(tc.SessionID, tc.TaskUID, "react_think", resp.Content, time.Since(start))

	th, ok := parseJSON[thought](resp.Content)
	if !ok {
		return thought{}, fmt.Errorf("react: unparseable think response")
	}
	e.trace.RecordThinking(tc.SessionID, tc.TaskUID, "react_think", th.Thought)
	e.publish(tc, model.ChatEvent{
		Type:     model.EventThinking,
		Agent:    "react_think",
		Data:     th.Thought,
		Metadata: map[string]any{"step": stepNum, "action": th.Action},
	})
	return th, nil
}

func (e *Engine) act(ctx context.Context, stepNum int, action, thoughtText, agentName string, tc *agents.TaskContext) (StepRecord, error) {
	start := time.Now()

	e.publish(tc, model.ChatEvent{
		Type:     model.EventProgress,
		Agent:    agentName,
		Data:     fmt.Sprintf("%s: invoking %s", action, agentName),
		Metadata: map[string]any{"step": stepNum},
	})
	e.trace.RecordAgentInput(tc.SessionID, tc.TaskUID, agentName, tc.Query)

	res, err := e.registry.Activate(ctx, agentName, tc)
	duration := time.Since(start)

	if err != nil {
		e.trace.RecordError(tc.SessionID, tc.TaskUID, agentName, err.Error())
		e.publish(tc, model.ChatEvent{Type: model.EventError, Agent: agentName, Data: err.Error()})
		e.persistThinkingStep(ctx, tc, int64(stepNum), agentName, thoughtText, action, "error: "+err.Error())
		return StepRecord{Step: stepNum, Agent: agentName, Action: action, Thought: thoughtText, DurationMS: duration.Milliseconds(), Err: err}, err
	}

	e.trace.RecordAgentOutput(tc.SessionID, tc.TaskUID, agentName, res.Output, duration)
	e.publish(tc, model.ChatEvent{Type: model.EventProgress, Agent: agentName, Data: res.Output, Metadata: map[string]any{"step": stepNum}})
	e.persistThinkingStep(ctx, tc, int64(stepNum), agentName, thoughtText, action, res.Output)

	return StepRecord{
		Step:        stepNum,
		Agent:       agentName,
		Action:      action,
		Thought:     thoughtText,
		Observation: res.Output,
		Sources:     res.Sources,
		DurationMS:  duration.Milliseconds(),
		Success:     true,
	}, nil
}

func (e *Engine) reflect(ctx context.Context, stepNum int, history []string, tc *agents.TaskContext) (reflection, error) {
	var historyBlock strings.Builder
	for _, h := range history {
		historyBlock.WriteString("- ")
		historyBlock.WriteString(h)
		historyBlock.WriteString("\n")
	}

	start := time.Now()
	e.trace.RecordLLMRequest(tc.SessionID, tc.TaskUID, "react_reflect", tc.Query)
	resp, err := e.llm.Generate(ctx, llmclient.Request{
		System:       reflectPrompt,
		ResponseJSON: true,
		Messages: []llmclient.Message{
			{Role: "user", Content: fmt.Sprintf("Query: %s\nObservations so far:\n%s", tc.Query, historyBlock.String())},
		},
	})
	if err != nil {
		e.trace.RecordError(tc.SessionID, tc.TaskUID, "react_reflect", err.Error())
		return reflection{}, err
	}
	e.trace.RecordLLMResponse(tc.SessionID, tc.TaskUID, "react_reflect", resp.Content, time.Since(start))

	refl, ok := parseJSON[reflection](resp.Content)
	if !ok {
		return reflection{}, fmt.Errorf("react: unparseable reflect response")
	}
	return refl, nil
}

func (e *Engine) persistThinkingStep(ctx context.Context, tc *agents.TaskContext, seq int64, agentName, thoughtText, action, output string) {
	if e.store == nil {
		return
	}
	if _, err := e.store.AppendThinkingStep(ctx, model.ThinkingStep{
		TaskUID: tc.TaskUID,
		Seq:     seq,
		Agent:   agentName,
		Thought: thoughtText,
		Action:  action,
		Input:   tc.Query,
		Output:  output,
	}); err != nil {
		e.trace.RecordError(tc.SessionID, tc.TaskUID, "react_persist", err.Error())
	}
}

func (e *Engine) publish(tc *agents.TaskContext, evt model.ChatEvent) {
	if e.bus == nil {
		return
	}
	evt.SessionID = tc.SessionID
	evt.TaskUID = tc.TaskUID
	evt.Timestamp = time.Now()
	e.bus.Publish(evt)
}

func appendObservation(ctxText, agent, observation string) string {
	if observation == "" {
		return ctxText
	}
	if ctxText != "" {
		ctxText += "\n"
	}
	return ctxText + fmt.Sprintf("[%s] %s", agent, observation)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func jsonStringArray(names []string) string {
	b, _ := json.Marshal(names)
	return string(b)
}

func parseJSON[T any](raw string) (T, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false
	}
	return v, true
}
