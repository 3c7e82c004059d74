package debugtrace

import (
	"time"

	"ragmux/internal/model"
)

// RecordAgentInput logs what an agent was invoked with.
func (r *Ring) RecordAgentInput(sessionID, taskUID, agent, content string) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, AgentName: agent, Type: model.TraceAgentInput, Content: content})
}

// RecordAgentOutput logs what an agent returned, with its wall-clock duration.
func (r *Ring) RecordAgentOutput(sessionID, taskUID, agent, content string, d time.Duration) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, AgentName: agent, Type: model.TraceAgentOutput, Content: content, DurationMS: d.Milliseconds()})
}

// RecordLLMRequest logs an outbound prompt.
func (r *Ring) RecordLLMRequest(sessionID, taskUID, agent, content string) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, AgentName: agent, Type: model.TraceLLMRequest, Content: content})
}

// RecordLLMResponse logs an inbound completion, with its duration.
func (r *Ring) RecordLLMResponse(sessionID, taskUID, agent, content string, d time.Duration) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, AgentName: agent, Type: model.TraceLLMResponse, Content: content, DurationMS: d.Milliseconds()})
}

// RecordRouting logs a classifier/strategy decision.
func (r *Ring) RecordRouting(sessionID, taskUID, content string, meta map[string]any) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, Type: model.TraceRouting, Content: content, Metadata: meta})
}

// RecordThinking logs one ReAct thought.
func (r *Ring) RecordThinking(sessionID, taskUID, agent, content string) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, AgentName: agent, Type: model.TraceThinking, Content: content})
}

// RecordError logs a failure encountered anywhere in the pipeline.
func (r *Ring) RecordError(sessionID, taskUID, agent, content string) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, AgentName: agent, Type: model.TraceError, Content: content})
}

// RecordMemoryInjection logs what was added to an agent's context from memory.
func (r *Ring) RecordMemoryInjection(sessionID, taskUID, content string) {
	r.Record(model.DebugTrace{SessionID: sessionID, TaskUID: taskUID, Type: model.TraceMemoryInjection, Content: content})
}
