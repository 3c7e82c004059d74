// Package manager implements the top-level orchestration entry point: a
// six-step pipeline of Classifier -> Strategy Adapter -> ReAct Engine ->
// Quality Controller -> Self-Evaluator/Experience Learner, run behind one
// Handle call per task, generalized from a single-agent session loop into
// the full multi-stage pipeline.
package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ragmux/internal/agents"
	"ragmux/internal/apperror"
	"ragmux/internal/classifier"
	"ragmux/internal/debugtrace"
	"ragmux/internal/eventbus"
	"ragmux/internal/memory"
	"ragmux/internal/metacognition"
	"ragmux/internal/model"
	"ragmux/internal/quality"
	"ragmux/internal/react"
	"ragmux/internal/store"
	"ragmux/internal/strategy"

	"github.com/rs/zerolog/log"
)

// ChatRequest is one user turn submitted to Manager.Handle.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
}

// ChatResult is the final, quality-checked answer for one ChatRequest.
type ChatResult struct {
	TaskUID   string               `json:"task_uid"`
	Category  string               `json:"category"`
	Mode      strategy.ExecutionMode `json:"mode"`
	Output    string               `json:"output"`
	Sources   []string             `json:"sources,omitempty"`
	StepsUsed int                  `json:"steps_used"`
	Quality   quality.Verdict      `json:"quality"`
}

// failureStreaks tracks each (user_id, category) pair's recent consecutive
// failure count in process memory, feeding selectExecutionMode's
// escalate-to-cautious rule independently of the episodic-store-backed
// ExperienceLearner recommendation (which requires a longer history).
type failureStreaks struct {
	counts map[string]int
}

func newFailureStreaks() *failureStreaks { return &failureStreaks{counts: make(map[string]int)} }

func streakKey(userID, category string) string { return userID + "|" + category }

func (f *failureStreaks) get(userID, category string) int {
	return f.counts[streakKey(userID, category)]
}

func (f *failureStreaks) record(userID, category string, outcome model.EpisodeOutcome) {
	key := streakKey(userID, category)
	if outcome == model.OutcomeFailure {
		f.counts[key]++
	} else {
		f.counts[key] = 0
	}
}

// Manager wires every subsystem together behind one Handle entry point.
type Manager struct {
	store     store.Store
	memory    *memory.Manager
	classify  *classifier.Classifier
	engine    *react.Engine
	quality   *quality.Controller
	evaluator *metacognition.AdaptiveEvaluator
	learner   *metacognition.ExperienceLearner
	bus       *eventbus.Bus
	trace     *debugtrace.Ring
	registry  *agents.Registry
	queueDepth int
	inFlight   atomic.Int64

	streaks *failureStreaks
}

// Deps bundles the constructed subsystems Manager wires together.
type Deps struct {
	Store      store.Store
	Memory     *memory.Manager
	Classifier *classifier.Classifier
	Engine     *react.Engine
	Quality    *quality.Controller
	Evaluator  *metacognition.AdaptiveEvaluator
	Learner    *metacognition.ExperienceLearner
	Bus        *eventbus.Bus
	Trace      *debugtrace.Ring
	Registry   *agents.Registry
	QueueDepth int
}

// New builds a Manager from its constructed dependencies.
func New(d Deps) *Manager {
	return &Manager{
		store:      d.Store,
		memory:     d.Memory,
		classify:   d.Classifier,
		engine:     d.Engine,
		quality:    d.Quality,
		evaluator:  d.Evaluator,
		learner:    d.Learner,
		bus:        d.Bus,
		trace:      d.Trace,
		registry:   d.Registry,
		queueDepth: d.QueueDepth,
		streaks:    newFailureStreaks(),
	}
}

// Handle runs the full orchestration pipeline for one user query:
// classify, adapt a strategy, run the bounded ReAct loop, validate the
// answer's quality (retrying once if it fails), then self-evaluate and
// learn from the outcome.
func (m *Manager) Handle(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if req.Query == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "query is required")
	}

	if m.queueDepth > 0 {
		if n := m.inFlight.Add(1); n > int64(m.queueDepth) {
			m.inFlight.Add(-1)
			m.bus.Publish(model.ChatEvent{Type: model.EventError, SessionID: req.SessionID, Code: string(apperror.CodeQuotaExceeded), Data: "conversation_timeout: agent queue depth exceeded"})
			return nil, apperror.New(apperror.CodeQuotaExceeded, "agent queue depth exceeded")
		}
		defer m.inFlight.Add(-1)
	}

	sess, ok, err := m.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeStoreUnavailable, "loading session", err)
	}
	if !ok {
		sess, err = m.store.EnsureSession(ctx, req.UserID, req.SessionID, "")
		if err != nil {
			return nil, apperror.Wrap(apperror.CodeStoreUnavailable, "creating session", err)
		}
	}

	task, err := m.store.CreateTask(ctx, model.Task{
		SessionID: sess.ID,
		UserID:    req.UserID,
		Query:     req.Query,
		Status:    model.TaskStatusRunning,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeStoreUnavailable, "creating task", err)
	}

	if _, err := m.store.AppendTurn(ctx, model.Turn{SessionID: sess.ID, Role: "user", Content: req.Query, TaskUID: task.UID}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("append user turn failed")
	}

	result, handleErr := m.runPipeline(ctx, sess.ID, req.UserID, task.UID, req.Query)

	if handleErr != nil {
		_ = m.store.UpdateTaskStatus(ctx, task.UID, model.TaskStatusFailed, "", handleErr.Error())
		m.bus.Publish(model.ChatEvent{Type: model.EventError, SessionID: sess.ID, TaskUID: task.UID, Data: handleErr.Error(), Code: string(apperror.CodeOf(handleErr))})
		return nil, handleErr
	}

	_ = m.store.UpdateTaskStatus(ctx, task.UID, model.TaskStatusCompleted, result.Output, "")
	if _, err := m.store.AppendTurn(ctx, model.Turn{SessionID: sess.ID, Role: "assistant", Content: result.Output, TaskUID: task.UID}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("append assistant turn failed")
	}
	m.bus.Publish(model.ChatEvent{Type: model.EventFinal, SessionID: sess.ID, TaskUID: task.UID, Data: result.Output})

	result.TaskUID = task.UID
	return result, nil
}

func (m *Manager) runPipeline(ctx context.Context, sessionID, userID, taskUID, query string) (*ChatResult, error) {
	// 1. Classify.
	history := m.recentHistory(ctx, sessionID)
	classification, err := m.classify.Classify(ctx, query, history)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeClassifyFailed, "classification failed", err)
	}
	m.trace.RecordRouting(sessionID, taskUID, fmt.Sprintf("classified as %s/%s", classification.Category, classification.Complexity), map[string]any{
		"confidence": classification.Confidence,
	})

	// 2. Adapt strategy, folding in the Experience Learner's recommendation
	// and the in-process recent-failure streak for this user+category.
	var experience *strategy.ExperienceRecommendation
	if m.learner != nil {
		experience = m.learner.Recommend(ctx, classification.Category)
	}
	failureStreak := m.streaks.get(userID, classification.Category)
	plan := strategy.Adapt(classification.Category, classification.Complexity, failureStreak, experience)
	m.trace.RecordRouting(sessionID, taskUID, plan.Reason, map[string]any{"mode": plan.Mode, "max_steps": plan.MaxSteps})
	m.bus.Publish(model.ChatEvent{Type: model.EventThinking, SessionID: sessionID, TaskUID: taskUID, Data: plan.Reason})

	// 3. Build memory context and run the bounded ReAct loop.
	memCtx, _ := m.memory.BuildContext(ctx, sessionID, userID, query, classification.Category, memory.ContextOptions{
		IncludeCrossSession: plan.Mode == strategy.ModeThorough || plan.Mode == strategy.ModeCautious,
	})
	if memCtx != "" {
		m.trace.RecordMemoryInjection(sessionID, taskUID, memCtx)
	}

	tc := &agents.TaskContext{SessionID: sessionID, TaskUID: taskUID, UserID: userID, Query: query, Context: memCtx, History: history}
	outcome, err := m.engine.Run(ctx, plan, tc)
	if err != nil && outcome == nil {
		return nil, err
	}
	if err != nil && outcome.Output == "" {
		m.streaks.record(userID, classification.Category, model.OutcomeFailure)
		return nil, err
	}

	// 4. Quality control, with one targeted retry. Fast-mode plans skip
	// validation entirely to stay cheap, same as they skip supporting agents.
	final := outcome.Output
	verdict := quality.Verdict{Overall: 1.0, Passed: true}
	if plan.RequireValidation {
		verdict = m.quality.Validate(ctx, quality.Input{Query: query, Response: outcome.Output, Sources: outcome.Sources})
		if verdict.ShouldRetry {
			final = m.quality.RetryWithFeedback(ctx, quality.Input{Query: query, Response: outcome.Output, Sources: outcome.Sources}, verdict)
			verdict = m.quality.Validate(ctx, quality.Input{Query: query, Response: final, Sources: outcome.Sources})
		}
		// A response that still fails after its one retry is surfaced with a
		// visible low-quality marker rather than discarded as an error: the
		// user gets the best answer produced, flagged so callers can warn or
		// re-prompt instead of seeing nothing at all.
		if !verdict.Passed {
			verdict.Low = true
		}
	}

	// 5 & 6. Self-evaluate and learn from the outcome.
	if m.evaluator != nil {
		eval := m.evaluator.Evaluate(ctx, metacognition.Interaction{
			UserID: userID, Category: classification.Category, Query: query, Response: final,
			StepsUsed: outcome.StepsUsed, MaxSteps: plan.MaxSteps,
		})
		outcomeClass := model.OutcomePartial
		switch {
		case eval.Overall >= 0.75:
			outcomeClass = model.OutcomeSuccess
		case eval.Overall < 0.4:
			outcomeClass = model.OutcomeFailure
		}
		m.streaks.record(userID, classification.Category, outcomeClass)
		if m.learner != nil {
			if err := m.learner.Learn(ctx, metacognition.Interaction{
				UserID: userID, Category: classification.Category, Query: query, Response: final,
				StepsUsed: outcome.StepsUsed, MaxSteps: plan.MaxSteps,
			}, eval); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("experience learner failed to record episode")
			}
		}
	} else {
		m.streaks.record(userID, classification.Category, model.OutcomeSuccess)
	}

	return &ChatResult{
		Category:  classification.Category,
		Mode:      plan.Mode,
		Output:    final,
		Sources:   outcome.Sources,
		StepsUsed: outcome.StepsUsed,
		Quality:   verdict,
	}, nil
}

func (m *Manager) recentHistory(ctx context.Context, sessionID string) []string {
	turns, err := m.store.ListTurns(ctx, sessionID, 6)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return out
}

// RatingFeedback lets a caller report a later user rating (0..1) for a
// completed task, folded into the AdaptiveEvaluator's calibration offset.
func (m *Manager) RatingFeedback(selfScore, userRating float64) {
	if m.evaluator != nil {
		m.evaluator.Calibrate(selfScore, userRating)
	}
}

// CancelTask marks the task cancelled in the store and publishes a
// cancelled event. It does not interrupt agents in the registry and does
// not cancel the task's context, so a Handle call already running for the
// task continues until it returns.
func (m *Manager) CancelTask(ctx context.Context, taskUID string) error {
	_ = m.store.UpdateTaskStatus(ctx, taskUID, model.TaskStatusCancelled, "", "cancelled by caller")
	m.bus.Publish(model.ChatEvent{Type: model.EventCancelled, TaskUID: taskUID, Timestamp: time.Now()})
	return nil
}
