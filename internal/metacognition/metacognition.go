// Package metacognition implements the Self-Evaluator and Experience
// Learner: after a task completes, score how well it went, record it as
// an Episode, and learn patterns to recommend strategy overrides for
// similar future queries.
package metacognition

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ragmux/internal/llmclient"
	"ragmux/internal/memory/episodic"
	"ragmux/internal/model"
	"ragmux/internal/strategy"
)

// Evaluation is the six-axis self-assessment of one completed interaction.
type Evaluation struct {
	Accuracy      float64  `json:"accuracy"`
	Completeness  float64  `json:"completeness"`
	Relevance     float64  `json:"relevance"`
	Clarity       float64  `json:"clarity"`
	Efficiency    float64  `json:"efficiency"`
	UserAlignment float64  `json:"user_alignment"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Overall       float64  `json:"-"`
}

// Interaction is the input to SelfEvaluator.Evaluate.
type Interaction struct {
	UserID   string
	Category string
	Query    string
	Response string
	StepsUsed int
	MaxSteps  int
}

// SelfEvaluator scores a completed interaction across six axes.
type SelfEvaluator struct {
	llm *llmclient.Client
}

// NewSelfEvaluator builds a SelfEvaluator backed by llm.
func NewSelfEvaluator(llm *llmclient.Client) *SelfEvaluator {
	return &SelfEvaluator{llm: llm}
}

const evalPrompt = `You are reviewing an AI assistant's own completed interaction for
internal self-improvement logging. Score six axes from 0.0 to 1.0: accuracy,
completeness, relevance, clarity, efficiency, user_alignment. List brief
strengths and weaknesses.
Return a single JSON object with exactly these fields:
{"accuracy": number, "completeness": number, "relevance": number,
 "clarity": number, "efficiency": number, "user_alignment": number,
 "strengths": [string, ...], "weaknesses": [string, ...]}
No prose, no markdown fences, just the JSON object.`

// Evaluate scores one interaction, failing open to a neutral Evaluation if
// the LLM call or parse fails.
func (e *SelfEvaluator) Evaluate(ctx context.Context, in Interaction) Evaluation {
	resp, err := e.llm.Generate(ctx, llmclient.Request{
		System:       evalPrompt,
		ResponseJSON: true,
		Messages: []llmclient.Message{{Role: "user", Content: fmt.Sprintf(
			"Query: %s\nResponse: %s\nSteps used: %d/%d", in.Query, in.Response, in.StepsUsed, in.MaxSteps)}},
	})
	if err != nil {
		return Evaluation{Overall: 0.6}
	}
	raw := strings.TrimSpace(resp.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var ev Evaluation
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ev); err != nil {
		return Evaluation{Overall: 0.6}
	}
	ev.Overall = (ev.Accuracy + ev.Completeness + ev.Relevance + ev.Clarity + ev.Efficiency + ev.UserAlignment) / 6
	return ev
}

// ExperienceLearner writes completed interactions to episodic memory and
// recommends strategy overrides based on recent outcomes for a category.
type ExperienceLearner struct {
	episodes episodic.Store
}

// NewExperienceLearner builds an ExperienceLearner over an episodic store.
func NewExperienceLearner(episodes episodic.Store) *ExperienceLearner {
	return &ExperienceLearner{episodes: episodes}
}

// outcomeFor converts an Evaluation's overall score into an episode outcome.
func outcomeFor(overall float64) model.EpisodeOutcome {
	switch {
	case overall >= 0.75:
		return model.OutcomeSuccess
	case overall < 0.4:
		return model.OutcomeFailure
	default:
		return model.OutcomePartial
	}
}

// Learn persists the interaction as an Episode.
func (l *ExperienceLearner) Learn(ctx context.Context, in Interaction, ev Evaluation) error {
	outcome := outcomeFor(ev.Overall)
	_, err := l.episodes.Record(ctx, model.Episode{
		UserID:       in.UserID,
		Category:     in.Category,
		Query:        in.Query,
		Outcome:      outcome,
		QualityScore: ev.Overall,
		Lessons:      ev.Weaknesses,
	})
	return err
}

// Recommend inspects recent failures for category and, if failures
// dominate, recommends escalating to a more cautious execution mode.
func (l *ExperienceLearner) Recommend(ctx context.Context, category string) *strategy.ExperienceRecommendation {
	failures, err := l.episodes.FailurePatterns(ctx, category, 10)
	if err != nil || len(failures) < 3 {
		return nil
	}
	successes, _ := l.episodes.SuccessPatterns(ctx, category, 10)
	if len(failures) <= len(successes) {
		return nil
	}
	confidence := float64(len(failures)) / float64(len(failures)+len(successes))
	return &strategy.ExperienceRecommendation{
		Mode:          strategy.ModeCautious,
		Confidence:    confidence,
		Reason:        fmt.Sprintf("%d recent failures vs %d successes for category %q", len(failures), len(successes), category),
		ApplyPatterns: lessonsFrom(successes),
		AvoidPatterns: lessonsFrom(failures),
	}
}

// lessonsFrom collects the deduplicated, non-empty Lessons recorded against
// a set of past episodes, preserving their first-seen order.
func lessonsFrom(episodes []model.Episode) []string {
	seen := make(map[string]bool)
	var lessons []string
	for _, ep := range episodes {
		for _, lesson := range ep.Lessons {
			if lesson == "" || seen[lesson] {
				continue
			}
			seen[lesson] = true
			lessons = append(lessons, lesson)
		}
	}
	return lessons
}

// AdaptiveEvaluator applies a moving calibration offset derived from later
// user ratings to future SelfEvaluator scores, so systematic over- or
// under-scoring self-corrects over time.
type AdaptiveEvaluator struct {
	base *SelfEvaluator

	mu     sync.Mutex
	offset float64
	n      int
}

// NewAdaptiveEvaluator wraps a SelfEvaluator with a calibration offset.
func NewAdaptiveEvaluator(base *SelfEvaluator) *AdaptiveEvaluator {
	return &AdaptiveEvaluator{base: base}
}

// Evaluate scores an interaction and applies the current calibration offset.
func (a *AdaptiveEvaluator) Evaluate(ctx context.Context, in Interaction) Evaluation {
	ev := a.base.Evaluate(ctx, in)
	a.mu.Lock()
	offset := a.offset
	a.mu.Unlock()
	ev.Overall = clamp01(ev.Overall + offset)
	return ev
}

// Calibrate folds a later user rating (0..1) against the self-score the
// evaluator originally produced into the moving offset, using a simple
// incremental mean so the offset converges without storing history.
func (a *AdaptiveEvaluator) Calibrate(selfScore, userRating float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	delta := (userRating - selfScore - a.offset) / float64(a.n)
	a.offset += delta
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
