// Package strategy adapts a query's classification into a concrete
// ExecutionPlan: which agents run, how many ReAct steps they get, and how
// cautious the run should be.
package strategy

import (
	"fmt"

	"ragmux/internal/classifier"
)

// ExecutionMode is the run's cautiousness/thoroughness tier.
type ExecutionMode string

const (
	ModeFast     ExecutionMode = "fast"
	ModeStandard ExecutionMode = "standard"
	ModeThorough ExecutionMode = "thorough"
	ModeCautious ExecutionMode = "cautious"
)

// ExperienceRecommendation is an override signal from the Experience
// Learner (internal/metacognition), applied when its confidence is
// sufficient. ApplyPatterns/AvoidPatterns carry the deduplicated lesson
// strings behind that confidence, so the execution plan can hand them
// down to the agents that ran successfully (or failed) on similar past
// queries.
type ExperienceRecommendation struct {
	Mode          ExecutionMode
	Confidence    float64
	Reason        string
	ApplyPatterns []string
	AvoidPatterns []string
}

// ExecutionPlan is the adapted strategy for one task.
type ExecutionPlan struct {
	Mode              ExecutionMode
	PrimaryAgent      string
	SupportingAgents  []string
	SkipAgents        []string
	DecomposeTask     bool
	MaxSteps          int
	RequireValidation bool
	ApplyPatterns     []string
	AvoidPatterns     []string
	Reason            string
	Confidence        float64
}

// agentCapabilities lists which specialist agents exist and what they're
// for. Used only for the human-readable Reason string.
var agentCapabilities = map[string]string{
	"casual_chat_agent": "handles greetings and small talk",
	"rag_agent":          "retrieves and grounds answers in the knowledge base",
	"thinking_agent":     "performs open-ended reasoning",
	"calculation_agent":  "performs numeric computation",
	"validation_agent":   "double-checks a calculation or claim",
	"translate_agent":    "translates text between languages",
	"summarize_agent":    "condenses long content",
	"planning_agent":     "breaks a goal into ordered steps",
	"tool_agent":         "invokes external tools",
}

// selectAgents maps a classified category to its primary and
// supporting agents.
func selectAgents(category string) (primary string, supporting []string) {
	switch category {
	case classifier.CategorySimpleChat:
		return "casual_chat_agent", nil
	case classifier.CategoryRAGSearch:
		return "rag_agent", []string{"thinking_agent"}
	case classifier.CategoryCalculation:
		return "calculation_agent", []string{"validation_agent"}
	case classifier.CategoryTranslation:
		return "translate_agent", nil
	case classifier.CategorySummarization:
		return "summarize_agent", nil
	case classifier.CategoryAnalysis:
		return "thinking_agent", []string{"rag_agent"}
	case classifier.CategoryPlanning:
		return "planning_agent", []string{"thinking_agent"}
	case classifier.CategoryCreative:
		return "thinking_agent", nil
	case classifier.CategoryMultiStep:
		return "planning_agent", []string{"thinking_agent", "rag_agent"}
	case classifier.CategoryToolUse:
		return "tool_agent", nil
	default:
		return "thinking_agent", nil
	}
}

// selectExecutionMode: repeated failures escalate to cautious first,
// simple_chat is always fast regardless of its classified complexity,
// then complexity drives the remaining default mode.
func selectExecutionMode(category string, complexity classifier.Complexity, recentFailureStreak int) ExecutionMode {
	if recentFailureStreak >= 2 {
		return ModeCautious
	}
	if category == classifier.CategorySimpleChat {
		return ModeFast
	}
	switch complexity {
	case classifier.ComplexityHigh:
		return ModeThorough
	case classifier.ComplexityLow:
		return ModeFast
	default:
		return ModeStandard
	}
}

// getMaxSteps: FAST=2, STANDARD=5, THOROUGH=10, CAUTIOUS=8, +2 for high
// complexity, -2 for low, floor 1.
func getMaxSteps(mode ExecutionMode, complexity classifier.Complexity) int {
	base := map[ExecutionMode]int{
		ModeFast:     2,
		ModeStandard: 5,
		ModeThorough: 10,
		ModeCautious: 8,
	}[mode]
	switch complexity {
	case classifier.ComplexityHigh:
		base += 2
	case classifier.ComplexityLow:
		base -= 2
	}
	if base < 1 {
		base = 1
	}
	return base
}

// determineSkipAgents: fast mode skips every supporting agent to keep
// the run cheap.
func determineSkipAgents(mode ExecutionMode, supporting []string) []string {
	if mode == ModeFast {
		return supporting
	}
	return nil
}

// decomposeTask reports whether the category needs an upfront planning
// breakdown before the ReAct loop starts.
func decomposeTask(category string) bool {
	return category == classifier.CategoryMultiStep || category == classifier.CategoryPlanning
}

// requireValidation gates the Quality Controller: fast mode is meant to
// stay cheap, the same reasoning that skips heavy supporting agents there.
func requireValidation(mode ExecutionMode) bool {
	return mode != ModeFast
}

// planConfidence reports how confident the adapter is in this plan: an
// experience override carries its own confidence forward, an active
// failure streak lowers it, otherwise it defaults high.
func planConfidence(recentFailureStreak int, experience *ExperienceRecommendation) float64 {
	if experience != nil && experience.Confidence > 0.5 {
		return experience.Confidence
	}
	if recentFailureStreak > 0 {
		return 0.5
	}
	return 0.9
}

func buildReason(category string, complexity classifier.Complexity, mode ExecutionMode, primary string) string {
	return fmt.Sprintf("category=%s complexity=%s mode=%s primary=%s (%s)",
		category, complexity, mode, primary, agentCapabilities[primary])
}

// Adapt runs the 7-step strategy pipeline: select agents -> select mode
// (escalating on failure streak) -> apply an experience override if
// confident enough -> size steps -> decide skips -> assemble the plan ->
// explain it.
func Adapt(category string, complexity classifier.Complexity, recentFailureStreak int, experience *ExperienceRecommendation) ExecutionPlan {
	primary, supporting := selectAgents(category)
	mode := selectExecutionMode(category, complexity, recentFailureStreak)

	var applyPatterns, avoidPatterns []string
	if experience != nil && experience.Confidence > 0.5 {
		mode = experience.Mode
		applyPatterns = experience.ApplyPatterns
		avoidPatterns = experience.AvoidPatterns
	}

	maxSteps := getMaxSteps(mode, complexity)
	skip := determineSkipAgents(mode, supporting)

	reason := buildReason(category, complexity, mode, primary)
	if experience != nil && experience.Confidence > 0.5 {
		reason += fmt.Sprintf("; experience override: %s", experience.Reason)
	}

	return ExecutionPlan{
		Mode:              mode,
		PrimaryAgent:      primary,
		SupportingAgents:  supporting,
		SkipAgents:        skip,
		DecomposeTask:     decomposeTask(category),
		MaxSteps:          maxSteps,
		RequireValidation: requireValidation(mode),
		ApplyPatterns:     applyPatterns,
		AvoidPatterns:     avoidPatterns,
		Reason:            reason,
		Confidence:        planConfidence(recentFailureStreak, experience),
	}
}
