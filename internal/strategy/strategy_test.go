package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragmux/internal/classifier"
)

func TestAdapt_SimpleChatIsFastWithLowStepBudget(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 0, nil)
	assert.Equal(t, "casual_chat_agent", plan.PrimaryAgent)
	assert.Equal(t, ModeFast, plan.Mode)
	assert.Equal(t, 1, plan.MaxSteps) // base 2, -2 for low complexity, floored to 1
}

func TestAdapt_SimpleChatStaysFastRegardlessOfClassifiedComplexity(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityHigh, 0, nil)
	assert.Equal(t, ModeFast, plan.Mode)
}

func TestAdapt_MultiStepRequiresDecomposition(t *testing.T) {
	plan := Adapt(classifier.CategoryMultiStep, classifier.ComplexityMedium, 0, nil)
	assert.True(t, plan.DecomposeTask)
}

func TestAdapt_FastModeSkipsValidation(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 0, nil)
	assert.False(t, plan.RequireValidation)
}

func TestAdapt_StandardModeRequiresValidation(t *testing.T) {
	plan := Adapt(classifier.CategoryAnalysis, classifier.ComplexityMedium, 0, nil)
	assert.True(t, plan.RequireValidation)
}

func TestAdapt_ExperiencePatternsCarryThroughWhenConfident(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 0, &ExperienceRecommendation{
		Mode: ModeCautious, Confidence: 0.9, Reason: "past failures",
		ApplyPatterns: []string{"cite sources"}, AvoidPatterns: []string{"skip validation"},
	})
	assert.Equal(t, []string{"cite sources"}, plan.ApplyPatterns)
	assert.Equal(t, []string{"skip validation"}, plan.AvoidPatterns)
}

func TestAdapt_ConfidenceDefaultsHighWithNoFailuresOrOverride(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 0, nil)
	assert.Equal(t, 0.9, plan.Confidence)
}

func TestAdapt_ConfidenceLowersDuringAnActiveFailureStreak(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 1, nil)
	assert.Equal(t, 0.5, plan.Confidence)
}

func TestAdapt_RAGSearchIncludesThinkingAgentAsSupport(t *testing.T) {
	plan := Adapt(classifier.CategoryRAGSearch, classifier.ComplexityMedium, 0, nil)
	assert.Equal(t, "rag_agent", plan.PrimaryAgent)
	assert.Contains(t, plan.SupportingAgents, "thinking_agent")
}

func TestAdapt_FastModeSkipsEverySupportingAgent(t *testing.T) {
	plan := Adapt(classifier.CategoryRAGSearch, classifier.ComplexityLow, 0, nil)
	assert.Equal(t, ModeFast, plan.Mode)
	assert.Equal(t, plan.SupportingAgents, plan.SkipAgents)
}

func TestAdapt_HighComplexityIsThoroughWithLargerStepBudget(t *testing.T) {
	plan := Adapt(classifier.CategoryAnalysis, classifier.ComplexityHigh, 0, nil)
	assert.Equal(t, ModeThorough, plan.Mode)
	assert.Equal(t, 12, plan.MaxSteps) // base 10, +2 for high complexity
}

func TestAdapt_RepeatedFailuresEscalateToCautious(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 2, nil)
	assert.Equal(t, ModeCautious, plan.Mode)
}

func TestAdapt_ConfidentExperienceRecommendationOverridesMode(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 0, &ExperienceRecommendation{
		Mode: ModeCautious, Confidence: 0.9, Reason: "past failures on this category",
	})
	assert.Equal(t, ModeCautious, plan.Mode)
	assert.Contains(t, plan.Reason, "experience override")
}

func TestAdapt_LowConfidenceExperienceRecommendationIsIgnored(t *testing.T) {
	plan := Adapt(classifier.CategorySimpleChat, classifier.ComplexityLow, 0, &ExperienceRecommendation{
		Mode: ModeCautious, Confidence: 0.3, Reason: "weak signal",
	})
	assert.Equal(t, ModeFast, plan.Mode)
}

func TestAdjustmentLog_TrimsToMostRecent50OnceCapHit(t *testing.T) {
	log := NewAdjustmentLog()
	for i := 0; i < 101; i++ {
		log.Record(RuntimeAdjustment{Category: "simple_chat", Mode: ModeStandard})
	}
	assert.Len(t, log.All(), 50)
}
