package metacognition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragmux/internal/llmclient"
	"ragmux/internal/model"
	"ragmux/internal/strategy"
)

type stubProvider struct {
	content string
	err     error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	if s.err != nil {
		return llmclient.Response{}, s.err
	}
	return llmclient.Response{Content: s.content}, nil
}

type fakeEpisodicStore struct {
	recorded  []model.Episode
	successes []model.Episode
	failures  []model.Episode
}

func (f *fakeEpisodicStore) Init(ctx context.Context) error { return nil }

func (f *fakeEpisodicStore) Record(ctx context.Context, ep model.Episode) (model.Episode, error) {
	f.recorded = append(f.recorded, ep)
	return ep, nil
}

func (f *fakeEpisodicStore) FindSimilar(ctx context.Context, userID, category string, limit int) ([]model.Episode, error) {
	return nil, nil
}

func (f *fakeEpisodicStore) SuccessPatterns(ctx context.Context, category string, limit int) ([]model.Episode, error) {
	return f.successes, nil
}

func (f *fakeEpisodicStore) FailurePatterns(ctx context.Context, category string, limit int) ([]model.Episode, error) {
	return f.failures, nil
}

func TestEvaluate_ComputesOverallAsSixAxisMean(t *testing.T) {
	e := NewSelfEvaluator(llmclient.New(stubProvider{content: `{"accuracy":0.8,"completeness":0.8,"relevance":0.8,"clarity":0.8,"efficiency":0.8,"user_alignment":0.8,"strengths":[],"weaknesses":[]}`}))
	ev := e.Evaluate(context.Background(), Interaction{Query: "q", Response: "r"})
	assert.InDelta(t, 0.8, ev.Overall, 0.001)
}

func TestEvaluate_FailsOpenOnLLMError(t *testing.T) {
	e := NewSelfEvaluator(llmclient.New(stubProvider{err: errors.New("down")}))
	ev := e.Evaluate(context.Background(), Interaction{Query: "q", Response: "r"})
	assert.Equal(t, 0.6, ev.Overall)
}

func TestEvaluate_FailsOpenOnUnparseableResponse(t *testing.T) {
	e := NewSelfEvaluator(llmclient.New(stubProvider{content: "garbage"}))
	ev := e.Evaluate(context.Background(), Interaction{Query: "q", Response: "r"})
	assert.Equal(t, 0.6, ev.Overall)
}

func TestEvaluate_StripsMarkdownFences(t *testing.T) {
	e := NewSelfEvaluator(llmclient.New(stubProvider{content: "```json\n{\"accuracy\":1,\"completeness\":1,\"relevance\":1,\"clarity\":1,\"efficiency\":1,\"user_alignment\":1,\"strengths\":[],\"weaknesses\":[]}\n```"}))
	ev := e.Evaluate(context.Background(), Interaction{Query: "q", Response: "r"})
	assert.InDelta(t, 1.0, ev.Overall, 0.001)
}

func TestOutcomeFor_ClassifiesByOverallScore(t *testing.T) {
	assert.Equal(t, model.OutcomeSuccess, outcomeFor(0.9))
	assert.Equal(t, model.OutcomePartial, outcomeFor(0.5))
	assert.Equal(t, model.OutcomeFailure, outcomeFor(0.2))
}

func TestLearn_RecordsEpisodeWithDerivedOutcome(t *testing.T) {
	store := &fakeEpisodicStore{}
	l := NewExperienceLearner(store)
	err := l.Learn(context.Background(), Interaction{UserID: "u1", Category: "calculation", Query: "q"}, Evaluation{Overall: 0.9, Weaknesses: []string{"too slow"}})
	require.NoError(t, err)
	require.Len(t, store.recorded, 1)
	assert.Equal(t, model.OutcomeSuccess, store.recorded[0].Outcome)
	assert.Equal(t, []string{"too slow"}, store.recorded[0].Lessons)
}

func TestRecommend_ReturnsNilWhenFewerThanThreeFailures(t *testing.T) {
	store := &fakeEpisodicStore{failures: []model.Episode{{}, {}}}
	l := NewExperienceLearner(store)
	rec := l.Recommend(context.Background(), "calculation")
	assert.Nil(t, rec)
}

func TestRecommend_ReturnsNilWhenSuccessesOutnumberFailures(t *testing.T) {
	store := &fakeEpisodicStore{
		failures:  []model.Episode{{}, {}, {}},
		successes: []model.Episode{{}, {}, {}, {}},
	}
	l := NewExperienceLearner(store)
	rec := l.Recommend(context.Background(), "calculation")
	assert.Nil(t, rec)
}

func TestRecommend_RecommendsCautiousModeWhenFailuresDominate(t *testing.T) {
	store := &fakeEpisodicStore{
		failures:  []model.Episode{{}, {}, {}, {}},
		successes: []model.Episode{{}},
	}
	l := NewExperienceLearner(store)
	rec := l.Recommend(context.Background(), "calculation")
	require.NotNil(t, rec)
	assert.Equal(t, strategy.ModeCautious, rec.Mode)
	assert.InDelta(t, 0.8, rec.Confidence, 0.01)
}

func TestAdaptiveEvaluator_AppliesCalibrationOffset(t *testing.T) {
	base := NewSelfEvaluator(llmclient.New(stubProvider{content: `{"accuracy":0.5,"completeness":0.5,"relevance":0.5,"clarity":0.5,"efficiency":0.5,"user_alignment":0.5,"strengths":[],"weaknesses":[]}`}))
	a := NewAdaptiveEvaluator(base)

	a.Calibrate(0.5, 0.7)
	ev := a.Evaluate(context.Background(), Interaction{Query: "q", Response: "r"})
	assert.InDelta(t, 0.7, ev.Overall, 0.001)
}

func TestAdaptiveEvaluator_ClampsOverallToUnitRange(t *testing.T) {
	base := NewSelfEvaluator(llmclient.New(stubProvider{content: `{"accuracy":1,"completeness":1,"relevance":1,"clarity":1,"efficiency":1,"user_alignment":1,"strengths":[],"weaknesses":[]}`}))
	a := NewAdaptiveEvaluator(base)

	a.Calibrate(0.5, 1.0)
	ev := a.Evaluate(context.Background(), Interaction{Query: "q", Response: "r"})
	assert.Equal(t, 1.0, ev.Overall)
}
