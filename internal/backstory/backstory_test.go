package backstory

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type scriptedLLM struct {
	responses []*model.LLMResponse
	err       error
	requests  []*model.LLMRequest
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	s.requests = append(s.requests, req)
	return func(yield func(*model.LLMResponse, error) bool) {
		if s.err != nil {
			yield(nil, s.err)
			return
		}
		if len(s.responses) == 0 {
			return
		}
		resp := s.responses[0]
		s.responses = s.responses[1:]
		yield(resp, nil)
	}
}

func textResponse(text string) *model.LLMResponse {
	return &model.LLMResponse{Content: genai.NewContentFromText(text, genai.RoleModel), TurnComplete: true}
}

func newTestEvaluator(llm model.LLM) *Evaluator {
	e := NewEvaluator(llm, "grok-3-fast")
	e.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestEvaluateEmpty(t *testing.T) {
	_, err := newTestEvaluator(&scriptedLLM{}).Evaluate(context.Background(), Input{Backstory: "  ", Relationship: &Relationship{}})
	assert.ErrorIs(t, err, ErrNoBackstory)
}

func TestEvaluateFromFunctionCall(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.LLMResponse{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{
			FunctionCall: &genai.FunctionCall{
				Name: submitEvaluationTool,
				Args: map[string]any{
					"overall": 82,
					"criteria": map[string]any{
						"detail": 80, "consistency": 85, "emotional_depth": 78, "uniqueness": 70,
					},
					"suggestions": []any{"Name the cafe where you met"},
				},
			},
		}}},
	}}}

	score, err := newTestEvaluator(llm).Evaluate(context.Background(), Input{Backstory: "We met at a cafe in Lisbon."})
	require.NoError(t, err)
	assert.Equal(t, 82, score.Overall)
	assert.Equal(t, 78, score.Criteria.EmotionalDepth)
	assert.Equal(t, []string{"Name the cafe where you met"}, score.Suggestions)
	assert.False(t, score.Heuristic)

	require.Len(t, llm.requests, 1)
	cfg := llm.requests[0].Config
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, submitEvaluationTool, cfg.Tools[0].FunctionDeclarations[0].Name)
	assert.InDelta(t, 0.3, *cfg.Temperature, 1e-6)
}

func TestEvaluateFromFencedJSONText(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.LLMResponse{textResponse("```json\n{\"overall\": 60, \"criteria\": {\"detail\": 55, \"consistency\": 60, \"emotional_depth\": 50, \"uniqueness\": 65}, \"suggestions\": []}\n```")}}

	score, err := newTestEvaluator(llm).Evaluate(context.Background(), Input{Backstory: "short story"})
	require.NoError(t, err)
	assert.Equal(t, 60, score.Overall)
	assert.Equal(t, 65, score.Criteria.Uniqueness)
}

func TestEvaluateFallsBackOnMalformedOutput(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.LLMResponse{textResponse("I think it's pretty good!")}}

	score, err := newTestEvaluator(llm).Evaluate(context.Background(), Input{Backstory: "one two three four five"})
	require.NoError(t, err)
	assert.True(t, score.Heuristic)
	assert.Equal(t, 10, score.Overall)
	assert.Equal(t, Criteria{Detail: 5, Consistency: 10, EmotionalDepth: 1, Uniqueness: 5}, score.Criteria)
	assert.Len(t, score.Suggestions, 3)
}

func TestEvaluateFallsBackOnCallError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("503")}
	long := strings.Repeat("word ", 100)

	score, err := newTestEvaluator(llm).Evaluate(context.Background(), Input{Backstory: long})
	require.NoError(t, err)
	assert.Equal(t, 60, score.Overall)
	assert.Equal(t, Criteria{Detail: 40, Consistency: 60, EmotionalDepth: 50, Uniqueness: 55}, score.Criteria)
}

func TestHeuristicScoreStaysInRange(t *testing.T) {
	e := newTestEvaluator(&scriptedLLM{})
	for _, text := range []string{"", "hi", "a b", "one two three", strings.Repeat("word ", 500)} {
		score := e.heuristicScore(text)
		for _, v := range []int{score.Overall, score.Criteria.Detail, score.Criteria.Consistency,
			score.Criteria.EmotionalDepth, score.Criteria.Uniqueness} {
			assert.GreaterOrEqual(t, v, 1, "text %q", text)
			assert.LessOrEqual(t, v, 100, "text %q", text)
		}
	}

	score := e.heuristicScore("a b")
	assert.Equal(t, 4, score.Overall)
	assert.Equal(t, Criteria{Detail: 2, Consistency: 4, EmotionalDepth: 1, Uniqueness: 1}, score.Criteria)
}

func TestEvaluateFallsBackOnOutOfRangeScore(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.LLMResponse{textResponse(`{"overall": 0}`)}}
	score, err := newTestEvaluator(llm).Evaluate(context.Background(), Input{Backstory: "a b"})
	require.NoError(t, err)
	assert.True(t, score.Heuristic)
}

func TestEvaluateReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &scriptedLLM{err: context.Canceled}

	_, err := newTestEvaluator(llm).Evaluate(ctx, Input{Backstory: "a story"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInputTextIncludesRelationship(t *testing.T) {
	in := Input{
		Backstory: "We share a flat.",
		Relationship: &Relationship{
			HowYouMet:       "at a concert",
			LivingSituation: "living_together",
		},
	}
	text := in.Text()
	assert.Contains(t, text, "We share a flat.")
	assert.Contains(t, text, "How we met: at a concert")
	assert.Contains(t, text, "Living situation: living together")
	assert.NotContains(t, text, "Duration:")
}

func TestImproveRewritesThenEvaluates(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.LLMResponse{
		textResponse("  A much richer story about Lisbon.  "),
		textResponse(`{"overall": 90, "criteria": {"detail": 90, "consistency": 90, "emotional_depth": 90, "uniqueness": 90}, "suggestions": []}`),
	}}

	out, err := newTestEvaluator(llm).Improve(context.Background(), ImproveInput{
		Input:         Input{Backstory: "We met in Lisbon."},
		CompanionName: "Mira",
	})
	require.NoError(t, err)
	assert.Equal(t, "A much richer story about Lisbon.", out.Backstory)
	assert.Equal(t, 90, out.Score.Overall)

	require.Len(t, llm.requests, 2)
	assert.InDelta(t, 0.7, *llm.requests[0].Config.Temperature, 1e-6)
	assert.Contains(t, llm.requests[0].Contents[0].Parts[0].Text, "Companion Name: Mira")
	assert.Contains(t, llm.requests[0].Contents[0].Parts[0].Text, "Current Relationship Details:\nNone provided")
}

func TestImproveSurfacesModelFailure(t *testing.T) {
	_, err := newTestEvaluator(&scriptedLLM{err: errors.New("boom")}).Improve(context.Background(), ImproveInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
