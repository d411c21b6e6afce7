// Package backstory scores and rewrites companion backstories with the chat model.
package backstory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/companion/internal/models"
)

// ErrNoBackstory is returned when there is nothing to evaluate.
var ErrNoBackstory = errors.New("no backstory content provided")

const (
	submitEvaluationTool = "submit_evaluation"
	evaluateTemperature  = 0.3
	evaluateMaxTokens    = 800
)

// Relationship holds the optional structured relationship details.
type Relationship struct {
	HowYouMet            string
	Duration             string
	LivingSituation      string
	HomeDescription      string
	PartnerQuirks        string
	SharedMemories       string
	RelationshipDynamics string
}

func (r *Relationship) lines() []string {
	if r == nil {
		return nil
	}
	fields := []struct{ label, value string }{
		{"How we met", r.HowYouMet},
		{"Duration", r.Duration},
		{"Living situation", strings.ReplaceAll(r.LivingSituation, "_", " ")},
		{"Our home", r.HomeDescription},
		{"Partner quirks", r.PartnerQuirks},
		{"Shared memories", r.SharedMemories},
		{"Relationship dynamics", r.RelationshipDynamics},
	}
	var out []string
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			out = append(out, f.label+": "+v)
		}
	}
	return out
}

// Input is the backstory text plus optional relationship details.
type Input struct {
	Backstory    string
	Relationship *Relationship
}

// Text joins the backstory and relationship details into one document.
func (in Input) Text() string {
	parts := []string{}
	if s := strings.TrimSpace(in.Backstory); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, in.Relationship.lines()...)
	return strings.Join(parts, "\n\n")
}

// Criteria are per-aspect scores on a 1-100 scale.
type Criteria struct {
	Detail         int `json:"detail"`
	Consistency    int `json:"consistency"`
	EmotionalDepth int `json:"emotional_depth"`
	Uniqueness     int `json:"uniqueness"`
}

// Score is a backstory evaluation.
type Score struct {
	Overall     int       `json:"overall"`
	Criteria    Criteria  `json:"criteria"`
	Suggestions []string  `json:"suggestions"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	// Heuristic is set when the score came from the word-count fallback.
	Heuristic bool `json:"heuristic"`
}

// Evaluator calls the chat model to grade and improve backstories.
type Evaluator struct {
	llm       model.LLM
	modelName string
	now       func() time.Time
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(llm model.LLM, modelName string) *Evaluator {
	return &Evaluator{llm: llm, modelName: modelName, now: time.Now}
}

// Evaluate grades the backstory. Model failures and malformed output fall
// back to a deterministic word-count score; cancellation is returned as is.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*Score, error) {
	text := in.Text()
	if text == "" {
		return nil, ErrNoBackstory
	}

	score, err := e.evaluateWithModel(ctx, text)
	if err == nil {
		return score, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	slog.Warn("backstory evaluation fell back to heuristic", "error", err.Error())
	return e.heuristicScore(text), nil
}

func (e *Evaluator) evaluateWithModel(ctx context.Context, text string) (*Score, error) {
	temperature := float32(evaluateTemperature)
	req := &model.LLMRequest{
		Model: e.modelName,
		Contents: []*genai.Content{
			genai.NewContentFromText(evaluationPrompt(text), genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are a professional storytelling and relationship consultant. Always submit your evaluation with the submit_evaluation function.", genai.RoleUser),
			Temperature:       &temperature,
			MaxOutputTokens:   evaluateMaxTokens,
			Tools: []*genai.Tool{{
				FunctionDeclarations: []*genai.FunctionDeclaration{{
					Name:                 submitEvaluationTool,
					Description:          "Submit the backstory evaluation scores and suggestions.",
					ParametersJsonSchema: evaluationSchema(),
				}},
			}},
		},
	}

	resp, err := models.Generate(ctx, e.llm, req)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if call := models.FunctionCall(resp, submitEvaluationTool); call != nil {
		raw, err = json.Marshal(call.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode evaluation arguments: %w", err)
		}
	} else {
		raw = []byte(extractJSONObject(models.Text(resp)))
	}

	var score Score
	if err := json.Unmarshal(raw, &score); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation: %w", err)
	}
	if score.Overall < 1 || score.Overall > 100 {
		return nil, fmt.Errorf("evaluation overall score %d out of range", score.Overall)
	}
	score.EvaluatedAt = e.now()
	score.Heuristic = false
	return &score, nil
}

var stockSuggestions = []string{
	"Add more specific details about your relationship",
	"Include more emotional context and personal moments",
	"Describe unique quirks and characteristics of your partner",
}

func (e *Evaluator) heuristicScore(text string) *Score {
	words := len(strings.Fields(text))
	base := max(1, min(words*2, 60))
	return &Score{
		Overall: base,
		Criteria: Criteria{
			Detail:         max(1, min(words, 40)),
			Consistency:    base,
			EmotionalDepth: max(1, base-10),
			Uniqueness:     max(1, base-5),
		},
		Suggestions: append([]string(nil), stockSuggestions...),
		EvaluatedAt: e.now(),
		Heuristic:   true,
	}
}

func evaluationPrompt(text string) string {
	return `You are an expert storytelling and relationship consultant. Please evaluate this AI companion backstory and provide detailed feedback.

BACKSTORY TO EVALUATE:
` + text + `

Score it on a scale of 1-100 for these criteria:
1. DETAIL: How rich and detailed is the backstory?
2. CONSISTENCY: How believable and internally consistent is it?
3. EMOTIONAL_DEPTH: How emotionally rich and connecting is it?
4. UNIQUENESS: How unique and personal does it feel?

Also provide 3-5 specific suggestions for improvement.`
}

func evaluationSchema() *jsonschema.Schema {
	minScore, maxScore := 1.0, 100.0
	score := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "integer", Description: desc, Minimum: &minScore, Maximum: &maxScore}
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"overall": score("Overall score"),
			"criteria": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"detail":          score("How rich and detailed the backstory is"),
					"consistency":     score("How believable and internally consistent it is"),
					"emotional_depth": score("How emotionally rich and connecting it is"),
					"uniqueness":      score("How unique and personal it feels"),
				},
				Required: []string{"detail", "consistency", "emotional_depth", "uniqueness"},
			},
			"suggestions": {
				Type:        "array",
				Description: "3-5 specific suggestions for improvement",
				Items:       &jsonschema.Schema{Type: "string"},
			},
		},
		Required: []string{"overall", "criteria", "suggestions"},
	}
}

// extractJSONObject returns the outermost {...} span, tolerating code fences.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
