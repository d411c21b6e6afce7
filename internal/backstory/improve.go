package backstory

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/companion/internal/models"
	"github.com/easeaico/companion/internal/prompt"
)

const (
	improveTemperature = 0.7
	improveMaxTokens   = 1000
)

// ImproveInput is a backstory to rewrite for a named companion.
type ImproveInput struct {
	Input
	CompanionName   string
	CompanionGender string
}

// Improvement is the rewritten backstory and its evaluation.
type Improvement struct {
	Backstory string `json:"improved_backstory"`
	Score     *Score `json:"score"`
}

// Improve asks the model for a richer backstory and then evaluates it.
func (e *Evaluator) Improve(ctx context.Context, in ImproveInput) (*Improvement, error) {
	temperature := float32(improveTemperature)
	req := &model.LLMRequest{
		Model: e.modelName,
		Contents: []*genai.Content{
			genai.NewContentFromText(improvementPrompt(in), genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are a professional creative writer and relationship expert. Write engaging, personal, and emotionally rich backstories.", genai.RoleUser),
			Temperature:       &temperature,
			MaxOutputTokens:   improveMaxTokens,
		},
	}

	resp, err := models.Generate(ctx, e.llm, req)
	if err != nil {
		return nil, fmt.Errorf("failed to improve backstory: %w", err)
	}
	improved, err := prompt.ParseReply(models.Text(resp))
	if err != nil {
		return nil, fmt.Errorf("failed to improve backstory: %w", err)
	}

	score, err := e.Evaluate(ctx, Input{Backstory: improved})
	if err != nil {
		return nil, err
	}
	return &Improvement{Backstory: improved, Score: score}, nil
}

func improvementPrompt(in ImproveInput) string {
	current := strings.TrimSpace(in.Backstory)
	if current == "" {
		current = "None provided"
	}
	details := strings.Join(in.Relationship.lines(), "\n")
	if details == "" {
		details = "None provided"
	}

	var sb strings.Builder
	sb.WriteString("You are an expert creative writer specializing in character development and relationship storytelling. ")
	sb.WriteString("Help improve this AI companion backstory to make it more detailed, emotionally rich, and engaging.\n\n")
	sb.WriteString("CURRENT INFORMATION:\n")
	fmt.Fprintf(&sb, "Companion Name: %s\n", in.CompanionName)
	fmt.Fprintf(&sb, "Companion Gender: %s\n", in.CompanionGender)
	fmt.Fprintf(&sb, "Current Backstory: %s\n", current)
	fmt.Fprintf(&sb, "Current Relationship Details:\n%s\n\n", details)
	sb.WriteString(`Please enhance this backstory by:
1. Adding vivid, specific details that make the relationship feel real and personal
2. Including emotional depth and meaningful moments
3. Creating a cohesive narrative that connects all the elements
4. Adding unique personality quirks and characteristics
5. Describing the living space and daily routines that make it feel authentic

Write an improved backstory of 200-400 words that incorporates and expands on the existing information. Reply with the backstory text only.`)
	return sb.String()
}
