package prompt

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/easeaico/companion/internal/types"
)

// DefaultHistoryLimit is how many recent turns are kept when none is configured.
const DefaultHistoryLimit = 20

// ReplyContext is the earlier turn the new user message replies to.
type ReplyContext struct {
	OriginalContent string
	Role            types.Role
}

// Turn is a stored conversation turn fed back to the model.
type Turn = types.Message

// Input contains all inputs for prompt assembly.
type Input struct {
	Companion   *types.Companion
	RecentTurns []Turn
	NewMessage  string
	Reply       *ReplyContext
}

// Message is one entry of the chat message list sent to the model.
type Message struct {
	Role    types.Role
	Content string
}

// Prompt is an assembled, unsent model request body.
type Prompt struct {
	System   string
	Messages []Message
	// Reply is handed back so callers can show or log what was quoted.
	Reply *ReplyContext
}

// Builder assembles companion prompts. It holds no mutable state.
type Builder struct {
	historyLimit int
}

// NewBuilder creates a prompt Builder.
func NewBuilder(historyLimit int) *Builder {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Builder{historyLimit: historyLimit}
}

// Build validates the companion and assembles the system prompt and messages.
func (b *Builder) Build(in Input) (Prompt, error) {
	if err := ValidatePersonality(in.Companion); err != nil {
		return Prompt{}, err
	}

	system, err := renderSystem(in.Companion, in.Reply)
	if err != nil {
		return Prompt{}, err
	}

	turns := slices.Clone(in.RecentTurns)
	slices.SortStableFunc(turns, func(a, c Turn) int {
		return a.CreatedAt.Compare(c.CreatedAt)
	})
	if len(turns) > b.historyLimit {
		turns = turns[len(turns)-b.historyLimit:]
	}

	messages := make([]Message, 0, len(turns)+1)
	for _, turn := range turns {
		role := types.RoleUser
		if turn.Role == types.RoleAssistant {
			role = types.RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, Message{Role: types.RoleUser, Content: in.NewMessage})

	return Prompt{
		System:   system,
		Messages: messages,
		Reply:    in.Reply,
	}, nil
}

// Contents converts the prompt into genai contents, system first.
func (p Prompt) Contents() []*genai.Content {
	contents := make([]*genai.Content, 0, len(p.Messages)+1)
	contents = append(contents, genai.NewContentFromText(p.System, "system"))
	for _, msg := range p.Messages {
		role := genai.RoleUser
		if msg.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func renderSystem(c *types.Companion, reply *ReplyContext) (string, error) {
	background := strings.TrimSpace(c.Backstory)
	if background == "" {
		background = defaultBackground
	}

	data := systemData{
		Name:       c.Name,
		Gender:     string(c.Gender),
		Pronouns:   c.Pronouns,
		Background: background,
		Traits: []traitLine{
			newTraitLine(TraitAffection, "Affection Level", "AFFECTION EXPRESSION GUIDE", c.Affection),
			newTraitLine(TraitEmpathy, "Empathy Level", "EMPATHY RESPONSE GUIDE", c.Empathy),
			newTraitLine(TraitCuriosity, "Curiosity Level", "CURIOSITY BEHAVIOR", c.Curiosity),
			newTraitLine(TraitPlayfulness, "Playfulness", "PLAYFULNESS EXPRESSION", c.Playfulness),
		},
		HumorStyle:         string(c.HumorStyle),
		CommunicationStyle: string(c.CommunicationStyle),
		PreferredAddress:   c.PreferredAddress,
	}
	if reply != nil && strings.TrimSpace(reply.OriginalContent) != "" {
		speaker := "user"
		if reply.Role == types.RoleAssistant {
			speaker = "companion"
		}
		data.Reply = &replyLine{Speaker: speaker, OriginalContent: reply.OriginalContent}
	}

	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}

func newTraitLine(trait Trait, label, guideTitle string, level int) traitLine {
	return traitLine{
		Label:       label,
		GuideTitle:  guideTitle,
		Level:       level,
		Description: Description(trait, level),
		Guide:       Guide(trait, level),
	}
}
