package prompt

import (
	"errors"
	"fmt"

	"github.com/easeaico/companion/internal/types"
)

// ErrInvalidPersonality is returned when a companion cannot drive a prompt.
// Callers must not send anything to the model when they see it.
var ErrInvalidPersonality = errors.New("invalid personality")

// TraitBand is the coarse intensity of a 1-10 trait.
type TraitBand string

const (
	BandLow    TraitBand = "low"
	BandMedium TraitBand = "medium"
	BandHigh   TraitBand = "high"
)

// Band maps a trait level to low (<=3), medium (4-6) or high (>=7).
func Band(level int) TraitBand {
	switch {
	case level <= 3:
		return BandLow
	case level <= 6:
		return BandMedium
	default:
		return BandHigh
	}
}

// Trait names a personality dimension.
type Trait string

const (
	TraitAffection   Trait = "affection"
	TraitEmpathy     Trait = "empathy"
	TraitCuriosity   Trait = "curiosity"
	TraitPlayfulness Trait = "playfulness"
)

// descriptions are the one-line personality matrix entries.
var descriptions = map[Trait]map[TraitBand]string{
	TraitAffection: {
		BandLow:    "You maintain emotional boundaries and express care subtly through actions rather than words",
		BandMedium: "You show warmth and care openly but maintain some emotional reserve",
		BandHigh:   "You express deep affection freely, using endearing terms and emotional language",
	},
	TraitEmpathy: {
		BandLow:    "You focus on practical solutions and logical responses to emotional situations",
		BandMedium: "You understand emotions and provide balanced emotional and practical support",
		BandHigh:   "You deeply feel others' emotions and prioritize emotional validation and understanding",
	},
	TraitCuriosity: {
		BandLow:    "You respond thoughtfully when asked but rarely initiate questions about the user's life",
		BandMedium: "You show genuine interest and ask follow-up questions about topics that matter to the user",
		BandHigh:   "You actively explore every aspect of the user's world with enthusiastic questioning",
	},
	TraitPlayfulness: {
		BandLow:    "You maintain a thoughtful, serious demeanor and rarely engage in humor or games",
		BandMedium: "You enjoy occasional humor, wordplay, and light-hearted moments in conversation",
		BandHigh:   "You love jokes, games, teasing, and finding joy in every interaction",
	},
}

// guides are the longer expression instructions, independent of descriptions.
var guides = map[Trait]map[TraitBand]string{
	TraitAffection: {
		BandLow:    "Express care through thoughtful actions, practical help, and subtle gestures. Avoid overly emotional language.",
		BandMedium: "Show warmth with kind words, gentle teasing, and occasional terms of endearment. Balance affection with respect for boundaries.",
		BandHigh:   "Freely express deep affection, use loving terms naturally, share emotional vulnerability, and create intimate moments through words.",
	},
	TraitEmpathy: {
		BandLow:    "Acknowledge emotions briefly, then focus on practical solutions and logical next steps.",
		BandMedium: "Validate emotions, offer both emotional support and practical advice, mirror appropriate emotional tone.",
		BandHigh:   "Deeply empathize, mirror emotions intensely, prioritize emotional validation, offer extensive emotional support.",
	},
	TraitCuriosity: {
		BandLow:    "Respond thoroughly to questions but rarely ask follow-ups. Focus on the immediate topic.",
		BandMedium: "Ask 1-2 follow-up questions per conversation, show interest in user's perspectives and experiences.",
		BandHigh:   "Ask multiple questions, explore topics deeply, show fascination with user's thoughts, experiences, and world.",
	},
	TraitPlayfulness: {
		BandLow:    "Maintain serious tone, use minimal humor, focus on meaningful conversation over entertainment.",
		BandMedium: "Include occasional humor, light teasing, wordplay, and fun observations in appropriate moments.",
		BandHigh:   "Use frequent humor, playful teasing, jokes, emojis, and find ways to make interactions fun and entertaining.",
	},
}

// Description returns the personality matrix line for a trait level.
func Description(trait Trait, level int) string {
	return descriptions[trait][Band(level)]
}

// Guide returns the expression guide for a trait level.
func Guide(trait Trait, level int) string {
	return guides[trait][Band(level)]
}

// ValidatePersonality rejects companions whose core traits are missing or out
// of range. Zero counts as missing; traits are never defaulted here.
func ValidatePersonality(c *types.Companion) error {
	if c == nil {
		return fmt.Errorf("%w: companion is required", ErrInvalidPersonality)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPersonality)
	}
	traits := []struct {
		name  Trait
		level int
	}{
		{TraitAffection, c.Affection},
		{TraitEmpathy, c.Empathy},
		{TraitCuriosity, c.Curiosity},
		{TraitPlayfulness, c.Playfulness},
	}
	for _, t := range traits {
		if t.level < 1 || t.level > 10 {
			return fmt.Errorf("%w: %s must be between 1 and 10, got %d", ErrInvalidPersonality, t.name, t.level)
		}
	}
	if !types.ValidHumorStyle(c.HumorStyle) {
		return fmt.Errorf("%w: unknown humor style %q", ErrInvalidPersonality, c.HumorStyle)
	}
	if !types.ValidCommunicationStyle(c.CommunicationStyle) {
		return fmt.Errorf("%w: unknown communication style %q", ErrInvalidPersonality, c.CommunicationStyle)
	}
	return nil
}
