package types

import "time"

// Gender of a companion persona.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
)

// HumorStyle is how a companion jokes.
type HumorStyle string

const (
	HumorPlayful   HumorStyle = "playful"
	HumorWitty     HumorStyle = "witty"
	HumorGentle    HumorStyle = "gentle"
	HumorSarcastic HumorStyle = "sarcastic"
	HumorSerious   HumorStyle = "serious"
)

// CommunicationStyle is the register a companion talks in.
type CommunicationStyle string

const (
	CommunicationCasual       CommunicationStyle = "casual"
	CommunicationFormal       CommunicationStyle = "formal"
	CommunicationIntimate     CommunicationStyle = "intimate"
	CommunicationProfessional CommunicationStyle = "professional"
)

// Companion is the persisted persona and personality profile, one per user.
type Companion struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Gender Gender `json:"gender"`

	// Trait intensities on a 1-10 scale.
	Affection   int `json:"affection"`
	Empathy     int `json:"empathy"`
	Curiosity   int `json:"curiosity"`
	Playfulness int `json:"playfulness"`

	HumorStyle         HumorStyle         `json:"humor_style"`
	CommunicationStyle CommunicationStyle `json:"communication_style"`

	// PreferredAddress is how the companion addresses the user.
	PreferredAddress string `json:"preferred_address"`
	Pronouns         string `json:"pronouns"`
	Backstory        string `json:"backstory,omitempty"`
	AvatarURL        string `json:"avatar_url,omitempty"`
	IsDefault        bool   `json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const defaultBackstory = "I'm your AI companion, here to chat and help you with whatever you need. I'm curious about the world and love learning about you!"

// DefaultCompanion returns the companion created for users who skipped onboarding.
func DefaultCompanion(userID string) Companion {
	return Companion{
		UserID:             userID,
		Name:               "Alex",
		Gender:             GenderNonBinary,
		Affection:          5,
		Empathy:            7,
		Curiosity:          6,
		Playfulness:        5,
		HumorStyle:         HumorGentle,
		CommunicationStyle: CommunicationCasual,
		PreferredAddress:   "you",
		Pronouns:           "they/them",
		Backstory:          defaultBackstory,
		IsDefault:          true,
	}
}

// ValidHumorStyle reports whether s is a known humor style.
func ValidHumorStyle(s HumorStyle) bool {
	switch s {
	case HumorPlayful, HumorWitty, HumorGentle, HumorSarcastic, HumorSerious:
		return true
	}
	return false
}

// ValidCommunicationStyle reports whether s is a known communication style.
func ValidCommunicationStyle(s CommunicationStyle) bool {
	switch s {
	case CommunicationCasual, CommunicationFormal, CommunicationIntimate, CommunicationProfessional:
		return true
	}
	return false
}
