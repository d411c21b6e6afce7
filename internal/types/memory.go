package types

import "time"

// MemoryCategory classifies what kind of fact a memory holds.
type MemoryCategory string

const (
	CategoryPersonal     MemoryCategory = "personal"
	CategoryPreference   MemoryCategory = "preference"
	CategoryRelationship MemoryCategory = "relationship"
	CategoryExperience   MemoryCategory = "experience"
	CategoryKnowledge    MemoryCategory = "knowledge"
	CategoryEmotion      MemoryCategory = "emotion"
)

// ValidMemoryCategory reports whether c is a known category.
func ValidMemoryCategory(c MemoryCategory) bool {
	switch c {
	case CategoryPersonal, CategoryPreference, CategoryRelationship,
		CategoryExperience, CategoryKnowledge, CategoryEmotion:
		return true
	}
	return false
}

// EmotionalContext is the coarse emotional tone a memory was formed in.
type EmotionalContext string

const (
	EmotionNone      EmotionalContext = ""
	EmotionNostalgic EmotionalContext = "nostalgic"
	EmotionNegative  EmotionalContext = "negative"
	EmotionPositive  EmotionalContext = "positive"
)

const (
	MinImportance = 1
	MaxImportance = 10
)

// Memory is a durable fact about the user, remembered by one companion.
type Memory struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	CompanionID      string           `json:"companion_id"`
	MessageID        string           `json:"message_id,omitempty"`
	Content          string           `json:"content"`
	Importance       int              `json:"importance"`
	Category         MemoryCategory   `json:"category"`
	Tags             []string         `json:"tags"`
	EmotionalContext EmotionalContext `json:"emotional_context,omitempty"`
	UserCreated      bool             `json:"user_created"`
	IsVisible        bool             `json:"is_visible"`
	Embedding        []float32        `json:"-"` // embedding vector, not serialized
	CreatedAt        time.Time        `json:"created_at"`
}

// RetrievedMemory is a memory returned by similarity search.
type RetrievedMemory struct {
	Memory
	Similarity float64 `json:"similarity"`
}
