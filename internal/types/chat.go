package types

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DeletedByUser marks a turn removed by its owner.
const DeletedByUser = "user"

// Conversation groups the turns between a user and their companion.
type Conversation struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	CompanionID     string    `json:"companion_id"`
	Title           string    `json:"title"`
	IsActive        bool      `json:"is_active"`
	LastActivity    time.Time `json:"last_activity"`
	MessageCount    int       `json:"message_count"`
	UserMessages    int       `json:"user_messages"`
	AIMessages      int       `json:"ai_messages"`
	DeletedMessages int       `json:"deleted_messages"`
	EditedMessages  int       `json:"edited_messages"`
	CreatedAt       time.Time `json:"created_at"`
}

// Message is a single conversation turn.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	ReplyToID      string     `json:"reply_to_id,omitempty"`
	HasReplies     bool       `json:"has_replies"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      string     `json:"deleted_by,omitempty"`
	WordCount      int        `json:"word_count"`
	CharacterCount int        `json:"character_count"`
	Sentiment      string     `json:"sentiment,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
