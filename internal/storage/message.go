package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/easeaico/companion/internal/types"
)

// messageModel maps to the messages table.
type messageModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	ConversationID string  `gorm:"type:uuid;index:idx_messages_conversation_created;not null"`
	Role           string  `gorm:"not null"`
	Content        string  `gorm:"not null"`
	ReplyToID      *string `gorm:"type:uuid"`
	HasReplies     bool
	IsDeleted      bool `gorm:"index"`
	DeletedAt      *time.Time
	DeletedBy      string
	WordCount      int
	CharacterCount int
	Sentiment      string
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created"`
}

func (messageModel) TableName() string {
	return "messages"
}

// MessageRepo accesses conversation turns.
type MessageRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMessageRepo returns a MessageRepo.
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db, now: time.Now}
}

// Create inserts the message and fills in its ID and timestamp.
func (r *MessageRepo) Create(ctx context.Context, msg *types.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	record := messageToModel(msg)
	record.ID = newID(record.ID)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msg.ID = record.ID
	msg.CreatedAt = record.CreatedAt
	return nil
}

// GetByID returns the message, or nil when it does not exist or id is not a UUID.
func (r *MessageRepo) GetByID(ctx context.Context, id string) (*types.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var record messageModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	msg := messageFromModel(record)
	return &msg, nil
}

// GetRecent returns up to limit visible messages, oldest to newest.
// excludeID, when set, is left out of the window.
func (r *MessageRepo) GetRecent(ctx context.Context, conversationID string, limit int, excludeID string) ([]types.Message, error) {
	query := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC").
		Limit(limit)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var records []messageModel
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}

	results := make([]types.Message, 0, len(records))
	for _, record := range records {
		results = append(results, messageFromModel(record))
	}

	// Oldest -> newest
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// ListAll returns every message of the conversation, deleted ones included, oldest first.
func (r *MessageRepo) ListAll(ctx context.Context, conversationID string) ([]types.Message, error) {
	var records []messageModel
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	results := make([]types.Message, 0, len(records))
	for _, record := range records {
		results = append(results, messageFromModel(record))
	}
	return results, nil
}

func (r *MessageRepo) MarkHasReplies(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ?", id).
		Update("has_replies", true).Error; err != nil {
		return fmt.Errorf("failed to mark message replied: %w", err)
	}
	return nil
}

// SoftDelete hides one message. It reports whether a visible message was hidden.
func (r *MessageRepo) SoftDelete(ctx context.Context, id, deletedBy string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(r.deletion(deletedBy))
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete message: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SoftDeleteAll hides every visible message of the conversation and returns the count.
func (r *MessageRepo) SoftDeleteAll(ctx context.Context, conversationID, deletedBy string) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Updates(r.deletion(deletedBy))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *MessageRepo) deletion(deletedBy string) map[string]any {
	return map[string]any{
		"is_deleted": true,
		"deleted_at": r.now(),
		"deleted_by": deletedBy,
	}
}

func messageToModel(msg *types.Message) messageModel {
	return messageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		ReplyToID:      nullableID(msg.ReplyToID),
		HasReplies:     msg.HasReplies,
		IsDeleted:      msg.IsDeleted,
		DeletedAt:      msg.DeletedAt,
		DeletedBy:      msg.DeletedBy,
		WordCount:      msg.WordCount,
		CharacterCount: msg.CharacterCount,
		Sentiment:      msg.Sentiment,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(model messageModel) types.Message {
	return types.Message{
		ID:             model.ID,
		ConversationID: model.ConversationID,
		Role:           types.Role(model.Role),
		Content:        model.Content,
		ReplyToID:      derefID(model.ReplyToID),
		HasReplies:     model.HasReplies,
		IsDeleted:      model.IsDeleted,
		DeletedAt:      model.DeletedAt,
		DeletedBy:      model.DeletedBy,
		WordCount:      model.WordCount,
		CharacterCount: model.CharacterCount,
		Sentiment:      model.Sentiment,
		CreatedAt:      model.CreatedAt,
	}
}
