package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/companion/internal/types"
)

const defaultConversationTitle = "New Conversation"

// conversationModel maps to the conversations table.
type conversationModel struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	UserID          string `gorm:"index:idx_conversations_owner;not null"`
	CompanionID     string `gorm:"type:uuid;index:idx_conversations_owner;not null"`
	Title           string
	IsActive        bool `gorm:"index"`
	LastActivity    time.Time
	MessageCount    int
	UserMessages    int
	AIMessages      int `gorm:"column:ai_messages"`
	DeletedMessages int
	EditedMessages  int
	CreatedAt       time.Time
}

func (conversationModel) TableName() string {
	return "conversations"
}

// ConversationRepo accesses conversation data.
type ConversationRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewConversationRepo returns a ConversationRepo.
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db, now: time.Now}
}

// GetOrCreateActive returns the active conversation for the pair, starting one if needed.
func (r *ConversationRepo) GetOrCreateActive(ctx context.Context, userID, companionID string) (*types.Conversation, error) {
	var record conversationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND companion_id = ? AND is_active = ?", userID, companionID, true).
		Order("last_activity DESC").
		First(&record).Error
	if err == nil {
		return conversationFromModel(record), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query active conversation: %w", err)
	}

	record = conversationModel{
		ID:           newID(""),
		UserID:       userID,
		CompanionID:  companionID,
		Title:        defaultConversationTitle,
		IsActive:     true,
		LastActivity: r.now(),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conversationFromModel(record), nil
}

// GetByID returns the conversation, or nil when it does not exist.
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*types.Conversation, error) {
	var record conversationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conversationFromModel(record), nil
}

// ListByUser returns every conversation the user owns, newest activity first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string) ([]types.Conversation, error) {
	var records []conversationModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	results := make([]types.Conversation, 0, len(records))
	for _, record := range records {
		results = append(results, *conversationFromModel(record))
	}
	return results, nil
}

// RecordTurn counts one user and one assistant message and bumps activity.
func (r *ConversationRepo) RecordTurn(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).
		Model(&conversationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"message_count": gorm.Expr("message_count + ?", 2),
			"user_messages": gorm.Expr("user_messages + ?", 1),
			"ai_messages":   gorm.Expr("ai_messages + ?", 1),
			"last_activity": r.now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update conversation counters: %w", err)
	}
	return nil
}

// RecordDeletions counts soft-deleted messages and bumps activity.
func (r *ConversationRepo) RecordDeletions(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&conversationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_messages": gorm.Expr("deleted_messages + ?", n),
			"last_activity":    r.now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update conversation deletions: %w", err)
	}
	return nil
}

func conversationFromModel(model conversationModel) *types.Conversation {
	return &types.Conversation{
		ID:              model.ID,
		UserID:          model.UserID,
		CompanionID:     model.CompanionID,
		Title:           model.Title,
		IsActive:        model.IsActive,
		LastActivity:    model.LastActivity,
		MessageCount:    model.MessageCount,
		UserMessages:    model.UserMessages,
		AIMessages:      model.AIMessages,
		DeletedMessages: model.DeletedMessages,
		EditedMessages:  model.EditedMessages,
		CreatedAt:       model.CreatedAt,
	}
}
