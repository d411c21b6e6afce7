package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/easeaico/companion/internal/types"
)

// memoryModel maps to the memories table.
type memoryModel struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	UserID      string  `gorm:"index:idx_memories_user_visible;not null"`
	CompanionID string  `gorm:"index"`
	MessageID   *string `gorm:"type:uuid"`
	Content     string  `gorm:"not null"`
	Importance  int     `gorm:"not null"`
	Category    string  `gorm:"not null"`
	// Tags are stored as a JSONB array.
	Tags             json.RawMessage `gorm:"type:jsonb"`
	EmotionalContext string
	UserCreated      bool
	IsVisible        bool `gorm:"index:idx_memories_user_visible"`
	// Embedding stores vector representation for similarity search.
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time
}

func (memoryModel) TableName() string {
	return "memories"
}

// retrievedMemoryRow is a memories row plus its similarity score.
type retrievedMemoryRow struct {
	Memory     memoryModel `gorm:"embedded"`
	Similarity float64
}

// MemoryRepo accesses memory data.
type MemoryRepo struct {
	db *gorm.DB
}

// NewMemoryRepo returns a MemoryRepo.
func NewMemoryRepo(db *gorm.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) AddMemory(ctx context.Context, mem *types.Memory) error {
	if mem == nil {
		return fmt.Errorf("memory cannot be nil")
	}
	tags, err := marshalJSON(mem.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode memory tags: %w", err)
	}
	record := memoryModel{
		ID:               newID(mem.ID),
		UserID:           mem.UserID,
		CompanionID:      mem.CompanionID,
		MessageID:        nullableID(mem.MessageID),
		Content:          mem.Content,
		Importance:       mem.Importance,
		Category:         string(mem.Category),
		Tags:             tags,
		EmotionalContext: string(mem.EmotionalContext),
		UserCreated:      mem.UserCreated,
		IsVisible:        mem.IsVisible,
		Embedding:        toVector(mem.Embedding),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	mem.ID = record.ID
	mem.CreatedAt = record.CreatedAt
	return nil
}

// ListVisible returns the user's visible memories, newest first.
func (r *MemoryRepo) ListVisible(ctx context.Context, userID string, limit int) ([]types.Memory, error) {
	var records []memoryModel
	if err := r.db.WithContext(ctx).
		Omit("embedding").
		Where("user_id = ? AND is_visible = ?", userID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	results := make([]types.Memory, 0, len(records))
	for _, record := range records {
		results = append(results, memoryFromModel(record))
	}
	return results, nil
}

// Hide marks a memory invisible. It reports whether the user owned a visible memory with that ID.
func (r *MemoryRepo) Hide(ctx context.Context, userID, memoryID string) (bool, error) {
	if _, err := uuid.Parse(memoryID); err != nil {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&memoryModel{}).
		Where("id = ? AND user_id = ? AND is_visible = ?", memoryID, userID, true).
		Update("is_visible", false)
	if result.Error != nil {
		return false, fmt.Errorf("failed to hide memory: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SearchSimilar returns visible memories whose cosine similarity to embedding
// exceeds threshold, ranked by similarity with importance as a light tiebreak.
func (r *MemoryRepo) SearchSimilar(ctx context.Context, userID string, embedding []float32, topK int, threshold float64) ([]types.RetrievedMemory, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_id, companion_id, message_id, content, importance, category, tags,
		       emotional_context, user_created, is_visible, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM memories
		WHERE embedding IS NOT NULL
		  AND is_visible = true
		  AND user_id = $2
		  AND 1 - (embedding <=> $1) > $3
		ORDER BY (0.9 * (1 - (embedding <=> $1)) + 0.01 * importance) DESC
		LIMIT $4`

	var rows []retrievedMemoryRow
	if err := r.db.WithContext(ctx).
		Raw(query, pgvector.NewVector(embedding), userID, threshold, topK).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}

	results := make([]types.RetrievedMemory, 0, len(rows))
	for _, row := range rows {
		results = append(results, types.RetrievedMemory{
			Memory:     memoryFromModel(row.Memory),
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// memoryFromModel converts database model to domain struct.
func memoryFromModel(model memoryModel) types.Memory {
	var tags []string
	if err := unmarshalJSON(model.Tags, &tags); err != nil {
		slog.Warn("failed to decode memory tags", "memory_id", model.ID, "error", err.Error())
	}
	return types.Memory{
		ID:               model.ID,
		UserID:           model.UserID,
		CompanionID:      model.CompanionID,
		MessageID:        derefID(model.MessageID),
		Content:          model.Content,
		Importance:       model.Importance,
		Category:         types.MemoryCategory(model.Category),
		Tags:             tags,
		EmotionalContext: types.EmotionalContext(model.EmotionalContext),
		UserCreated:      model.UserCreated,
		IsVisible:        model.IsVisible,
		Embedding:        fromVector(model.Embedding),
		CreatedAt:        model.CreatedAt,
	}
}
