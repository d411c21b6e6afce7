package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/companion/internal/types"
)

// companionModel maps to the companions table. One companion per user.
type companionModel struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	UserID             string `gorm:"uniqueIndex;not null"`
	Name               string `gorm:"not null"`
	Gender             string `gorm:"not null"`
	Affection          int    `gorm:"column:affection_level;not null"`
	Empathy            int    `gorm:"column:empathy_level;not null"`
	Curiosity          int    `gorm:"column:curiosity_level;not null"`
	Playfulness        int    `gorm:"not null"`
	HumorStyle         string `gorm:"not null"`
	CommunicationStyle string `gorm:"not null"`
	PreferredAddress   string
	Pronouns           string
	Backstory          string
	AvatarURL          string
	IsDefault          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (companionModel) TableName() string {
	return "companions"
}

// CompanionRepo accesses companion data.
type CompanionRepo struct {
	db *gorm.DB
}

// NewCompanionRepo returns a CompanionRepo.
func NewCompanionRepo(db *gorm.DB) *CompanionRepo {
	return &CompanionRepo{db: db}
}

// GetByUser returns the user's companion, or nil when none exists.
func (r *CompanionRepo) GetByUser(ctx context.Context, userID string) (*types.Companion, error) {
	var record companionModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get companion: %w", err)
	}
	return companionFromModel(record), nil
}

// Create inserts the companion unless the user already has one. It reports
// whether a row was written.
func (r *CompanionRepo) Create(ctx context.Context, c *types.Companion) (bool, error) {
	record := companionToModel(c)
	record.ID = newID(record.ID)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert companion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	c.ID = record.ID
	c.CreatedAt = record.CreatedAt
	c.UpdatedAt = record.UpdatedAt
	return true, nil
}

// Update overwrites the persona and personality fields of the user's companion.
func (r *CompanionRepo) Update(ctx context.Context, c *types.Companion) error {
	record := companionToModel(c)
	result := r.db.WithContext(ctx).
		Model(&companionModel{}).
		Where("id = ? AND user_id = ?", c.ID, c.UserID).
		Updates(map[string]any{
			"name":                record.Name,
			"gender":              record.Gender,
			"affection_level":     record.Affection,
			"empathy_level":       record.Empathy,
			"curiosity_level":     record.Curiosity,
			"playfulness":         record.Playfulness,
			"humor_style":         record.HumorStyle,
			"communication_style": record.CommunicationStyle,
			"preferred_address":   record.PreferredAddress,
			"pronouns":            record.Pronouns,
			"backstory":           record.Backstory,
			"avatar_url":          record.AvatarURL,
			"is_default":          record.IsDefault,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update companion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func companionToModel(c *types.Companion) companionModel {
	return companionModel{
		ID:                 c.ID,
		UserID:             c.UserID,
		Name:               c.Name,
		Gender:             string(c.Gender),
		Affection:          c.Affection,
		Empathy:            c.Empathy,
		Curiosity:          c.Curiosity,
		Playfulness:        c.Playfulness,
		HumorStyle:         string(c.HumorStyle),
		CommunicationStyle: string(c.CommunicationStyle),
		PreferredAddress:   c.PreferredAddress,
		Pronouns:           c.Pronouns,
		Backstory:          c.Backstory,
		AvatarURL:          c.AvatarURL,
		IsDefault:          c.IsDefault,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func companionFromModel(model companionModel) *types.Companion {
	return &types.Companion{
		ID:                 model.ID,
		UserID:             model.UserID,
		Name:               model.Name,
		Gender:             types.Gender(model.Gender),
		Affection:          model.Affection,
		Empathy:            model.Empathy,
		Curiosity:          model.Curiosity,
		Playfulness:        model.Playfulness,
		HumorStyle:         types.HumorStyle(model.HumorStyle),
		CommunicationStyle: types.CommunicationStyle(model.CommunicationStyle),
		PreferredAddress:   model.PreferredAddress,
		Pronouns:           model.Pronouns,
		Backstory:          model.Backstory,
		AvatarURL:          model.AvatarURL,
		IsDefault:          model.IsDefault,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}
