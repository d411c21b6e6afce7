// Package companion manages the persona each user chats with.
package companion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/easeaico/companion/internal/prompt"
	"github.com/easeaico/companion/internal/types"
)

// Repo persists companions.
type Repo interface {
	GetByUser(ctx context.Context, userID string) (*types.Companion, error)
	Create(ctx context.Context, c *types.Companion) (bool, error)
	Update(ctx context.Context, c *types.Companion) error
}

// Settings is a partial update; nil fields are left unchanged.
type Settings struct {
	Name               *string
	Gender             *types.Gender
	Affection          *int
	Empathy            *int
	Curiosity          *int
	Playfulness        *int
	HumorStyle         *types.HumorStyle
	CommunicationStyle *types.CommunicationStyle
	PreferredAddress   *string
	Pronouns           *string
	Backstory          *string
	AvatarURL          *string
}

// Service reads and updates companions.
type Service struct {
	repo Repo
}

// NewService creates a companion Service.
func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

// Get returns the user's companion, creating the default one on first use.
func (s *Service) Get(ctx context.Context, userID string) (*types.Companion, error) {
	c, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	def := types.DefaultCompanion(userID)
	created, err := s.repo.Create(ctx, &def)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("default companion created", "user_id", userID, "companion_id", def.ID)
		return &def, nil
	}

	// Lost a race with a concurrent request; read the winner.
	c, err = s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("failed to load companion for user %s", userID)
	}
	return c, nil
}

// Update applies settings, validates the resulting personality and marks the
// companion as customised.
func (s *Service) Update(ctx context.Context, userID string, in Settings) (*types.Companion, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := *c
	apply(&updated, in)
	if strings.TrimSpace(updated.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", prompt.ErrInvalidPersonality)
	}
	if err := validGender(updated.Gender); err != nil {
		return nil, err
	}
	if err := prompt.ValidatePersonality(&updated); err != nil {
		return nil, err
	}
	updated.IsDefault = false

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save companion: %w", err)
	}
	slog.Info("companion updated", "user_id", userID, "companion_id", updated.ID)
	return &updated, nil
}

func apply(c *types.Companion, in Settings) {
	set(&c.Name, in.Name, strings.TrimSpace)
	set(&c.PreferredAddress, in.PreferredAddress, strings.TrimSpace)
	set(&c.Pronouns, in.Pronouns, strings.TrimSpace)
	set(&c.Backstory, in.Backstory, strings.TrimSpace)
	set(&c.AvatarURL, in.AvatarURL, strings.TrimSpace)
	if in.Gender != nil {
		c.Gender = *in.Gender
	}
	if in.Affection != nil {
		c.Affection = *in.Affection
	}
	if in.Empathy != nil {
		c.Empathy = *in.Empathy
	}
	if in.Curiosity != nil {
		c.Curiosity = *in.Curiosity
	}
	if in.Playfulness != nil {
		c.Playfulness = *in.Playfulness
	}
	if in.HumorStyle != nil {
		c.HumorStyle = *in.HumorStyle
	}
	if in.CommunicationStyle != nil {
		c.CommunicationStyle = *in.CommunicationStyle
	}
}

func set(dst *string, src *string, clean func(string) string) {
	if src != nil {
		*dst = clean(*src)
	}
}

func validGender(g types.Gender) error {
	switch g {
	case types.GenderMale, types.GenderFemale, types.GenderNonBinary:
		return nil
	}
	return fmt.Errorf("%w: unknown gender %q", prompt.ErrInvalidPersonality, g)
}
