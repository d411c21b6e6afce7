// Package memory extracts durable personal facts from chat messages and keeps them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/easeaico/companion/internal/types"
)

var (
	// ErrMemoryNotFound is returned when a memory is absent or owned by someone else.
	ErrMemoryNotFound = errors.New("memory not found")
	// ErrInvalidMemory is returned for malformed manual memories.
	ErrInvalidMemory = errors.New("invalid memory")
)

const (
	defaultListLimit   = 50
	maxListLimit       = 100
	defaultImportance  = 5
	defaultTopK        = 5
	defaultSimilarity  = 0.7
	logContentMaxRunes = 50
)

// MemoryRepo persists memories.
type MemoryRepo interface {
	AddMemory(ctx context.Context, mem *types.Memory) error
	ListVisible(ctx context.Context, userID string, limit int) ([]types.Memory, error)
	Hide(ctx context.Context, userID, memoryID string) (bool, error)
	SearchSimilar(ctx context.Context, userID string, embedding []float32, topK int, threshold float64) ([]types.RetrievedMemory, error)
}

// Service records classified memories and serves them back.
type Service struct {
	memories            MemoryRepo
	embedder            Embedder
	topK                int
	similarityThreshold float64
}

// NewService returns a memory service. embedder may be nil, which disables
// embeddings and semantic search.
func NewService(memories MemoryRepo, embedder Embedder, topK int, threshold float64) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	if threshold <= 0 {
		threshold = defaultSimilarity
	}
	return &Service{
		memories:            memories,
		embedder:            embedder,
		topK:                topK,
		similarityThreshold: threshold,
	}
}

// RecordRequest identifies a user message that may hold a memory.
type RecordRequest struct {
	UserID      string
	CompanionID string
	MessageID   string
	Text        string
}

// Record classifies the message and stores a memory when it qualifies.
// It returns nil without error when the message holds nothing worth keeping.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*types.Memory, error) {
	decision := Classify(req.Text)
	if !decision.ShouldStore {
		return nil, nil
	}

	mem := &types.Memory{
		UserID:           req.UserID,
		CompanionID:      req.CompanionID,
		MessageID:        req.MessageID,
		Content:          decision.Content,
		Importance:       decision.Importance,
		Category:         decision.Category,
		Tags:             decision.Tags,
		EmotionalContext: decision.EmotionalContext,
		IsVisible:        true,
	}
	s.attachEmbedding(ctx, mem)

	if err := s.memories.AddMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	slog.Info("memory created",
		"user_id", req.UserID,
		"importance", mem.Importance,
		"category", mem.Category,
		"content", truncate(mem.Content, logContentMaxRunes))
	return mem, nil
}

// CreateRequest describes a memory written by the user.
type CreateRequest struct {
	UserID      string
	CompanionID string
	Content     string
	Importance  int
	Category    types.MemoryCategory
	Tags        []string
}

// Create stores a user-authored memory.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.Memory, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidMemory)
	}
	importance := req.Importance
	if importance == 0 {
		importance = defaultImportance
	}
	if importance < types.MinImportance || importance > types.MaxImportance {
		return nil, fmt.Errorf("%w: importance %d out of range", ErrInvalidMemory, importance)
	}
	category := req.Category
	if category == "" {
		category = types.CategoryPersonal
	}
	if !types.ValidMemoryCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidMemory, category)
	}

	mem := &types.Memory{
		UserID:      req.UserID,
		CompanionID: req.CompanionID,
		Content:     content,
		Importance:  importance,
		Category:    category,
		Tags:        normalizeTags(req.Tags),
		UserCreated: true,
		IsVisible:   true,
	}
	s.attachEmbedding(ctx, mem)

	if err := s.memories.AddMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	return mem, nil
}

// List returns the user's visible memories, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]types.Memory, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	return s.memories.ListVisible(ctx, userID, limit)
}

// Hide soft-deletes a memory so it no longer shows up.
func (s *Service) Hide(ctx context.Context, userID, memoryID string) error {
	ok, err := s.memories.Hide(ctx, userID, memoryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMemoryNotFound
	}
	return nil
}

// Search returns visible memories semantically close to query.
func (s *Service) Search(ctx context.Context, userID, query string) ([]types.RetrievedMemory, error) {
	query = strings.TrimSpace(query)
	if query == "" || s.embedder == nil {
		return nil, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.memories.SearchSimilar(ctx, userID, vec, s.topK, s.similarityThreshold)
}

// attachEmbedding is best-effort; a memory without a vector is still stored.
func (s *Service) attachEmbedding(ctx context.Context, mem *types.Memory) {
	if s.embedder == nil {
		return
	}
	vec, err := s.embedder.EmbedDocument(ctx, mem.Content)
	if err != nil {
		slog.Warn("failed to embed memory", "error", err.Error(), "user_id", mem.UserID)
		return
	}
	mem.Embedding = vec
}

func normalizeTags(tags []string) []string {
	trimmed := lo.Map(tags, func(tag string, _ int) string {
		return strings.ToLower(strings.TrimSpace(tag))
	})
	return lo.Uniq(lo.Compact(trimmed))
}

func truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
