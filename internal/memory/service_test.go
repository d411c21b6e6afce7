package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/companion/internal/types"
)

type fakeMemoryRepo struct {
	added      []*types.Memory
	hidden     map[string]bool
	searchArgs struct {
		userID    string
		embedding []float32
		topK      int
		threshold float64
	}
	addErr error
}

func (f *fakeMemoryRepo) AddMemory(_ context.Context, mem *types.Memory) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, mem)
	return nil
}

func (f *fakeMemoryRepo) ListVisible(_ context.Context, _ string, limit int) ([]types.Memory, error) {
	out := make([]types.Memory, 0, limit)
	for i := 0; i < limit && i < len(f.added); i++ {
		out = append(out, *f.added[i])
	}
	return out, nil
}

func (f *fakeMemoryRepo) Hide(_ context.Context, _ string, memoryID string) (bool, error) {
	if f.hidden == nil {
		return false, nil
	}
	ok, exists := f.hidden[memoryID]
	return ok && exists, nil
}

func (f *fakeMemoryRepo) SearchSimilar(_ context.Context, userID string, embedding []float32, topK int, threshold float64) ([]types.RetrievedMemory, error) {
	f.searchArgs.userID = userID
	f.searchArgs.embedding = embedding
	f.searchArgs.topK = topK
	f.searchArgs.threshold = threshold
	return []types.RetrievedMemory{{Memory: types.Memory{Content: "likes ramen"}, Similarity: 0.9}}, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return []float32{0.1, 0.2}, f.err
}

func (f *fakeEmbedder) EmbedDocument(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.3, 0.4}, nil
}

func TestRecordStoresClassifiedMemory(t *testing.T) {
	repo := &fakeMemoryRepo{}
	svc := NewService(repo, &fakeEmbedder{}, 0, 0)

	mem, err := svc.Record(context.Background(), RecordRequest{
		UserID:      "u1",
		CompanionID: "c1",
		MessageID:   "m1",
		Text:        "My favorite food is ramen",
	})
	require.NoError(t, err)
	require.NotNil(t, mem)
	require.Len(t, repo.added, 1)

	assert.Equal(t, "m1", mem.MessageID)
	assert.Equal(t, types.CategoryPreference, mem.Category)
	assert.Equal(t, 8, mem.Importance)
	assert.True(t, mem.IsVisible)
	assert.False(t, mem.UserCreated)
	assert.Equal(t, []float32{0.3, 0.4}, mem.Embedding)
}

func TestRecordSkipsSmallTalk(t *testing.T) {
	repo := &fakeMemoryRepo{}
	svc := NewService(repo, nil, 0, 0)

	mem, err := svc.Record(context.Background(), RecordRequest{UserID: "u1", Text: "ok"})
	require.NoError(t, err)
	assert.Nil(t, mem)
	assert.Empty(t, repo.added)
}

func TestRecordSurvivesEmbeddingFailure(t *testing.T) {
	repo := &fakeMemoryRepo{}
	svc := NewService(repo, &fakeEmbedder{err: errors.New("quota")}, 0, 0)

	mem, err := svc.Record(context.Background(), RecordRequest{UserID: "u1", Text: "I play chess"})
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Nil(t, mem.Embedding)
	assert.Len(t, repo.added, 1)
}

func TestRecordPropagatesStoreError(t *testing.T) {
	repo := &fakeMemoryRepo{addErr: errors.New("db down")}
	svc := NewService(repo, nil, 0, 0)

	_, err := svc.Record(context.Background(), RecordRequest{UserID: "u1", Text: "I play chess"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(&fakeMemoryRepo{}, nil, 0, 0)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{UserID: "u1", Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidMemory)

	_, err = svc.Create(ctx, CreateRequest{UserID: "u1", Content: "x", Importance: 11})
	assert.ErrorIs(t, err, ErrInvalidMemory)

	_, err = svc.Create(ctx, CreateRequest{UserID: "u1", Content: "x", Category: "gossip"})
	assert.ErrorIs(t, err, ErrInvalidMemory)
}

func TestCreateAppliesDefaults(t *testing.T) {
	repo := &fakeMemoryRepo{}
	svc := NewService(repo, nil, 0, 0)

	mem, err := svc.Create(context.Background(), CreateRequest{
		UserID:  "u1",
		Content: "  Birthday is in May ",
		Tags:    []string{" Dates", "dates", "", "birthday"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Birthday is in May", mem.Content)
	assert.Equal(t, 5, mem.Importance)
	assert.Equal(t, types.CategoryPersonal, mem.Category)
	assert.Equal(t, []string{"dates", "birthday"}, mem.Tags)
	assert.True(t, mem.UserCreated)
}

func TestListClampsLimit(t *testing.T) {
	repo := &fakeMemoryRepo{}
	for range 120 {
		repo.added = append(repo.added, &types.Memory{Content: "x"})
	}
	svc := NewService(repo, nil, 0, 0)

	got, err := svc.List(context.Background(), "u1", 500)
	require.NoError(t, err)
	assert.Len(t, got, maxListLimit)

	got, err = svc.List(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, got, defaultListLimit)
}

func TestHideUnknownMemory(t *testing.T) {
	repo := &fakeMemoryRepo{hidden: map[string]bool{"m1": true}}
	svc := NewService(repo, nil, 0, 0)

	assert.NoError(t, svc.Hide(context.Background(), "u1", "m1"))
	assert.ErrorIs(t, svc.Hide(context.Background(), "u1", "missing"), ErrMemoryNotFound)
}

func TestSearchUsesConfiguredThreshold(t *testing.T) {
	repo := &fakeMemoryRepo{}
	emb := &fakeEmbedder{}
	svc := NewService(repo, emb, 3, 0.8)

	got, err := svc.Search(context.Background(), "u1", "food")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", repo.searchArgs.userID)
	assert.Equal(t, 3, repo.searchArgs.topK)
	assert.InDelta(t, 0.8, repo.searchArgs.threshold, 1e-9)
}

func TestSearchWithoutEmbedder(t *testing.T) {
	svc := NewService(&fakeMemoryRepo{}, nil, 0, 0)
	got, err := svc.Search(context.Background(), "u1", "food")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
