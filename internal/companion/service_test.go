package companion

import (
	"context"
	"errors"
	"testing"

	"github.com/easeaico/companion/internal/prompt"
	"github.com/easeaico/companion/internal/types"
)

type fakeRepo struct {
	byUser    map[string]*types.Companion
	createErr error
	// raceWinner is stored instead of the created companion to simulate a lost insert.
	raceWinner *types.Companion
	updated    *types.Companion
}

func (f *fakeRepo) GetByUser(_ context.Context, userID string) (*types.Companion, error) {
	c, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeRepo) Create(_ context.Context, c *types.Companion) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	if f.byUser == nil {
		f.byUser = map[string]*types.Companion{}
	}
	if f.raceWinner != nil {
		f.byUser[c.UserID] = f.raceWinner
		return false, nil
	}
	c.ID = "comp-1"
	stored := *c
	f.byUser[c.UserID] = &stored
	return true, nil
}

func (f *fakeRepo) Update(_ context.Context, c *types.Companion) error {
	copied := *c
	f.updated = &copied
	f.byUser[c.UserID] = &copied
	return nil
}

func TestGetCreatesDefault(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	c, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if c.ID != "comp-1" || c.Name != "Alex" || !c.IsDefault {
		t.Fatalf("unexpected default companion: %+v", c)
	}

	again, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if again.ID != c.ID {
		t.Fatalf("expected existing companion, got %s", again.ID)
	}
}

func TestGetLosesCreateRace(t *testing.T) {
	winner := types.DefaultCompanion("u1")
	winner.ID = "winner"
	svc := NewService(&fakeRepo{raceWinner: &winner})

	c, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if c.ID != "winner" {
		t.Fatalf("expected race winner, got %s", c.ID)
	}
}

func TestGetPropagatesCreateError(t *testing.T) {
	svc := NewService(&fakeRepo{createErr: errors.New("db down")})
	if _, err := svc.Get(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpdateAppliesAndValidates(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	name := "  Mira "
	affection := 9
	humor := types.HumorWitty
	c, err := svc.Update(context.Background(), "u1", Settings{Name: &name, Affection: &affection, HumorStyle: &humor})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if c.Name != "Mira" || c.Affection != 9 || c.HumorStyle != types.HumorWitty {
		t.Fatalf("settings not applied: %+v", c)
	}
	if c.IsDefault {
		t.Fatalf("updated companion should no longer be default")
	}
	if repo.updated == nil || repo.updated.Empathy != 7 {
		t.Fatalf("untouched traits should keep their values: %+v", repo.updated)
	}
}

func TestUpdateRejectsInvalidTraits(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	zero := 0
	if _, err := svc.Update(context.Background(), "u1", Settings{Curiosity: &zero}); !errors.Is(err, prompt.ErrInvalidPersonality) {
		t.Fatalf("expected ErrInvalidPersonality, got %v", err)
	}
	gender := types.Gender("robot")
	if _, err := svc.Update(context.Background(), "u1", Settings{Gender: &gender}); !errors.Is(err, prompt.ErrInvalidPersonality) {
		t.Fatalf("expected ErrInvalidPersonality for gender, got %v", err)
	}
	blank := "   "
	if _, err := svc.Update(context.Background(), "u1", Settings{Name: &blank}); !errors.Is(err, prompt.ErrInvalidPersonality) {
		t.Fatalf("expected ErrInvalidPersonality for blank name, got %v", err)
	}
	if repo.updated != nil {
		t.Fatalf("invalid settings must not be saved")
	}
}
