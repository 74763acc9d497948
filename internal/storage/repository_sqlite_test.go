package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/game"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "combat.db"))
	if err != nil {
		t.Fatalf("OpenAndMigrate failed: %v", err)
	}
	return NewSQLiteRepository(db, map[string]config.ImplantDefinition{
		"mantis-blades": {
			ID: "mantis-blades", Name: "Mantis Blades",
			HumanityCost: 8, EnergyLimit: 20, CanExceed: true,
			PenaltyOnExceed: map[string]float64{"attack": -0.1},
		},
	})
}

func seedCharacter(t *testing.T, repo Repository) *game.Character {
	t.Helper()
	ch := &game.Character{
		CharacterID:  "char-1",
		Name:         "Vanya",
		MaxHealth:    100,
		Armor:        10,
		Speed:        8,
		WeaponDamage: 25,
		Balance:      5000,
		Traits:       "street-medic",
	}
	ch.SetHumanity(game.NewHumanityState())
	if err := repo.CreateCharacter(ch); err != nil {
		t.Fatalf("CreateCharacter failed: %v", err)
	}
	return ch
}

func TestGetCharacterJoinsImplantStats(t *testing.T) {
	repo := newTestRepo(t)
	seedCharacter(t, repo)
	if err := repo.AddImplant("char-1", "mantis-blades"); err != nil {
		t.Fatalf("AddImplant failed: %v", err)
	}

	ch, err := repo.GetCharacter("char-1")
	if err != nil {
		t.Fatalf("GetCharacter failed: %v", err)
	}
	if len(ch.Implants) != 1 {
		t.Fatalf("expected one implant, got %d", len(ch.Implants))
	}
	imp := ch.Implants[0]
	if imp.Name != "Mantis Blades" || imp.EnergyLimit != 20 || !imp.CanExceed {
		t.Errorf("implant stats not joined from catalog: %+v", imp)
	}
	if imp.PenaltyOnExceed["attack"] != -0.1 {
		t.Errorf("penalty map not joined: %v", imp.PenaltyOnExceed)
	}
	if !ch.HasTrait("street-medic") {
		t.Errorf("trait lookup failed for %q", ch.Traits)
	}
}

func TestGetCharacterNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetCharacter("ghost"); !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestUpdateHumanityRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	seedCharacter(t, repo)

	state := game.HumanityState{Current: 42, Max: 92, Ceiling: 75, CeilingLocked: true}
	if err := repo.UpdateHumanity("char-1", state); err != nil {
		t.Fatalf("UpdateHumanity failed: %v", err)
	}

	ch, err := repo.GetCharacter("char-1")
	if err != nil {
		t.Fatalf("GetCharacter failed: %v", err)
	}
	if got := ch.Humanity(); got != state {
		t.Errorf("humanity round trip mismatch: got %+v, want %+v", got, state)
	}

	if err := repo.UpdateHumanity("ghost", state); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestRemoveImplant(t *testing.T) {
	repo := newTestRepo(t)
	seedCharacter(t, repo)
	if err := repo.AddImplant("char-1", "mantis-blades"); err != nil {
		t.Fatalf("AddImplant failed: %v", err)
	}
	if err := repo.RemoveImplant("char-1", "mantis-blades"); err != nil {
		t.Fatalf("RemoveImplant failed: %v", err)
	}
	if err := repo.RemoveImplant("char-1", "mantis-blades"); err == nil {
		t.Errorf("removing an absent implant should fail")
	}
}
