package treatment

import (
	"errors"
	"testing"
	"time"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/psyche"
)

func testRules() config.TreatmentRules {
	return config.TreatmentRules{
		MinimumCost:           100,
		CeilingLossThreshold:  75,
		RestoreCeiling:        75,
		DiminishingWindow:     time.Hour,
		DiminishingMultiplier: 2,
		StageMultipliers: map[game.StageName]float64{
			game.StageLate:           1.5,
			game.StageCyberpsychosis: 3,
		},
		TraitDiscounts: map[string]float64{"street-medic": 0.2},
		Types: map[game.TreatmentType]config.TreatmentOption{
			game.TreatmentTherapy:        {BaseCost: 500, Restore: 10, CooldownSeconds: 600, DurationSeconds: 1800},
			game.TreatmentMedication:     {BaseCost: 200, Restore: 5, CooldownSeconds: 300},
			game.TreatmentImplantRemoval: {BaseCost: 2000, Restore: 8, DurationSeconds: 3600},
			game.TreatmentDetox:          {BaseCost: 1200, Restore: 30, CooldownSeconds: 1200},
		},
	}
}

func testStages() *psyche.Catalog {
	return psyche.NewCatalog([]game.StageDefinition{
		{Name: game.StageCyberpsychosis, Low: 0, High: 20},
		{Name: game.StageLate, Low: 20, High: 40},
		{Name: game.StageMiddle, Low: 40, High: 70},
		{Name: game.StageEarly, Low: 70, High: 100},
	})
}

func newFixture(current int, traits string) (*Calculator, *game.Character, *psyche.Tracker) {
	state := game.NewHumanityState()
	state.Current = current
	tracker := psyche.NewTracker(psyche.TrackerParams{
		CharacterID:          "char-1",
		State:                state,
		Catalog:              testStages(),
		CeilingLossThreshold: 75,
		RestoreCeiling:       75,
	})
	ch := &game.Character{
		CharacterID: "char-1",
		Balance:     100000,
		Traits:      traits,
	}
	calc := NewCalculator(testRules(), &events.Recorder{})
	return calc, ch, tracker
}

func TestQuoteStageMultiplier(t *testing.T) {
	calc, ch, tracker := newFixture(30, "") // late stage
	costs, err := calc.Quote(ch, tracker.Stage().Name, game.TreatmentTherapy)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if costs.Total != 750 {
		t.Errorf("expected 500 * 1.5 = 750, got %d", costs.Total)
	}
	if costs.StageMultiplier != 1.5 {
		t.Errorf("expected stage multiplier 1.5, got %v", costs.StageMultiplier)
	}
}

func TestQuoteDiminishingReturns(t *testing.T) {
	calc, ch, tracker := newFixture(90, "")
	recent := time.Now().Add(-10 * time.Minute)
	ch.LastTreatmentAt = &recent

	costs, err := calc.Quote(ch, tracker.Stage().Name, game.TreatmentTherapy)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if costs.Total != 1000 {
		t.Errorf("expected 500 * 2 diminishing = 1000, got %d", costs.Total)
	}

	old := time.Now().Add(-2 * time.Hour)
	ch.LastTreatmentAt = &old
	costs, _ = calc.Quote(ch, tracker.Stage().Name, game.TreatmentTherapy)
	if costs.Total != 500 {
		t.Errorf("expected base price outside the window, got %d", costs.Total)
	}
}

func TestQuoteTraitDiscountAndMinimum(t *testing.T) {
	calc, ch, tracker := newFixture(90, "street-medic,netrunner")
	costs, err := calc.Quote(ch, tracker.Stage().Name, game.TreatmentTherapy)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if costs.Discount != 100 || costs.Total != 400 {
		t.Errorf("expected 20%% discount (total 400), got %+v", costs)
	}

	// a discount can never push the price below the configured minimum
	cheap, _ := calc.Quote(ch, tracker.Stage().Name, game.TreatmentMedication)
	if cheap.Total != 160 {
		t.Errorf("expected 200 - 40 = 160, got %d", cheap.Total)
	}
}

func TestApplyInsufficientFunds(t *testing.T) {
	calc, ch, tracker := newFixture(90, "")
	_, err := calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentTherapy, Payment: 100,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if ch.Balance != 100000 || ch.LastTreatmentAt != nil {
		t.Errorf("failed apply must not mutate the character")
	}
}

func TestApplyCooldown(t *testing.T) {
	calc, ch, tracker := newFixture(60, "")
	until := time.Now().Add(5 * time.Minute)
	ch.TreatmentCooldownUntil = &until

	_, err := calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentTherapy, Payment: 10000,
	})
	if !errors.Is(err, ErrTreatmentOnCooldown) {
		t.Fatalf("expected ErrTreatmentOnCooldown, got %v", err)
	}
}

func TestApplyRestoresAndSettles(t *testing.T) {
	calc, ch, tracker := newFixture(60, "")
	res, err := calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentTherapy, Payment: 10000,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.HumanityRestored != 10 {
		t.Errorf("expected 10 restored, got %d", res.HumanityRestored)
	}
	if got := tracker.State().Current; got != 70 {
		t.Errorf("expected humanity 70, got %d", got)
	}
	if ch.Balance != 100000-res.Cost {
		t.Errorf("balance not debited: %d", ch.Balance)
	}
	if ch.LastTreatmentAt == nil || ch.TreatmentCooldownUntil == nil {
		t.Errorf("treatment timestamps not recorded")
	}
	if res.CooldownSeconds == nil || *res.CooldownSeconds != 600 {
		t.Errorf("expected cooldown 600s in result, got %v", res.CooldownSeconds)
	}
}

func TestApplyRespectsMonotonicCeiling(t *testing.T) {
	calc, ch, tracker := newFixture(90, "")
	tracker.ApplyLoss(70) // 90 -> 20: locks the ceiling at 75

	// first detox: 20 + 30 = 50, fully below the ceiling
	res, err := calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentDetox, Payment: 100000,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.HumanityRestored != 30 {
		t.Errorf("expected full 30 restored, got %d", res.HumanityRestored)
	}

	// second detox approaches the ceiling: only 75 - 50 = 25 restorable
	ch.TreatmentCooldownUntil = nil
	ch.LastTreatmentAt = nil
	res, err = calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentDetox, Payment: 100000,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.HumanityRestored != 25 {
		t.Errorf("expected 25 restored up to the ceiling, got %d", res.HumanityRestored)
	}
	if len(res.Limitations) == 0 {
		t.Errorf("capped restoration must carry a limitation note")
	}
	if got := tracker.State().Current; got != 75 {
		t.Errorf("expected humanity at ceiling 75, got %d", got)
	}
}

type fakeLimits struct {
	removed []string
}

func (f *fakeLimits) RemoveLimit(implantID string) { f.removed = append(f.removed, implantID) }

func TestApplyImplantRemoval(t *testing.T) {
	calc, ch, tracker := newFixture(100, "")
	def := config.ImplantDefinition{ID: "mantis-blades", HumanityCost: 8}
	tracker.InstallImplant(def) // max 92, current 92

	limits := &fakeLimits{}
	res, err := calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentImplantRemoval,
		Payment: 100000, RemovedImplant: &def, Limits: limits,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	st := tracker.State()
	if st.Max != 100 {
		t.Errorf("removal should restore max to 100, got %d", st.Max)
	}
	if st.Current != 92+res.HumanityRestored {
		t.Errorf("expected current %d, got %d", 92+res.HumanityRestored, st.Current)
	}
	if len(limits.removed) != 1 || limits.removed[0] != "mantis-blades" {
		t.Errorf("energy limit not released: %v", limits.removed)
	}
}

func TestApplyImplantRemovalRequiresImplant(t *testing.T) {
	calc, ch, tracker := newFixture(90, "")
	_, err := calc.Apply(ApplyRequest{
		Character: ch, Tracker: tracker, Kind: game.TreatmentImplantRemoval, Payment: 100000,
	})
	if !errors.Is(err, ErrImplantRequired) {
		t.Fatalf("expected ErrImplantRequired, got %v", err)
	}
}
