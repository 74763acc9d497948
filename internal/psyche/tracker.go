package psyche

import (
	"sort"
	"sync"
	"time"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
)

// Catalog is the validated, immutable stage table. Construction assumes
// config.LoadConfig already rejected gaps and overlaps, so StageFor is a
// total function.
type Catalog struct {
	stages []game.StageDefinition
}

// NewCatalog wraps the loaded stage definitions (sorted ascending by low
// bound, as LoadConfig returns them).
func NewCatalog(stages []game.StageDefinition) *Catalog {
	return &Catalog{stages: stages}
}

// StageFor returns the stage containing the given humanity value. Out of
// range values are clamped to the catalog's span.
func (c *Catalog) StageFor(current int) game.StageDefinition {
	for _, s := range c.stages {
		if s.Contains(current) {
			return s
		}
	}
	if current < c.stages[0].Low {
		return c.stages[0]
	}
	return c.stages[len(c.stages)-1]
}

// TrackerParams bundles everything a per-character tracker needs at
// construction. Ceiling rules come from the treatment section because the
// ceiling is a treatment limitation, but the lock itself is owned here:
// every humanity mutation passes through the tracker.
type TrackerParams struct {
	CharacterID          string
	State                game.HumanityState
	Traits               []string
	Catalog              *Catalog
	CeilingLossThreshold float64
	RestoreCeiling       int
	Notifier             events.Notifier
}

// Tracker owns one character's humanity value and everything derived from
// it. It is the single mutation path for humanity: combat, implants and
// treatments all go through ApplyLoss / Restore here.
type Tracker struct {
	mu         sync.Mutex
	id         string
	state      game.HumanityState
	traits     map[string]bool
	catalog    *Catalog
	threshold  float64
	ceilCap    int
	notifier   events.Notifier
	stageSince time.Time
	now        func() time.Time
}

func NewTracker(p TrackerParams) *Tracker {
	traits := make(map[string]bool, len(p.Traits))
	for _, t := range p.Traits {
		traits[t] = true
	}
	return &Tracker{
		id:         p.CharacterID,
		state:      p.State,
		traits:     traits,
		catalog:    p.Catalog,
		threshold:  p.CeilingLossThreshold,
		ceilCap:    p.RestoreCeiling,
		notifier:   p.Notifier,
		stageSince: time.Now(),
		now:        time.Now,
	}
}

// State returns a snapshot of the humanity state.
func (t *Tracker) State() game.HumanityState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stage returns the stage the character currently sits in.
func (t *Tracker) Stage() game.StageDefinition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catalog.StageFor(t.state.Current)
}

// ApplyLoss decreases humanity by amount, clamped at zero, and emits a
// stage-change event when a boundary is crossed. Returns the stage the
// character is in afterwards.
func (t *Tracker) ApplyLoss(amount int) game.StageDefinition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyLossLocked(amount)
}

func (t *Tracker) applyLossLocked(amount int) game.StageDefinition {
	if amount < 0 {
		logging.Warn("negative humanity loss clamped", logging.Fields{
			constants.LogFieldCharacterID: t.id,
			"amount":                      amount,
		})
		amount = 0
	}
	before := t.catalog.StageFor(t.state.Current)
	t.state.Current -= amount
	if t.state.Current < 0 {
		t.state.Current = 0
	}
	t.lockCeilingIfCrossed()
	after := t.catalog.StageFor(t.state.Current)
	if after.Name != before.Name {
		t.stageSince = t.now()
		if t.notifier != nil {
			t.notifier.StageChanged(t.id, before.Name, after.Name, t.state.Current)
		}
	}
	return after
}

// lockCeilingIfCrossed tightens the restoration ceiling once the loss
// percentage passes the configured threshold. The lock is monotonic: it
// never loosens, even if humanity is later restored above the threshold.
func (t *Tracker) lockCeilingIfCrossed() {
	if t.state.LossPercentage() < t.threshold {
		return
	}
	if !t.state.CeilingLocked || t.ceilCap < t.state.Ceiling {
		if !t.state.CeilingLocked {
			logging.Warn("humanity restoration ceiling locked", logging.Fields{
				constants.LogFieldCharacterID: t.id,
				"ceiling":                     t.ceilCap,
			})
		}
		t.state.CeilingLocked = true
		if t.ceilCap < t.state.Ceiling {
			t.state.Ceiling = t.ceilCap
		}
	}
}

// Restore raises humanity by up to amount, bounded by the restorable
// ceiling, and returns how much was actually restored. Stage-change
// events fire on upward crossings too.
func (t *Tracker) Restore(amount int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount <= 0 {
		return 0
	}
	before := t.catalog.StageFor(t.state.Current)
	limit := t.state.RestorableCeiling()
	if limit > t.state.Max {
		limit = t.state.Max
	}
	headroom := limit - t.state.Current
	if headroom < 0 {
		headroom = 0
	}
	restored := amount
	if restored > headroom {
		restored = headroom
	}
	t.state.Current += restored
	after := t.catalog.StageFor(t.state.Current)
	if after.Name != before.Name {
		t.stageSince = t.now()
		if t.notifier != nil {
			t.notifier.StageChanged(t.id, before.Name, after.Name, t.state.Current)
		}
	}
	return restored
}

// InstallImplant applies the permanent humanity price of an implant:
// max drops by the implant's humanity cost and the same amount is taken
// from current through the normal loss path. The caller registers the
// implant's energy limit with the ledger.
func (t *Tracker) InstallImplant(def config.ImplantDefinition) game.StageDefinition {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Max -= def.HumanityCost
	if t.state.Max < 0 {
		t.state.Max = 0
	}
	if t.state.Ceiling > t.state.Max {
		t.state.Ceiling = t.state.Max
	}
	return t.applyLossLocked(def.HumanityCost)
}

// RemoveImplant reverses the max reduction of an installed implant, up to
// the default pool. Current humanity is untouched here; the restoration
// itself is priced and applied by the treatment calculator.
func (t *Tracker) RemoveImplant(def config.ImplantDefinition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Max += def.HumanityCost
	if t.state.Max > game.MaxHumanityDefault {
		t.state.Max = game.MaxHumanityDefault
	}
	if !t.state.CeilingLocked && t.state.Ceiling < t.state.Max {
		t.state.Ceiling = t.state.Max
	}
}

// ActiveSymptoms returns the symptoms currently affecting the character:
// the current stage's eligible set, filtered by trait conditions and by
// duration (a timed symptom runs from stage entry and lapses after its
// DurationSeconds), ordered by weight descending with catalog order as
// the tiebreak. Recomputed on every call; stage, traits and elapsed time
// can change between queries.
func (t *Tracker) ActiveSymptoms() []game.Symptom {
	t.mu.Lock()
	defer t.mu.Unlock()
	stage := t.catalog.StageFor(t.state.Current)
	inStage := t.now().Sub(t.stageSince)
	out := make([]game.Symptom, 0, len(stage.Symptoms))
	for _, s := range stage.Symptoms {
		if s.RequiresTrait != "" && !t.traits[s.RequiresTrait] {
			continue
		}
		if s.DurationSeconds != nil && inStage > time.Duration(*s.DurationSeconds)*time.Second {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	return out
}

// SymptomModifiers folds the active symptoms' effect maps into one
// modifier set for the damage pipeline and availability checks. Critical
// severity symptoms additionally disable defensive actions.
func (t *Tracker) SymptomModifiers() game.ModifierSet {
	var mods game.ModifierSet
	for _, s := range t.ActiveSymptoms() {
		var sm game.ModifierSet
		for k, v := range s.Effects {
			switch k {
			case constants.StatAttack:
				sm.AttackPercent = v
			case constants.StatDefense:
				sm.DefensePercent = v
			case constants.StatDamageFlat:
				sm.FlatDamageBonus = v
			case constants.StatCritChance:
				sm.CritChanceBonus = v
			case constants.StatInitiative:
				sm.InitiativePercent = v
			}
		}
		if s.Severity == game.SeverityCritical {
			sm.DisabledKinds = map[game.ActionKind]bool{
				game.ActionDefend:  true,
				game.ActionUseItem: true,
			}
		}
		mods = mods.Merge(sm)
	}
	return mods
}

// Progression rate factors. Advisory telemetry only: actual loss comes
// from discrete gameplay events calling ApplyLoss.
const (
	baseProgressionRate    = 1.0
	implantProgressionStep = 0.1
)

// CurrentProgressionRate reports how fast this character is expected to
// lose humanity relative to baseline, given installed implant count and
// the depth of the current stage.
func (t *Tracker) CurrentProgressionRate(installedImplants int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	rate := baseProgressionRate + implantProgressionStep*float64(installedImplants)
	// deeper stages accelerate the spiral
	switch t.catalog.StageFor(t.state.Current).Name {
	case game.StageMiddle:
		rate *= 1.25
	case game.StageLate:
		rate *= 1.5
	case game.StageCyberpsychosis:
		rate *= 2
	}
	return rate
}
