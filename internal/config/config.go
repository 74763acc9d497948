package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/game"
)

// ErrInvalidConfiguration marks malformed catalog data detected at load
// time. It is fatal: the process must not start with a bad catalog, so
// callers report it and exit instead of continuing.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type actionEntry struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       game.ActionKind `json:"kind"`
	EnergyCost *int            `json:"energy_cost"`
	Damage     *int            `json:"damage"`
	ImplantID  string          `json:"implant_id"`
	Available  *bool           `json:"available"`
}

type stageEntry struct {
	Name     game.StageName `json:"name"`
	Low      int            `json:"low"`
	High     int            `json:"high"`
	Symptoms []game.Symptom `json:"symptoms"`
	Effects  []string       `json:"effects"`
}

type implantEntry struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	HumanityCost    int                `json:"humanity_cost"`
	EnergyLimit     int                `json:"energy_limit"`
	CanExceed       bool               `json:"can_exceed"`
	PenaltyOnExceed map[string]float64 `json:"penalty_on_exceed"`
}

type combatEntry struct {
	CritChance               *float64 `json:"crit_chance"`
	CritMultiplier           *float64 `json:"crit_multiplier"`
	MitigationCap            *float64 `json:"mitigation_cap"`
	FleeBaseChance           *float64 `json:"flee_base_chance"`
	FleeDesperationBonus     *float64 `json:"flee_desperation_bonus"`
	DesperationHealthPercent *int     `json:"desperation_health_percent"`
	MaxRounds                *int     `json:"max_rounds"`
}

type treatmentTypeEntry struct {
	BaseCost        int64 `json:"base_cost"`
	Restore         int   `json:"restore"`
	CooldownSeconds int   `json:"cooldown_seconds"`
	DurationSeconds int   `json:"duration_seconds"`
}

type treatmentEntry struct {
	MinimumCost              int64                        `json:"minimum_cost"`
	CeilingLossThreshold     float64                      `json:"ceiling_loss_threshold"`
	RestoreCeiling           int                          `json:"restore_ceiling"`
	DiminishingWindowSeconds int                          `json:"diminishing_window_seconds"`
	DiminishingMultiplier    float64                      `json:"diminishing_multiplier"`
	StageMultipliers         map[game.StageName]float64   `json:"stage_multipliers"`
	TraitDiscounts           map[string]float64           `json:"trait_discounts"`
	Types                    map[string]treatmentTypeEntry `json:"types"`
}

type rawConfig struct {
	ActionList  []actionEntry  `json:"action_list"`
	StageList   []stageEntry   `json:"stage_list"`
	ImplantList []implantEntry `json:"implant_list"`
	Combat      *combatEntry   `json:"combat"`
	Treatment   *treatmentEntry `json:"treatment"`
}

// CombatTuning holds the constants the damage pipeline and session state
// machine consume. Crit and flee formulas are deliberately configuration-
// supplied rather than hard-coded; the defaults below apply when the file
// omits a value.
type CombatTuning struct {
	CritChance               float64
	CritMultiplier           float64
	MitigationCap            float64
	FleeBaseChance           float64
	FleeDesperationBonus     float64
	DesperationHealthPercent int
	MaxRounds                int
}

// Documented tuning defaults.
const (
	DefaultCritChance               = 0.05
	DefaultCritMultiplier           = 1.5
	DefaultMitigationCap            = 0.8
	DefaultFleeBaseChance           = 0.5
	DefaultFleeDesperationBonus     = 0.25
	DefaultDesperationHealthPercent = 25
	DefaultMaxRounds                = 50
)

// TreatmentOption is the pricing entry for one treatment type.
type TreatmentOption struct {
	BaseCost        int64
	Restore         int
	CooldownSeconds int
	DurationSeconds int
}

// TreatmentRules bundles every constant the treatment calculator needs.
type TreatmentRules struct {
	MinimumCost           int64
	CeilingLossThreshold  float64
	RestoreCeiling        int
	DiminishingWindow     time.Duration
	DiminishingMultiplier float64
	StageMultipliers      map[game.StageName]float64
	TraitDiscounts        map[string]float64
	Types                 map[game.TreatmentType]TreatmentOption
}

// ImplantDefinition is a catalog entry describing one implant model.
type ImplantDefinition struct {
	ID              string
	Name            string
	HumanityCost    int
	EnergyLimit     int
	CanExceed       bool
	PenaltyOnExceed map[string]float64
}

// LoadedConfig contains the validated static catalogs plus tuning. It is
// constructed once at startup and treated as immutable for the process
// lifetime; components receive it (or slices of it) at construction.
type LoadedConfig struct {
	Actions      []game.Action
	ActionsByID  map[string]game.Action
	Stages       []game.StageDefinition
	Implants     []ImplantDefinition
	ImplantsByID map[string]ImplantDefinition
	Combat       CombatTuning
	Treatment    TreatmentRules
}

// LoadConfig reads the configuration file at path and returns the
// validated catalogs. Any malformed catalog yields ErrInvalidConfiguration
// so the caller can refuse to start.
func LoadConfig(path string) (*LoadedConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var rc rawConfig
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := &LoadedConfig{
		ActionsByID:  make(map[string]game.Action),
		ImplantsByID: make(map[string]ImplantDefinition),
	}
	if err := cfg.loadImplants(rc.ImplantList); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	if err := cfg.loadActions(rc.ActionList); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	if err := cfg.loadStages(rc.StageList); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	if err := cfg.loadCombat(rc.Combat); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	if err := cfg.loadTreatment(rc.Treatment); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	return cfg, nil
}

func (c *LoadedConfig) loadImplants(entries []implantEntry) error {
	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return errors.New("implant entry missing 'id'")
		}
		if _, exists := c.ImplantsByID[e.ID]; exists {
			return fmt.Errorf("duplicate implant id '%s'", e.ID)
		}
		if e.EnergyLimit <= 0 {
			return fmt.Errorf("implant '%s': energy_limit must be positive", e.ID)
		}
		if e.HumanityCost < 0 {
			return fmt.Errorf("implant '%s': humanity_cost must be non-negative", e.ID)
		}
		for k, v := range e.PenaltyOnExceed {
			switch k {
			case constants.StatAttack, constants.StatDefense, constants.StatInitiative:
				// fractional debuffs; sign is up to the designer
			case constants.PenaltyCooldownSeconds:
				if v < 0 {
					return fmt.Errorf("implant '%s': cooldown_seconds must be non-negative", e.ID)
				}
			default:
				return fmt.Errorf("implant '%s': unknown penalty key '%s'", e.ID, k)
			}
		}
		def := ImplantDefinition{
			ID:              e.ID,
			Name:            e.Name,
			HumanityCost:    e.HumanityCost,
			EnergyLimit:     e.EnergyLimit,
			CanExceed:       e.CanExceed,
			PenaltyOnExceed: e.PenaltyOnExceed,
		}
		c.Implants = append(c.Implants, def)
		c.ImplantsByID[e.ID] = def
	}
	return nil
}

func (c *LoadedConfig) loadActions(entries []actionEntry) error {
	if len(entries) == 0 {
		return errors.New("action_list is empty (provide an 'action_list' array)")
	}
	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return errors.New("action entry missing 'id'")
		}
		if _, exists := c.ActionsByID[e.ID]; exists {
			return fmt.Errorf("duplicate action id '%s'", e.ID)
		}
		if !e.Kind.Valid() {
			return fmt.Errorf("action '%s': unknown kind '%s'", e.ID, e.Kind)
		}
		if e.EnergyCost != nil && *e.EnergyCost < 0 {
			return fmt.Errorf("action '%s': energy_cost must be non-negative", e.ID)
		}
		if e.Damage != nil && *e.Damage < 0 {
			return fmt.Errorf("action '%s': damage must be non-negative", e.ID)
		}
		if e.ImplantID != "" {
			if _, ok := c.ImplantsByID[e.ImplantID]; !ok {
				return fmt.Errorf("action '%s': references unknown implant '%s'", e.ID, e.ImplantID)
			}
		}
		available := true
		if e.Available != nil {
			available = *e.Available
		}
		a := game.Action{
			ID:         e.ID,
			Name:       e.Name,
			Kind:       e.Kind,
			EnergyCost: e.EnergyCost,
			Damage:     e.Damage,
			ImplantID:  e.ImplantID,
			Available:  available,
		}
		c.Actions = append(c.Actions, a)
		c.ActionsByID[e.ID] = a
	}
	return nil
}

// loadStages validates the stage catalog: ranges must be contiguous, must
// not overlap, and together must cover the full [0,100] humanity span.
// Gaps and overlaps are rejected here, at load, never per call.
func (c *LoadedConfig) loadStages(entries []stageEntry) error {
	if len(entries) == 0 {
		return errors.New("stage_list is empty (provide a 'stage_list' array)")
	}
	seen := make(map[game.StageName]struct{}, len(entries))
	symptomIDs := make(map[string]struct{})
	// catalog files list stages from healthiest down; sort ascending by Low
	sorted := make([]stageEntry, len(entries))
	copy(sorted, entries)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Low < sorted[i].Low {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	expectedLow := 0
	for _, e := range sorted {
		if e.Name == "" {
			return errors.New("stage entry missing 'name'")
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("duplicate stage '%s'", e.Name)
		}
		seen[e.Name] = struct{}{}
		if e.Low >= e.High {
			return fmt.Errorf("stage '%s': low (%d) must be below high (%d)", e.Name, e.Low, e.High)
		}
		if e.Low != expectedLow {
			if e.Low > expectedLow {
				return fmt.Errorf("stage catalog has a gap at humanity %d (stage '%s' starts at %d)", expectedLow, e.Name, e.Low)
			}
			return fmt.Errorf("stage catalog overlaps at humanity %d (stage '%s')", e.Low, e.Name)
		}
		expectedLow = e.High
		for _, s := range e.Symptoms {
			if strings.TrimSpace(s.ID) == "" {
				return fmt.Errorf("stage '%s': symptom missing 'id'", e.Name)
			}
			if _, dup := symptomIDs[s.ID]; dup {
				return fmt.Errorf("duplicate symptom id '%s'", s.ID)
			}
			symptomIDs[s.ID] = struct{}{}
			if !s.Severity.Valid() {
				return fmt.Errorf("symptom '%s': unknown severity '%s'", s.ID, s.Severity)
			}
			if s.Weight < 0 {
				return fmt.Errorf("symptom '%s': weight must be non-negative", s.ID)
			}
			for k := range s.Effects {
				switch k {
				case constants.StatAttack, constants.StatDefense, constants.StatInitiative,
					constants.StatDamageFlat, constants.StatCritChance:
				default:
					return fmt.Errorf("symptom '%s': unknown effect key '%s'", s.ID, k)
				}
			}
			if s.DurationSeconds != nil && *s.DurationSeconds <= 0 {
				return fmt.Errorf("symptom '%s': duration_seconds must be positive when present", s.ID)
			}
		}
		c.Stages = append(c.Stages, game.StageDefinition{
			Name:     e.Name,
			Low:      e.Low,
			High:     e.High,
			Symptoms: e.Symptoms,
			Effects:  e.Effects,
		})
	}
	if expectedLow != game.MaxHumanityDefault {
		return fmt.Errorf("stage catalog must cover humanity up to %d, got %d", game.MaxHumanityDefault, expectedLow)
	}
	return nil
}

func (c *LoadedConfig) loadCombat(e *combatEntry) error {
	t := CombatTuning{
		CritChance:               DefaultCritChance,
		CritMultiplier:           DefaultCritMultiplier,
		MitigationCap:            DefaultMitigationCap,
		FleeBaseChance:           DefaultFleeBaseChance,
		FleeDesperationBonus:     DefaultFleeDesperationBonus,
		DesperationHealthPercent: DefaultDesperationHealthPercent,
		MaxRounds:                DefaultMaxRounds,
	}
	if e != nil {
		if e.CritChance != nil {
			t.CritChance = *e.CritChance
		}
		if e.CritMultiplier != nil {
			t.CritMultiplier = *e.CritMultiplier
		}
		if e.MitigationCap != nil {
			t.MitigationCap = *e.MitigationCap
		}
		if e.FleeBaseChance != nil {
			t.FleeBaseChance = *e.FleeBaseChance
		}
		if e.FleeDesperationBonus != nil {
			t.FleeDesperationBonus = *e.FleeDesperationBonus
		}
		if e.DesperationHealthPercent != nil {
			t.DesperationHealthPercent = *e.DesperationHealthPercent
		}
		if e.MaxRounds != nil {
			t.MaxRounds = *e.MaxRounds
		}
	}
	if t.CritChance < 0 || t.CritChance > 1 {
		return fmt.Errorf("combat.crit_chance must be between 0 and 1, got %v", t.CritChance)
	}
	if t.CritMultiplier < 1 {
		return fmt.Errorf("combat.crit_multiplier must be at least 1.0, got %v", t.CritMultiplier)
	}
	if t.MitigationCap < 0 || t.MitigationCap >= 1 {
		return fmt.Errorf("combat.mitigation_cap must be in [0,1), got %v", t.MitigationCap)
	}
	if t.FleeBaseChance < 0 || t.FleeBaseChance > 1 {
		return fmt.Errorf("combat.flee_base_chance must be between 0 and 1, got %v", t.FleeBaseChance)
	}
	if t.MaxRounds <= 0 {
		return fmt.Errorf("combat.max_rounds must be positive, got %d", t.MaxRounds)
	}
	c.Combat = t
	return nil
}

func (c *LoadedConfig) loadTreatment(e *treatmentEntry) error {
	if e == nil {
		return errors.New("treatment section is required")
	}
	if len(e.Types) == 0 {
		return errors.New("treatment.types is empty")
	}
	rules := TreatmentRules{
		MinimumCost:           e.MinimumCost,
		CeilingLossThreshold:  e.CeilingLossThreshold,
		RestoreCeiling:        e.RestoreCeiling,
		DiminishingWindow:     time.Duration(e.DiminishingWindowSeconds) * time.Second,
		DiminishingMultiplier: e.DiminishingMultiplier,
		StageMultipliers:      e.StageMultipliers,
		TraitDiscounts:        e.TraitDiscounts,
		Types:                 make(map[game.TreatmentType]TreatmentOption, len(e.Types)),
	}
	if rules.CeilingLossThreshold <= 0 || rules.CeilingLossThreshold > 100 {
		return fmt.Errorf("treatment.ceiling_loss_threshold must be in (0,100], got %v", rules.CeilingLossThreshold)
	}
	if rules.RestoreCeiling <= 0 || rules.RestoreCeiling > game.MaxHumanityDefault {
		return fmt.Errorf("treatment.restore_ceiling must be in (0,%d], got %d", game.MaxHumanityDefault, rules.RestoreCeiling)
	}
	if rules.DiminishingMultiplier != 0 && rules.DiminishingMultiplier < 1 {
		return fmt.Errorf("treatment.diminishing_multiplier must be at least 1.0, got %v", rules.DiminishingMultiplier)
	}
	if rules.DiminishingMultiplier == 0 {
		rules.DiminishingMultiplier = 1
	}
	for name, entry := range e.Types {
		tt := game.TreatmentType(name)
		if !tt.Valid() {
			return fmt.Errorf("treatment.types: unknown treatment type '%s'", name)
		}
		if entry.BaseCost < 0 {
			return fmt.Errorf("treatment '%s': base_cost must be non-negative", name)
		}
		if entry.Restore < 0 {
			return fmt.Errorf("treatment '%s': restore must be non-negative", name)
		}
		if entry.CooldownSeconds < 0 {
			return fmt.Errorf("treatment '%s': cooldown_seconds must be non-negative", name)
		}
		rules.Types[tt] = TreatmentOption{
			BaseCost:        entry.BaseCost,
			Restore:         entry.Restore,
			CooldownSeconds: entry.CooldownSeconds,
			DurationSeconds: entry.DurationSeconds,
		}
	}
	for stage, m := range rules.StageMultipliers {
		if m <= 0 {
			return fmt.Errorf("treatment.stage_multipliers['%s'] must be positive, got %v", stage, m)
		}
	}
	for trait, d := range rules.TraitDiscounts {
		if d < 0 || d > 1 {
			return fmt.Errorf("treatment.trait_discounts['%s'] must be between 0 and 1, got %v", trait, d)
		}
	}
	c.Treatment = rules
	return nil
}
