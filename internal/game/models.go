package game

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaxHumanityDefault is the humanity pool every character starts with.
// Loss percentage is always computed against this default, not against a
// character's (possibly implant-reduced) personal maximum.
const MaxHumanityDefault = 100

// Participant is a single combatant inside one session. Participants are
// owned exclusively by their session for its lifetime: created at session
// start, mutated on each resolved action, never shared across sessions.
type Participant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         ParticipantType `json:"type"`
	Health       int             `json:"health"`
	MaxHealth    int             `json:"max_health"`
	Energy       *int            `json:"energy,omitempty"`
	MaxEnergy    *int            `json:"max_energy,omitempty"`
	Armor        int             `json:"armor"`  // percent rating; the pipeline converts it to a capped fraction
	Shield       int             `json:"shield"` // secondary buffer consumed before health loss
	Initiative   int             `json:"initiative"`
	WeaponDamage int             `json:"weapon_damage"`
	Alive        bool            `json:"is_alive"`
}

// Action is a read-only catalog entry referenced by id from action
// declarations. Actions are never owned by a session.
type Action struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Kind       ActionKind `json:"kind"`
	EnergyCost *int       `json:"energy_cost,omitempty"` // absent means zero
	Damage     *int       `json:"damage,omitempty"`      // absent means weapon base damage
	// ImplantID names the implant whose individual energy limit gates this
	// action. Empty for actions that draw only on the shared pool.
	ImplantID string `json:"implant_id,omitempty"`
	Available bool   `json:"available"`
}

// Cost returns the action's energy cost with absent meaning zero.
func (a *Action) Cost() int {
	if a.EnergyCost == nil {
		return 0
	}
	return *a.EnergyCost
}

// DamagePacket is the immutable result record of one resolved attack.
// Created fresh per attack, never mutated after the pipeline completes.
type DamagePacket struct {
	SourceID       string   `json:"source_id"`
	TargetID       string   `json:"target_id"`
	BaseDamage     float64  `json:"base_damage"`
	CritMultiplier float64  `json:"crit_multiplier"`
	Mitigation     float64  `json:"mitigation"` // fraction of damage removed by armor
	ShieldAbsorbed int      `json:"shield_absorbed"`
	FinalDamage    int      `json:"final_damage"`
	Tags           []string `json:"tags"`
}

// HasTag reports whether the packet carries the given modifier tag.
func (p *DamagePacket) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Damage packet tags appended for each modifier that fired.
const (
	TagCritical            = "critical"
	TagShielded            = "shielded"
	TagCyberpsychosisBonus = "cyberpsychosis_bonus"
)

// ModifierSet aggregates symptom and penalty effects into the shape the
// damage pipeline and action gating consume. The zero value is neutral.
type ModifierSet struct {
	// FlatDamageBonus is added to base damage before the crit roll.
	FlatDamageBonus float64
	// AttackPercent and DefensePercent adjust outgoing/incoming damage
	// fractionally (0.10 = +10%).
	AttackPercent  float64
	DefensePercent float64
	// CritChanceBonus is added to the configured crit chance.
	CritChanceBonus float64
	// InitiativePercent adjusts effective initiative when turn order is
	// computed at session start (-0.25 = 25% slower).
	InitiativePercent float64
	// DisabledKinds lists action kinds the character may not use while the
	// contributing effects hold.
	DisabledKinds map[ActionKind]bool
}

// Merge returns the combination of two modifier sets: numeric effects add,
// disabled kinds union.
func (m ModifierSet) Merge(other ModifierSet) ModifierSet {
	out := ModifierSet{
		FlatDamageBonus:   m.FlatDamageBonus + other.FlatDamageBonus,
		AttackPercent:     m.AttackPercent + other.AttackPercent,
		DefensePercent:    m.DefensePercent + other.DefensePercent,
		CritChanceBonus:   m.CritChanceBonus + other.CritChanceBonus,
		InitiativePercent: m.InitiativePercent + other.InitiativePercent,
	}
	if len(m.DisabledKinds) > 0 || len(other.DisabledKinds) > 0 {
		out.DisabledKinds = make(map[ActionKind]bool, len(m.DisabledKinds)+len(other.DisabledKinds))
		for k := range m.DisabledKinds {
			out.DisabledKinds[k] = true
		}
		for k := range other.DisabledKinds {
			out.DisabledKinds[k] = true
		}
	}
	return out
}

// Disables reports whether the set forbids the given action kind.
func (m ModifierSet) Disables(k ActionKind) bool { return m.DisabledKinds[k] }

// HumanityState tracks one character's psychological stability. The stage
// is always derived from Current via the stage catalog, never stored.
type HumanityState struct {
	Current int `json:"current"`
	Max     int `json:"max"`
	// Ceiling is the monotonic restoration cap. Once CeilingLocked is set
	// (loss percentage crossed the configured threshold) Current can never
	// be restored above Ceiling; the lock only tightens, never loosens.
	Ceiling       int  `json:"ceiling"`
	CeilingLocked bool `json:"ceiling_locked"`
}

// NewHumanityState returns the state every character starts with.
func NewHumanityState() HumanityState {
	return HumanityState{Current: MaxHumanityDefault, Max: MaxHumanityDefault, Ceiling: MaxHumanityDefault}
}

// LossPercentage is the derived loss figure: (max - current) relative to
// the default pool, in percent.
func (h HumanityState) LossPercentage() float64 {
	return float64(h.Max-h.Current) / float64(MaxHumanityDefault) * 100
}

// RestorableCeiling is the highest value Current may be restored to.
func (h HumanityState) RestorableCeiling() int {
	if h.CeilingLocked && h.Ceiling < h.Max {
		return h.Ceiling
	}
	return h.Max
}

// StageDefinition is a static catalog entry covering one humanity range
// [Low, High). The top stage additionally includes High itself so the
// catalog covers the full [0,100] span.
type StageDefinition struct {
	Name     StageName `json:"name"`
	Low      int       `json:"low"`
	High     int       `json:"high"`
	Symptoms []Symptom `json:"symptoms"`
	// Effects are presentation-level flags (screen glitches, voice lines)
	// passed through to notification consumers untouched.
	Effects []string `json:"effects,omitempty"`
}

// Contains reports whether current falls inside this stage's range.
func (d StageDefinition) Contains(current int) bool {
	if current == MaxHumanityDefault && d.High == MaxHumanityDefault {
		return true
	}
	return current >= d.Low && current < d.High
}

// Symptom is a gameplay effect active while a character sits in a stage
// whose eligible set contains it.
type Symptom struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	// Effects maps stat keys (attack, defense, crit_chance, damage_flat)
	// to fractional or flat modifiers folded into a ModifierSet.
	Effects map[string]float64 `json:"effects"`
	// Weight orders eligible symptoms; higher weights apply first.
	Weight int `json:"weight"`
	// RequiresTrait limits the symptom to characters carrying the trait.
	RequiresTrait string `json:"requires_trait,omitempty"`
	// DurationSeconds, when present, bounds the symptom; absent means the
	// symptom persists while the stage holds.
	DurationSeconds *int `json:"duration_seconds,omitempty"`
}

// EnergyPool is one character's shared implant energy reserve.
type EnergyPool struct {
	Total     int                     `json:"total_pool"`
	Used      int                     `json:"used"`
	RegenRate float64                 `json:"regen_rate"` // points per second
	Level     int                     `json:"current_level"`
	MaxLevel  *int                    `json:"max_level,omitempty"`
	Limits    []IndividualEnergyLimit `json:"individual_limits"`
}

// Available is the headroom left in the shared pool.
func (p EnergyPool) Available() int { return p.Total - p.Used }

// IndividualEnergyLimit is the per-implant gate checked independently of
// the shared pool.
type IndividualEnergyLimit struct {
	ImplantID string `json:"implant_id"`
	Limit     int    `json:"individual_limit"`
	Usage     int    `json:"current_usage"`
	CanExceed bool   `json:"can_exceed"`
	// PenaltyOnExceed maps stat keys to debuffs (plus the reserved key
	// cooldown_seconds) applied when an exceeding activation is admitted.
	PenaltyOnExceed map[string]float64 `json:"penalty_on_exceed,omitempty"`
}

// TreatmentCosts is the deterministic price quote for one treatment.
type TreatmentCosts struct {
	Total                 int64   `json:"total"`
	Base                  int64   `json:"base"`
	StageMultiplier       float64 `json:"stage_multiplier"`
	DiminishingMultiplier float64 `json:"diminishing_multiplier"`
	Discount              int64   `json:"discount"`
}

// TreatmentResult is produced fresh per successful treatment attempt and
// not persisted beyond the response.
type TreatmentResult struct {
	HumanityRestored int      `json:"humanity_restored"`
	Cost             int64    `json:"cost"`
	DurationSeconds  int      `json:"duration"`
	CooldownSeconds  *int     `json:"cooldown,omitempty"`
	Limitations      []string `json:"limitations,omitempty"`
}

// ParticipantResult summarizes one participant inside a CombatEndResult.
type ParticipantResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Side        Side   `json:"side"`
	Alive       bool   `json:"is_alive"`
	Health      int    `json:"health"`
	DamageDealt int    `json:"damage_dealt"`
	DamageTaken int    `json:"damage_taken"`
}

// CombatEndResult is handed to the rewards collaborator when a session
// reaches a terminal state. This core computes the result only; granting
// experience or loot belongs to the collaborator.
type CombatEndResult struct {
	SessionID    string              `json:"session_id"`
	Outcome      Outcome             `json:"outcome"`
	WinnerSide   Side                `json:"winner_side,omitempty"`
	Rounds       int                 `json:"rounds"`
	Duration     time.Duration       `json:"duration"`
	Participants []ParticipantResult `json:"participants"`
}

// Character is the provider-owned record this engine reads base stats
// from. Combat-relevant implant data is joined in from the catalog config
// at load; the database stays the source of identity and progress only.
type Character struct {
	gorm.Model
	CharacterID  string `json:"character_id" gorm:"uniqueIndex"`
	Name         string `json:"name"`
	MaxHealth    int    `json:"max_health"`
	Armor        int    `json:"armor"`
	Speed        int    `json:"speed"`
	WeaponDamage int    `json:"weapon_damage"`
	Balance      int64  `json:"balance"`

	EnergyTotal int     `json:"energy_total"`
	EnergyRegen float64 `json:"energy_regen"`
	// Traits is a comma-separated trait key list; symptom conditions match
	// against it. Kept flat so the column stays a plain string.
	Traits string `json:"traits"`

	HumanityCurrent int  `json:"humanity_current"`
	HumanityMax     int  `json:"humanity_max"`
	HumanityCeiling int  `json:"humanity_ceiling"`
	CeilingLocked   bool `json:"ceiling_locked"`

	LastTreatmentAt        *time.Time `json:"last_treatment_at,omitempty"`
	TreatmentCooldownUntil *time.Time `json:"treatment_cooldown_until,omitempty"`

	Implants []InstalledImplant `json:"implants" gorm:"foreignKey:CharacterRef"`
}

// HasTrait reports whether the character carries the given trait key.
func (c *Character) HasTrait(key string) bool {
	if key == "" || c.Traits == "" {
		return false
	}
	for _, t := range strings.Split(c.Traits, ",") {
		if strings.TrimSpace(t) == key {
			return true
		}
	}
	return false
}

// TraitList splits the flat trait column into individual keys.
func (c *Character) TraitList() []string {
	if c.Traits == "" {
		return nil
	}
	parts := strings.Split(c.Traits, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Humanity assembles the in-memory humanity state from the record.
func (c *Character) Humanity() HumanityState {
	return HumanityState{
		Current:       c.HumanityCurrent,
		Max:           c.HumanityMax,
		Ceiling:       c.HumanityCeiling,
		CeilingLocked: c.CeilingLocked,
	}
}

// SetHumanity writes an in-memory humanity state back onto the record.
func (c *Character) SetHumanity(h HumanityState) {
	c.HumanityCurrent = h.Current
	c.HumanityMax = h.Max
	c.HumanityCeiling = h.Ceiling
	c.CeilingLocked = h.CeilingLocked
}

// InstalledImplant records an implant a character has installed. Stat and
// penalty fields are not persisted: they are populated from the implant
// catalog by ImplantID, keeping the config the single source of truth.
type InstalledImplant struct {
	gorm.Model
	CharacterRef    uint               `json:"-" gorm:"index"`
	ImplantID       string             `json:"implant_id"`
	Name            string             `json:"name" gorm:"-"`
	HumanityCost    int                `json:"humanity_cost" gorm:"-"`
	EnergyLimit     int                `json:"energy_limit" gorm:"-"`
	CanExceed       bool               `json:"can_exceed" gorm:"-"`
	PenaltyOnExceed map[string]float64 `json:"penalty_on_exceed,omitempty" gorm:"-"`
}

// TableName keeps the persisted table named after the domain wording.
func (InstalledImplant) TableName() string { return "installed_implants" }
