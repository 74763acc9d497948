package engine

import (
	"errors"
	"math"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/game"
)

var (
	ErrNilAttacker    = errors.New("attacker is required")
	ErrNilTarget      = errors.New("target is required")
	ErrActionNoDamage = errors.New("action deals no damage")
)

// Input carries everything one damage resolution needs. Modifier sets are
// the merged result of the combatants' active symptoms plus any transient
// effects (defend stance, exceed penalties); the resolver itself never
// looks at humanity or energy state.
type Input struct {
	Attacker     *game.Participant
	Target       *game.Participant
	Action       game.Action
	AttackerMods game.ModifierSet
	TargetMods   game.ModifierSet
	Tuning       config.CombatTuning
}

// Resolve runs the damage pipeline for a single attack and returns the
// resulting packet. It is a pure calculation: the participants are read,
// never written. The caller applies FinalDamage and ShieldAbsorbed to the
// target afterwards, under the session lock.
//
// Pipeline order is fixed: base damage plus flat bonuses, then the crit
// roll, then armor mitigation, then shield absorption, then rounding.
// FinalDamage is never negative.
func Resolve(in Input, roll Roller) (game.DamagePacket, error) {
	if in.Attacker == nil {
		return game.DamagePacket{}, ErrNilAttacker
	}
	if in.Target == nil {
		return game.DamagePacket{}, ErrNilTarget
	}

	base := in.Attacker.WeaponDamage
	if in.Action.Damage != nil {
		base = *in.Action.Damage
	}
	if base <= 0 && in.AttackerMods.FlatDamageBonus <= 0 {
		return game.DamagePacket{}, ErrActionNoDamage
	}

	pkt := game.DamagePacket{
		SourceID:   in.Attacker.ID,
		TargetID:   in.Target.ID,
		BaseDamage: float64(base),
	}

	raw := float64(base)
	if in.AttackerMods.FlatDamageBonus > 0 {
		raw += in.AttackerMods.FlatDamageBonus
		pkt.Tags = append(pkt.Tags, game.TagCyberpsychosisBonus)
	}
	raw *= 1 + in.AttackerMods.AttackPercent

	pkt.CritMultiplier = 1
	critChance := in.Tuning.CritChance + in.AttackerMods.CritChanceBonus
	if critChance > 0 && roll.Float64() < critChance {
		pkt.CritMultiplier = in.Tuning.CritMultiplier
		raw *= in.Tuning.CritMultiplier
		pkt.Tags = append(pkt.Tags, game.TagCritical)
	}

	mitigation := float64(in.Target.Armor)/100 + in.TargetMods.DefensePercent
	if mitigation < 0 {
		mitigation = 0
	}
	if mitigation > in.Tuning.MitigationCap {
		mitigation = in.Tuning.MitigationCap
	}
	pkt.Mitigation = mitigation
	mitigated := raw * (1 - mitigation)

	if in.Target.Shield > 0 {
		absorbed := math.Min(float64(in.Target.Shield), mitigated)
		pkt.ShieldAbsorbed = int(math.Floor(absorbed + 0.5))
		mitigated -= absorbed
		pkt.Tags = append(pkt.Tags, game.TagShielded)
	}

	final := int(math.Floor(mitigated + 0.5))
	if final < 0 {
		final = 0
	}
	pkt.FinalDamage = final
	return pkt, nil
}

// FleeChance computes the probability that fleeing succeeds for the given
// participant. Below the desperation health threshold the bonus kicks in;
// the result is clamped to [0,1].
func FleeChance(p *game.Participant, tuning config.CombatTuning) float64 {
	chance := tuning.FleeBaseChance
	if p.MaxHealth > 0 {
		pct := p.Health * 100 / p.MaxHealth
		if pct < tuning.DesperationHealthPercent {
			chance += tuning.FleeDesperationBonus
		}
	}
	if chance < 0 {
		return 0
	}
	if chance > 1 {
		return 1
	}
	return chance
}
