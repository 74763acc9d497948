package energy

import (
	"errors"
	"sync"
	"time"

	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/game"
)

var (
	ErrInsufficientEnergy = errors.New("insufficient energy")
	ErrUnknownImplant     = errors.New("implant not registered in energy ledger")
)

// ExceedPenalty records one over-limit activation of a canExceed implant.
// StatDebuffs are fractional modifiers applied while the penalty is live;
// CooldownUntil is zero when the penalty carries no lockout.
type ExceedPenalty struct {
	ImplantID     string
	StatDebuffs   map[string]float64
	CooldownUntil time.Time
	AppliedAt     time.Time
}

// Ledger tracks one character's cybernetic energy: the shared pool plus
// the independent per-implant limits. Both gates apply to every gated
// activation, and a rejected activation records nothing. An implant whose
// limit carries CanExceed may be driven past either gate, at the price of
// its configured penalty; only then may Used run past Total.
//
// All methods are safe for concurrent use; the ledger carries its own
// lock because energy updates (regen ticks, activations from a combat
// session) can arrive from different goroutines.
type Ledger struct {
	mu         sync.Mutex
	pool       game.EnergyPool
	penalties  []ExceedPenalty
	regenCarry float64
	now        func() time.Time
}

// NewLedger builds a ledger over the given pool snapshot. Limits must
// already be populated (one entry per installed implant that draws power).
func NewLedger(pool game.EnergyPool) *Ledger {
	return &Ledger{pool: pool, now: time.Now}
}

// RegisterLimit adds or replaces the per-implant limit entry. Installing
// an implant mid-session goes through here.
func (l *Ledger) RegisterLimit(limit game.IndividualEnergyLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.pool.Limits {
		if l.pool.Limits[i].ImplantID == limit.ImplantID {
			l.pool.Limits[i] = limit
			return
		}
	}
	l.pool.Limits = append(l.pool.Limits, limit)
}

// RemoveLimit drops the per-implant entry, releasing its recorded usage
// back to the shared pool. Implant removal treatments call this.
func (l *Ledger) RemoveLimit(implantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.pool.Limits {
		if l.pool.Limits[i].ImplantID == implantID {
			l.pool.Used -= l.pool.Limits[i].Usage
			if l.pool.Used < 0 {
				l.pool.Used = 0
			}
			l.pool.Limits = append(l.pool.Limits[:i], l.pool.Limits[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current pool state.
func (l *Ledger) Snapshot() game.EnergyPool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := l.pool
	cp.Limits = make([]game.IndividualEnergyLimit, len(l.pool.Limits))
	copy(cp.Limits, l.pool.Limits)
	return cp
}

func (l *Ledger) limitFor(implantID string) *game.IndividualEnergyLimit {
	for i := range l.pool.Limits {
		if l.pool.Limits[i].ImplantID == implantID {
			return &l.pool.Limits[i]
		}
	}
	return nil
}

// CanActivate reports whether the implant can spend cost energy right
// now, without recording anything. implantID may be empty for actions
// that draw from the shared pool only.
func (l *Ledger) CanActivate(implantID string, cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, _ := l.check(implantID, cost)
	return ok
}

// check evaluates both gates. The second return reports whether the
// activation runs past either gate, which is only admitted for implants
// whose limit allows exceeding.
func (l *Ledger) check(implantID string, cost int) (allowed, exceeds bool) {
	poolOK := cost <= l.pool.Total-l.pool.Used
	if implantID == "" {
		return poolOK, false
	}
	lim := l.limitFor(implantID)
	if lim == nil {
		return false, false
	}
	if l.onCooldown(implantID) {
		return false, false
	}
	if poolOK && lim.Usage+cost <= lim.Limit {
		return true, false
	}
	if !lim.CanExceed {
		return false, false
	}
	return true, true
}

// Reserve spends cost energy for the implant, recording usage against
// both the shared pool and the implant's own limit. When a canExceed
// implant runs past its limit or past the shared pool, the configured
// penalty is recorded and returned; callers feed the stat debuffs into
// combat resolution.
//
// The activation is atomic: on error nothing is recorded.
func (l *Ledger) Reserve(implantID string, cost int) (*ExceedPenalty, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	allowed, exceeds := l.check(implantID, cost)
	if !allowed {
		if implantID != "" && l.limitFor(implantID) == nil {
			return nil, ErrUnknownImplant
		}
		return nil, ErrInsufficientEnergy
	}
	l.pool.Used += cost
	if implantID == "" {
		return nil, nil
	}
	lim := l.limitFor(implantID)
	lim.Usage += cost
	if !exceeds {
		return nil, nil
	}
	pen := ExceedPenalty{
		ImplantID:   implantID,
		StatDebuffs: make(map[string]float64),
		AppliedAt:   l.now(),
	}
	for k, v := range lim.PenaltyOnExceed {
		if k == constants.PenaltyCooldownSeconds {
			pen.CooldownUntil = l.now().Add(time.Duration(v) * time.Second)
			continue
		}
		pen.StatDebuffs[k] = v
	}
	l.penalties = append(l.penalties, pen)
	return &pen, nil
}

// Release returns cost energy to the pool (and the implant's limit when
// given), used when an action is rolled back before it resolves.
func (l *Ledger) Release(implantID string, cost int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pool.Used -= cost
	if l.pool.Used < 0 {
		l.pool.Used = 0
	}
	if implantID == "" {
		return
	}
	if lim := l.limitFor(implantID); lim != nil {
		lim.Usage -= cost
		if lim.Usage < 0 {
			lim.Usage = 0
		}
	}
}

// Tick applies regeneration for the elapsed duration: the shared pool
// recovers used energy at RegenRate per second, and per-implant usage
// drains at the same rate. Usage never goes below zero. Fractional regen
// is carried across ticks, so sub-1.0 rates still recover over time.
func (l *Ledger) Tick(elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regenCarry += l.pool.RegenRate * elapsed.Seconds()
	regen := int(l.regenCarry)
	if regen <= 0 {
		return
	}
	l.regenCarry -= float64(regen)
	l.pool.Used -= regen
	if l.pool.Used < 0 {
		l.pool.Used = 0
	}
	for i := range l.pool.Limits {
		l.pool.Limits[i].Usage -= regen
		if l.pool.Limits[i].Usage < 0 {
			l.pool.Limits[i].Usage = 0
		}
	}
	l.expirePenalties()
}

func (l *Ledger) onCooldown(implantID string) bool {
	now := l.now()
	for _, p := range l.penalties {
		if p.ImplantID == implantID && !p.CooldownUntil.IsZero() && now.Before(p.CooldownUntil) {
			return true
		}
	}
	return false
}

// expirePenalties drops penalties whose cooldown has passed and whose
// overdraw has drained back within bounds (implant limit and shared pool).
func (l *Ledger) expirePenalties() {
	now := l.now()
	kept := l.penalties[:0]
	for _, p := range l.penalties {
		if !p.CooldownUntil.IsZero() && now.Before(p.CooldownUntil) {
			kept = append(kept, p)
			continue
		}
		if l.pool.Used > l.pool.Total {
			kept = append(kept, p)
			continue
		}
		if lim := l.limitFor(p.ImplantID); lim != nil && lim.Usage > lim.Limit {
			kept = append(kept, p)
		}
	}
	l.penalties = kept
}

// ActiveDebuffs merges the stat debuffs of every live penalty into a
// modifier set for combat resolution.
func (l *Ledger) ActiveDebuffs() game.ModifierSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expirePenalties()
	var mods game.ModifierSet
	for _, p := range l.penalties {
		for k, v := range p.StatDebuffs {
			switch k {
			case constants.StatAttack:
				mods.AttackPercent += v
			case constants.StatDefense:
				mods.DefensePercent += v
			case constants.StatInitiative:
				mods.InitiativePercent += v
			}
		}
	}
	return mods
}
