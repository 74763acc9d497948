package treatment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTreatmentOnCooldown = errors.New("treatment on cooldown")
	ErrUnknownTreatment    = errors.New("unknown treatment type")
	ErrImplantRequired     = errors.New("implant removal requires an implant")
)

// HumanityTracker is the slice of the psyche tracker the calculator
// needs. All humanity mutation goes through it; the calculator never
// touches HumanityState directly.
type HumanityTracker interface {
	State() game.HumanityState
	Stage() game.StageDefinition
	Restore(amount int) int
	RemoveImplant(def config.ImplantDefinition)
}

// LimitRemover releases an implant's energy limit record on removal.
type LimitRemover interface {
	RemoveLimit(implantID string)
}

// Calculator prices and applies humanity treatments. It is stateless
// apart from its configuration; per-character state lives on the
// character record and the tracker.
type Calculator struct {
	rules    config.TreatmentRules
	notifier events.Notifier
	now      func() time.Time
}

func NewCalculator(rules config.TreatmentRules, notifier events.Notifier) *Calculator {
	return &Calculator{rules: rules, notifier: notifier, now: time.Now}
}

// Quote computes the deterministic price of one treatment: base cost
// times stage and diminishing-returns multipliers, minus trait discounts,
// floored at the configured minimum. Quoting has no side effects.
func (c *Calculator) Quote(ch *game.Character, stage game.StageName, kind game.TreatmentType) (game.TreatmentCosts, error) {
	opt, ok := c.rules.Types[kind]
	if !ok {
		return game.TreatmentCosts{}, fmt.Errorf("%w: %s", ErrUnknownTreatment, kind)
	}

	stageMult := 1.0
	if m, ok := c.rules.StageMultipliers[stage]; ok {
		stageMult = m
	}
	diminishing := 1.0
	if c.rules.DiminishingWindow > 0 && ch.LastTreatmentAt != nil &&
		c.now().Sub(*ch.LastTreatmentAt) < c.rules.DiminishingWindow {
		diminishing = c.rules.DiminishingMultiplier
	}

	subtotal := int64(math.Floor(float64(opt.BaseCost) * stageMult * diminishing))

	var discount int64
	for trait, frac := range c.rules.TraitDiscounts {
		if ch.HasTrait(trait) {
			d := int64(math.Floor(float64(subtotal) * frac))
			if d > discount {
				discount = d
			}
		}
	}

	total := subtotal - discount
	if total < c.rules.MinimumCost {
		total = c.rules.MinimumCost
	}
	return game.TreatmentCosts{
		Total:                 total,
		Base:                  opt.BaseCost,
		StageMultiplier:       stageMult,
		DiminishingMultiplier: diminishing,
		Discount:              discount,
	}, nil
}

// ApplyRequest carries one treatment attempt. RemovedImplant and Limits
// are consulted only for implant_removal.
type ApplyRequest struct {
	Character      *game.Character
	Tracker        HumanityTracker
	Kind           game.TreatmentType
	Payment        int64
	RemovedImplant *config.ImplantDefinition
	Limits         LimitRemover
}

// Apply settles one treatment: checks payment against the quote and the
// character's cooldown, restores humanity through the tracker (bounded by
// the restoration ceiling), debits the balance and records the new
// cooldown window. The attempt is atomic: on error nothing changes.
func (c *Calculator) Apply(req ApplyRequest) (game.TreatmentResult, error) {
	ch := req.Character
	opt, ok := c.rules.Types[req.Kind]
	if !ok {
		return game.TreatmentResult{}, fmt.Errorf("%w: %s", ErrUnknownTreatment, req.Kind)
	}
	if req.Kind == game.TreatmentImplantRemoval && req.RemovedImplant == nil {
		return game.TreatmentResult{}, ErrImplantRequired
	}

	now := c.now()
	if ch.TreatmentCooldownUntil != nil && now.Before(*ch.TreatmentCooldownUntil) {
		return game.TreatmentResult{}, fmt.Errorf("%w until %s", ErrTreatmentOnCooldown,
			ch.TreatmentCooldownUntil.Format(time.RFC3339))
	}

	costs, err := c.Quote(ch, req.Tracker.Stage().Name, req.Kind)
	if err != nil {
		return game.TreatmentResult{}, err
	}
	if req.Payment < costs.Total {
		return game.TreatmentResult{}, fmt.Errorf("%w: need %d, offered %d",
			ErrInsufficientFunds, costs.Total, req.Payment)
	}
	if ch.Balance < costs.Total {
		return game.TreatmentResult{}, fmt.Errorf("%w: balance %d below cost %d",
			ErrInsufficientFunds, ch.Balance, costs.Total)
	}

	// implant removal gives back the implant's permanent humanity price
	// before the restoration applies, and releases its energy limit
	if req.Kind == game.TreatmentImplantRemoval {
		req.Tracker.RemoveImplant(*req.RemovedImplant)
		if req.Limits != nil {
			req.Limits.RemoveLimit(req.RemovedImplant.ID)
		}
	}

	restored := req.Tracker.Restore(opt.Restore)

	ch.Balance -= costs.Total
	ch.LastTreatmentAt = &now
	var cooldown *int
	if opt.CooldownSeconds > 0 {
		until := now.Add(time.Duration(opt.CooldownSeconds) * time.Second)
		ch.TreatmentCooldownUntil = &until
		cd := opt.CooldownSeconds
		cooldown = &cd
	} else {
		ch.TreatmentCooldownUntil = nil
	}

	result := game.TreatmentResult{
		HumanityRestored: restored,
		Cost:             costs.Total,
		DurationSeconds:  opt.DurationSeconds,
		CooldownSeconds:  cooldown,
	}
	if restored < opt.Restore {
		st := req.Tracker.State()
		if st.CeilingLocked {
			result.Limitations = append(result.Limitations,
				fmt.Sprintf("cannot restore above %d after crossing the loss threshold", st.RestorableCeiling()))
		} else {
			result.Limitations = append(result.Limitations,
				fmt.Sprintf("humanity is capped at its maximum of %d", st.Max))
		}
	}

	logging.Info("treatment settled", logging.Fields{
		constants.LogFieldCharacterID: ch.CharacterID,
		constants.LogFieldTreatment:   string(req.Kind),
		constants.LogFieldAmount:      restored,
		"cost":                        costs.Total,
	})
	if c.notifier != nil {
		c.notifier.TreatmentApplied(ch.CharacterID, req.Kind, restored)
	}
	return result, nil
}
