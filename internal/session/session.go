package session

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/energy"
	"github.com/necpgame/combat-resolution-go/internal/engine"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
)

var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrUnknownAction     = errors.New("unknown action")
	ErrActionUnavailable = errors.New("action unavailable")
	ErrNeedTwoSides      = errors.New("combat needs living participants on both sides")
	ErrDuplicateID       = errors.New("duplicate participant id")
)

// defendMitigationBonus is the extra damage-reduction fraction a defend
// stance grants until the defender's next turn.
const defendMitigationBonus = 0.25

// ModifierSource is the slice of the psyche tracker a session consults
// each action. Nil for participants without cybernetics (plain enemies).
type ModifierSource interface {
	SymptomModifiers() game.ModifierSet
}

// EnergyGate is the slice of the energy ledger a session consults.
type EnergyGate interface {
	Reserve(implantID string, cost int) (*energy.ExceedPenalty, error)
	Release(implantID string, cost int)
	ActiveDebuffs() game.ModifierSet
}

// Combatant pairs a session-owned participant with that character's
// per-character subsystems. The participant is copied at session start
// and owned by the session until it ends; the tracker and ledger remain
// shared per-character singletons.
type Combatant struct {
	Participant game.Participant
	Tracker     ModifierSource
	Ledger      EnergyGate
}

// ActionOutcome reports one resolved submission back to the caller.
type ActionOutcome struct {
	SessionID string
	Round     int
	Status    game.SessionStatus
	Packet    *game.DamagePacket
	Penalty   *energy.ExceedPenalty
	LogLine   string
	FleeRoll  bool
	NextTurn  string
	Result    *game.CombatEndResult
}

// Session is one combat encounter. All mutation happens under mu, taken
// for the whole of Submit / ForceTimeout: one writer per session.
type Session struct {
	mu sync.Mutex

	id         string
	status     game.SessionStatus
	round      int
	order      []string
	turnIdx    int
	combatants map[string]*Combatant
	defending  map[string]bool
	log        []string

	dealt map[string]int
	taken map[string]int

	startedAt    time.Time
	lastActionAt time.Time

	actions  map[string]game.Action
	tuning   config.CombatTuning
	roller   engine.Roller
	notifier events.Notifier
	rewards  events.RewardsSink
	result   *game.CombatEndResult
}

func newSession(id string, combatants []Combatant, cfg *config.LoadedConfig, roller engine.Roller, notifier events.Notifier, rewards events.RewardsSink) (*Session, error) {
	s := &Session{
		id:         id,
		status:     game.StatusActive,
		round:      1,
		combatants: make(map[string]*Combatant, len(combatants)),
		defending:  make(map[string]bool),
		dealt:      make(map[string]int),
		taken:      make(map[string]int),
		startedAt:  time.Now(),
		actions:    cfg.ActionsByID,
		tuning:     cfg.Combat,
		roller:     roller,
		notifier:   notifier,
		rewards:    rewards,
	}
	s.lastActionAt = s.startedAt

	sides := make(map[game.Side]int)
	for i := range combatants {
		c := combatants[i]
		if c.Participant.ID == "" {
			return nil, errors.New("participant id is required")
		}
		if _, dup := s.combatants[c.Participant.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, c.Participant.ID)
		}
		if c.Participant.MaxHealth <= 0 || c.Participant.Health <= 0 {
			return nil, fmt.Errorf("participant %s must start with positive health", c.Participant.ID)
		}
		c.Participant.Alive = true
		// the session owns its energy snapshot for its lifetime
		if c.Participant.Energy != nil {
			e := *c.Participant.Energy
			c.Participant.Energy = &e
		}
		if c.Participant.MaxEnergy != nil {
			m := *c.Participant.MaxEnergy
			c.Participant.MaxEnergy = &m
		}
		s.combatants[c.Participant.ID] = &c
		s.order = append(s.order, c.Participant.ID)
		sides[c.Participant.Type.Side()]++
	}
	if sides[game.SidePlayers] == 0 || sides[game.SideEnemies] == 0 {
		return nil, ErrNeedTwoSides
	}

	// initiative order: higher effective initiative first, id ascending on
	// ties. Initiative debuffs (symptoms, exceed penalties) active at
	// session start slow the combatant for the whole encounter.
	eff := make(map[string]int, len(s.combatants))
	for id, c := range s.combatants {
		eff[id] = effectiveInitiative(c.Participant.Initiative, s.modifiersFor(c))
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		if eff[s.order[i]] != eff[s.order[j]] {
			return eff[s.order[i]] > eff[s.order[j]]
		}
		return s.order[i] < s.order[j]
	})
	return s, nil
}

// effectiveInitiative applies fractional initiative modifiers to the base
// value, rounding half up and flooring at zero.
func effectiveInitiative(base int, mods game.ModifierSet) int {
	v := int(math.Floor(float64(base)*(1+mods.InitiativePercent) + 0.5))
	if v < 0 {
		return 0
	}
	return v
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() game.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Round returns the current round counter.
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// CurrentTurn returns the id of the participant whose turn it is, or ""
// once the session is terminal.
func (s *Session) CurrentTurn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != game.StatusActive {
		return ""
	}
	return s.order[s.turnIdx]
}

// Log returns a copy of the append-only action log.
func (s *Session) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// Participant returns a copy of the named participant's current state.
func (s *Session) Participant(id string) (game.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combatants[id]
	if !ok {
		return game.Participant{}, false
	}
	p := c.Participant
	if p.Energy != nil {
		e := *p.Energy
		p.Energy = &e
	}
	if p.MaxEnergy != nil {
		m := *p.MaxEnergy
		p.MaxEnergy = &m
	}
	return p, true
}

// Result returns the end-of-combat result once the session is terminal.
func (s *Session) Result() *game.CombatEndResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Submit resolves one action for the participant whose turn it is. Any
// rejection leaves the session untouched: the turn is not consumed and
// the caller may retry.
func (s *Session) Submit(characterID, actionID, targetID string) (ActionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != game.StatusActive {
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrSessionNotActive, s.status)
	}
	if s.order[s.turnIdx] != characterID {
		return ActionOutcome{}, fmt.Errorf("%w: current turn is %s", ErrNotYourTurn, s.order[s.turnIdx])
	}
	actor := s.combatants[characterID]

	action, ok := s.actions[actionID]
	if !ok {
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}
	if !action.Available {
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrActionUnavailable, actionID)
	}

	actorMods := s.modifiersFor(actor)
	if actorMods.Disables(action.Kind) {
		return ActionOutcome{}, fmt.Errorf("%w: %s is blocked by an active symptom", ErrActionUnavailable, action.Kind)
	}

	out := ActionOutcome{SessionID: s.id, Round: s.round}

	switch action.Kind {
	case game.ActionAttack, game.ActionAbility:
		if err := s.resolveAttack(actor, action, targetID, actorMods, &out); err != nil {
			return ActionOutcome{}, err
		}
	case game.ActionDefend:
		s.defending[characterID] = true
		s.appendLog(fmt.Sprintf("%s takes a defensive stance", actor.Participant.Name))
		out.LogLine = s.log[len(s.log)-1]
	case game.ActionUseItem:
		if err := s.reserveCost(actor, action, &out); err != nil {
			return ActionOutcome{}, err
		}
		s.appendLog(fmt.Sprintf("%s uses %s", actor.Participant.Name, action.Name))
		out.LogLine = s.log[len(s.log)-1]
	case game.ActionFlee:
		s.resolveFlee(actor, &out)
	default:
		return ActionOutcome{}, fmt.Errorf("%w: %s", ErrUnknownAction, action.Kind)
	}

	s.lastActionAt = time.Now()

	if s.status == game.StatusActive {
		s.checkTermination()
	}
	if s.status == game.StatusActive {
		s.advanceTurn()
	}
	if s.status == game.StatusActive && s.round > s.tuning.MaxRounds {
		s.finish(game.OutcomeTimeout, "")
	}

	out.Status = s.status
	out.Result = s.result
	if s.status == game.StatusActive {
		out.NextTurn = s.order[s.turnIdx]
	}
	return out, nil
}

// modifiersFor merges symptom modifiers and exceed-penalty debuffs.
func (s *Session) modifiersFor(c *Combatant) game.ModifierSet {
	var mods game.ModifierSet
	if c.Tracker != nil {
		mods = mods.Merge(c.Tracker.SymptomModifiers())
	}
	if c.Ledger != nil {
		mods = mods.Merge(c.Ledger.ActiveDebuffs())
	}
	return mods
}

func (s *Session) reserveCost(c *Combatant, action game.Action, out *ActionOutcome) error {
	cost := action.Cost()
	if cost == 0 || c.Ledger == nil {
		return nil
	}
	pen, err := c.Ledger.Reserve(action.ImplantID, cost)
	if err != nil {
		return err
	}
	if c.Participant.Energy != nil {
		*c.Participant.Energy -= cost
	}
	out.Penalty = pen
	return nil
}

func (s *Session) resolveAttack(actor *Combatant, action game.Action, targetID string, actorMods game.ModifierSet, out *ActionOutcome) error {
	target, ok := s.combatants[targetID]
	if !ok || !target.Participant.Alive {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, targetID)
	}
	if target.Participant.Type.Side() == actor.Participant.Type.Side() {
		return fmt.Errorf("%w: %s is on the same side", ErrInvalidTarget, targetID)
	}

	if err := s.reserveCost(actor, action, out); err != nil {
		return err
	}

	targetMods := s.modifiersFor(target)
	if s.defending[targetID] {
		targetMods.DefensePercent += defendMitigationBonus
	}

	pkt, err := engine.Resolve(engine.Input{
		Attacker:     &actor.Participant,
		Target:       &target.Participant,
		Action:       action,
		AttackerMods: actorMods,
		TargetMods:   targetMods,
		Tuning:       s.tuning,
	}, s.roller)
	if err != nil {
		// the energy is already spent; give it back on a failed pipeline
		if c := action.Cost(); c > 0 && actor.Ledger != nil {
			actor.Ledger.Release(action.ImplantID, c)
			if actor.Participant.Energy != nil {
				*actor.Participant.Energy += c
			}
		}
		return err
	}

	target.Participant.Shield -= pkt.ShieldAbsorbed
	if target.Participant.Shield < 0 {
		target.Participant.Shield = 0
	}
	target.Participant.Health -= pkt.FinalDamage
	if target.Participant.Health < 0 {
		target.Participant.Health = 0
	}
	if target.Participant.Health == 0 {
		target.Participant.Alive = false
	}

	s.dealt[actor.Participant.ID] += pkt.FinalDamage
	s.taken[targetID] += pkt.FinalDamage

	line := fmt.Sprintf("%s hits %s with %s for %d damage", actor.Participant.Name,
		target.Participant.Name, action.Name, pkt.FinalDamage)
	if pkt.HasTag(game.TagCritical) {
		line += " (critical)"
	}
	if pkt.HasTag(game.TagShielded) {
		line += fmt.Sprintf(" (%d absorbed by shield)", pkt.ShieldAbsorbed)
	}
	if !target.Participant.Alive {
		line += fmt.Sprintf("; %s goes down", target.Participant.Name)
	}
	s.appendLog(line)

	out.Packet = &pkt
	out.LogLine = line
	return nil
}

func (s *Session) resolveFlee(actor *Combatant, out *ActionOutcome) {
	chance := engine.FleeChance(&actor.Participant, s.tuning)
	if s.roller.Float64() < chance {
		out.FleeRoll = true
		s.appendLog(fmt.Sprintf("%s breaks away and escapes", actor.Participant.Name))
		out.LogLine = s.log[len(s.log)-1]
		s.finish(game.OutcomeExtraction, "")
		return
	}
	s.appendLog(fmt.Sprintf("%s tries to flee but fails", actor.Participant.Name))
	out.LogLine = s.log[len(s.log)-1]
}

// advanceTurn moves to the next living participant; wrapping past the end
// of the initiative order closes the round.
func (s *Session) advanceTurn() {
	for i := 0; i < len(s.order); i++ {
		s.turnIdx++
		if s.turnIdx >= len(s.order) {
			s.turnIdx = 0
			s.round++
		}
		next := s.order[s.turnIdx]
		if s.combatants[next].Participant.Alive {
			// defend stance lasts until the defender acts again
			delete(s.defending, next)
			return
		}
	}
}

func (s *Session) checkTermination() {
	living := make(map[game.Side]int)
	for _, c := range s.combatants {
		if c.Participant.Alive {
			living[c.Participant.Type.Side()]++
		}
	}
	switch {
	case living[game.SidePlayers] == 0 && living[game.SideEnemies] == 0:
		s.finish(game.OutcomeDraw, "")
	case living[game.SideEnemies] == 0:
		s.finish(game.OutcomeVictory, game.SidePlayers)
	case living[game.SidePlayers] == 0:
		s.finish(game.OutcomeDefeat, game.SideEnemies)
	}
}

// finish moves the session to its terminal state, builds the end result
// and hands it to the notifier and the rewards collaborator. EXTRACTION
// ends in `fled`; every other outcome ends in `ended`.
func (s *Session) finish(outcome game.Outcome, winner game.Side) {
	if s.status != game.StatusActive {
		return
	}
	if outcome == game.OutcomeExtraction {
		s.status = game.StatusFled
	} else {
		s.status = game.StatusEnded
	}

	result := &game.CombatEndResult{
		SessionID:  s.id,
		Outcome:    outcome,
		WinnerSide: winner,
		Rounds:     s.round,
		Duration:   time.Since(s.startedAt),
	}
	for _, id := range s.order {
		p := s.combatants[id].Participant
		result.Participants = append(result.Participants, game.ParticipantResult{
			ID:          p.ID,
			Name:        p.Name,
			Side:        p.Type.Side(),
			Alive:       p.Alive,
			Health:      p.Health,
			DamageDealt: s.dealt[id],
			DamageTaken: s.taken[id],
		})
	}
	s.result = result

	logging.Info("combat finished", logging.Fields{
		constants.LogFieldSessionID: s.id,
		constants.LogFieldOutcome:   string(outcome),
		constants.LogFieldRound:     s.round,
	})
	if s.notifier != nil {
		s.notifier.SessionEnded(s.id, *result)
	}
	if s.rewards != nil {
		if err := s.rewards.Settle(s.id, *result); err != nil {
			logging.Error("rewards settlement failed", err, logging.Fields{
				constants.LogFieldSessionID: s.id,
			})
		}
	}
}

// ForceTimeout forces an active session into ended/TIMEOUT. Used by an
// external supervisor for abandoned sessions.
func (s *Session) ForceTimeout() *game.CombatEndResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != game.StatusActive {
		return s.result
	}
	s.appendLog("combat timed out")
	s.finish(game.OutcomeTimeout, "")
	return s.result
}

func (s *Session) appendLog(line string) {
	s.log = append(s.log, line)
	if s.notifier != nil {
		s.notifier.CombatLogLine(s.id, line)
	}
}
