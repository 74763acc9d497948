package service

import (
	"fmt"
	"sync"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/energy"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
	"github.com/necpgame/combat-resolution-go/internal/psyche"
	"github.com/necpgame/combat-resolution-go/internal/session"
	"github.com/necpgame/combat-resolution-go/internal/storage"
	"github.com/necpgame/combat-resolution-go/internal/treatment"
)

// GameService wires the per-character subsystems to the repository and
// the session manager. Trackers and ledgers are per-character singletons;
// every combat or treatment path touching the same character serializes
// on that character's lock, so a combat action and a treatment request
// can never interleave their state changes.
type GameService struct {
	repo     storage.Repository
	cfg      *config.LoadedConfig
	catalog  *psyche.Catalog
	notifier events.Notifier

	Sessions *session.Manager
	calc     *treatment.Calculator

	mu        sync.Mutex
	charLocks map[string]*sync.Mutex
	trackers  map[string]*psyche.Tracker
	ledgers   map[string]*energy.Ledger
}

func NewGameService(repo storage.Repository, cfg *config.LoadedConfig, notifier events.Notifier, rewards events.RewardsSink) *GameService {
	return &GameService{
		repo:      repo,
		cfg:       cfg,
		catalog:   psyche.NewCatalog(cfg.Stages),
		notifier:  notifier,
		Sessions:  session.NewManager(cfg, notifier, rewards),
		calc:      treatment.NewCalculator(cfg.Treatment, notifier),
		charLocks: make(map[string]*sync.Mutex),
		trackers:  make(map[string]*psyche.Tracker),
		ledgers:   make(map[string]*energy.Ledger),
	}
}

// charLock returns the keyed mutex for one character id.
func (s *GameService) charLock(characterID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.charLocks[characterID]
	if !ok {
		l = &sync.Mutex{}
		s.charLocks[characterID] = l
	}
	return l
}

// subsystems returns the character's tracker and ledger singletons,
// building them from the stored record on first use.
func (s *GameService) subsystems(ch *game.Character) (*psyche.Tracker, *energy.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.trackers[ch.CharacterID]
	if !ok {
		tr = psyche.NewTracker(psyche.TrackerParams{
			CharacterID:          ch.CharacterID,
			State:                ch.Humanity(),
			Traits:               ch.TraitList(),
			Catalog:              s.catalog,
			CeilingLossThreshold: s.cfg.Treatment.CeilingLossThreshold,
			RestoreCeiling:       s.cfg.Treatment.RestoreCeiling,
			Notifier:             s.notifier,
		})
		s.trackers[ch.CharacterID] = tr
	}

	led, ok := s.ledgers[ch.CharacterID]
	if !ok {
		limits := make([]game.IndividualEnergyLimit, 0, len(ch.Implants))
		for _, imp := range ch.Implants {
			if imp.EnergyLimit <= 0 {
				continue
			}
			limits = append(limits, game.IndividualEnergyLimit{
				ImplantID:       imp.ImplantID,
				Limit:           imp.EnergyLimit,
				CanExceed:       imp.CanExceed,
				PenaltyOnExceed: imp.PenaltyOnExceed,
			})
		}
		led = energy.NewLedger(game.EnergyPool{
			Total:     ch.EnergyTotal,
			RegenRate: ch.EnergyRegen,
			Limits:    limits,
		})
		s.ledgers[ch.CharacterID] = led
	}
	return tr, led
}

// LoadCombatant builds a combat roster entry for a stored character:
// participant stats from the record, tracker and ledger attached.
func (s *GameService) LoadCombatant(characterID string, ptype game.ParticipantType) (session.Combatant, error) {
	ch, err := s.repo.GetCharacter(characterID)
	if err != nil {
		return session.Combatant{}, err
	}
	tr, led := s.subsystems(ch)
	pool := led.Snapshot()
	avail := pool.Available()
	return session.Combatant{
		Participant: game.Participant{
			ID:           ch.CharacterID,
			Name:         ch.Name,
			Type:         ptype,
			Health:       ch.MaxHealth,
			MaxHealth:    ch.MaxHealth,
			Energy:       &avail,
			MaxEnergy:    &pool.Total,
			Armor:        ch.Armor,
			Initiative:   ch.Speed,
			WeaponDamage: ch.WeaponDamage,
			Alive:        true,
		},
		Tracker: tr,
		Ledger:  led,
	}, nil
}

// ApplyHumanityLoss routes a gameplay humanity-loss event (story trigger,
// implant strain) through the tracker and persists the result.
func (s *GameService) ApplyHumanityLoss(characterID string, amount int) (game.StageDefinition, error) {
	lock := s.charLock(characterID)
	lock.Lock()
	defer lock.Unlock()

	ch, err := s.repo.GetCharacter(characterID)
	if err != nil {
		return game.StageDefinition{}, err
	}
	tr, _ := s.subsystems(ch)
	stage := tr.ApplyLoss(amount)
	if err := s.repo.UpdateHumanity(characterID, tr.State()); err != nil {
		return game.StageDefinition{}, fmt.Errorf("failed to persist humanity: %w", err)
	}
	return stage, nil
}

// InstallImplant installs a catalog implant: permanent humanity price
// through the tracker, energy limit registered with the ledger, implant
// recorded in the repository.
func (s *GameService) InstallImplant(characterID, implantID string) (game.StageDefinition, error) {
	def, ok := s.cfg.ImplantsByID[implantID]
	if !ok {
		return game.StageDefinition{}, fmt.Errorf("unknown implant %s", implantID)
	}
	lock := s.charLock(characterID)
	lock.Lock()
	defer lock.Unlock()

	ch, err := s.repo.GetCharacter(characterID)
	if err != nil {
		return game.StageDefinition{}, err
	}
	tr, led := s.subsystems(ch)

	stage := tr.InstallImplant(def)
	led.RegisterLimit(game.IndividualEnergyLimit{
		ImplantID:       def.ID,
		Limit:           def.EnergyLimit,
		CanExceed:       def.CanExceed,
		PenaltyOnExceed: def.PenaltyOnExceed,
	})
	if err := s.repo.AddImplant(characterID, implantID); err != nil {
		return game.StageDefinition{}, fmt.Errorf("failed to record implant: %w", err)
	}
	if err := s.repo.UpdateHumanity(characterID, tr.State()); err != nil {
		return game.StageDefinition{}, fmt.Errorf("failed to persist humanity: %w", err)
	}
	logging.Info("implant installed", logging.Fields{
		constants.LogFieldCharacterID: characterID,
		constants.LogFieldImplantID:   implantID,
		constants.LogFieldStage:       string(stage.Name),
	})
	return stage, nil
}

// Treat applies one treatment to a stored character and persists the
// settlement (balance, timestamps, humanity, removed implants).
func (s *GameService) Treat(characterID string, kind game.TreatmentType, payment int64, removedImplantID string) (game.TreatmentResult, error) {
	lock := s.charLock(characterID)
	lock.Lock()
	defer lock.Unlock()

	ch, err := s.repo.GetCharacter(characterID)
	if err != nil {
		return game.TreatmentResult{}, err
	}
	tr, led := s.subsystems(ch)

	req := treatment.ApplyRequest{
		Character: ch,
		Tracker:   tr,
		Kind:      kind,
		Payment:   payment,
		Limits:    led,
	}
	if kind == game.TreatmentImplantRemoval {
		def, ok := s.cfg.ImplantsByID[removedImplantID]
		if !ok {
			return game.TreatmentResult{}, fmt.Errorf("unknown implant %s", removedImplantID)
		}
		req.RemovedImplant = &def
	}

	result, err := s.calc.Apply(req)
	if err != nil {
		return game.TreatmentResult{}, err
	}

	ch.SetHumanity(tr.State())
	if err := s.repo.SaveCharacter(ch); err != nil {
		return game.TreatmentResult{}, fmt.Errorf("failed to persist treatment: %w", err)
	}
	if kind == game.TreatmentImplantRemoval {
		if err := s.repo.RemoveImplant(characterID, removedImplantID); err != nil {
			return game.TreatmentResult{}, fmt.Errorf("failed to remove implant record: %w", err)
		}
	}
	return result, nil
}

// QuoteTreatment prices a treatment without applying it.
func (s *GameService) QuoteTreatment(characterID string, kind game.TreatmentType) (game.TreatmentCosts, error) {
	ch, err := s.repo.GetCharacter(characterID)
	if err != nil {
		return game.TreatmentCosts{}, err
	}
	tr, _ := s.subsystems(ch)
	return s.calc.Quote(ch, tr.Stage().Name, kind)
}
