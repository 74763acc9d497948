package main

import (
	"errors"

	"github.com/caarlos0/env/v11"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
	"github.com/necpgame/combat-resolution-go/internal/service"
	"github.com/necpgame/combat-resolution-go/internal/session"
	"github.com/necpgame/combat-resolution-go/internal/storage"
)

// settings come from the environment. The simulator runs one seeded
// encounter end to end so a fixed COMBAT_SEED replays identically.
type settings struct {
	ConfigPath string `env:"COMBAT_CONFIG" envDefault:"./combat_config.json"`
	DBPath     string `env:"COMBAT_DB" envDefault:"./data/combat.db"`
	Seed       int64  `env:"COMBAT_SEED" envDefault:"1337"`
}

func main() {
	var st settings
	if err := env.Parse(&st); err != nil {
		logging.Fatal("failed to parse environment", err, nil)
	}

	cfg, err := config.LoadConfig(st.ConfigPath)
	if err != nil {
		logging.Fatal("missing or invalid combat configuration", err, logging.Fields{
			constants.LogFieldConfigPath: st.ConfigPath,
			"hint":                       "create a combat_config.json with action_list, stage_list, implant_list, combat and treatment sections",
		})
	}

	db, err := storage.OpenAndMigrate(st.DBPath)
	if err != nil {
		logging.Fatal("failed to initialize database", err, nil)
	}
	repo := storage.NewSQLiteRepository(db, cfg.ImplantsByID)

	svc := service.NewGameService(repo, cfg, events.LogNotifier{}, events.NopRewards{})

	seedDemoCharacter(repo, "vanya")
	if _, err := svc.InstallImplant("vanya", firstImplantID(cfg)); err != nil {
		logging.Error("implant install skipped", err, nil)
	}

	runEncounter(svc, cfg, st.Seed)

	quote, err := svc.QuoteTreatment("vanya", game.TreatmentTherapy)
	if err != nil {
		logging.Fatal("treatment quote failed", err, nil)
	}
	res, err := svc.Treat("vanya", game.TreatmentTherapy, quote.Total, "")
	if err != nil {
		logging.Fatal("treatment failed", err, nil)
	}
	logging.Info("simulation finished", logging.Fields{
		"treatment_cost":    res.Cost,
		"humanity_restored": res.HumanityRestored,
	})
}

func seedDemoCharacter(repo storage.Repository, id string) {
	if _, err := repo.GetCharacter(id); err == nil {
		return
	} else if !errors.Is(err, storage.ErrCharacterNotFound) {
		logging.Fatal("failed to check demo character", err, nil)
	}
	ch := &game.Character{
		CharacterID:  id,
		Name:         "Vanya",
		MaxHealth:    120,
		Armor:        15,
		Speed:        10,
		WeaponDamage: 35,
		Balance:      20000,
		EnergyTotal:  100,
		EnergyRegen:  5,
	}
	ch.SetHumanity(game.NewHumanityState())
	if err := repo.CreateCharacter(ch); err != nil {
		logging.Fatal("failed to seed demo character", err, nil)
	}
	logging.Info("demo character seeded", logging.Fields{constants.LogFieldCharacterID: id})
}

func firstImplantID(cfg *config.LoadedConfig) string {
	if len(cfg.Implants) == 0 {
		return ""
	}
	return cfg.Implants[0].ID
}

// runEncounter plays a scripted 1v1 until a terminal state: the player
// attacks every turn, the enemy attacks back.
func runEncounter(svc *service.GameService, cfg *config.LoadedConfig, seed int64) {
	player, err := svc.LoadCombatant("vanya", game.ParticipantPlayer)
	if err != nil {
		logging.Fatal("failed to load combatant", err, nil)
	}
	enemy := session.Combatant{Participant: game.Participant{
		ID: "enforcer", Name: "Corporate Enforcer", Type: game.ParticipantEnemy,
		Health: 150, MaxHealth: 150, Initiative: 8, Armor: 20, WeaponDamage: 25,
	}}

	s, err := svc.Sessions.Start([]session.Combatant{player, enemy}, seed)
	if err != nil {
		logging.Fatal("failed to start session", err, nil)
	}

	attack := defaultAttackID(cfg)
	for s.Status() == game.StatusActive {
		actor := s.CurrentTurn()
		target := "enforcer"
		if actor == "enforcer" {
			target = "vanya"
		}
		if _, err := s.Submit(actor, attack, target); err != nil {
			logging.Fatal("scripted action rejected", err, logging.Fields{
				constants.LogFieldSessionID:   s.ID(),
				constants.LogFieldParticipant: actor,
			})
		}
	}

	result := s.Result()
	logging.Info("encounter complete", logging.Fields{
		constants.LogFieldSessionID: s.ID(),
		constants.LogFieldOutcome:   string(result.Outcome),
		constants.LogFieldRound:     result.Rounds,
	})
}

func defaultAttackID(cfg *config.LoadedConfig) string {
	for _, a := range cfg.Actions {
		if a.Kind == game.ActionAttack && a.Available {
			return a.ID
		}
	}
	logging.Fatal("no attack action in catalog", nil, nil)
	return ""
}
