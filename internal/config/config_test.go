package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validConfigJSON = `{
  "action_list": [
    {"id": "strike", "name": "Strike", "kind": "attack", "damage": 10},
    {"id": "guard", "name": "Guard", "kind": "defend"},
    {"id": "blade-sweep", "name": "Blade Sweep", "kind": "ability", "energy_cost": 15, "damage": 25, "implant_id": "mantis-blades"},
    {"id": "run", "name": "Run", "kind": "flee"}
  ],
  "implant_list": [
    {"id": "mantis-blades", "name": "Mantis Blades", "humanity_cost": 8, "energy_limit": 20, "can_exceed": true,
     "penalty_on_exceed": {"attack": -0.1, "cooldown_seconds": 30}}
  ],
  "stage_list": [
    {"name": "early", "low": 70, "high": 100, "symptoms": [
      {"id": "irritability", "name": "Irritability", "severity": "low", "weight": 2, "effects": {"defense": -0.05}}
    ]},
    {"name": "middle", "low": 40, "high": 70},
    {"name": "late", "low": 20, "high": 40},
    {"name": "cyberpsychosis", "low": 0, "high": 20, "symptoms": [
      {"id": "berserk", "name": "Berserk", "severity": "critical", "weight": 5, "effects": {"attack": 0.2, "damage_flat": 5}}
    ]}
  ],
  "combat": {"crit_chance": 0.1, "max_rounds": 30},
  "treatment": {
    "minimum_cost": 100,
    "ceiling_loss_threshold": 50,
    "restore_ceiling": 80,
    "diminishing_window_seconds": 3600,
    "diminishing_multiplier": 2.0,
    "stage_multipliers": {"late": 1.5, "cyberpsychosis": 3.0},
    "trait_discounts": {"street-medic": 0.2},
    "types": {
      "therapy": {"base_cost": 500, "restore": 10, "cooldown_seconds": 600, "duration_seconds": 1800},
      "medication": {"base_cost": 200, "restore": 5, "cooldown_seconds": 300},
      "implant_removal": {"base_cost": 2000, "restore": 8, "cooldown_seconds": 0, "duration_seconds": 3600},
      "detoxification": {"base_cost": 1200, "restore": 15, "cooldown_seconds": 1200}
    }
  }
}`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "combat_config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, validConfigJSON))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.Actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(cfg.Actions))
	}
	if _, ok := cfg.ActionsByID["blade-sweep"]; !ok {
		t.Fatalf("blade-sweep action not indexed")
	}
	if got := cfg.Combat.CritChance; got != 0.1 {
		t.Errorf("crit chance override not applied, got %v", got)
	}
	if got := cfg.Combat.CritMultiplier; got != DefaultCritMultiplier {
		t.Errorf("crit multiplier should default, got %v", got)
	}
	if cfg.Combat.MaxRounds != 30 {
		t.Errorf("max rounds override not applied, got %d", cfg.Combat.MaxRounds)
	}
	imp, ok := cfg.ImplantsByID["mantis-blades"]
	if !ok {
		t.Fatalf("mantis-blades implant not indexed")
	}
	if imp.EnergyLimit != 20 || !imp.CanExceed {
		t.Errorf("implant fields not loaded: %+v", imp)
	}
	if len(cfg.Stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(cfg.Stages))
	}
	// stages come back sorted ascending by low bound
	if cfg.Stages[0].Name != "cyberpsychosis" || cfg.Stages[3].Name != "early" {
		t.Errorf("stages not sorted by range: %v ... %v", cfg.Stages[0].Name, cfg.Stages[3].Name)
	}
	if _, ok := cfg.Treatment.Types["detoxification"]; !ok {
		t.Errorf("detoxification treatment type missing")
	}
}

func TestLoadConfigRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "stage gap",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [
    {"name": "early", "low": 70, "high": 100},
    {"name": "late", "low": 20, "high": 40},
    {"name": "cyberpsychosis", "low": 0, "high": 20}
  ],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "stage overlap",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [
    {"name": "early", "low": 60, "high": 100},
    {"name": "middle", "low": 40, "high": 70},
    {"name": "late", "low": 20, "high": 40},
    {"name": "cyberpsychosis", "low": 0, "high": 20}
  ],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "incomplete coverage",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [
    {"name": "early", "low": 70, "high": 90},
    {"name": "middle", "low": 40, "high": 70},
    {"name": "late", "low": 20, "high": 40},
    {"name": "cyberpsychosis", "low": 0, "high": 20}
  ],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "duplicate action id",
			body: `{
  "action_list": [
    {"id": "strike", "kind": "attack", "damage": 5},
    {"id": "strike", "kind": "defend"}
  ],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "unknown action kind",
			body: `{
  "action_list": [{"id": "strike", "kind": "smash", "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "action references unknown implant",
			body: `{
  "action_list": [{"id": "slash", "kind": "ability", "energy_cost": 5, "damage": 5, "implant_id": "ghost-arm"}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "negative energy cost",
			body: `{
  "action_list": [{"id": "slash", "kind": "ability", "energy_cost": -5, "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "unknown penalty key",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "implant_list": [{"id": "arm", "energy_limit": 10, "penalty_on_exceed": {"luck": -0.5}}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "unknown symptom effect key",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100, "symptoms": [
    {"id": "shivers", "severity": "low", "effects": {"charisma": -0.1}}
  ]}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "unknown treatment type",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"acupuncture": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "crit chance out of range",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "combat": {"crit_chance": 1.5},
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "mitigation cap at one",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}],
  "combat": {"mitigation_cap": 1.0},
  "treatment": {"ceiling_loss_threshold": 50, "restore_ceiling": 80,
    "types": {"therapy": {"base_cost": 100, "restore": 5}}}
}`,
		},
		{
			name: "missing treatment section",
			body: `{
  "action_list": [{"id": "strike", "kind": "attack", "damage": 5}],
  "stage_list": [{"name": "early", "low": 0, "high": 100}]
}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected rejection, got nil error")
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got: %v", err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("missing file should not be reported as invalid configuration: %v", err)
	}
}
