package constants

// Centralized constants for env keys, defaults and log field names.
const (
	// Environment variable keys
	EnvConfigPath = "COMBAT_CONFIG"
	EnvDBPath     = "COMBAT_DB"
	EnvSeed       = "COMBAT_SEED"

	// Default paths used when the env vars above are unset
	DefaultConfigPath = "./combat_config.json"
	DefaultDBPath     = "./data/combat.db"
)

// Stat keys accepted in symptom effect maps and implant exceed penalties.
const (
	StatAttack     = "attack"
	StatDefense    = "defense"
	StatInitiative = "initiative"
	StatDamageFlat = "damage_flat"
	StatCritChance = "crit_chance"

	// Reserved penalty key: forced cooldown after an exceeding activation.
	PenaltyCooldownSeconds = "cooldown_seconds"
)

// Logging field names
const (
	LogFieldSessionID   = "session_id"
	LogFieldCharacterID = "character_id"
	LogFieldParticipant = "participant_id"
	LogFieldRound       = "round"
	LogFieldStage       = "stage"
	LogFieldOutcome     = "outcome"
	LogFieldAmount      = "amount"
	LogFieldImplantID   = "implant_id"
	LogFieldTreatment   = "treatment_type"
	LogFieldConfigPath  = "config_path"
	LogFieldAddr        = "addr"
)
