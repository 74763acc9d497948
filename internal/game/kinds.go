package game

// ActionKind is a string alias representing a combat action category.
// Using a dedicated type instead of plain string makes code safer and
// self-documenting, and lets decision points switch exhaustively.
type ActionKind string

const (
	ActionAttack  ActionKind = "attack"
	ActionDefend  ActionKind = "defend"
	ActionUseItem ActionKind = "use_item"
	ActionAbility ActionKind = "ability"
	ActionFlee    ActionKind = "flee"
)

// Valid reports whether k names a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionAttack, ActionDefend, ActionUseItem, ActionAbility, ActionFlee:
		return true
	}
	return false
}

// ParticipantType identifies which roster slot a combat participant fills.
type ParticipantType string

const (
	ParticipantPlayer ParticipantType = "player"
	ParticipantEnemy  ParticipantType = "enemy"
	ParticipantAlly   ParticipantType = "ally"
)

// Side is the coarse team assignment derived from a participant type.
type Side string

const (
	SidePlayers Side = "players"
	SideEnemies Side = "enemies"
)

// Side maps player and ally participants onto the players' side and
// everything else onto the enemies' side.
func (t ParticipantType) Side() Side {
	if t == ParticipantEnemy {
		return SideEnemies
	}
	return SidePlayers
}

// SessionStatus is the combat session lifecycle state.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusEnded  SessionStatus = "ended"
	StatusFled   SessionStatus = "fled"
)

// Terminal reports whether a session in this status accepts further actions.
func (s SessionStatus) Terminal() bool { return s != StatusActive }

// Outcome is the end-of-combat verdict carried by a CombatEndResult.
type Outcome string

const (
	OutcomeVictory    Outcome = "VICTORY"
	OutcomeDefeat     Outcome = "DEFEAT"
	OutcomeDraw       Outcome = "DRAW"
	OutcomeTimeout    Outcome = "TIMEOUT"
	OutcomeExtraction Outcome = "EXTRACTION"
)

// StageName names a cyberpsychosis progression stage.
type StageName string

const (
	StageEarly          StageName = "early"
	StageMiddle         StageName = "middle"
	StageLate           StageName = "late"
	StageCyberpsychosis StageName = "cyberpsychosis"
)

// Severity grades how strongly a symptom affects gameplay.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s names a known severity grade.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// TreatmentType names a humanity-restoration procedure.
type TreatmentType string

const (
	TreatmentTherapy        TreatmentType = "therapy"
	TreatmentMedication     TreatmentType = "medication"
	TreatmentImplantRemoval TreatmentType = "implant_removal"
	TreatmentDetox          TreatmentType = "detoxification"
)

// Valid reports whether t names a known treatment type.
func (t TreatmentType) Valid() bool {
	switch t {
	case TreatmentTherapy, TreatmentMedication, TreatmentImplantRemoval, TreatmentDetox:
		return true
	}
	return false
}
