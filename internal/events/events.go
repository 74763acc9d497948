package events

import (
	"sync"

	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
)

// Notifier receives progression and combat lifecycle events. Downstream
// systems (quest triggers, NPC reaction hooks, ops dashboards) subscribe
// through this interface; the engine itself never blocks on delivery, so
// implementations must return quickly.
type Notifier interface {
	StageChanged(characterID string, from, to game.StageName, humanity int)
	CombatLogLine(sessionID, line string)
	SessionEnded(sessionID string, result game.CombatEndResult)
	TreatmentApplied(characterID string, kind game.TreatmentType, restored int)
}

// RewardsSink settles post-combat rewards and penalties. Implementations
// decide what victory or extraction is worth; the session manager only
// reports the outcome.
type RewardsSink interface {
	Settle(sessionID string, result game.CombatEndResult) error
}

// NopRewards discards combat results. Used when no progression system is
// attached, e.g. in the simulator binary.
type NopRewards struct{}

func (NopRewards) Settle(sessionID string, result game.CombatEndResult) error { return nil }

// RecordingRewards captures settled results for assertions.
type RecordingRewards struct {
	mu      sync.Mutex
	Settled []game.CombatEndResult
}

func (r *RecordingRewards) Settle(sessionID string, result game.CombatEndResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Settled = append(r.Settled, result)
	return nil
}

// --- Logging notifier ---

// LogNotifier writes every event as a structured log line. It is the
// default sink when no downstream system is wired in.
type LogNotifier struct{}

func (LogNotifier) StageChanged(characterID string, from, to game.StageName, humanity int) {
	logging.Info("cyberpsychosis stage changed", logging.Fields{
		"character_id": characterID,
		"from":         string(from),
		"to":           string(to),
		"humanity":     humanity,
	})
}

func (LogNotifier) CombatLogLine(sessionID, line string) {
	logging.Info("combat log", logging.Fields{
		"session_id": sessionID,
		"line":       line,
	})
}

func (LogNotifier) SessionEnded(sessionID string, result game.CombatEndResult) {
	logging.Info("combat session ended", logging.Fields{
		"session_id": sessionID,
		"outcome":    string(result.Outcome),
		"rounds":     result.Rounds,
	})
}

func (LogNotifier) TreatmentApplied(characterID string, kind game.TreatmentType, restored int) {
	logging.Info("treatment applied", logging.Fields{
		"character_id": characterID,
		"treatment":    string(kind),
		"restored":     restored,
	})
}

// --- Recording notifier (tests) ---

// StageChange is one recorded stage transition.
type StageChange struct {
	CharacterID string
	From, To    game.StageName
	Humanity    int
}

// Recorder captures events in memory for assertions.
type Recorder struct {
	mu           sync.Mutex
	StageChanges []StageChange
	LogLines     []string
	Ended        []game.CombatEndResult
	Treatments   []game.TreatmentType
}

func (r *Recorder) StageChanged(characterID string, from, to game.StageName, humanity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StageChanges = append(r.StageChanges, StageChange{
		CharacterID: characterID, From: from, To: to, Humanity: humanity,
	})
}

func (r *Recorder) CombatLogLine(sessionID, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LogLines = append(r.LogLines, line)
}

func (r *Recorder) SessionEnded(sessionID string, result game.CombatEndResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ended = append(r.Ended, result)
}

func (r *Recorder) TreatmentApplied(characterID string, kind game.TreatmentType, restored int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Treatments = append(r.Treatments, kind)
}
