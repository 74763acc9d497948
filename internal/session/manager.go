package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/constants"
	"github.com/necpgame/combat-resolution-go/internal/engine"
	"github.com/necpgame/combat-resolution-go/internal/events"
	"github.com/necpgame/combat-resolution-go/internal/game"
	"github.com/necpgame/combat-resolution-go/internal/logging"
)

var ErrUnknownSession = errors.New("unknown session")

// Manager owns the live sessions. Sessions are independent: the manager
// lock protects only the map, each session serializes its own writes.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg      *config.LoadedConfig
	notifier events.Notifier
	rewards  events.RewardsSink
}

func NewManager(cfg *config.LoadedConfig, notifier events.Notifier, rewards events.RewardsSink) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		notifier: notifier,
		rewards:  rewards,
	}
}

// Start validates the roster and opens a new session seeded with the
// given value, so an encounter can be replayed deterministically.
func (m *Manager) Start(combatants []Combatant, seed int64) (*Session, error) {
	id := uuid.NewString()
	s, err := newSession(id, combatants, m.cfg, engine.NewRoller(seed), m.notifier, m.rewards)
	if err != nil {
		return nil, fmt.Errorf("failed to start combat session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logging.Info("combat session started", logging.Fields{
		constants.LogFieldSessionID: id,
		"participants":              len(combatants),
	})
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// SubmitAction routes one action submission to its session.
func (m *Manager) SubmitAction(sessionID, characterID, actionID, targetID string) (ActionOutcome, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return ActionOutcome{}, err
	}
	return s.Submit(characterID, actionID, targetID)
}

// ExpireOverdue forces TIMEOUT on every active session that has seen no
// action since the deadline. Run by an external supervisor; returns the
// results of the sessions it closed.
func (m *Manager) ExpireOverdue(deadline time.Time) []game.CombatEndResult {
	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	var closed []game.CombatEndResult
	for _, s := range candidates {
		s.mu.Lock()
		overdue := s.status == game.StatusActive && s.lastActionAt.Before(deadline)
		s.mu.Unlock()
		if !overdue {
			continue
		}
		if res := s.ForceTimeout(); res != nil {
			closed = append(closed, *res)
		}
	}
	return closed
}

// Archive removes a terminal session from the live map. Active sessions
// are left in place.
func (m *Manager) Archive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status() == game.StatusActive {
		return false
	}
	delete(m.sessions, id)
	return true
}
