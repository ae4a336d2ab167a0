package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/combat"
	"github.com/dmforge/dungeonmaster/internal/game/dice"
	"github.com/dmforge/dungeonmaster/internal/game/ruleset"
)

// Manager tracks all active encounter sessions by ID.
// All methods are safe for concurrent use.
type Manager struct {
	rules  *ruleset.Ruleset
	src    dice.Source
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Encounter
}

// NewManager creates an empty session Manager. rules may be nil (engine
// defaults apply); a nil src gives each session the crypto source; a nil
// logger defaults to a no-op logger.
func NewManager(rules *ruleset.Ruleset, src dice.Source, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		rules:    rules,
		src:      src,
		logger:   logger,
		sessions: make(map[string]*Encounter),
	}
}

// Create starts a new session for the given party and returns it.
//
// Precondition: party members must have distinct non-empty names.
// Postcondition: The session is registered under a fresh UUID and holds an
// idle combat engine.
func (m *Manager) Create(party []*character.Character) *Encounter {
	id := uuid.NewString()
	sess := &Encounter{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		engine:    combat.NewEngine(m.rules, m.src, m.logger.Named("combat")),
		party:     party,
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Info("session created",
		zap.String("session_id", id),
		zap.Int("party_size", len(party)),
	)
	return sess
}

// Rules returns the ruleset all sessions play under. May be nil.
func (m *Manager) Rules() *ruleset.Ruleset {
	return m.rules
}

// Get returns the session for the given ID.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*Encounter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Remove drops the session with the given ID.
//
// Postcondition: The session is unregistered. Returns an error if not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return fmt.Errorf("session %q not found", id)
	}
	delete(m.sessions, id)
	return nil
}

// IDs returns the IDs of all active sessions, in no particular order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
