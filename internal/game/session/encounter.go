// Package session tracks active play sessions, each owning one combat
// engine, the party playing it, and the player/DM exchange transcript.
package session

import (
	"sync"
	"time"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/combat"
)

// Exchange is one player input and the dungeon master response to it.
type Exchange struct {
	// PlayerInput is the raw text the player submitted.
	PlayerInput string `json:"player_input"`
	// DMResponse is the narrated response shown to the player.
	DMResponse string `json:"dm_response"`
	// At is when the exchange was recorded.
	At time.Time `json:"at"`
}

// Encounter is one play session: a combat engine, the party characters, and
// the running transcript. The engine is single-threaded; all engine access
// goes through WithEngine, which serializes callers.
type Encounter struct {
	// ID is the session's unique identifier.
	ID string
	// CreatedAt is when the session was created.
	CreatedAt time.Time

	mu         sync.Mutex
	engine     *combat.Engine
	party      []*character.Character
	transcript []Exchange
}

// WithEngine runs fn with exclusive access to the session's combat engine.
//
// Precondition: fn must not retain the engine past its return.
// Postcondition: Returns fn's error unchanged.
func (s *Encounter) WithEngine(fn func(e *combat.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// Party returns the characters playing this session, in join order.
func (s *Encounter) Party() []*character.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	party := make([]*character.Character, len(s.party))
	copy(party, s.party)
	return party
}

// Member returns the party member with the given name.
//
// Postcondition: Returns (character, true) if found, or (nil, false) otherwise.
func (s *Encounter) Member(name string) (*character.Character, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.party {
		if ch.Name == name {
			return ch, true
		}
	}
	return nil, false
}

// Record appends one exchange to the session transcript.
//
// Precondition: playerInput must be non-empty; dmResponse may be empty when
// narration is disabled.
func (s *Encounter) Record(playerInput, dmResponse string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Exchange{
		PlayerInput: playerInput,
		DMResponse:  dmResponse,
		At:          time.Now().UTC(),
	})
}

// RecentHistory returns up to limit of the most recent exchanges, oldest
// first. A limit <= 0 returns nil.
func (s *Encounter) RecentHistory(limit int) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil
	}
	if limit > len(s.transcript) {
		limit = len(s.transcript)
	}
	recent := make([]Exchange, limit)
	copy(recent, s.transcript[len(s.transcript)-limit:])
	return recent
}

// Transcript returns a copy of the full exchange transcript, oldest first.
func (s *Encounter) Transcript() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]Exchange, len(s.transcript))
	copy(transcript, s.transcript)
	return transcript
}
