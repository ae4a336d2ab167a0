package combat

import (
	"errors"

	"github.com/dmforge/dungeonmaster/internal/game/dice"
)

// Precondition violations reported by the engine. These are ordinary error
// values, never panics: callers inspect them with errors.Is and re-prompt.
var (
	// ErrNotActive is returned when an operation requires active combat.
	ErrNotActive = errors.New("combat is not active")
	// ErrInvalidIndex is returned when an attacker or target index is out of
	// range for the current participant list.
	ErrInvalidIndex = errors.New("invalid participant index")
	// ErrNotYourTurn is returned when the attacker is not the current participant.
	ErrNotYourTurn = errors.New("it's not the attacker's turn")
	// ErrAlreadyActed is returned when the attacker has already used their
	// action this turn.
	ErrAlreadyActed = errors.New("attacker has already used their action this turn")
)

// ErrorKind maps an engine or dice error onto a stable machine-readable kind
// string for transport serialization, or "internal" for anything else.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrInvalidIndex):
		return "invalid_index"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrAlreadyActed):
		return "already_acted"
	case errors.Is(err, dice.ErrMalformedExpression):
		return "malformed_expression"
	case errors.Is(err, dice.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}
