// Package dice provides the randomness abstraction, dice-expression parsing,
// and roll-result types for the dungeon master rules engine.
package dice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned when a roll is requested with a die count or
// side count below 1.
var ErrInvalidArgument = errors.New("dice: invalid argument")

// ErrMalformedExpression is returned when a dice expression string does not
// match the <count>d<sides>[(+|-)<modifier>] grammar. Callers that document
// it may fall back to a default 1d20 instead of propagating this error.
var ErrMalformedExpression = errors.New("dice: malformed expression")

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == BaseTotal() + Modifier.
type RollResult struct {
	Expression     string // original expression string, e.g. "2d6+3"
	Rolls          []int  // individual die results before modifier
	Modifier       int    // resolved modifier (may be negative)
	ModifierSource string // "fixed", "<STAT> stat", "<skill> skill", or empty
}

// BaseTotal returns the sum of the individual die results.
func (r RollResult) BaseTotal() int {
	total := 0
	for _, d := range r.Rolls {
		total += d
	}
	return total
}

// Total returns the sum of all die results plus the modifier.
//
// Postcondition: return value == BaseTotal() + r.Modifier.
func (r RollResult) Total() int {
	return r.BaseTotal() + r.Modifier
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 (fixed) = 12"
//
// The modifier clause is omitted when the modifier is zero and has no source.
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s → %v", r.Expression, r.Rolls)
	if r.Modifier != 0 || r.ModifierSource != "" {
		fmt.Fprintf(&b, " %+d", r.Modifier)
		if r.ModifierSource != "" {
			fmt.Fprintf(&b, " (%s)", r.ModifierSource)
		}
	}
	fmt.Fprintf(&b, " = %d", r.Total())
	return b.String()
}

// Source is the randomness provider for dice rolls.
//
// Production implementations MUST be safe for concurrent use; seeded test
// implementations may instead be owned exclusively by one engine.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// ModifierResolver resolves a named modifier token (a stat or skill
// identifier) to an integer modifier and a provenance label. A false return
// means the token is unknown to the resolver.
type ModifierResolver interface {
	ResolveModifier(token string) (modifier int, source string, ok bool)
}
