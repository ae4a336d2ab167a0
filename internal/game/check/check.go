// Package check implements skill, stat, and opposed check resolution on top
// of the dice and character packages. All functions are pure with respect to
// their inputs plus the dice source; there is no shared mutable state.
package check

import (
	"fmt"
	"strings"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/dice"
	"github.com/dmforge/dungeonmaster/internal/game/ruleset"
)

// Result holds the outcome of a single skill or stat check against a DC.
type Result struct {
	Name     string // skill or stat name as given by the caller
	Roll     int    // raw d20 result
	Modifier int    // resolved stat/skill modifier
	Total    int    // Roll + Modifier
	DC       int    // difficulty class
	Success  bool   // Total >= DC
}

// String returns a human-readable summary of the check.
func (r Result) String() string {
	verdict := "Failure"
	if r.Success {
		verdict = "Success"
	}
	return fmt.Sprintf("%s check: %d%+d = %d vs. DC %d - %s",
		r.Name, r.Roll, r.Modifier, r.Total, r.DC, verdict)
}

// OpposedResult holds the outcome of an opposed check between two characters.
type OpposedResult struct {
	ActiveName   string
	ActiveRoll   int
	ActiveMod    int
	ActiveTotal  int
	PassiveName  string
	PassiveRoll  int
	PassiveMod   int
	PassiveTotal int
	Success      bool // ActiveTotal >= PassiveTotal; ties favor the active side
}

// String returns a human-readable summary of the opposed check.
func (r OpposedResult) String() string {
	verdict := "Failure"
	if r.Success {
		verdict = "Success"
	}
	return fmt.Sprintf("Opposed check: %s (%d%+d = %d) vs. %s (%d%+d = %d) - %s",
		r.ActiveName, r.ActiveRoll, r.ActiveMod, r.ActiveTotal,
		r.PassiveName, r.PassiveRoll, r.PassiveMod, r.PassiveTotal, verdict)
}

// SkillCheck performs a 1d20 check of the named skill or stat against dc.
// Stat name matching takes priority over skill name matching, and both
// match case-insensitively. An unknown name or nil character contributes a
// zero modifier.
//
// Precondition: src must be non-nil.
// Postcondition: result.Total == result.Roll + result.Modifier;
// result.Success iff Total >= dc.
func SkillCheck(name string, dc int, ch *character.Character, src dice.Source) Result {
	roll := src.Intn(20) + 1
	modifier := resolve(name, ch)
	total := roll + modifier
	return Result{
		Name:     name,
		Roll:     roll,
		Modifier: modifier,
		Total:    total,
		DC:       dc,
		Success:  total >= dc,
	}
}

// RulesetCheck resolves the named check against dc, consulting the ruleset
// for check names outside the stat and skill sets. Known stat and skill
// names keep the standard 1d20 resolution; any other name with a ruleset
// formula rolls that formula, resolving its modifier token against ch. A
// missing or malformed formula degrades to SkillCheck (modifier 0 for an
// unknown name). rs may be nil.
//
// Precondition: src must be non-nil.
func RulesetCheck(rs *ruleset.Ruleset, name string, dc int, ch *character.Character, src dice.Source) Result {
	if !knownName(name) {
		if formula, ok := rs.CheckFormula(name); ok {
			// A nil *Character must not reach the resolver interface.
			var resolver dice.ModifierResolver
			if ch != nil {
				resolver = ch
			}
			if rolled, err := dice.EvaluateExpr(formula, resolver, src); err == nil {
				total := rolled.Total()
				return Result{
					Name:     name,
					Roll:     rolled.BaseTotal(),
					Modifier: rolled.Modifier,
					Total:    total,
					DC:       dc,
					Success:  total >= dc,
				}
			}
		}
	}
	return SkillCheck(name, dc, ch, src)
}

// knownName reports whether name is a stat or skill identifier.
func knownName(name string) bool {
	if _, ok := character.ParseStat(strings.ToUpper(name)); ok {
		return true
	}
	_, ok := character.ParseSkill(name)
	return ok
}

// OpposedCheck rolls an independent 1d20 per side and compares totals.
// Ties favor the active side.
//
// Precondition: src must be non-nil.
// Postcondition: result.Success iff ActiveTotal >= PassiveTotal.
func OpposedCheck(activeName string, activeChar *character.Character,
	passiveName string, passiveChar *character.Character, src dice.Source) OpposedResult {

	activeRoll := src.Intn(20) + 1
	passiveRoll := src.Intn(20) + 1
	activeMod := resolve(activeName, activeChar)
	passiveMod := resolve(passiveName, passiveChar)

	r := OpposedResult{
		ActiveName:   activeName,
		ActiveRoll:   activeRoll,
		ActiveMod:    activeMod,
		ActiveTotal:  activeRoll + activeMod,
		PassiveName:  passiveName,
		PassiveRoll:  passiveRoll,
		PassiveMod:   passiveMod,
		PassiveTotal: passiveRoll + passiveMod,
	}
	r.Success = r.ActiveTotal >= r.PassiveTotal
	return r
}

// resolve returns the modifier for a skill-or-stat name, stat first. Check
// names arrive as free-form player input, so the stat lookup uppercases the
// name; dice-expression tokens stay case-sensitive.
func resolve(name string, ch *character.Character) int {
	if ch == nil {
		return 0
	}
	if stat, ok := character.ParseStat(strings.ToUpper(name)); ok {
		return ch.Modifier(stat)
	}
	if mod, _, ok := ch.ResolveModifier(name); ok {
		return mod
	}
	return 0
}
