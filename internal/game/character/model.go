// Package character defines the character domain model consumed by the dice,
// check, and combat packages: ability scores, skills, and modifier lookup.
package character

import "strings"

// Stat identifies one of the six ability scores. The set is closed; use
// ParseStat to map free-form input onto it.
type Stat string

const (
	STR Stat = "STR"
	DEX Stat = "DEX"
	CON Stat = "CON"
	INT Stat = "INT"
	WIS Stat = "WIS"
	CHA Stat = "CHA"
)

// Stats lists all six ability score identifiers in canonical order.
var Stats = []Stat{STR, DEX, INT, CHA, WIS, CON}

// ParseStat maps s onto a Stat. The match is case-sensitive: stat tokens in
// dice expressions are uppercase by contract.
func ParseStat(s string) (Stat, bool) {
	switch Stat(s) {
	case STR, DEX, CON, INT, WIS, CHA:
		return Stat(s), true
	}
	return "", false
}

// Skill identifies a trained skill. The set is closed; use ParseSkill to map
// free-form input onto it.
type Skill string

const (
	Stealth    Skill = "stealth"
	Arcana     Skill = "arcana"
	Persuasion Skill = "persuasion"
)

// Skills lists all skill identifiers.
var Skills = []Skill{Stealth, Arcana, Persuasion}

// skillStat maps each skill to the ability score backing it.
var skillStat = map[Skill]Stat{
	Stealth:    DEX,
	Arcana:     INT,
	Persuasion: CHA,
}

// ParseSkill maps s onto a Skill. The match is case-insensitive.
func ParseSkill(s string) (Skill, bool) {
	switch Skill(strings.ToLower(s)) {
	case Stealth, Arcana, Persuasion:
		return Skill(strings.ToLower(s)), true
	}
	return "", false
}

// StatFor returns the ability score backing the given skill.
func StatFor(skill Skill) Stat {
	return skillStat[skill]
}

// AbilityScores holds the six ability score values for a character.
type AbilityScores struct {
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
}

// Score returns the raw score for the given stat.
func (a AbilityScores) Score(stat Stat) int {
	switch stat {
	case STR:
		return a.Strength
	case DEX:
		return a.Dexterity
	case CON:
		return a.Constitution
	case INT:
		return a.Intelligence
	case WIS:
		return a.Wisdom
	case CHA:
		return a.Charisma
	default:
		return 0
	}
}

// Modifier returns the ability modifier for the given stat:
// floor((score - 10) / 2). Floor division, so a score of 9 yields -1,
// not 0 as integer truncation would.
func (a AbilityScores) Modifier(stat Stat) int {
	diff := a.Score(stat) - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}

// SkillRanks holds a character's trained skill ranks.
type SkillRanks struct {
	Stealth    int
	Arcana     int
	Persuasion int
}

// Rank returns the raw rank for the given skill.
func (s SkillRanks) Rank(skill Skill) int {
	switch skill {
	case Stealth:
		return s.Stealth
	case Arcana:
		return s.Arcana
	case Persuasion:
		return s.Persuasion
	default:
		return 0
	}
}

// Character represents a player character's stat block as borrowed by the
// combat core: the engine holds a read-only reference for the duration of an
// encounter, so external stat changes are reflected live (MaxHP is re-derived
// per call, never cached).
type Character struct {
	Name      string
	Level     int
	Abilities AbilityScores
	Skills    SkillRanks
}

// Modifier returns the ability modifier for the given stat.
func (c *Character) Modifier(stat Stat) int {
	return c.Abilities.Modifier(stat)
}

// SkillModifier returns the full skill modifier: rank plus the mapped stat's
// ability modifier.
func (c *Character) SkillModifier(skill Skill) int {
	return c.Skills.Rank(skill) + c.Abilities.Modifier(StatFor(skill))
}

// ResolveModifier resolves a dice-expression modifier token against this
// character, implementing dice.ModifierResolver. Stat names match
// case-sensitively and take priority over skill names, which match
// case-insensitively. Unknown tokens report ok == false.
func (c *Character) ResolveModifier(token string) (int, string, bool) {
	if stat, ok := ParseStat(token); ok {
		return c.Modifier(stat), string(stat) + " stat", true
	}
	if skill, ok := ParseSkill(token); ok {
		return c.SkillModifier(skill), string(skill) + " skill", true
	}
	return 0, "", false
}
