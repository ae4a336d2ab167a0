// Package ruleset defines the optional override table supplying alternate
// dice formulas for checks and combat actions. A nil *Ruleset is valid
// everywhere and means "use the engine's hardcoded defaults".
package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Combat formula kinds recognized by CombatFormula.
const (
	FormulaInitiative   = "initiative"
	FormulaMeleeAttack  = "melee_attack"
	FormulaRangedAttack = "ranged_attack"
	FormulaSpellAttack  = "spell_attack"
)

// CombatRules holds dice formula overrides for combat actions. Empty fields
// mean the engine default applies unconditionally.
type CombatRules struct {
	Initiative   string            `yaml:"initiative"`
	MeleeAttack  string            `yaml:"melee_attack"`
	RangedAttack string            `yaml:"ranged_attack"`
	SpellAttack  string            `yaml:"spell_attack"`
	Damage       map[string]string `yaml:"damage"`
}

// StatusEffectRule describes a named status effect in prose form, for
// narration and UI display.
type StatusEffectRule struct {
	Effect   string `yaml:"effect"`
	Duration string `yaml:"duration"`
}

// Ruleset is the full override table: check formulas keyed by check name,
// combat formula overrides, and a status-effect catalog.
type Ruleset struct {
	Name          string                      `yaml:"name"`
	Checks        map[string]string           `yaml:"checks"`
	Combat        CombatRules                 `yaml:"combat"`
	StatusEffects map[string]StatusEffectRule `yaml:"status_effects"`
}

// Default returns the built-in ruleset: standard check formulas and a small
// status-effect catalog, with no combat overrides (engine defaults apply).
func Default() *Ruleset {
	return &Ruleset{
		Name: "default",
		Checks: map[string]string{
			"stealth":    "1d20+DEX",
			"persuasion": "1d20+CHA",
			"arcana":     "1d20+INT",
		},
		StatusEffects: map[string]StatusEffectRule{
			"poisoned": {Effect: "-2 to all checks", Duration: "3 turns"},
			"blessed":  {Effect: "+1 to attack rolls", Duration: "until end of session"},
		},
	}
}

// CombatFormula returns the override formula for the given combat formula
// kind (one of the Formula* constants). Safe on a nil receiver: a nil
// ruleset, an unknown kind, and an empty field all report ok == false, in
// which case the engine default applies.
func (r *Ruleset) CombatFormula(kind string) (string, bool) {
	if r == nil {
		return "", false
	}
	var formula string
	switch kind {
	case FormulaInitiative:
		formula = r.Combat.Initiative
	case FormulaMeleeAttack:
		formula = r.Combat.MeleeAttack
	case FormulaRangedAttack:
		formula = r.Combat.RangedAttack
	case FormulaSpellAttack:
		formula = r.Combat.SpellAttack
	}
	return formula, formula != ""
}

// DamageFormula returns the override damage formula for the given weapon or
// attack kind. Safe on a nil receiver.
func (r *Ruleset) DamageFormula(kind string) (string, bool) {
	if r == nil {
		return "", false
	}
	formula, ok := r.Combat.Damage[kind]
	return formula, ok && formula != ""
}

// CheckFormula returns the formula for the named check. Safe on a nil receiver.
func (r *Ruleset) CheckFormula(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	formula, ok := r.Checks[name]
	return formula, ok && formula != ""
}

// document is the on-disk layout: overrides nest under a top-level
// "ruleset" key.
type document struct {
	Ruleset Ruleset `yaml:"ruleset"`
}

// Load reads a YAML ruleset file and merges it over Default(). Sections and
// fields absent from the file keep their default values.
//
// Precondition: path must be a readable YAML file.
// Postcondition: Returns a merged Ruleset or a non-nil error.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing ruleset %s: %w", path, err)
	}

	merged := Default()
	if doc.Ruleset.Name != "" {
		merged.Name = doc.Ruleset.Name
	}
	for name, formula := range doc.Ruleset.Checks {
		merged.Checks[name] = formula
	}
	if doc.Ruleset.Combat.Initiative != "" {
		merged.Combat.Initiative = doc.Ruleset.Combat.Initiative
	}
	if doc.Ruleset.Combat.MeleeAttack != "" {
		merged.Combat.MeleeAttack = doc.Ruleset.Combat.MeleeAttack
	}
	if doc.Ruleset.Combat.RangedAttack != "" {
		merged.Combat.RangedAttack = doc.Ruleset.Combat.RangedAttack
	}
	if doc.Ruleset.Combat.SpellAttack != "" {
		merged.Combat.SpellAttack = doc.Ruleset.Combat.SpellAttack
	}
	for kind, formula := range doc.Ruleset.Combat.Damage {
		if merged.Combat.Damage == nil {
			merged.Combat.Damage = make(map[string]string)
		}
		merged.Combat.Damage[kind] = formula
	}
	for name, rule := range doc.Ruleset.StatusEffects {
		merged.StatusEffects[name] = rule
	}
	return merged, nil
}
