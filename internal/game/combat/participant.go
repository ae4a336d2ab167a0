// Package combat implements the turn-based combat resolution engine:
// initiative ordering, the round/turn state machine, attack resolution, and
// the status-effect lifecycle.
package combat

import (
	"github.com/dmforge/dungeonmaster/internal/game/character"
)

// Recognized optional keys in an NPC stat map.
const (
	StatHP          = "hp"
	StatDefense     = "defense"
	StatAttackBonus = "attack_bonus"
	StatDamageBonus = "damage_bonus"
	StatDEX         = "DEX"
)

// NPCDefinition describes an NPC entering combat: a name and a flat stat map.
type NPCDefinition struct {
	Name  string         `json:"name"`
	Stats map[string]int `json:"stats"`
}

// StatusEffect is one active effect on a participant. Duplicate names are
// allowed; each entry counts down independently.
type StatusEffect struct {
	Name      string
	Remaining int
}

// Participant is the mutable combat-scoped wrapper around a character or NPC
// stat block. It is created at combat start, mutated every turn, and
// discarded when combat ends (or, for defeated NPCs, removed mid-combat).
type Participant struct {
	Name       string
	Initiative int
	IsPlayer   bool

	// Character is a borrowed read-only reference for player participants;
	// live stat changes affect MaxHP retroactively. Nil for NPCs.
	Character *character.Character
	// Stats is the NPC stat map. Nil for players.
	Stats map[string]int

	CurrentHP      int
	HasActed       bool
	HasMoved       bool
	HasBonusAction bool
	HasReaction    bool
	StatusEffects  []StatusEffect
}

// NewPlayerParticipant wraps ch for one encounter, starting at full HP.
//
// Precondition: ch must be non-nil and outlive the encounter.
func NewPlayerParticipant(ch *character.Character, initiative int) *Participant {
	p := &Participant{
		Name:        ch.Name,
		Initiative:  initiative,
		IsPlayer:    true,
		Character:   ch,
		HasReaction: true,
	}
	p.CurrentHP = p.MaxHP()
	return p
}

// NewNPCParticipant wraps an NPC stat map for one encounter, starting at full HP.
func NewNPCParticipant(name string, stats map[string]int, initiative int) *Participant {
	if stats == nil {
		stats = map[string]int{}
	}
	p := &Participant{
		Name:        name,
		Initiative:  initiative,
		Stats:       stats,
		HasReaction: true,
	}
	p.CurrentHP = p.MaxHP()
	return p
}

// MaxHP returns the participant's maximum HP, re-derived on every call so
// live character stat changes reflect immediately. Players derive
// 10 + CON modifier + (level-1)*(5 + CON modifier); NPCs read the "hp" stat,
// default 10.
func (p *Participant) MaxHP() int {
	if p.Character != nil {
		conMod := p.Character.Modifier(character.CON)
		return 10 + conMod + (p.Character.Level-1)*(5+conMod)
	}
	if hp, ok := p.Stats[StatHP]; ok {
		return hp
	}
	return 10
}

// TakeDamage applies damage with a floor of 1 (a hit always deals at least 1
// damage) and returns the actual damage applied.
//
// Postcondition: CurrentHP >= 0; return value >= 1.
func (p *Participant) TakeDamage(amount int) int {
	actual := amount
	if actual < 1 {
		actual = 1
	}
	p.CurrentHP -= actual
	if p.CurrentHP < 0 {
		p.CurrentHP = 0
	}
	return actual
}

// Heal restores HP up to MaxHP and returns the delta actually applied.
//
// Postcondition: CurrentHP <= MaxHP(); return value >= 0.
func (p *Participant) Heal(amount int) int {
	maxHP := p.MaxHP()
	old := p.CurrentHP
	p.CurrentHP += amount
	if p.CurrentHP > maxHP {
		p.CurrentHP = maxHP
	}
	return p.CurrentHP - old
}

// IsAlive reports whether the participant has HP remaining.
func (p *Participant) IsAlive() bool {
	return p.CurrentHP > 0
}

// AddStatusEffect appends an effect. Duplicate names are deliberately
// allowed; entries are not merged.
func (p *Participant) AddStatusEffect(name string, duration int) {
	p.StatusEffects = append(p.StatusEffects, StatusEffect{Name: name, Remaining: duration})
}

// TickStatusEffects decrements every effect's remaining duration by 1,
// removes the ones reaching zero or below, and returns their names.
// Must be invoked exactly once per participant per turn-start.
func (p *Participant) TickStatusEffects() []string {
	var expired []string
	remaining := p.StatusEffects[:0]
	for _, effect := range p.StatusEffects {
		effect.Remaining--
		if effect.Remaining <= 0 {
			expired = append(expired, effect.Name)
		} else {
			remaining = append(remaining, effect)
		}
	}
	p.StatusEffects = remaining
	return expired
}

// StatusEffectNames returns the names of all active effects in order.
func (p *Participant) StatusEffectNames() []string {
	names := make([]string, len(p.StatusEffects))
	for i, effect := range p.StatusEffects {
		names[i] = effect.Name
	}
	return names
}

// ResetTurn clears the acted/moved/bonus-action flags and restores the
// reaction. Invoked for every participant exactly once per new round.
func (p *Participant) ResetTurn() {
	p.HasActed = false
	p.HasMoved = false
	p.HasBonusAction = false
	p.HasReaction = true
}

// abilityMod computes the standard ability modifier floor((score - 10) / 2),
// for NPC stat maps that carry raw ability scores.
func abilityMod(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}
