package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/combat"
)

func hero(level, con int) *character.Character {
	return &character.Character{
		Name:      "Hero",
		Level:     level,
		Abilities: character.AbilityScores{Strength: 14, Dexterity: 12, Constitution: con},
	}
}

func TestParticipant_MaxHP_Player(t *testing.T) {
	// 10 + CON mod + (level-1)*(5 + CON mod)
	p := combat.NewPlayerParticipant(hero(1, 14), 10)
	assert.Equal(t, 12, p.MaxHP())
	assert.Equal(t, 12, p.CurrentHP, "participants start at full HP")

	p3 := combat.NewPlayerParticipant(hero(3, 14), 10)
	assert.Equal(t, 26, p3.MaxHP())
}

func TestParticipant_MaxHP_LiveCharacterReference(t *testing.T) {
	ch := hero(2, 10)
	p := combat.NewPlayerParticipant(ch, 10)
	assert.Equal(t, 15, p.MaxHP())

	// MaxHP is re-derived on demand, so external stat changes reflect
	// immediately mid-encounter.
	ch.Abilities.Constitution = 14
	assert.Equal(t, 19, p.MaxHP())
}

func TestParticipant_MaxHP_NPC(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", map[string]int{combat.StatHP: 7}, 10)
	assert.Equal(t, 7, p.MaxHP())

	fallback := combat.NewNPCParticipant("Mook", nil, 10)
	assert.Equal(t, 10, fallback.MaxHP(), "hp defaults to 10")
}

func TestParticipant_TakeDamage_MinimumOne(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", map[string]int{combat.StatHP: 7}, 10)

	assert.Equal(t, 1, p.TakeDamage(0), "a hit always deals at least 1 damage")
	assert.Equal(t, 6, p.CurrentHP)

	assert.Equal(t, 1, p.TakeDamage(-5))
	assert.Equal(t, 5, p.CurrentHP)
}

func TestParticipant_TakeDamage_FloorsAtZero(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", map[string]int{combat.StatHP: 7}, 10)
	assert.Equal(t, 50, p.TakeDamage(50), "actual damage applied is reported, not the clamped HP delta")
	assert.Equal(t, 0, p.CurrentHP)
	assert.False(t, p.IsAlive())
}

func TestParticipant_Damage_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(1, 200).Draw(rt, "max_hp")
		dmg := rapid.IntRange(-50, 500).Draw(rt, "dmg")
		p := combat.NewNPCParticipant("X", map[string]int{combat.StatHP: maxHP}, 10)
		before := p.CurrentHP
		actual := p.TakeDamage(dmg)
		assert.GreaterOrEqual(rt, actual, 1)
		assert.GreaterOrEqual(rt, p.CurrentHP, 0)
		assert.Less(rt, p.CurrentHP, before)
	})
}

func TestParticipant_Heal_ClampsToMax(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", map[string]int{combat.StatHP: 10}, 10)
	p.TakeDamage(6) // 4 HP left

	assert.Equal(t, 3, p.Heal(3))
	assert.Equal(t, 7, p.CurrentHP)

	assert.Equal(t, 3, p.Heal(100), "overheal returns only the delta applied")
	assert.Equal(t, 10, p.CurrentHP)

	assert.Equal(t, 0, p.Heal(5), "healing at full HP applies nothing")
}

func TestParticipant_Heal_Property_NeverAboveMax(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(1, 200).Draw(rt, "max_hp")
		dmg := rapid.IntRange(1, 300).Draw(rt, "dmg")
		heal := rapid.IntRange(0, 300).Draw(rt, "heal")
		p := combat.NewNPCParticipant("X", map[string]int{combat.StatHP: maxHP}, 10)
		p.TakeDamage(dmg)
		p.Heal(heal)
		assert.LessOrEqual(rt, p.CurrentHP, p.MaxHP())
		assert.GreaterOrEqual(rt, p.CurrentHP, 0)
	})
}

func TestParticipant_StatusEffects_DuplicatesAllowed(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", nil, 10)
	p.AddStatusEffect("poisoned", 2)
	p.AddStatusEffect("poisoned", 4)
	assert.Equal(t, []string{"poisoned", "poisoned"}, p.StatusEffectNames(),
		"duplicate effect names are not merged")
}

func TestParticipant_TickStatusEffects(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", nil, 10)
	p.AddStatusEffect("poisoned", 1)
	p.AddStatusEffect("blessed", 2)
	p.AddStatusEffect("stunned", 1)

	expired := p.TickStatusEffects()
	assert.Equal(t, []string{"poisoned", "stunned"}, expired)
	assert.Equal(t, []string{"blessed"}, p.StatusEffectNames())

	expired = p.TickStatusEffects()
	assert.Equal(t, []string{"blessed"}, expired)
	assert.Empty(t, p.StatusEffectNames())

	assert.Empty(t, p.TickStatusEffects(), "ticking with no effects expires nothing")
}

func TestParticipant_ResetTurn(t *testing.T) {
	p := combat.NewNPCParticipant("Goblin", nil, 10)
	p.HasActed = true
	p.HasMoved = true
	p.HasBonusAction = true
	p.HasReaction = false

	p.ResetTurn()
	assert.False(t, p.HasActed)
	assert.False(t, p.HasMoved)
	assert.False(t, p.HasBonusAction)
	assert.True(t, p.HasReaction)
}
