package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/combat"
	"github.com/dmforge/dungeonmaster/internal/game/ruleset"
)

func TestPerformAttack_Preconditions(t *testing.T) {
	// Hero 15+1=16 first, Gob 10 second.
	src := &scriptedSource{values: []int{14, 9}}
	e := combat.NewEngine(nil, src, nil)

	_, err := e.PerformAttack(0, 1, combat.AttackMelee)
	assert.ErrorIs(t, err, combat.ErrNotActive, "inactive combat is rejected first")

	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 100, combat.StatDefense: 10}},
	})

	_, err = e.PerformAttack(5, 1, combat.AttackMelee)
	assert.ErrorIs(t, err, combat.ErrInvalidIndex)
	assert.Equal(t, "invalid_index", combat.ErrorKind(err))

	_, err = e.PerformAttack(0, -1, combat.AttackMelee)
	assert.ErrorIs(t, err, combat.ErrInvalidIndex)

	_, err = e.PerformAttack(1, 0, combat.AttackMelee)
	assert.ErrorIs(t, err, combat.ErrNotYourTurn, "Gob may not act on Hero's turn")

	// Rejections must not mutate state.
	hero := e.CurrentParticipant()
	require.Equal(t, "Hero", hero.Name)
	assert.False(t, hero.HasActed)
	assert.Equal(t, 2, len(e.State().Participants))
}

func TestPerformAttack_AlreadyActed(t *testing.T) {
	src := &scriptedSource{values: []int{14, 9, 10, 3}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 100, combat.StatDefense: 10}},
	})

	_, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)

	_, err = e.PerformAttack(0, 1, combat.AttackMelee)
	assert.ErrorIs(t, err, combat.ErrAlreadyActed)
}

func TestPerformAttack_HitAndMiss(t *testing.T) {
	// Hero init 16, Gob init 10; then attack d20 roll 12 (+STR 2 = 14 >= 12
	// hits), damage d6 roll 4 (+2 = 6).
	src := &scriptedSource{values: []int{14, 9, 11, 3, 2}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 20, combat.StatDefense: 12}},
	})

	result, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 12, result.AttackRoll)
	assert.Equal(t, 2, result.AttackModifier, "melee attacks add the STR modifier")
	assert.Equal(t, 14, result.AttackTotal)
	assert.Equal(t, 12, result.Defense)
	assert.Equal(t, 6, result.DamageDealt)
	assert.Equal(t, 14, result.TargetHP)
	assert.Equal(t, 20, result.TargetMaxHP)
	assert.True(t, result.CombatActive)
	assert.LessOrEqual(t, len(result.Log), 3)

	// Miss: attack roll 3 (+2 = 5 < 12). Gob's turn first.
	_, err = e.NextTurn()
	require.NoError(t, err)
	_, err = e.NextTurn() // back to Hero, round 2, flags reset
	require.NoError(t, err)

	result, err = e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	assert.False(t, result.Hit)
	assert.Equal(t, 0, result.DamageDealt)
	assert.Equal(t, 14, result.TargetHP, "a miss deals no damage")
	hero := e.CurrentParticipant()
	assert.True(t, hero.HasActed, "the action is spent on a miss too")
}

func TestPerformAttack_NPCUsesFlatBonuses(t *testing.T) {
	// Gob init 15 beats Hero 10+1=11. Gob attack d20 roll 8 + attack_bonus 4
	// = 12 >= Hero defense 11 (10 + DEX 1): hit. Damage d6 roll 2 +
	// damage_bonus 3 = 5.
	src := &scriptedSource{values: []int{9, 14, 7, 1}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{
			combat.StatHP:          10,
			combat.StatAttackBonus: 4,
			combat.StatDamageBonus: 3,
		}},
	})
	require.Equal(t, "Gob", e.CurrentParticipant().Name)

	result, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	assert.Equal(t, 8, result.AttackRoll)
	assert.Equal(t, 4, result.AttackModifier)
	assert.Equal(t, 11, result.Defense, "player defense is 10 + DEX modifier")
	assert.True(t, result.Hit)
	assert.Equal(t, 5, result.DamageDealt)
}

func TestPerformAttack_SpellUsesD8AndINT(t *testing.T) {
	mage := &character.Character{
		Name:      "Mage",
		Level:     1,
		Abilities: character.AbilityScores{Intelligence: 16, Dexterity: 10},
	}
	// Mage init 15, Gob 10. Spell attack d20 roll 10 + INT 3 = 13 >= 10.
	// Damage d8 roll 7 + INT 3 = 10.
	src := &scriptedSource{values: []int{14, 9, 9, 6}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{mage}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 20, combat.StatDefense: 10}},
	})

	result, err := e.PerformAttack(0, 1, combat.AttackSpell)
	require.NoError(t, err)
	assert.Equal(t, 3, result.AttackModifier)
	assert.Equal(t, 10, result.DamageDealt)
}

func TestPerformAttack_DefeatedNPCIsRemoved_Victory(t *testing.T) {
	// One fighter against a lone 7 HP goblin with defense 12.
	// Hero init 15+1=16, Gob 10. Attack d20 roll 11 + STR 2 = 13 >= 12.
	// Damage d6 roll 6 + 2 = 8 >= 7: Gob drops to 0, is removed, and the
	// auto-end check fires.
	src := &scriptedSource{values: []int{14, 9, 10, 5}}
	e := combat.NewEngine(nil, src, nil)
	start := e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 7, combat.StatDefense: 12, combat.StatDEX: 10}},
	})
	require.Len(t, start.TurnOrder, 2)
	require.Equal(t, "Hero", start.CurrentTurn)

	result, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 8, result.DamageDealt)
	assert.Equal(t, 0, result.TargetHP, "HP is clamped at 0")
	assert.False(t, result.CombatActive, "removing the last NPC auto-ends combat in victory")

	state := e.State()
	assert.False(t, state.Active)

	// The auto-ended outcome stays available for callers that persist it.
	final, ok := e.Result()
	require.True(t, ok)
	assert.Equal(t, combat.OutcomeVictory, final.Outcome)
	assert.Equal(t, 1, final.Rounds)
	assert.Equal(t, []string{"Hero"}, final.Survivors)
	assert.Contains(t, final.Log, "Gob is defeated!")

	_, err = e.EndCombat()
	assert.ErrorIs(t, err, combat.ErrNotActive, "auto-ended combat cannot be ended again")
}

func TestPerformAttack_RemovalBeforeTurnIndexAdjustsIt(t *testing.T) {
	// Order: Gob (15), Hero (11+1=12), Orc (5).
	src := &scriptedSource{values: []int{10, 14, 4, 9, 5}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 3, combat.StatDefense: 10}},
		{Name: "Orc", Stats: map[string]int{combat.StatHP: 20, combat.StatDefense: 10}},
	})
	require.Equal(t, "Gob", e.CurrentParticipant().Name)

	_, err := e.NextTurn() // Hero's turn, index 1
	require.NoError(t, err)
	hero := e.CurrentParticipant()
	require.Equal(t, "Hero", hero.Name)

	// Hero kills Gob at index 0: attack d20 roll 10 + 2 = 12 >= 10, damage
	// d6 roll 6 + 2 = 8 >= 3.
	result, err := e.PerformAttack(1, 0, combat.AttackMelee)
	require.NoError(t, err)
	require.True(t, result.Hit)
	assert.True(t, result.CombatActive, "Orc still stands")

	// The turn index shifted down with the removal and still points at Hero.
	assert.Same(t, hero, e.CurrentParticipant())
	state := e.State()
	require.Len(t, state.Participants, 2)
	assert.Equal(t, "Hero", state.Participants[0].Name)
	assert.Equal(t, "Orc", state.Participants[1].Name)
}

func TestPerformAttack_PlayerAtZeroDoesNotAutoEnd(t *testing.T) {
	// Gob init 15 beats Hero 11. Gob's attack: d20 roll 19 + 0 >= 11, damage
	// d6 roll 6 + damage_bonus 20 drops Hero from 10 to 0.
	src := &scriptedSource{values: []int{9, 14, 18, 5}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 10, combat.StatDamageBonus: 20}},
	})
	require.Equal(t, "Gob", e.CurrentParticipant().Name)

	result, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	require.True(t, result.Hit)
	assert.Equal(t, 0, result.TargetHP)

	// Defeated players are neither removed nor an auto-end trigger; the
	// encounter runs until the caller ends it.
	assert.True(t, result.CombatActive)
	state := e.State()
	assert.True(t, state.Active)
	assert.Len(t, state.Participants, 2)
}

func TestEndCombat_Outcomes(t *testing.T) {
	// Victory: the player is alive when combat ends.
	src := &scriptedSource{values: []int{14, 9}}
	e := combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 10}},
	})
	_, ok := e.Result()
	assert.False(t, ok, "no final result while combat runs")

	result, err := e.EndCombat()
	require.NoError(t, err)
	assert.Equal(t, combat.OutcomeVictory, result.Outcome)
	assert.Contains(t, result.Survivors, "Hero")
	assert.Contains(t, result.Survivors, "Gob", "living NPCs count as survivors")
	assert.Equal(t, 1, result.Rounds)

	_, err = e.EndCombat()
	assert.ErrorIs(t, err, combat.ErrNotActive, "a second EndCombat call is rejected")

	// Defeat: the only player is at 0 HP.
	src = &scriptedSource{values: []int{9, 14, 18, 5}}
	e = combat.NewEngine(nil, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 10, combat.StatDamageBonus: 20}},
	})
	_, err = e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)

	result, err = e.EndCombat()
	require.NoError(t, err)
	assert.Equal(t, combat.OutcomeDefeat, result.Outcome)
	assert.Equal(t, []string{"Gob"}, result.Survivors)
}

func TestPerformAttack_RulesetOverrides(t *testing.T) {
	rs := ruleset.Default()
	rs.Combat.MeleeAttack = "1d20+DEX" // finesse variant
	rs.Combat.Damage = map[string]string{"melee": "2d4+DEX"}

	// Hero init (override absent for initiative): d20 roll 15 + DEX 1 = 16;
	// Gob 10. Attack override: d20 roll 9 + DEX 1 = 10 >= 10 hits. Damage
	// override 2d4: rolls 3 and 2 = 5, + DEX 1 = 6.
	src := &scriptedSource{values: []int{14, 9, 8, 2, 1}}
	e := combat.NewEngine(rs, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 20, combat.StatDefense: 10}},
	})

	result, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 9, result.AttackRoll)
	assert.Equal(t, 1, result.AttackModifier, "override formula swaps STR for DEX")
	assert.Equal(t, 6, result.DamageDealt)
}

func TestPerformAttack_MalformedOverrideFallsBack(t *testing.T) {
	rs := ruleset.Default()
	rs.Combat.MeleeAttack = "swing real hard"

	// Fallback default: d20 roll 11 + STR 2 = 13 >= 10.
	src := &scriptedSource{values: []int{14, 9, 10, 3}}
	e := combat.NewEngine(rs, src, nil)
	e.StartCombat([]*character.Character{fighter("Hero")}, []combat.NPCDefinition{
		{Name: "Gob", Stats: map[string]int{combat.StatHP: 20, combat.StatDefense: 10}},
	})

	result, err := e.PerformAttack(0, 1, combat.AttackMelee)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AttackModifier, "malformed override falls back to the STR default")
}
