package combat

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/dice"
	"github.com/dmforge/dungeonmaster/internal/game/ruleset"
)

// AttackType selects the attack and damage formulas for PerformAttack.
type AttackType string

const (
	AttackMelee  AttackType = "melee"
	AttackRanged AttackType = "ranged"
	AttackSpell  AttackType = "spell"
)

// attackStat maps each attack type to the player stat driving both the
// attack roll and the damage modifier.
var attackStat = map[AttackType]character.Stat{
	AttackMelee:  character.STR,
	AttackRanged: character.DEX,
	AttackSpell:  character.INT,
}

// Default damage dice per attack type; unrecognized types fall back to 1d4.
var damageDice = map[AttackType]dice.Expression{
	AttackMelee:  dice.MustParse("1d6"),
	AttackRanged: dice.MustParse("1d6"),
	AttackSpell:  dice.MustParse("1d8"),
}

var (
	defaultDamage     = dice.MustParse("1d4")
	defaultInitiative = dice.MustParse("1d20+DEX")
)

// formulaKind maps an attack type to its ruleset override key.
var formulaKind = map[AttackType]string{
	AttackMelee:  ruleset.FormulaMeleeAttack,
	AttackRanged: ruleset.FormulaRangedAttack,
	AttackSpell:  ruleset.FormulaSpellAttack,
}

// Outcome is the final result of an encounter.
type Outcome string

const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// StartResult reports the initial turn order after StartCombat.
type StartResult struct {
	Round       int      `json:"round"`
	TurnOrder   []string `json:"turn_order"`
	CurrentTurn string   `json:"current_turn"`
	Log         []string `json:"log"`
}

// TurnResult reports the state after NextTurn.
type TurnResult struct {
	Round        int      `json:"round"`
	CurrentTurn  string   `json:"current_turn"`
	IsPlayerTurn bool     `json:"is_player_turn"`
	Log          []string `json:"log"`
}

// AttackResult reports a resolved attack. PerformAttack never advances the
// turn; NextTurn must be called separately.
type AttackResult struct {
	Hit            bool     `json:"hit"`
	AttackRoll     int      `json:"attack_roll"`
	AttackModifier int      `json:"attack_mod"`
	AttackTotal    int      `json:"total_attack"`
	Defense        int      `json:"defense"`
	DamageDealt    int      `json:"damage_dealt"`
	TargetHP       int      `json:"target_hp"`
	TargetMaxHP    int      `json:"target_max_hp"`
	CombatActive   bool     `json:"combat_active"`
	Log            []string `json:"log"`
}

// EndResult reports the outcome of a finished encounter.
type EndResult struct {
	Outcome   Outcome  `json:"outcome"`
	Rounds    int      `json:"rounds"`
	Survivors []string `json:"survivors"`
	Log       []string `json:"log"`
}

// ParticipantSummary is the per-participant view in a StateSummary.
type ParticipantSummary struct {
	Name          string   `json:"name"`
	IsPlayer      bool     `json:"is_player"`
	Initiative    int      `json:"initiative"`
	HP            int      `json:"hp"`
	MaxHP         int      `json:"max_hp"`
	StatusEffects []string `json:"status_effects"`
}

// StateSummary is the full engine state view returned by State.
type StateSummary struct {
	Active       bool                 `json:"active"`
	Round        int                  `json:"round,omitempty"`
	CurrentTurn  string               `json:"current_turn,omitempty"`
	IsPlayerTurn bool                 `json:"is_player_turn,omitempty"`
	Participants []ParticipantSummary `json:"participants,omitempty"`
	Log          []string             `json:"log,omitempty"`
}

// Engine owns one encounter: the initiative-ordered participant list, the
// round/turn counters, and the append-only combat log.
//
// The engine is single-threaded and non-reentrant: methods must be invoked
// sequentially by a single controlling caller. Embedding in a concurrent
// server requires external serialization (see session.Manager).
//
// Invariant while active: 0 <= turnIndex < len(participants).
type Engine struct {
	ruleset *ruleset.Ruleset
	src     dice.Source
	logger  *zap.Logger

	participants []*Participant
	round        int
	turnIndex    int
	active       bool
	log          []string
	finalResult  *EndResult
}

// NewEngine creates an engine for one encounter. rs may be nil (hardcoded
// defaults apply); a nil src defaults to the crypto source; a nil logger
// defaults to a no-op logger.
func NewEngine(rs *ruleset.Ruleset, src dice.Source, logger *zap.Logger) *Engine {
	if src == nil {
		src = dice.NewCryptoSource()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ruleset: rs, src: src, logger: logger}
}

// StartCombat begins an encounter with the given player characters and NPC
// definitions, rolling initiative for everyone and sorting descending.
// Ties keep insertion order: players in input order, then NPCs in input
// order. Restarting a finished engine reinitializes all state.
//
// Postcondition: the engine is active with round 1, turn index 0.
func (e *Engine) StartCombat(players []*character.Character, npcs []NPCDefinition) StartResult {
	e.participants = nil
	e.log = nil
	e.round = 1
	e.turnIndex = 0
	e.finalResult = nil

	for _, pc := range players {
		initiative := e.rollInitiative(pc)
		e.participants = append(e.participants, NewPlayerParticipant(pc, initiative))
		e.appendLog(fmt.Sprintf("%s rolls %d for initiative.", pc.Name, initiative))
	}
	for _, npc := range npcs {
		initiative := e.rollInitiativeNPC(npc)
		e.participants = append(e.participants, NewNPCParticipant(npc.Name, npc.Stats, initiative))
		e.appendLog(fmt.Sprintf("%s rolls %d for initiative.", npc.Name, initiative))
	}

	// Stable: equal initiatives keep insertion order.
	sort.SliceStable(e.participants, func(i, j int) bool {
		return e.participants[i].Initiative > e.participants[j].Initiative
	})

	e.active = true

	order := make([]string, len(e.participants))
	for i, p := range e.participants {
		order[i] = fmt.Sprintf("%d. %s (%d)", i+1, p.Name, p.Initiative)
	}
	e.appendLog("Combat begins! Turn order:\n" + strings.Join(order, "\n"))

	current := ""
	if p := e.CurrentParticipant(); p != nil {
		current = p.Name
	}
	e.logger.Info("combat started",
		zap.Int("players", len(players)),
		zap.Int("npcs", len(npcs)),
		zap.Strings("turn_order", order),
	)
	return StartResult{
		Round:       e.round,
		TurnOrder:   order,
		CurrentTurn: current,
		Log:         e.logTail(len(e.log)),
	}
}

// CurrentParticipant returns the participant whose turn it is, or nil when
// combat is inactive or empty. Never mutates state.
func (e *Engine) CurrentParticipant() *Participant {
	if !e.active || len(e.participants) == 0 {
		return nil
	}
	return e.participants[e.turnIndex]
}

// NextTurn advances to the next participant. When the turn index wraps to
// zero a new round begins: the round counter increments and every
// participant's turn flags reset. The new current participant's status
// effects tick exactly once, here.
//
// Postcondition on success: returns the round, current participant, and the
// last 5 log entries.
func (e *Engine) NextTurn() (TurnResult, error) {
	if !e.active || len(e.participants) == 0 {
		return TurnResult{}, ErrNotActive
	}

	e.turnIndex = (e.turnIndex + 1) % len(e.participants)
	if e.turnIndex == 0 {
		e.round++
		e.appendLog(fmt.Sprintf("Round %d begins!", e.round))
		for _, p := range e.participants {
			p.ResetTurn()
		}
	}

	current := e.CurrentParticipant()
	if expired := current.TickStatusEffects(); len(expired) > 0 {
		e.appendLog(fmt.Sprintf("%s is no longer affected by: %s",
			current.Name, strings.Join(expired, ", ")))
	}
	e.appendLog(fmt.Sprintf("It's %s's turn.", current.Name))

	return TurnResult{
		Round:        e.round,
		CurrentTurn:  current.Name,
		IsPlayerTurn: current.IsPlayer,
		Log:          e.logTail(5),
	}, nil
}

// PerformAttack resolves one attack from the participant at attackerIdx
// against the one at targetIdx. Indices are positions in the current
// participant list, not stable IDs: a removal shifts later positions, so
// callers must re-read state after any attack that defeats an NPC.
//
// Preconditions, checked in order, each a distinct error: combat active;
// both indices in range; attacker is the current participant; attacker has
// not acted this turn.
//
// A defeated NPC is removed immediately (adjusting the turn index when the
// removed position precedes it) and the auto-end rule is evaluated. A player
// reduced to 0 HP is NOT removed and does not trigger the auto-end rule
// here; combat continues until EndCombat.
func (e *Engine) PerformAttack(attackerIdx, targetIdx int, attackType AttackType) (AttackResult, error) {
	if !e.active {
		return AttackResult{}, ErrNotActive
	}
	if attackerIdx < 0 || attackerIdx >= len(e.participants) {
		return AttackResult{}, fmt.Errorf("%w: attacker index %d", ErrInvalidIndex, attackerIdx)
	}
	if targetIdx < 0 || targetIdx >= len(e.participants) {
		return AttackResult{}, fmt.Errorf("%w: target index %d", ErrInvalidIndex, targetIdx)
	}

	attacker := e.participants[attackerIdx]
	target := e.participants[targetIdx]

	if attacker != e.CurrentParticipant() {
		return AttackResult{}, ErrNotYourTurn
	}
	if attacker.HasActed {
		return AttackResult{}, ErrAlreadyActed
	}

	roll, mod := e.rollAttack(attacker, attackType)
	total := roll + mod
	defense := e.defenseOf(target)
	hit := total >= defense

	verdict := "Miss!"
	if hit {
		verdict = "Hit!"
	}
	e.appendLog(fmt.Sprintf(
		"%s attacks %s with a %s attack. Rolls %d + %d = %d vs. defense %d. %s",
		attacker.Name, target.Name, attackType, roll, mod, total, defense, verdict))

	damageDealt := 0
	if hit {
		damageRoll, damageMod := e.rollDamage(attacker, attackType)
		damageDealt = target.TakeDamage(damageRoll + damageMod)
		e.appendLog(fmt.Sprintf("%s deals %d damage to %s. %s has %d HP remaining.",
			attacker.Name, damageDealt, target.Name, target.Name, target.CurrentHP))

		if !target.IsAlive() {
			e.appendLog(fmt.Sprintf("%s is defeated!", target.Name))
			if !target.IsPlayer {
				e.removeParticipant(targetIdx)
				if e.checkCombatEnd() {
					e.finishCombat()
				}
			}
		}
	}

	attacker.HasActed = true

	e.logger.Debug("attack resolved",
		zap.String("attacker", attacker.Name),
		zap.String("target", target.Name),
		zap.String("attack_type", string(attackType)),
		zap.Bool("hit", hit),
		zap.Int("damage", damageDealt),
	)
	return AttackResult{
		Hit:            hit,
		AttackRoll:     roll,
		AttackModifier: mod,
		AttackTotal:    total,
		Defense:        defense,
		DamageDealt:    damageDealt,
		TargetHP:       target.CurrentHP,
		TargetMaxHP:    target.MaxHP(),
		CombatActive:   e.active,
		Log:            e.logTail(3),
	}, nil
}

// EndCombat finishes the encounter: victory when at least one player
// participant is alive, defeat otherwise. A second call is rejected.
func (e *Engine) EndCombat() (EndResult, error) {
	if !e.active {
		return EndResult{}, ErrNotActive
	}
	return e.finishCombat(), nil
}

// State returns the full current combat state, or {Active: false} when no
// encounter is running.
func (e *Engine) State() StateSummary {
	if !e.active {
		return StateSummary{Active: false}
	}

	summaries := make([]ParticipantSummary, len(e.participants))
	for i, p := range e.participants {
		summaries[i] = ParticipantSummary{
			Name:          p.Name,
			IsPlayer:      p.IsPlayer,
			Initiative:    p.Initiative,
			HP:            p.CurrentHP,
			MaxHP:         p.MaxHP(),
			StatusEffects: p.StatusEffectNames(),
		}
	}

	current := e.CurrentParticipant()
	s := StateSummary{
		Active:       true,
		Round:        e.round,
		Participants: summaries,
		Log:          e.logTail(5),
	}
	if current != nil {
		s.CurrentTurn = current.Name
		s.IsPlayerTurn = current.IsPlayer
	}
	return s
}

// Log returns a copy of the full append-only combat log.
func (e *Engine) Log() []string {
	return e.logTail(len(e.log))
}

// Result returns the EndResult of the finished encounter. ok is false while
// combat is still active or before any encounter has run; StartCombat clears
// the previous result.
func (e *Engine) Result() (EndResult, bool) {
	if e.finalResult == nil {
		return EndResult{}, false
	}
	return *e.finalResult, true
}

// finishCombat determines the outcome, logs it, and deactivates the engine.
func (e *Engine) finishCombat() EndResult {
	var survivors []string
	alivePlayers := 0
	for _, p := range e.participants {
		if p.IsAlive() {
			survivors = append(survivors, p.Name)
			if p.IsPlayer {
				alivePlayers++
			}
		}
	}

	outcome := OutcomeDefeat
	if alivePlayers > 0 {
		outcome = OutcomeVictory
		e.appendLog("Combat ends in victory for the players!")
	} else {
		e.appendLog("Combat ends in defeat for the players...")
	}

	e.active = false
	e.logger.Info("combat ended",
		zap.String("outcome", string(outcome)),
		zap.Int("rounds", e.round),
		zap.Strings("survivors", survivors),
	)
	result := EndResult{
		Outcome:   outcome,
		Rounds:    e.round,
		Survivors: survivors,
		Log:       e.logTail(len(e.log)),
	}
	e.finalResult = &result
	return result
}

// checkCombatEnd reports whether the encounter should auto-end: all player
// participants dead or all NPC participants dead (or removed). Evaluated
// only on the NPC-removal path in PerformAttack.
func (e *Engine) checkCombatEnd() bool {
	alivePlayers, aliveNPCs := 0, 0
	for _, p := range e.participants {
		if !p.IsAlive() {
			continue
		}
		if p.IsPlayer {
			alivePlayers++
		} else {
			aliveNPCs++
		}
	}
	return alivePlayers == 0 || aliveNPCs == 0
}

// removeParticipant drops the participant at idx, shifting the turn index
// down when the removed position precedes it so it keeps pointing at the
// same logical participant.
func (e *Engine) removeParticipant(idx int) {
	if idx < e.turnIndex {
		e.turnIndex--
	}
	e.participants = append(e.participants[:idx], e.participants[idx+1:]...)
}

// rollInitiative rolls player initiative: the ruleset override formula when
// present and well-formed, else the default 1d20+DEX. A malformed override
// falls back to the default rather than failing the encounter.
func (e *Engine) rollInitiative(ch *character.Character) int {
	expr := defaultInitiative
	if formula, ok := e.ruleset.CombatFormula(ruleset.FormulaInitiative); ok {
		parsed, err := dice.Parse(formula)
		if err != nil {
			e.logger.Debug("malformed initiative override, using default",
				zap.String("formula", formula), zap.Error(err))
		} else {
			expr = parsed
		}
	}
	result, err := dice.Evaluate(expr, ch, e.src)
	if err != nil {
		// Unreachable for parsed expressions; defensive fallback to a flat d20.
		return e.src.Intn(20) + 1
	}
	return result.Total()
}

// rollInitiativeNPC rolls NPC initiative: 1d20 plus the modifier derived
// from the NPC's raw DEX score when present, else 0. Ruleset overrides do
// not apply to NPCs.
func (e *Engine) rollInitiativeNPC(npc NPCDefinition) int {
	mod := 0
	if dex, ok := npc.Stats[StatDEX]; ok {
		mod = abilityMod(dex)
	}
	return e.src.Intn(20) + 1 + mod
}

// rollAttack returns the attack roll and modifier for the attacker. Players
// use the ruleset override formula when available, else 1d20 plus the attack
// type's stat modifier. NPCs roll a flat 1d20 plus their attack_bonus.
func (e *Engine) rollAttack(attacker *Participant, attackType AttackType) (roll, mod int) {
	if attacker.IsPlayer && attacker.Character != nil {
		if formula, ok := e.ruleset.CombatFormula(formulaKind[attackType]); ok {
			if result, err := dice.EvaluateExpr(formula, attacker.Character, e.src); err == nil {
				return result.BaseTotal(), result.Modifier
			}
			e.logger.Debug("malformed attack override, using default",
				zap.String("formula", formula), zap.String("attack_type", string(attackType)))
		}
		roll = e.src.Intn(20) + 1
		if stat, ok := attackStat[attackType]; ok {
			mod = attacker.Character.Modifier(stat)
		}
		return roll, mod
	}
	return e.src.Intn(20) + 1, attacker.Stats[StatAttackBonus]
}

// rollDamage returns the damage roll and modifier for the attacker. Players
// use the ruleset per-weapon damage override when available, else the attack
// type's default dice plus its stat modifier. NPCs use the default dice plus
// their damage_bonus.
func (e *Engine) rollDamage(attacker *Participant, attackType AttackType) (roll, mod int) {
	expr, ok := damageDice[attackType]
	if !ok {
		expr = defaultDamage
	}

	if attacker.IsPlayer && attacker.Character != nil {
		if formula, ok := e.ruleset.DamageFormula(string(attackType)); ok {
			if result, err := dice.EvaluateExpr(formula, attacker.Character, e.src); err == nil {
				return result.BaseTotal(), result.Modifier
			}
			e.logger.Debug("malformed damage override, using default",
				zap.String("formula", formula), zap.String("attack_type", string(attackType)))
		}
		result, err := dice.Evaluate(expr, nil, e.src)
		if err != nil {
			return 1, 0
		}
		if stat, ok := attackStat[attackType]; ok {
			mod = attacker.Character.Modifier(stat)
		}
		return result.BaseTotal(), mod
	}

	result, err := dice.Evaluate(expr, nil, e.src)
	if err != nil {
		return 1, 0
	}
	return result.BaseTotal(), attacker.Stats[StatDamageBonus]
}

// defenseOf returns the target's defense: players 10 + DEX modifier, NPCs
// the "defense" stat, default 10.
func (e *Engine) defenseOf(target *Participant) int {
	if target.IsPlayer && target.Character != nil {
		return 10 + target.Character.Modifier(character.DEX)
	}
	if defense, ok := target.Stats[StatDefense]; ok {
		return defense
	}
	return 10
}

// appendLog appends one entry to the append-only combat log. Entries are
// never rolled back, including on rejected operations.
func (e *Engine) appendLog(entry string) {
	e.log = append(e.log, entry)
}

// logTail returns a copy of the last n log entries.
func (e *Engine) logTail(n int) []string {
	if n > len(e.log) {
		n = len(e.log)
	}
	tail := make([]string, n)
	copy(tail, e.log[len(e.log)-n:])
	return tail
}
