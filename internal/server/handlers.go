package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/dmforge/dungeonmaster/internal/game/character"
	"github.com/dmforge/dungeonmaster/internal/game/check"
	"github.com/dmforge/dungeonmaster/internal/game/combat"
	"github.com/dmforge/dungeonmaster/internal/game/dice"
	"github.com/dmforge/dungeonmaster/internal/game/session"
	"github.com/dmforge/dungeonmaster/internal/storage/postgres"
)

// Narrator generates DM prose for a resolved action. Implementations may
// call out to an LLM; a nil Narrator on the API disables narration and
// responses carry the raw combat log only.
type Narrator interface {
	Narrate(ctx context.Context, history []session.Exchange, playerInput string, combatLog []string) (string, error)
	HistoryLimit() int
}

// EncounterStore persists finished encounters and session transcripts. A nil
// EncounterStore on the API keeps everything in memory.
type EncounterStore interface {
	SaveEncounter(ctx context.Context, sessionID, outcome string, rounds int, survivors, combatLog []string) (postgres.Encounter, error)
	SaveExchange(ctx context.Context, sessionID, playerInput, dmResponse string) (postgres.Exchange, error)
}

// API is the HTTP surface of the dungeon master server.
type API struct {
	sessions *session.Manager
	src      dice.Source
	narrator Narrator
	store    EncounterStore
	logger   *zap.Logger
}

// NewAPI creates the HTTP API. narrator and store may be nil to disable
// narration and persistence; a nil src defaults to the crypto source; a nil
// logger defaults to a no-op logger.
//
// Precondition: sessions must be non-nil.
func NewAPI(sessions *session.Manager, src dice.Source, narrator Narrator, store EncounterStore, logger *zap.Logger) *API {
	if src == nil {
		src = dice.NewCryptoSource()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		sessions: sessions,
		src:      src,
		narrator: narrator,
		store:    store,
		logger:   logger,
	}
}

// Routes returns the HTTP handler with all API routes registered.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/session", a.handleCreateSession)
	mux.HandleFunc("POST /api/combat/start", a.handleCombatStart)
	mux.HandleFunc("POST /api/combat/attack", a.handleCombatAttack)
	mux.HandleFunc("POST /api/combat/next-turn", a.handleCombatNextTurn)
	mux.HandleFunc("POST /api/combat/end", a.handleCombatEnd)
	mux.HandleFunc("GET /api/combat/state", a.handleCombatState)
	mux.HandleFunc("POST /api/check", a.handleCheck)
	return mux
}

// characterPayload is the wire form of a party member.
type characterPayload struct {
	Name      string         `json:"name"`
	Level     int            `json:"level"`
	Abilities map[string]int `json:"abilities"`
	Skills    map[string]int `json:"skills"`
}

// toCharacter converts the payload into the domain model. Unknown ability or
// skill keys are rejected.
func (p characterPayload) toCharacter() (*character.Character, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("character name must not be empty")
	}
	level := p.Level
	if level < 1 {
		level = 1
	}
	ch := &character.Character{Name: p.Name, Level: level}
	for key, score := range p.Abilities {
		stat, ok := character.ParseStat(key)
		if !ok {
			return nil, fmt.Errorf("unknown ability %q for character %q", key, p.Name)
		}
		switch stat {
		case character.STR:
			ch.Abilities.Strength = score
		case character.DEX:
			ch.Abilities.Dexterity = score
		case character.CON:
			ch.Abilities.Constitution = score
		case character.INT:
			ch.Abilities.Intelligence = score
		case character.WIS:
			ch.Abilities.Wisdom = score
		case character.CHA:
			ch.Abilities.Charisma = score
		}
	}
	for key, rank := range p.Skills {
		skill, ok := character.ParseSkill(key)
		if !ok {
			return nil, fmt.Errorf("unknown skill %q for character %q", key, p.Name)
		}
		switch skill {
		case character.Stealth:
			ch.Skills.Stealth = rank
		case character.Arcana:
			ch.Skills.Arcana = rank
		case character.Persuasion:
			ch.Skills.Persuasion = rank
		}
	}
	return ch, nil
}

type createSessionRequest struct {
	Party []characterPayload `json:"party"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Party) == 0 {
		a.writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("party must not be empty"))
		return
	}

	party := make([]*character.Character, 0, len(req.Party))
	for _, payload := range req.Party {
		ch, err := payload.toCharacter()
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}
		party = append(party, ch)
	}

	sess := a.sessions.Create(party)
	a.writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID})
}

type combatStartRequest struct {
	SessionID string                 `json:"session_id"`
	NPCs      []combat.NPCDefinition `json:"npcs"`
}

type combatStartResponse struct {
	combat.StartResult
	Narration string `json:"narration,omitempty"`
}

func (a *API) handleCombatStart(w http.ResponseWriter, r *http.Request) {
	var req combatStartRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, ok := a.session(w, req.SessionID)
	if !ok {
		return
	}

	// Party must be read before entering the engine closure; Encounter
	// methods share one lock with WithEngine.
	party := sess.Party()

	var result combat.StartResult
	_ = sess.WithEngine(func(e *combat.Engine) error {
		result = e.StartCombat(party, req.NPCs)
		return nil
	})

	resp := combatStartResponse{StartResult: result}
	resp.Narration = a.narrate(r.Context(), sess, "Combat begins.", result.Log)
	a.writeJSON(w, http.StatusOK, resp)
}

type combatAttackRequest struct {
	SessionID     string `json:"session_id"`
	AttackerIndex int    `json:"attacker_index"`
	TargetIndex   int    `json:"target_index"`
	AttackType    string `json:"attack_type"`
	// Input is the player's own wording of the action, used for narration.
	Input string `json:"input,omitempty"`
}

type combatAttackResponse struct {
	combat.AttackResult
	Narration string `json:"narration,omitempty"`
}

func (a *API) handleCombatAttack(w http.ResponseWriter, r *http.Request) {
	var req combatAttackRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, ok := a.session(w, req.SessionID)
	if !ok {
		return
	}

	var result combat.AttackResult
	err := sess.WithEngine(func(e *combat.Engine) error {
		var err error
		result, err = e.PerformAttack(req.AttackerIndex, req.TargetIndex, combat.AttackType(req.AttackType))
		return err
	})
	if err != nil {
		a.writeCombatError(w, err)
		return
	}

	if !result.CombatActive {
		a.persistOutcome(r.Context(), sess)
	}

	input := req.Input
	if input == "" {
		input = fmt.Sprintf("I make a %s attack.", req.AttackType)
	}
	resp := combatAttackResponse{AttackResult: result}
	resp.Narration = a.narrate(r.Context(), sess, input, result.Log)
	a.writeJSON(w, http.StatusOK, resp)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (a *API) handleCombatNextTurn(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, ok := a.session(w, req.SessionID)
	if !ok {
		return
	}

	var result combat.TurnResult
	err := sess.WithEngine(func(e *combat.Engine) error {
		var err error
		result, err = e.NextTurn()
		return err
	})
	if err != nil {
		a.writeCombatError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

type combatEndResponse struct {
	combat.EndResult
	Narration string `json:"narration,omitempty"`
}

func (a *API) handleCombatEnd(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, ok := a.session(w, req.SessionID)
	if !ok {
		return
	}

	var result combat.EndResult
	err := sess.WithEngine(func(e *combat.Engine) error {
		var err error
		result, err = e.EndCombat()
		return err
	})
	if err != nil {
		a.writeCombatError(w, err)
		return
	}

	if a.store != nil {
		if _, err := a.store.SaveEncounter(r.Context(), sess.ID,
			string(result.Outcome), result.Rounds, result.Survivors, result.Log); err != nil {
			a.logger.Error("persisting encounter", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	resp := combatEndResponse{EndResult: result}
	resp.Narration = a.narrate(r.Context(), sess, "The fight is over.", tail(result.Log, 5))
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCombatState(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	var state combat.StateSummary
	_ = sess.WithEngine(func(e *combat.Engine) error {
		state = e.State()
		return nil
	})
	a.writeJSON(w, http.StatusOK, state)
}

type checkRequest struct {
	SessionID string `json:"session_id"`
	Character string `json:"character"`
	Name      string `json:"name"`
	DC        int    `json:"dc"`
	// Opposed, when present, turns the check into an opposed roll and DC is
	// ignored.
	Opposed *opposedSpec `json:"opposed,omitempty"`
}

type opposedSpec struct {
	Character string `json:"character"`
	Name      string `json:"name"`
}

type checkResponse struct {
	Name     string `json:"name"`
	Roll     int    `json:"roll"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
	DC       int    `json:"dc"`
	Success  bool   `json:"success"`
	Summary  string `json:"summary"`
}

type opposedCheckResponse struct {
	ActiveName   string `json:"active_name"`
	ActiveTotal  int    `json:"active_total"`
	PassiveName  string `json:"passive_name"`
	PassiveTotal int    `json:"passive_total"`
	Success      bool   `json:"success"`
	Summary      string `json:"summary"`
}

func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Name == "" {
		a.writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("check name must not be empty"))
		return
	}
	sess, ok := a.session(w, req.SessionID)
	if !ok {
		return
	}
	active, _ := sess.Member(req.Character)

	if req.Opposed != nil {
		passive, _ := sess.Member(req.Opposed.Character)
		result := check.OpposedCheck(req.Name, active, req.Opposed.Name, passive, a.src)
		a.writeJSON(w, http.StatusOK, opposedCheckResponse{
			ActiveName:   result.ActiveName,
			ActiveTotal:  result.ActiveTotal,
			PassiveName:  result.PassiveName,
			PassiveTotal: result.PassiveTotal,
			Success:      result.Success,
			Summary:      result.String(),
		})
		return
	}

	result := check.RulesetCheck(a.sessions.Rules(), req.Name, req.DC, active, a.src)
	a.writeJSON(w, http.StatusOK, checkResponse{
		Name:     result.Name,
		Roll:     result.Roll,
		Modifier: result.Modifier,
		Total:    result.Total,
		DC:       result.DC,
		Success:  result.Success,
		Summary:  result.String(),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.sessions.Count(),
	})
}

// session resolves a session ID, writing a 404 on miss.
func (a *API) session(w http.ResponseWriter, id string) (*session.Encounter, bool) {
	if id == "" {
		a.writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("session_id must not be empty"))
		return nil, false
	}
	sess, ok := a.sessions.Get(id)
	if !ok {
		a.writeError(w, http.StatusNotFound, "session_not_found",
			fmt.Errorf("session %q not found", id))
		return nil, false
	}
	return sess, true
}

// narrate produces the DM response for a resolved action and records the
// exchange. Returns "" when narration is disabled or fails; a narration
// failure never fails the request.
func (a *API) narrate(ctx context.Context, sess *session.Encounter, input string, combatLog []string) string {
	if a.narrator == nil {
		return ""
	}
	history := sess.RecentHistory(a.narrator.HistoryLimit())
	text, err := a.narrator.Narrate(ctx, history, input, combatLog)
	if err != nil {
		a.logger.Warn("narration failed", zap.String("session_id", sess.ID), zap.Error(err))
		return ""
	}
	sess.Record(input, text)
	if a.store != nil {
		if _, err := a.store.SaveExchange(ctx, sess.ID, input, text); err != nil {
			a.logger.Error("persisting exchange", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	return text
}

// persistOutcome saves the outcome of an encounter that auto-ended inside
// the engine, which keeps the final EndResult for exactly this handoff.
func (a *API) persistOutcome(ctx context.Context, sess *session.Encounter) {
	if a.store == nil {
		return
	}
	var (
		result combat.EndResult
		ok     bool
	)
	_ = sess.WithEngine(func(e *combat.Engine) error {
		result, ok = e.Result()
		return nil
	})
	if !ok {
		return
	}
	if _, err := a.store.SaveEncounter(ctx, sess.ID,
		string(result.Outcome), result.Rounds, result.Survivors, result.Log); err != nil {
		a.logger.Error("persisting encounter", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// writeCombatError maps engine errors onto HTTP statuses, keeping the
// machine-readable kind in the body.
func (a *API) writeCombatError(w http.ResponseWriter, err error) {
	kind := combat.ErrorKind(err)
	status := http.StatusBadRequest
	switch kind {
	case "not_active", "not_your_turn", "already_acted":
		status = http.StatusConflict
	case "internal":
		status = http.StatusInternalServerError
	}
	a.writeError(w, status, kind, err)
}

func (a *API) writeError(w http.ResponseWriter, status int, kind string, err error) {
	a.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encoding response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// tail returns the last n entries of log.
func tail(log []string, n int) []string {
	if n > len(log) {
		n = len(log)
	}
	return log[len(log)-n:]
}
