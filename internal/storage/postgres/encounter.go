package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Encounter is a finished encounter record as stored in the database.
type Encounter struct {
	ID        int64
	SessionID string
	Outcome   string
	Rounds    int
	Survivors []string
	CombatLog []string
	CreatedAt time.Time
}

// Exchange is one persisted player/DM exchange.
type Exchange struct {
	ID          int64
	SessionID   string
	PlayerInput string
	DMResponse  string
	CreatedAt   time.Time
}

// ErrEncounterNotFound is returned when an encounter lookup yields no results.
var ErrEncounterNotFound = errors.New("encounter not found")

// EncounterRepository persists finished encounters and session transcripts.
type EncounterRepository struct {
	db *pgxpool.Pool
}

// NewEncounterRepository creates an EncounterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEncounterRepository(db *pgxpool.Pool) *EncounterRepository {
	return &EncounterRepository{db: db}
}

// SaveEncounter inserts a finished encounter record.
//
// Precondition: sessionID and outcome must be non-empty; rounds must be >= 1.
// Postcondition: Returns the stored Encounter with ID and CreatedAt set.
func (r *EncounterRepository) SaveEncounter(ctx context.Context, sessionID, outcome string, rounds int, survivors, combatLog []string) (Encounter, error) {
	var enc Encounter
	err := r.db.QueryRow(ctx,
		`INSERT INTO encounters (session_id, outcome, rounds, survivors, combat_log)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, session_id, outcome, rounds, survivors, combat_log, created_at`,
		sessionID, outcome, rounds, survivors, combatLog,
	).Scan(&enc.ID, &enc.SessionID, &enc.Outcome, &enc.Rounds, &enc.Survivors, &enc.CombatLog, &enc.CreatedAt)
	if err != nil {
		return Encounter{}, fmt.Errorf("inserting encounter: %w", err)
	}
	return enc, nil
}

// GetEncounter retrieves an encounter by ID.
//
// Postcondition: Returns the Encounter or ErrEncounterNotFound.
func (r *EncounterRepository) GetEncounter(ctx context.Context, id int64) (Encounter, error) {
	var enc Encounter
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, outcome, rounds, survivors, combat_log, created_at
		 FROM encounters WHERE id = $1`,
		id,
	).Scan(&enc.ID, &enc.SessionID, &enc.Outcome, &enc.Rounds, &enc.Survivors, &enc.CombatLog, &enc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Encounter{}, ErrEncounterNotFound
		}
		return Encounter{}, fmt.Errorf("querying encounter: %w", err)
	}
	return enc, nil
}

// ListEncounters retrieves all encounters for a session, oldest first.
//
// Precondition: sessionID must be non-empty.
// Postcondition: Returns the encounters (may be empty).
func (r *EncounterRepository) ListEncounters(ctx context.Context, sessionID string) ([]Encounter, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, outcome, rounds, survivors, combat_log, created_at
		 FROM encounters WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying encounters: %w", err)
	}
	defer rows.Close()

	var encounters []Encounter
	for rows.Next() {
		var enc Encounter
		if err := rows.Scan(&enc.ID, &enc.SessionID, &enc.Outcome, &enc.Rounds, &enc.Survivors, &enc.CombatLog, &enc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning encounter: %w", err)
		}
		encounters = append(encounters, enc)
	}
	return encounters, rows.Err()
}

// SaveExchange inserts one player/DM exchange for a session.
//
// Precondition: sessionID and playerInput must be non-empty; dmResponse may
// be empty when narration is disabled.
// Postcondition: Returns the stored Exchange with ID and CreatedAt set.
func (r *EncounterRepository) SaveExchange(ctx context.Context, sessionID, playerInput, dmResponse string) (Exchange, error) {
	var ex Exchange
	err := r.db.QueryRow(ctx,
		`INSERT INTO exchanges (session_id, player_input, dm_response)
		 VALUES ($1, $2, $3)
		 RETURNING id, session_id, player_input, dm_response, created_at`,
		sessionID, playerInput, dmResponse,
	).Scan(&ex.ID, &ex.SessionID, &ex.PlayerInput, &ex.DMResponse, &ex.CreatedAt)
	if err != nil {
		return Exchange{}, fmt.Errorf("inserting exchange: %w", err)
	}
	return ex, nil
}

// ListExchanges retrieves up to limit of the most recent exchanges for a
// session, oldest first. A limit <= 0 means no limit.
//
// Precondition: sessionID must be non-empty.
// Postcondition: Returns the exchanges (may be empty).
func (r *EncounterRepository) ListExchanges(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	query := `SELECT id, session_id, player_input, dm_response, created_at
	 FROM exchanges WHERE session_id = $1 ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT id, session_id, player_input, dm_response, created_at FROM (
		   SELECT id, session_id, player_input, dm_response, created_at
		   FROM exchanges WHERE session_id = $1 ORDER BY id DESC LIMIT $2
		 ) recent ORDER BY id`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.PlayerInput, &ex.DMResponse, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}
