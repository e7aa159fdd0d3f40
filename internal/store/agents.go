package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Agent is a configured attendant persona for a location.
type Agent struct {
	ID          uuid.UUID
	LocationID  uuid.UUID
	Name        string
	Personality string
	Objective   string
	Prompt      string
	IsActive    bool
	CreatedAt   time.Time
}

// LocationByGHLID resolves the internal location row for a CRM location id.
// Returns uuid.Nil and false when the location is unknown.
func (s *Store) LocationByGHLID(ctx context.Context, ghlLocationID string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM locations WHERE ghl_location_id = $1`,
		ghlLocationID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("querying location: %w", err)
	}
	return id, true, nil
}

const agentCols = `id, location_id, name, personality, objective, prompt, is_active, created_at`

// ActiveAgent returns the most recently created active agent for a
// location, or nil when the location has no active agent.
func (s *Store) ActiveAgent(ctx context.Context, locationID uuid.UUID) (*Agent, error) {
	var a Agent
	err := s.pool.QueryRow(ctx, `SELECT `+agentCols+`
		FROM agents
		WHERE location_id = $1 AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1`, locationID).Scan(
		&a.ID, &a.LocationID, &a.Name, &a.Personality, &a.Objective,
		&a.Prompt, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active agent: %w", err)
	}
	return &a, nil
}

// AgentByID loads a single agent. Returns nil when the agent does not exist.
func (s *Store) AgentByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	var a Agent
	err := s.pool.QueryRow(ctx, `SELECT `+agentCols+` FROM agents WHERE id = $1`, id).Scan(
		&a.ID, &a.LocationID, &a.Name, &a.Personality, &a.Objective,
		&a.Prompt, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}
	return &a, nil
}

// AgentKnowledgeBaseIDs returns the knowledge bases linked to an agent.
func (s *Store) AgentKnowledgeBaseIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT knowledge_base_id FROM agent_knowledge_bases WHERE agent_id = $1`,
		agentID)
	if err != nil {
		return nil, fmt.Errorf("querying agent knowledge bases: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning knowledge base id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge base ids: %w", err)
	}
	return ids, nil
}
