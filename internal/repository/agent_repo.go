// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAgentRepository(pool *pgxpool.Pool, logger *slog.Logger) *AgentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &AgentRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *AgentRepository) CreateAgent(ctx context.Context, params domain.CreateAgentParams) (domain.AgentRecord, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return domain.AgentRecord{}, domain.ErrInvalidAgentName
	}

	agent := domain.AgentRecord{
		ID:        uuid.New(),
		SessionID: params.SessionID,
		Name:      name,
		Model:     strings.TrimSpace(params.Model),
		Status:    domain.AgentIdle,
	}

	if err := r.pool.QueryRow(ctx, `
		INSERT INTO agents (id, session_id, name, model, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		agent.ID,
		agent.SessionID,
		agent.Name,
		agent.Model,
		agent.Status,
	).Scan(&agent.CreatedAt); err != nil {
		r.logger.Error("insert agent failed",
			"session_id", params.SessionID,
			"error", err,
		)
		return domain.AgentRecord{}, err
	}

	r.logger.Info("agent created", "agent_id", agent.ID, "session_id", agent.SessionID)
	return agent, nil
}

func (r *AgentRepository) GetAgent(ctx context.Context, id uuid.UUID) (domain.AgentRecord, error) {
	var agent domain.AgentRecord
	if err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, name, model, status, created_at
		FROM agents
		WHERE id=$1
	`, id).Scan(
		&agent.ID,
		&agent.SessionID,
		&agent.Name,
		&agent.Model,
		&agent.Status,
		&agent.CreatedAt,
	); err != nil {
		return domain.AgentRecord{}, err
	}

	return agent, nil
}

func (r *AgentRepository) ListAgents(ctx context.Context, sessionID uuid.UUID) ([]domain.AgentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, name, model, status, created_at
		FROM agents
		WHERE ($1::uuid IS NULL OR session_id=$1)
		ORDER BY created_at ASC
	`, nullableUUID(sessionID))
	if err != nil {
		r.logger.Error("list agents query failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AgentRecord, 0, 4)
	for rows.Next() {
		var agent domain.AgentRecord
		if err := rows.Scan(
			&agent.ID,
			&agent.SessionID,
			&agent.Name,
			&agent.Model,
			&agent.Status,
			&agent.CreatedAt,
		); err != nil {
			r.logger.Error("scan agent row failed", "error", err)
			return nil, err
		}
		out = append(out, agent)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("agents rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}

func (r *AgentRepository) UpdateAgentStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error {
	switch status {
	case domain.AgentIdle, domain.AgentRunning, domain.AgentWaiting, domain.AgentError, domain.AgentOffline:
	default:
		return domain.ErrInvalidAgentStatus
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE agents SET status=$2 WHERE id=$1
	`, id, status)
	if err != nil {
		r.logger.Error("update agent status failed", "agent_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows
	}

	return nil
}
