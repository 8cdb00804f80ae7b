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

type SessionRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewSessionRepository(pool *pgxpool.Pool, logger *slog.Logger) *SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *SessionRepository) CreateSession(ctx context.Context, params domain.CreateSessionParams) (domain.SessionRecord, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return domain.SessionRecord{}, domain.ErrInvalidSessionTitle
	}

	session := domain.SessionRecord{
		ID:        uuid.New(),
		ProjectID: params.ProjectID,
		Title:     title,
	}

	if err := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, project_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`,
		session.ID,
		session.ProjectID,
		session.Title,
	).Scan(&session.CreatedAt, &session.UpdatedAt); err != nil {
		r.logger.Error("insert session failed",
			"project_id", params.ProjectID,
			"error", err,
		)
		return domain.SessionRecord{}, err
	}

	r.logger.Info("session created", "session_id", session.ID, "project_id", session.ProjectID)
	return session, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id uuid.UUID) (domain.SessionRecord, error) {
	var session domain.SessionRecord
	if err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, title, created_at, updated_at
		FROM sessions
		WHERE id=$1
	`, id).Scan(
		&session.ID,
		&session.ProjectID,
		&session.Title,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return domain.SessionRecord{}, err
	}

	return session, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, projectID uuid.UUID) ([]domain.SessionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, title, created_at, updated_at
		FROM sessions
		WHERE ($1::uuid IS NULL OR project_id=$1)
		ORDER BY updated_at DESC
	`, nullableUUID(projectID))
	if err != nil {
		r.logger.Error("list sessions query failed", "project_id", projectID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SessionRecord, 0, 4)
	for rows.Next() {
		var session domain.SessionRecord
		if err := rows.Scan(
			&session.ID,
			&session.ProjectID,
			&session.Title,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			r.logger.Error("scan session row failed", "error", err)
			return nil, err
		}
		out = append(out, session)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("sessions rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}
