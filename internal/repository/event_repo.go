// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEventRepository(pool *pgxpool.Pool, logger *slog.Logger) *EventRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventRepository{
		pool:   pool,
		logger: logger,
	}
}

// ListEvents returns the full history for an agent, oldest first. This backs
// the one-time historical load a console performs on agent selection.
func (r *EventRepository) ListEvents(ctx context.Context, agentID uuid.UUID) ([]domain.EventRecord, error) {
	return r.listEvents(ctx, agentID, 0)
}

// ListEventsAfter returns events with seq strictly greater than afterSeq.
func (r *EventRepository) ListEventsAfter(ctx context.Context, agentID uuid.UUID, afterSeq int64) ([]domain.EventRecord, error) {
	return r.listEvents(ctx, agentID, afterSeq)
}

func (r *EventRepository) listEvents(ctx context.Context, agentID uuid.UUID, afterSeq int64) ([]domain.EventRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, agent_id, thread_id, type, payload, created_at
		FROM events
		WHERE agent_id=$1
		  AND seq > $2
		ORDER BY seq ASC
	`,
		agentID,
		afterSeq,
	)
	if err != nil {
		r.logger.Error("list events query failed",
			"agent_id", agentID,
			"after_seq", afterSeq,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EventRecord, 0, 8)
	for rows.Next() {
		var ev domain.EventRecord
		if err := rows.Scan(
			&ev.ID,
			&ev.Seq,
			&ev.AgentID,
			&ev.ThreadID,
			&ev.Type,
			&ev.Payload,
			&ev.CreatedAt,
		); err != nil {
			r.logger.Error("scan event row failed",
				"agent_id", agentID,
				"error", err,
			)
			return nil, err
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("events rows iteration failed",
			"agent_id", agentID,
			"error", err,
		)
		return nil, err
	}

	return out, nil
}

// InsertEvent persists one runtime event and returns it with its assigned
// sequence number.
func (r *EventRepository) InsertEvent(
	ctx context.Context,
	agentID uuid.UUID,
	threadID string,
	eventType string,
	payload json.RawMessage,
) (domain.EventRecord, error) {
	ev := domain.EventRecord{
		ID:       uuid.New(),
		AgentID:  agentID,
		ThreadID: threadID,
		Type:     eventType,
		Payload:  payload,
	}

	if err := r.pool.QueryRow(ctx, `
		INSERT INTO events (id, agent_id, thread_id, type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at
	`,
		ev.ID,
		ev.AgentID,
		ev.ThreadID,
		ev.Type,
		ev.Payload,
	).Scan(&ev.Seq, &ev.CreatedAt); err != nil {
		r.logger.Error("insert event failed",
			"agent_id", agentID,
			"type", eventType,
			"error", err,
		)
		return domain.EventRecord{}, err
	}

	return ev, nil
}
