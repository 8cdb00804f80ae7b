// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/adiadia/agent-console/internal/metrics"
	"github.com/google/uuid"
)

// envelope is the wire shape runtime processes push onto the Redis list.
type envelope struct {
	AgentID  uuid.UUID       `json:"agent_id"`
	ThreadID string          `json:"thread_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type EventWriter interface {
	InsertEvent(ctx context.Context, agentID uuid.UUID, threadID string, eventType string, payload json.RawMessage) (domain.EventRecord, error)
}

type Source interface {
	Pop(ctx context.Context) ([]byte, error)
}

type Deps struct {
	Source Source
	Events EventWriter
	Logger *slog.Logger
}

// errorRetryDelay paces the consume loop after a failure so a persistently
// unreachable Redis or database does not turn Run into a hot loop.
const errorRetryDelay = time.Second

type Worker struct {
	source     Source
	events     EventWriter
	logger     *slog.Logger
	retryDelay time.Duration
}

func New(deps Deps) *Worker {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	return &Worker{
		source:     deps.Source,
		events:     deps.Events,
		logger:     l,
		retryDelay: errorRetryDelay,
	}
}

// Run consumes until the context is canceled. Malformed messages are logged
// and skipped; pop and insert failures are logged and retried after a delay.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := w.ProcessOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			w.logger.Error("intake process failed", "error", err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// ProcessOnce pops and persists at most one message.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	msg, err := w.source.Pop(ctx)
	if err != nil {
		metrics.IncIntakeEvent(metrics.IntakeError)
		return err
	}
	if msg == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		metrics.IncIntakeEvent(metrics.IntakeMalformed)
		w.logger.Warn("malformed intake message dropped", "error", err)
		return nil
	}

	if env.AgentID == uuid.Nil || strings.TrimSpace(env.Type) == "" {
		metrics.IncIntakeEvent(metrics.IntakeMalformed)
		w.logger.Warn("incomplete intake message dropped",
			"agent_id", env.AgentID,
			"type", env.Type,
		)
		return nil
	}

	ev, err := w.events.InsertEvent(ctx, env.AgentID, env.ThreadID, env.Type, env.Payload)
	if err != nil {
		metrics.IncIntakeEvent(metrics.IntakeError)
		return err
	}

	metrics.IncIntakeEvent(metrics.IntakeOK)
	w.logger.Debug("event ingested",
		"agent_id", ev.AgentID,
		"seq", ev.Seq,
		"type", ev.Type,
	)

	return nil
}
