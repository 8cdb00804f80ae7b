// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
)

type AgentStore interface {
	CreateAgent(ctx context.Context, params domain.CreateAgentParams) (domain.AgentRecord, error)
	GetAgent(ctx context.Context, id uuid.UUID) (domain.AgentRecord, error)
	ListAgents(ctx context.Context, sessionID uuid.UUID) ([]domain.AgentRecord, error)
	UpdateAgentStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, params domain.CreateSessionParams) (domain.SessionRecord, error)
	GetSession(ctx context.Context, id uuid.UUID) (domain.SessionRecord, error)
	ListSessions(ctx context.Context, projectID uuid.UUID) ([]domain.SessionRecord, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, params domain.CreateTaskParams) (domain.TaskRecord, error)
	ListTasks(ctx context.Context, sessionID uuid.UUID) ([]domain.TaskRecord, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error
}

type EventStore interface {
	ListEvents(ctx context.Context, agentID uuid.UUID) ([]domain.EventRecord, error)
	ListEventsAfter(ctx context.Context, agentID uuid.UUID, afterSeq int64) ([]domain.EventRecord, error)
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
