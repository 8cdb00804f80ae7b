package domain

import (
	"time"

	"github.com/google/uuid"
)

type AgentStatus string

const (
	AgentIdle    AgentStatus = "IDLE"
	AgentRunning AgentStatus = "RUNNING"
	AgentWaiting AgentStatus = "WAITING_INPUT"
	AgentError   AgentStatus = "ERROR"
	AgentOffline AgentStatus = "OFFLINE"
)

type AgentRecord struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Name      string      `json:"name"`
	Model     string      `json:"model"`
	Status    AgentStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

type CreateAgentParams struct {
	SessionID uuid.UUID
	Name      string
	Model     string
}
