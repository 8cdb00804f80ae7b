package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionRecord struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateSessionParams struct {
	ProjectID uuid.UUID
	Title     string
}
