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

type TaskRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTaskRepository(pool *pgxpool.Pool, logger *slog.Logger) *TaskRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *TaskRepository) CreateTask(ctx context.Context, params domain.CreateTaskParams) (domain.TaskRecord, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return domain.TaskRecord{}, domain.ErrInvalidTaskTitle
	}

	task := domain.TaskRecord{
		ID:        uuid.New(),
		SessionID: params.SessionID,
		Title:     title,
		Status:    domain.TaskOpen,
	}

	if err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, session_id, title, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`,
		task.ID,
		task.SessionID,
		task.Title,
		task.Status,
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		r.logger.Error("insert task failed",
			"session_id", params.SessionID,
			"error", err,
		)
		return domain.TaskRecord{}, err
	}

	r.logger.Info("task created", "task_id", task.ID, "session_id", task.SessionID)
	return task, nil
}

func (r *TaskRepository) ListTasks(ctx context.Context, sessionID uuid.UUID) ([]domain.TaskRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, title, status, created_at, updated_at
		FROM tasks
		WHERE session_id=$1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		r.logger.Error("list tasks query failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TaskRecord, 0, 4)
	for rows.Next() {
		var task domain.TaskRecord
		if err := rows.Scan(
			&task.ID,
			&task.SessionID,
			&task.Title,
			&task.Status,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			r.logger.Error("scan task row failed", "error", err)
			return nil, err
		}
		out = append(out, task)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("tasks rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}

func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	switch status {
	case domain.TaskOpen, domain.TaskInProgress, domain.TaskDone, domain.TaskArchived:
	default:
		return domain.ErrInvalidTaskStatus
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, status)
	if err != nil {
		r.logger.Error("update task status failed", "task_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows
	}

	r.logger.Info("task status updated", "task_id", id, "status", status)
	return nil
}
