// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/adiadia/agent-console/internal/metrics"
	"github.com/adiadia/agent-console/internal/transport/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ssePollInterval = 500 * time.Millisecond

type createSessionRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
}

type createAgentRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
}

type createTaskRequest struct {
	Title string `json:"title"`
}

type updateTaskStatusRequest struct {
	Status string `json:"status"`
}

type updateAgentStatusRequest struct {
	Status string `json:"status"`
}

type Deps struct {
	AgentRepo   AgentStore
	SessionRepo SessionStore
	TaskRepo    TaskStore
	EventRepo   EventStore
	Health      HealthChecker
	Logger      *slog.Logger
	APIToken    string
	Version     string
	Commit      string
	BuildDate   string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Check(r.Context()); err != nil {
				logger.Error("health check failed", "error", err)
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(deps.APIToken, logger))

		// ---------------- SESSIONS ----------------

		r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
			var req createSessionRequest
			if err := decodeJSONBody(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			projectID, err := parseOptionalUUID(req.ProjectID)
			if err != nil {
				http.Error(w, "invalid project_id", http.StatusBadRequest)
				return
			}

			session, err := deps.SessionRepo.CreateSession(r.Context(), domain.CreateSessionParams{
				ProjectID: projectID,
				Title:     req.Title,
			})
			if err != nil {
				if errors.Is(err, domain.ErrInvalidSessionTitle) {
					http.Error(w, "invalid session title", http.StatusBadRequest)
					return
				}
				logger.Error("create session failed", "error", err)
				http.Error(w, "failed to create session", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, session)
		})

		r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
			projectID, err := parseOptionalUUID(r.URL.Query().Get("project_id"))
			if err != nil {
				http.Error(w, "invalid project_id", http.StatusBadRequest)
				return
			}

			sessions, err := deps.SessionRepo.ListSessions(r.Context(), projectID)
			if err != nil {
				logger.Error("list sessions failed", "error", err)
				http.Error(w, "failed to list sessions", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"sessions": sessions,
			})
		})

		r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid session ID", http.StatusBadRequest)
				return
			}

			session, err := deps.SessionRepo.GetSession(r.Context(), sessionID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					logger.Warn("session not found", "session_id", sessionID)
					http.Error(w, "session not found", http.StatusNotFound)
					return
				}
				logger.Error("get session failed", "session_id", sessionID, "error", err)
				http.Error(w, "failed to get session", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, session)
		})

		// ---------------- TASKS ----------------

		r.Get("/sessions/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid session ID", http.StatusBadRequest)
				return
			}

			tasks, err := deps.TaskRepo.ListTasks(r.Context(), sessionID)
			if err != nil {
				logger.Error("list tasks failed", "session_id", sessionID, "error", err)
				http.Error(w, "failed to list tasks", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, struct {
				SessionID string              `json:"session_id"`
				Tasks     []domain.TaskRecord `json:"tasks"`
			}{
				SessionID: sessionID.String(),
				Tasks:     tasks,
			})
		})

		r.Post("/sessions/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid session ID", http.StatusBadRequest)
				return
			}

			var req createTaskRequest
			if err := decodeJSONBody(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			task, err := deps.TaskRepo.CreateTask(r.Context(), domain.CreateTaskParams{
				SessionID: sessionID,
				Title:     req.Title,
			})
			if err != nil {
				if errors.Is(err, domain.ErrInvalidTaskTitle) {
					http.Error(w, "invalid task title", http.StatusBadRequest)
					return
				}
				logger.Error("create task failed", "session_id", sessionID, "error", err)
				http.Error(w, "failed to create task", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, task)
		})

		r.Post("/tasks/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			taskID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid task ID", http.StatusBadRequest)
				return
			}

			var req updateTaskStatusRequest
			if err := decodeJSONBody(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			status := domain.TaskStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
			if err := deps.TaskRepo.UpdateTaskStatus(r.Context(), taskID, status); err != nil {
				if errors.Is(err, domain.ErrInvalidTaskStatus) {
					http.Error(w, "invalid task status", http.StatusBadRequest)
					return
				}
				if errors.Is(err, pgx.ErrNoRows) {
					logger.Warn("task not found", "task_id", taskID)
					http.Error(w, "task not found", http.StatusNotFound)
					return
				}
				logger.Error("update task status failed", "task_id", taskID, "error", err)
				http.Error(w, "failed to update task", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]string{
				"id":     taskID.String(),
				"status": string(status),
			})
		})

		// ---------------- AGENTS ----------------

		r.Post("/agents", func(w http.ResponseWriter, r *http.Request) {
			var req createAgentRequest
			if err := decodeJSONBody(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			sessionID, err := parseOptionalUUID(req.SessionID)
			if err != nil || sessionID == uuid.Nil {
				http.Error(w, "invalid session_id", http.StatusBadRequest)
				return
			}

			agent, err := deps.AgentRepo.CreateAgent(r.Context(), domain.CreateAgentParams{
				SessionID: sessionID,
				Name:      req.Name,
				Model:     req.Model,
			})
			if err != nil {
				if errors.Is(err, domain.ErrInvalidAgentName) {
					http.Error(w, "invalid agent name", http.StatusBadRequest)
					return
				}
				logger.Error("create agent failed", "error", err)
				http.Error(w, "failed to create agent", http.StatusInternalServerError)
				return
			}

			logger.Info("agent created via API", "agent_id", agent.ID)
			writeJSON(w, http.StatusOK, agent)
		})

		r.Get("/agents", func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := parseOptionalUUID(r.URL.Query().Get("session_id"))
			if err != nil {
				http.Error(w, "invalid session_id", http.StatusBadRequest)
				return
			}

			agents, err := deps.AgentRepo.ListAgents(r.Context(), sessionID)
			if err != nil {
				logger.Error("list agents failed", "error", err)
				http.Error(w, "failed to list agents", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"agents": agents,
			})
		})

		r.Get("/agents/{id}", func(w http.ResponseWriter, r *http.Request) {
			agentID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid agent ID", http.StatusBadRequest)
				return
			}

			agent, err := deps.AgentRepo.GetAgent(r.Context(), agentID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					logger.Warn("agent not found", "agent_id", agentID)
					http.Error(w, "agent not found", http.StatusNotFound)
					return
				}
				logger.Error("get agent failed", "agent_id", agentID, "error", err)
				http.Error(w, "failed to get agent", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, agent)
		})

		r.Post("/agents/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			agentID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid agent ID", http.StatusBadRequest)
				return
			}

			var req updateAgentStatusRequest
			if err := decodeJSONBody(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			status := domain.AgentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
			if err := deps.AgentRepo.UpdateAgentStatus(r.Context(), agentID, status); err != nil {
				if errors.Is(err, domain.ErrInvalidAgentStatus) {
					http.Error(w, "invalid agent status", http.StatusBadRequest)
					return
				}
				if errors.Is(err, pgx.ErrNoRows) {
					logger.Warn("agent not found", "agent_id", agentID)
					http.Error(w, "agent not found", http.StatusNotFound)
					return
				}
				logger.Error("update agent status failed", "agent_id", agentID, "error", err)
				http.Error(w, "failed to update agent", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]string{
				"id":     agentID.String(),
				"status": string(status),
			})
		})

		// ---------------- HISTORICAL EVENTS ----------------

		r.Get("/agents/{id}/events", func(w http.ResponseWriter, r *http.Request) {
			agentID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid agent ID", http.StatusBadRequest)
				return
			}

			if _, err := deps.AgentRepo.GetAgent(r.Context(), agentID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "agent not found", http.StatusNotFound)
					return
				}
				logger.Error("events get agent failed", "agent_id", agentID, "error", err)
				http.Error(w, "failed to list events", http.StatusInternalServerError)
				return
			}

			events, err := deps.EventRepo.ListEvents(r.Context(), agentID)
			if err != nil {
				logger.Error("list events failed", "agent_id", agentID, "error", err)
				http.Error(w, "failed to list events", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, struct {
				AgentID string               `json:"agent_id"`
				Events  []domain.EventRecord `json:"events"`
			}{
				AgentID: agentID.String(),
				Events:  events,
			})
		})

		// ---------------- STREAM EVENTS (SSE) ----------------

		r.Get("/agents/{id}/events/stream", func(w http.ResponseWriter, r *http.Request) {
			agentID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid agent ID", http.StatusBadRequest)
				return
			}

			if _, err := deps.AgentRepo.GetAgent(r.Context(), agentID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "agent not found", http.StatusNotFound)
					return
				}
				logger.Error("sse get agent failed", "agent_id", agentID, "error", err)
				http.Error(w, "failed to stream events", http.StatusInternalServerError)
				return
			}

			cursor, err := parseSinceSeq(r.URL.Query().Get("since_seq"))
			if err != nil {
				http.Error(w, "invalid since_seq", http.StatusBadRequest)
				return
			}

			flusher, ok := w.(http.Flusher)
			if !ok {
				http.Error(w, "streaming unsupported", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			flusher.Flush()

			writeEvents := func() error {
				events, err := deps.EventRepo.ListEventsAfter(r.Context(), agentID, cursor)
				if err != nil {
					return err
				}

				for _, ev := range events {
					payload, err := json.Marshal(ev)
					if err != nil {
						return err
					}
					if _, err := fmt.Fprintf(w, "event: agent_event\ndata: %s\n\n", payload); err != nil {
						return err
					}
					flusher.Flush()
					cursor = ev.Seq
				}

				return nil
			}

			if err := writeEvents(); err != nil {
				logger.Error("sse initial write failed", "agent_id", agentID, "error", err)
				return
			}

			ticker := time.NewTicker(ssePollInterval)
			defer ticker.Stop()

			for {
				select {
				case <-r.Context().Done():
					return
				case <-ticker.C:
					if err := writeEvents(); err != nil {
						logger.Error("sse write failed", "agent_id", agentID, "error", err)
						return
					}
				}
			}
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

func parseOptionalUUID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func parseSinceSeq(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, errors.New("invalid since_seq")
	}
	return seq, nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
