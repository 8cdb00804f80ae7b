// SPDX-License-Identifier: Apache-2.0

// Package api is the console-side client of the agent API. Its LoadEvents
// call is the historical load behind the timeline buffer and honors context
// cancellation so a superseded load can be aborted mid-flight.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// LoadEvents fetches the full event history of an agent and converts it to
// timeline events. Implements the timeline HistoryLoader.
func (c *Client) LoadEvents(ctx context.Context, agentID uuid.UUID) ([]domain.Event, error) {
	var resp struct {
		AgentID string               `json:"agent_id"`
		Events  []domain.EventRecord `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/agents/"+agentID.String()+"/events", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Event, 0, len(resp.Events))
	for _, rec := range resp.Events {
		out = append(out, rec.TimelineEvent())
	}
	return out, nil
}

func (c *Client) ListAgents(ctx context.Context, sessionID uuid.UUID) ([]domain.AgentRecord, error) {
	path := "/agents"
	if sessionID != uuid.Nil {
		path += "?session_id=" + sessionID.String()
	}

	var resp struct {
		Agents []domain.AgentRecord `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

func (c *Client) GetAgent(ctx context.Context, id uuid.UUID) (domain.AgentRecord, error) {
	var agent domain.AgentRecord
	if err := c.do(ctx, http.MethodGet, "/agents/"+id.String(), nil, &agent); err != nil {
		return domain.AgentRecord{}, err
	}
	return agent, nil
}

func (c *Client) ListSessions(ctx context.Context, projectID uuid.UUID) ([]domain.SessionRecord, error) {
	path := "/sessions"
	if projectID != uuid.Nil {
		path += "?project_id=" + projectID.String()
	}

	var resp struct {
		Sessions []domain.SessionRecord `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) ListTasks(ctx context.Context, sessionID uuid.UUID) ([]domain.TaskRecord, error) {
	var resp struct {
		SessionID string              `json:"session_id"`
		Tasks     []domain.TaskRecord `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID.String()+"/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, sessionID uuid.UUID, title string) (domain.TaskRecord, error) {
	var task domain.TaskRecord
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID.String()+"/tasks", body, &task); err != nil {
		return domain.TaskRecord{}, err
	}
	return task, nil
}

func (c *Client) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status domain.TaskStatus) error {
	body := map[string]string{"status": string(status)}
	return c.do(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/status", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
