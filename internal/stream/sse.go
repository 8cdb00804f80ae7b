// SPDX-License-Identifier: Apache-2.0

// Package stream consumes the backend's server-sent event feed and hands
// decoded event records to a caller-supplied handler. The subscriber
// reconnects with backoff and resumes from the last sequence it delivered,
// so a dropped connection never loses or replays events for the caller.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
)

const (
	eventName = "agent_event"

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Handler receives each event record in arrival order. A non-nil error
// stops the subscription.
type Handler func(domain.EventRecord) error

// Subscriber maintains a long-lived connection to an agent's event stream.
type Subscriber struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSubscriber builds a subscriber against the given backend base URL. The
// HTTP client carries no timeout: stream connections are expected to stay
// open until the context is cancelled.
func NewSubscriber(baseURL, token string, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Subscribe streams events for the agent, starting after sinceSeq, until ctx
// is cancelled or the handler returns an error. Connection failures are
// retried with exponential backoff; the cursor advances as events are
// delivered so reconnects resume where the stream left off.
func (s *Subscriber) Subscribe(ctx context.Context, agentID uuid.UUID, sinceSeq int64, handler Handler) error {
	if agentID == uuid.Nil {
		return errors.New("stream: agent id is required")
	}
	if handler == nil {
		return errors.New("stream: handler is required")
	}

	cursor := sinceSeq
	backoff := initialBackoff

	for {
		err := s.consume(ctx, agentID, &cursor, handler)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ctx.Err()
		}
		var stop *handlerError
		if errors.As(err, &stop) {
			return stop.err
		}

		s.logger.Warn("event stream disconnected, retrying",
			"agent_id", agentID,
			"cursor", cursor,
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// handlerError wraps an error returned by the caller's handler so Subscribe
// can distinguish it from transport failures and stop instead of retrying.
type handlerError struct {
	err error
}

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }

func (s *Subscriber) consume(ctx context.Context, agentID uuid.UUID, cursor *int64, handler Handler) error {
	endpoint := fmt.Sprintf("%s/agents/%s/events/stream?since_seq=%d", s.baseURL, agentID, *cursor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return uerr.Err
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream: unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	// bufio.Reader rather than a Scanner: event payloads are unbounded and a
	// Scanner line cap would wedge the stream on the first oversized frame.
	reader := bufio.NewReader(resp.Body)

	var name string
	var data bytes.Buffer
	for {
		raw, readErr := reader.ReadBytes('\n')
		line := bytes.TrimRight(raw, "\r\n")
		switch {
		case len(line) == 0:
			if name == eventName && data.Len() > 0 {
				var rec domain.EventRecord
				if err := json.Unmarshal(data.Bytes(), &rec); err != nil {
					s.logger.Warn("dropping undecodable stream event", "agent_id", agentID, "error", err)
				} else {
					if err := handler(rec); err != nil {
						return &handlerError{err: err}
					}
					if rec.Seq > *cursor {
						*cursor = rec.Seq
					}
				}
			}
			name = ""
			data.Reset()
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimSpace(line[len("data:"):]))
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(readErr, io.EOF) {
				return errors.New("stream: connection closed by server")
			}
			return readErr
		}
	}
}
