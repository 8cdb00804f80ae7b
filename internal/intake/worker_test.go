// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
)

type fakeSource struct {
	messages [][]byte
	err      error
	pops     int
}

func (f *fakeSource) Pop(ctx context.Context) ([]byte, error) {
	f.pops++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.messages) == 0 {
		return nil, nil
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

type fakeWriter struct {
	inserted []domain.EventRecord
	err      error
}

func (f *fakeWriter) InsertEvent(ctx context.Context, agentID uuid.UUID, threadID string, eventType string, payload json.RawMessage) (domain.EventRecord, error) {
	if f.err != nil {
		return domain.EventRecord{}, f.err
	}
	ev := domain.EventRecord{
		ID:       uuid.New(),
		Seq:      int64(len(f.inserted) + 1),
		AgentID:  agentID,
		ThreadID: threadID,
		Type:     eventType,
		Payload:  payload,
	}
	f.inserted = append(f.inserted, ev)
	return ev, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDefaultsLogger(t *testing.T) {
	w := New(Deps{})
	if w.logger == nil {
		t.Fatal("expected default logger to be set")
	}
}

func TestProcessOncePersistsEvent(t *testing.T) {
	agentID := uuid.New()
	msg, _ := json.Marshal(map[string]any{
		"agent_id":  agentID,
		"thread_id": "agent-1",
		"type":      "msg",
		"payload":   map[string]string{"text": "hi"},
	})

	writer := &fakeWriter{}
	w := New(Deps{
		Source: &fakeSource{messages: [][]byte{msg}},
		Events: writer,
		Logger: discardLogger(),
	})

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(writer.inserted))
	}
	if writer.inserted[0].AgentID != agentID || writer.inserted[0].Type != "msg" {
		t.Fatalf("unexpected inserted event: %+v", writer.inserted[0])
	}
}

func TestProcessOnceSkipsMalformedJSON(t *testing.T) {
	writer := &fakeWriter{}
	w := New(Deps{
		Source: &fakeSource{messages: [][]byte{[]byte("{not json")}},
		Events: writer,
		Logger: discardLogger(),
	})

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("expected malformed message to be swallowed, got %v", err)
	}
	if len(writer.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(writer.inserted))
	}
}

func TestProcessOnceSkipsIncompleteEnvelope(t *testing.T) {
	msg, _ := json.Marshal(map[string]any{
		"thread_id": "agent-1",
		"type":      "", // missing type and agent_id
	})

	writer := &fakeWriter{}
	w := New(Deps{
		Source: &fakeSource{messages: [][]byte{msg}},
		Events: writer,
		Logger: discardLogger(),
	})

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("expected incomplete message to be swallowed, got %v", err)
	}
	if len(writer.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(writer.inserted))
	}
}

func TestProcessOnceEmptyQueue(t *testing.T) {
	writer := &fakeWriter{}
	w := New(Deps{
		Source: &fakeSource{},
		Events: writer,
		Logger: discardLogger(),
	})

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(writer.inserted))
	}
}

func TestProcessOncePropagatesInsertError(t *testing.T) {
	agentID := uuid.New()
	msg, _ := json.Marshal(map[string]any{
		"agent_id": agentID,
		"type":     "msg",
	})

	w := New(Deps{
		Source: &fakeSource{messages: [][]byte{msg}},
		Events: &fakeWriter{err: errors.New("insert failed")},
		Logger: discardLogger(),
	})

	if err := w.ProcessOnce(context.Background()); err == nil {
		t.Fatal("expected insert error to propagate")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(Deps{
		Source: &fakeSource{},
		Events: &fakeWriter{},
		Logger: discardLogger(),
	})

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunPacesRetriesOnPersistentError(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	w := New(Deps{
		Source: source,
		Events: &fakeWriter{},
		Logger: discardLogger(),
	})
	w.retryDelay = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	// 100ms at 20ms per retry allows a handful of attempts; an unpaced loop
	// would reach tens of thousands.
	if source.pops > 10 {
		t.Fatalf("expected retries to be paced, got %d pops in 100ms", source.pops)
	}
	if source.pops == 0 {
		t.Fatal("expected at least one pop attempt")
	}
}

func TestNewConsumerRequiresKey(t *testing.T) {
	if _, err := NewConsumer(ConsumerConfig{Addr: "127.0.0.1:6379"}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c, err := NewConsumer(ConsumerConfig{Key: "agent:events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if c.key != "agent:events" {
		t.Fatalf("expected key to be preserved, got %s", c.key)
	}
	if c.blockTimeout == 0 {
		t.Fatal("expected default block timeout")
	}
}
