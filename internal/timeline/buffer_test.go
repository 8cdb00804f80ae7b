// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/google/uuid"
)

type fakeLoader struct {
	mu     sync.Mutex
	events map[uuid.UUID][]domain.Event
	errs   map[uuid.UUID]error
	gates  map[uuid.UUID]chan struct{}
	calls  int
}

func (f *fakeLoader) LoadEvents(ctx context.Context, agentID uuid.UUID) ([]domain.Event, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[agentID]
	events := f.events[agentID]
	err := f.errs[agentID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return events, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(sec int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC)
}

func msg(thread string, sec int, text string) domain.Event {
	return domain.Event{
		Type:      "msg",
		Timestamp: ts(sec),
		ThreadID:  thread,
		Data:      json.RawMessage(`{"text":"` + text + `"}`),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func timestamps(events []domain.Event) []time.Time {
	out := make([]time.Time, len(events))
	for i, ev := range events {
		out[i] = ev.Timestamp
	}
	return out
}

func TestIngestLiveIdempotent(t *testing.T) {
	b := New(&fakeLoader{}, discardLogger())
	b.Reset(context.Background(), uuid.New())

	ev := msg("agent-1", 2, "hi")
	if !b.IngestLive(ev) {
		t.Fatal("expected first ingest to be accepted")
	}
	if b.IngestLive(ev) {
		t.Fatal("expected duplicate ingest to be rejected")
	}

	if got := len(b.Events()); got != 1 {
		t.Fatalf("expected 1 entry after duplicate ingest, got %d", got)
	}
}

func TestIngestLiveOutOfOrder(t *testing.T) {
	b := New(&fakeLoader{}, discardLogger())
	b.Reset(context.Background(), uuid.New())

	b.IngestLive(msg("agent-1", 3, "c"))
	b.IngestLive(msg("agent-1", 1, "a"))
	b.IngestLive(msg("agent-1", 2, "b"))

	got := b.Events()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, want := range []time.Time{ts(1), ts(2), ts(3)} {
		if !got[i].Timestamp.Equal(want) {
			t.Fatalf("position %d: expected %v got %v", i, want, timestamps(got))
		}
	}
}

func TestIngestLiveStableTies(t *testing.T) {
	b := New(&fakeLoader{}, discardLogger())
	b.Reset(context.Background(), uuid.New())

	b.IngestLive(msg("agent-1", 1, "first"))
	b.IngestLive(msg("agent-1", 1, "second"))
	b.IngestLive(msg("agent-1", 1, "third"))

	got := b.Events()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, text := range []string{"first", "second", "third"} {
		if string(got[i].Data) != `{"text":"`+text+`"}` {
			t.Fatalf("position %d: expected arrival order preserved, got %s", i, got[i].Data)
		}
	}
}

func TestIngestLiveDefaultsTimestamp(t *testing.T) {
	b := New(&fakeLoader{}, discardLogger())
	now := ts(42)
	b.now = func() time.Time { return now }
	b.Reset(context.Background(), uuid.New())

	b.IngestLive(domain.Event{Type: "msg", ThreadID: "agent-1"})

	got := b.Events()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(now) {
		t.Fatalf("expected ingestion-time default, got %v", got[0].Timestamp)
	}
}

func TestResetNilSubjectIsTerminal(t *testing.T) {
	b := New(&fakeLoader{}, discardLogger())
	b.Reset(context.Background(), uuid.New())
	b.IngestLive(msg("agent-1", 1, "hi"))

	b.Reset(context.Background(), uuid.Nil)

	if b.Loading() {
		t.Fatal("expected no load for nil subject")
	}
	if got := len(b.Events()); got != 0 {
		t.Fatalf("expected empty buffer, got %d entries", got)
	}

	if b.IngestLive(msg("agent-1", 2, "late")) {
		t.Fatal("expected live events ignored without a subject")
	}
	if got := len(b.Events()); got != 0 {
		t.Fatalf("expected live events ignored without a subject, got %d", got)
	}
}

func TestHistoricalMergeDedupsAcrossSources(t *testing.T) {
	agent := uuid.New()
	gate := make(chan struct{})
	loader := &fakeLoader{
		events: map[uuid.UUID][]domain.Event{
			agent: {
				msg("agent-1", 1, "hello"),
				msg("agent-1", 2, "hi"), // redelivered copy of the live event
			},
		},
		gates: map[uuid.UUID]chan struct{}{agent: gate},
	}

	b := New(loader, discardLogger())
	b.Reset(context.Background(), agent)

	if !b.Loading() {
		t.Fatal("expected loading while history outstanding")
	}

	// Live event arrives before the historical load resolves.
	b.IngestLive(msg("agent-1", 2, "hi"))

	close(gate)
	waitFor(t, func() bool { return !b.Loading() })

	got := b.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(got), timestamps(got))
	}
	if !got[0].Timestamp.Equal(ts(1)) || !got[1].Timestamp.Equal(ts(2)) {
		t.Fatalf("expected chronological order, got %v", timestamps(got))
	}
}

func TestHistoricalMergeFiltersInternalTypes(t *testing.T) {
	agent := uuid.New()
	loader := &fakeLoader{
		events: map[uuid.UUID][]domain.Event{
			agent: {
				msg("agent-1", 1, "hello"),
				{Type: domain.EventHeartbeat, Timestamp: ts(2), ThreadID: "agent-1"},
				{Type: domain.EventTokenUsage, Timestamp: ts(3), ThreadID: "agent-1", Data: json.RawMessage(`{"tokens":12}`)},
				msg("agent-1", 4, "done"),
			},
		},
	}

	b := New(loader, discardLogger())
	b.Reset(context.Background(), agent)
	waitFor(t, func() bool { return !b.Loading() })

	got := b.Events()
	if len(got) != 2 {
		t.Fatalf("expected internal types filtered, got %d entries", len(got))
	}
	for _, ev := range got {
		if domain.IsInternalEvent(ev.Type) {
			t.Fatalf("internal event leaked into timeline: %s", ev.Type)
		}
	}
}

func TestStaleLoadRejection(t *testing.T) {
	agentA := uuid.New()
	agentB := uuid.New()
	gateA := make(chan struct{})
	loader := &fakeLoader{
		events: map[uuid.UUID][]domain.Event{
			agentA: {msg("agent-a", 1, "stale")},
			agentB: {msg("agent-b", 5, "fresh")},
		},
		gates: map[uuid.UUID]chan struct{}{agentA: gateA},
	}

	b := New(loader, discardLogger())
	b.Reset(context.Background(), agentA)
	b.Reset(context.Background(), agentB)

	waitFor(t, func() bool { return !b.Loading() })

	// Let A's load resolve (its context is already canceled, but release the
	// gate too in case the cancellation lost the race).
	close(gateA)

	got := b.Events()
	if len(got) != 1 || string(got[0].Data) != `{"text":"fresh"}` {
		t.Fatalf("expected only agent B events, got %v", got)
	}
	if b.Subject() != agentB {
		t.Fatalf("expected subject to be agent B")
	}
}

func TestStaleGenerationMergeIsNoOp(t *testing.T) {
	agent := uuid.New()
	b := New(&fakeLoader{}, discardLogger())
	b.Reset(context.Background(), agent)
	waitFor(t, func() bool { return !b.Loading() })

	b.IngestLive(msg("agent-1", 2, "keep"))

	// A resolution from a superseded generation must not mutate anything.
	b.applyHistory(0, agent, []domain.Event{msg("agent-1", 1, "stale")}, nil, 0)

	got := b.Events()
	if len(got) != 1 || string(got[0].Data) != `{"text":"keep"}` {
		t.Fatalf("expected stale merge discarded, got %v", got)
	}
}

func TestHistoricalLoadErrorKeepsLiveEvents(t *testing.T) {
	agent := uuid.New()
	gate := make(chan struct{})
	loader := &fakeLoader{
		errs:  map[uuid.UUID]error{agent: errors.New("boom")},
		gates: map[uuid.UUID]chan struct{}{agent: gate},
	}

	b := New(loader, discardLogger())
	b.Reset(context.Background(), agent)
	b.IngestLive(msg("agent-1", 1, "hi"))

	close(gate)
	waitFor(t, func() bool { return !b.Loading() })

	got := b.Events()
	if len(got) != 1 {
		t.Fatalf("expected live events retained after load failure, got %d", len(got))
	}
}

func TestEventsReturnsSnapshot(t *testing.T) {
	b := New(&fakeLoader{}, discardLogger())
	b.Reset(context.Background(), uuid.New())
	b.IngestLive(msg("agent-1", 1, "hi"))

	snapshot := b.Events()
	snapshot[0].Type = "mutated"

	if got := b.Events(); got[0].Type != "msg" {
		t.Fatalf("expected snapshot isolation, got %s", got[0].Type)
	}
}

func TestOrderingInvariantUnderMixedSources(t *testing.T) {
	agent := uuid.New()
	gate := make(chan struct{})
	loader := &fakeLoader{
		events: map[uuid.UUID][]domain.Event{
			agent: {
				msg("agent-1", 4, "h4"),
				msg("agent-1", 2, "h2"),
				msg("agent-1", 6, "h6"),
			},
		},
		gates: map[uuid.UUID]chan struct{}{agent: gate},
	}

	b := New(loader, discardLogger())
	b.Reset(context.Background(), agent)

	b.IngestLive(msg("agent-1", 5, "l5"))
	b.IngestLive(msg("agent-1", 1, "l1"))
	b.IngestLive(msg("agent-1", 3, "l3"))

	close(gate)
	waitFor(t, func() bool { return !b.Loading() })

	got := b.Events()
	if len(got) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("timeline not sorted: %v", timestamps(got))
		}
	}
}
