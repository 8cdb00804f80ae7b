// SPDX-License-Identifier: Apache-2.0

// Package timeline maintains a deduplicated, chronologically ordered view of
// one agent's events, fed by a one-time historical load and a live push
// stream that may race or overlap.
package timeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adiadia/agent-console/internal/domain"
	"github.com/adiadia/agent-console/internal/metrics"
	"github.com/google/uuid"
)

// HistoryLoader fetches the past events of an agent. Implementations must
// honor context cancellation; a canceled load resolves with ctx.Err().
type HistoryLoader interface {
	LoadEvents(ctx context.Context, agentID uuid.UUID) ([]domain.Event, error)
}

// Buffer owns the timeline state for the currently selected agent. All
// mutation goes through Reset, IngestLive, and the historical merge; a single
// mutex guards the seen set and the event slice.
type Buffer struct {
	loader HistoryLoader
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	subject    uuid.UUID
	seen       map[string]struct{}
	events     []domain.Event
	loading    bool
	generation uint64
	cancelLoad context.CancelFunc
}

func New(loader HistoryLoader, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Buffer{
		loader: loader,
		logger: logger,
		now:    time.Now,
		seen:   make(map[string]struct{}),
	}
}

// Reset discards all buffered state. With uuid.Nil the buffer stays empty and
// no load is started. Otherwise a historical load for the new subject is
// scheduled; any load still in flight for the previous subject is aborted and
// its eventual resolution is discarded.
func (b *Buffer) Reset(ctx context.Context, subject uuid.UUID) {
	b.mu.Lock()

	if b.cancelLoad != nil {
		b.cancelLoad()
		b.cancelLoad = nil
	}

	b.generation++
	gen := b.generation
	b.subject = subject
	b.seen = make(map[string]struct{})
	b.events = nil

	if subject == uuid.Nil {
		b.loading = false
		b.mu.Unlock()
		return
	}

	b.loading = true
	loadCtx, cancel := context.WithCancel(ctx)
	b.cancelLoad = cancel
	b.mu.Unlock()

	go b.loadHistory(loadCtx, gen, subject)
}

// IngestLive merges one pushed event into the timeline and reports whether
// it was new. Duplicate deliveries are no-ops. The event is placed after the
// rightmost entry whose timestamp is not later than its own, so equal
// timestamps keep arrival order.
func (b *Buffer) IngestLive(ev domain.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subject == uuid.Nil {
		return false
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	key := ev.DedupKey()
	if _, dup := b.seen[key]; dup {
		metrics.IncTimelineDuplicate(metrics.SourceLive)
		return false
	}
	b.seen[key] = struct{}{}

	// Scan from the tail: live events typically arrive newest-last.
	i := len(b.events)
	for i > 0 && b.events[i-1].Timestamp.After(ev.Timestamp) {
		i--
	}

	b.events = append(b.events, domain.Event{})
	copy(b.events[i+1:], b.events[i:])
	b.events[i] = ev

	metrics.IncTimelineEvent(metrics.SourceLive)
	return true
}

// Events returns a snapshot of the current timeline in chronological order.
func (b *Buffer) Events() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Loading reports whether a historical load for the current subject is still
// outstanding.
func (b *Buffer) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Subject returns the agent the buffer is currently bound to, or uuid.Nil.
func (b *Buffer) Subject() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subject
}

func (b *Buffer) loadHistory(ctx context.Context, gen uint64, subject uuid.UUID) {
	started := time.Now()
	events, err := b.loader.LoadEvents(ctx, subject)
	b.applyHistory(gen, subject, events, err, time.Since(started))
}

// applyHistory merges the resolution of a historical load. Resolutions from a
// superseded generation are discarded without touching current state.
func (b *Buffer) applyHistory(gen uint64, subject uuid.UUID, loaded []domain.Event, err error, took time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		metrics.IncHistoryLoad(metrics.LoadStale)
		return
	}

	b.loading = false
	b.cancelLoad = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			metrics.IncHistoryLoad(metrics.LoadAborted)
			return
		}
		b.logger.Error("history load failed", "agent_id", subject, "error", err)
		metrics.IncHistoryLoad(metrics.LoadError)
		return
	}

	staged := 0
	for _, ev := range loaded {
		if domain.IsInternalEvent(ev.Type) {
			continue
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = b.now()
		}

		key := ev.DedupKey()
		if _, dup := b.seen[key]; dup {
			metrics.IncTimelineDuplicate(metrics.SourceHistory)
			continue
		}
		b.seen[key] = struct{}{}
		b.events = append(b.events, ev)
		metrics.IncTimelineEvent(metrics.SourceHistory)
		staged++
	}

	sort.SliceStable(b.events, func(i, j int) bool {
		return b.events[i].Timestamp.Before(b.events[j].Timestamp)
	})

	metrics.IncHistoryLoad(metrics.LoadOK)
	metrics.ObserveHistoryLoadDuration(took)

	b.logger.Debug("history merged",
		"agent_id", subject,
		"loaded", len(loaded),
		"staged", staged,
		"timeline", len(b.events),
	)
}
