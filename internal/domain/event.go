// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// EventRecord is an event as stored and served by the API.
type EventRecord struct {
	ID        uuid.UUID       `json:"id"`
	Seq       int64           `json:"seq"`
	AgentID   uuid.UUID       `json:"agent_id"`
	ThreadID  string          `json:"thread_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Event is the client-side view of an event as it appears on a timeline.
// A zero Timestamp means the origin did not stamp the event; the timeline
// substitutes ingestion time.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ThreadID  string          `json:"thread_id"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TimelineEvent converts a served record into its timeline view.
func (r EventRecord) TimelineEvent() Event {
	return Event{
		Type:      r.Type,
		Timestamp: r.CreatedAt,
		ThreadID:  r.ThreadID,
		Data:      r.Payload,
	}
}

// DedupKey derives the identity under which two deliveries of the same
// logical event are recognized as one. The payload is serialized in RFC 8785
// canonical form so that member order inside the payload does not change the
// identity.
func (e Event) DedupKey() string {
	payload := "null"
	if len(e.Data) > 0 {
		if canonical, err := jcs.Transform(e.Data); err == nil {
			payload = string(canonical)
		} else {
			payload = string(e.Data)
		}
	}

	ts := ""
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	var b strings.Builder
	b.Grow(len(e.Type) + len(ts) + len(e.ThreadID) + len(payload) + 3)
	b.WriteString(e.Type)
	b.WriteByte('|')
	b.WriteString(ts)
	b.WriteByte('|')
	b.WriteString(e.ThreadID)
	b.WriteByte('|')
	b.WriteString(payload)
	return b.String()
}

// Internal-only event types carried on the stream for bookkeeping but never
// shown on a timeline.
const (
	EventTokenUsage = "token_usage"
	EventHeartbeat  = "heartbeat"
	EventDebug      = "debug"
)

var internalEventTypes = map[string]struct{}{
	EventTokenUsage: {},
	EventHeartbeat:  {},
	EventDebug:      {},
}

// IsInternalEvent reports whether the type is excluded from visible timelines.
func IsInternalEvent(eventType string) bool {
	_, ok := internalEventTypes[eventType]
	return ok
}
