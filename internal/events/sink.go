// Package events carries the audit trail: every successful mutating
// operation on a ledger, the allocator or the member registry publishes one
// event describing what happened. The sink is a collaborator; publish
// failures never fail the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event is one audit record.
type Event struct {
	Category  string    `json:"category"`  // ledger kind or component, e.g. "bills", "split"
	Operation string    `json:"operation"` // e.g. "created", "settled", "renewed"
	SubjectID uint64    `json:"subject_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Common operation names.
const (
	OpCreated    = "created"
	OpSettled    = "settled"
	OpRenewed    = "renewed"
	OpConfigured = "configured"
	OpCalculated = "calculated"
	OpAdded      = "added"
	OpUpdated    = "updated"
	OpDue        = "due"
)

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Sink receives audit events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// NopSink discards every event. Used when no broker is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// MemSink records events in memory for tests.
type MemSink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemSink() *MemSink {
	return &MemSink{}
}

func (s *MemSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (s *MemSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
