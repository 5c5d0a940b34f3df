// Audit trail of push and pull operations
package audit

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Outcome classifies an audit event.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeCreated   Outcome = "created"
	OutcomeAcked     Outcome = "acked"
	OutcomeNacked    Outcome = "nacked"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePulled    Outcome = "pulled"
)

// Event is one step of a push or pull. Index and Attempt are -1 for events
// that describe the whole operation.
type Event struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	Operation   string    `json:"operation"`
	Object      string    `json:"object,omitempty"`
	Index       int       `json:"index"`
	Attempt     int       `json:"attempt"`
	Outcome     Outcome   `json:"outcome"`
	LatencyMS   float64   `json:"latency_ms,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"ts"`
}

// NewEvent returns an event stamped with the current time and a fresh ULID.
func NewEvent(operationID, operation, object string, index, attempt int, outcome Outcome) Event {
	now := time.Now().UTC()
	return Event{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		OperationID: operationID,
		Operation:   operation,
		Object:      object,
		Index:       index,
		Attempt:     attempt,
		Outcome:     outcome,
		Timestamp:   now,
	}
}

// Writer records audit events.
type Writer interface {
	Write(Event) error
}

// BatchWriter can record several events in one call.
type BatchWriter interface {
	Writer
	WriteBatch([]Event) error
}

// WriteBatch writes events through w, using its batch method when it has one.
func WriteBatch(w Writer, events []Event) error {
	if bw, ok := w.(BatchWriter); ok {
		return bw.WriteBatch(events)
	}
	for _, e := range events {
		if err := w.Write(e); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every event.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write(Event) error { return nil }
