package audit

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// ReplayLog replays events from r to writer. A speed >0 scales the original
// spacing between events; speed <= 0 replays without delay.
func ReplayLog(r io.Reader, writer Writer, speed float64) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !prev.IsZero() && speed > 0 {
			diff := e.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		if err := writer.Write(e); err != nil {
			return err
		}
		prev = e.Timestamp
	}
}

// ReplayLogFile opens a file and replays its events.
func ReplayLogFile(path string, writer Writer, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}

// OperationSummary aggregates the events of one push or pull.
type OperationSummary struct {
	OperationID string    `json:"operation_id"`
	Operation   string    `json:"operation"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Attempts    int       `json:"attempts"`
	Retries     int       `json:"retries"`
	Outcome     Outcome   `json:"outcome"`
	FailedIndex int       `json:"failed_index"`
	Object      string    `json:"object,omitempty"`
}

// Recorder keeps every event in memory and summarizes them per operation.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Write stores e.
func (r *Recorder) Write(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Summaries groups the recorded events by operation, oldest first.
func (r *Recorder) Summaries() []OperationSummary {
	byID := make(map[string]*OperationSummary)
	for _, e := range r.Events() {
		s, ok := byID[e.OperationID]
		if !ok {
			s = &OperationSummary{OperationID: e.OperationID, Operation: e.Operation, Started: e.Timestamp, FailedIndex: -1}
			byID[e.OperationID] = s
		}
		if e.Timestamp.Before(s.Started) {
			s.Started = e.Timestamp
		}
		if e.Timestamp.After(s.Finished) {
			s.Finished = e.Timestamp
		}
		switch e.Outcome {
		case OutcomeAcked:
			s.Attempts++
		case OutcomeNacked, OutcomeTimeout:
			s.Attempts++
			s.Retries++
		case OutcomeFailed, OutcomeCancelled:
			s.Outcome = e.Outcome
			if e.Index >= 0 {
				s.FailedIndex = e.Index
				s.Object = e.Object
			}
		case OutcomeSucceeded, OutcomePulled:
			s.Outcome = e.Outcome
		}
	}
	out := make([]OperationSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}
