package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/oklog/ulid/v2"
)

type mockGreptimeClient struct {
	table *table.Table
	err   error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func TestNewEventHasULID(t *testing.T) {
	e := NewEvent("op1", "push", "Waypoint", 2, 1, OutcomeAcked)
	id, err := ulid.Parse(e.ID)
	if err != nil {
		t.Fatalf("event id %q is not a ULID: %v", e.ID, err)
	}
	if d := time.UnixMilli(int64(id.Time())).Sub(e.Timestamp); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("ULID time differs from timestamp by %v", d)
	}
	if e.Index != 2 || e.Attempt != 1 || e.Outcome != OutcomeAcked {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestFileWriterAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	base := time.Unix(100, 0).UTC()
	events := []Event{
		{ID: "a", OperationID: "op", Operation: "push", Index: -1, Attempt: -1, Outcome: OutcomeStarted, Timestamp: base},
		{ID: "b", OperationID: "op", Operation: "push", Object: "Waypoint", Index: 0, Attempt: 1, Outcome: OutcomeTimeout, Timestamp: base.Add(time.Second)},
		{ID: "c", OperationID: "op", Operation: "push", Object: "Waypoint", Index: 0, Attempt: 2, Outcome: OutcomeAcked, Timestamp: base.Add(2 * time.Second)},
		{ID: "d", OperationID: "op", Operation: "push", Index: -1, Attempt: -1, Outcome: OutcomeSucceeded, Timestamp: base.Add(3 * time.Second)},
	}
	if err := fw.WriteBatch(events[:2]); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	for _, e := range events[2:] {
		if err := fw.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	fw.Close()

	rec := &Recorder{}
	if err := ReplayLogFile(path, rec, 0); err != nil {
		t.Fatalf("ReplayLogFile: %v", err)
	}
	if got := rec.Events(); len(got) != 4 || got[1].Outcome != OutcomeTimeout {
		t.Fatalf("replayed = %+v", got)
	}
	sums := rec.Summaries()
	if len(sums) != 1 {
		t.Fatalf("summaries = %+v", sums)
	}
	s := sums[0]
	if s.Attempts != 2 || s.Retries != 1 || s.Outcome != OutcomeSucceeded || s.FailedIndex != -1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Finished.Sub(s.Started) != 3*time.Second {
		t.Fatalf("duration = %v", s.Finished.Sub(s.Started))
	}
}

func TestReplayLogRejectsGarbage(t *testing.T) {
	if err := ReplayLog(strings.NewReader("{not json"), Discard, 0); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &JSONStdoutWriter{out: buf}
	if err := w.Write(Event{ID: "x", Operation: "pull", Outcome: OutcomePulled}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Outcome != OutcomePulled {
		t.Fatalf("outcome = %v", got.Outcome)
	}
}

func TestColorStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &ColorStdoutWriter{out: buf}
	e := Event{Operation: "push", Object: "Waypoint", Index: 3, Attempt: 2, Outcome: OutcomeNacked, Timestamp: time.Unix(0, 0)}
	if err := w.Write(e); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Waypoint[3]") || !strings.Contains(out, "attempt=2") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, colorYellow) {
		t.Fatalf("expected color codes in output: %q", out)
	}
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(Event) error {
	f.n++
	return errors.New("boom")
}

func TestMultiWriterContinuesAfterError(t *testing.T) {
	bad := &failingWriter{}
	rec := &Recorder{}
	mw := NewMultiWriter(bad, nil, rec)
	if err := mw.Write(Event{ID: "1"}); err == nil {
		t.Fatalf("expected joined error")
	}
	if err := mw.WriteBatch([]Event{{ID: "2"}, {ID: "3"}}); err == nil {
		t.Fatalf("expected joined error from batch")
	}
	if len(rec.Events()) != 3 {
		t.Fatalf("recorder got %d events", len(rec.Events()))
	}
	if bad.n != 2 {
		t.Fatalf("failing writer called %d times, want 2 (stops at first batch error)", bad.n)
	}
}

func TestGreptimeWriterRows(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, table: "sync_events"}
	e := Event{ID: "e1", OperationID: "op1", Operation: "push", Object: "Waypoint", Index: 4, Attempt: 3, Outcome: OutcomeTimeout, LatencyMS: 500, Timestamp: time.Unix(0, 0).UTC()}
	if err := w.Write(e); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}
	rows := m.table.GetRows()
	if len(rows.Schema) != 10 {
		t.Fatalf("schema length = %d", len(rows.Schema))
	}
	if rows.Schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("operation_id semantic type = %v", rows.Schema[0].SemanticType)
	}
	vals := rows.Rows[0].Values
	if got := vals[0].GetStringValue(); got != "op1" {
		t.Fatalf("operation_id = %q", got)
	}
	if got := vals[4].GetI64Value(); got != 4 {
		t.Fatalf("idx = %d", got)
	}
	if got := vals[6].GetStringValue(); got != string(OutcomeTimeout) {
		t.Fatalf("outcome = %q", got)
	}
	if got := vals[7].GetF64Value(); got != 500 {
		t.Fatalf("latency = %v", got)
	}
}

func TestGreptimeWriterPropagatesError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, table: "sync_events"}
	if err := w.WriteBatch([]Event{{ID: "a", Timestamp: time.Now()}}); err == nil {
		t.Fatalf("expected error")
	}
	if err := w.WriteBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jsonl")
	for i := 0; i < 2; i++ {
		fw, err := NewFileWriter(path)
		if err != nil {
			t.Fatalf("NewFileWriter: %v", err)
		}
		_ = fw.Write(Event{ID: "x"})
		fw.Close()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Fatalf("lines = %d", n)
	}
}
