package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pathplanner/internal/audit"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func event(op string, index, attempt int, outcome audit.Outcome) audit.Event {
	e := audit.NewEvent("3f2a9c1e-0000", op, "Waypoint", index, attempt, outcome)
	e.Timestamp = time.Unix(0, 0).UTC()
	return e
}

func TestMonitorMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &Monitor{program: p}
	if err := w.Write(event("push", 0, 1, audit.OutcomeAcked)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	if _, ok := p.msgs[1].(eventMsg); !ok {
		t.Fatalf("expected eventMsg, got %T", p.msgs[1])
	}
	w.SetAdminStatus(true)
	if msg, ok := p.msgs[2].(adminMsg); !ok || !msg.active {
		t.Fatalf("expected adminMsg, got %#v", p.msgs[2])
	}
	w.SetBusy(true)
	if _, ok := p.msgs[3].(busyMsg); !ok {
		t.Fatalf("expected busyMsg, got %T", p.msgs[3])
	}
}

func apply(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		mi, _ := m.Update(msg)
		m = mi.(model)
	}
	return m
}

func TestOperationTable(t *testing.T) {
	m := apply(t, newModel(),
		tea.WindowSizeMsg{Width: 100, Height: 30},
		eventMsg{event("push", -1, -1, audit.OutcomeStarted)},
		eventMsg{event("push", 0, 1, audit.OutcomeTimeout)},
		eventMsg{event("push", 0, 2, audit.OutcomeAcked)},
		eventMsg{event("push", 1, 1, audit.OutcomeNacked)},
		eventMsg{event("push", 1, -1, audit.OutcomeFailed)},
	)
	rows := m.table.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	want := []string{"3f2a9c1e", "push", "failed", "3", "2", "Waypoint[1]"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("cell %d = %q, want %q", i, rows[0][i], cell)
		}
	}
}

func TestWrapToggle(t *testing.T) {
	m := apply(t, newModel(), tea.WindowSizeMsg{Width: 20, Height: 40})
	m = apply(t, m, logMsg{line: "one two three four five six"})
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	m = apply(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestFilter(t *testing.T) {
	m := apply(t, newModel(),
		tea.WindowSizeMsg{Width: 80, Height: 40},
		logMsg{line: "push acked Waypoint[0]"},
		logMsg{line: "push nacked PathSegmentDescriptor[0]"},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}},
	)
	if !m.filtering {
		t.Fatalf("filter not focused")
	}
	m = apply(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("nacked")}, tea.KeyMsg{Type: tea.KeyEnter})
	view := m.vp.View()
	if strings.Contains(view, "Waypoint[0]") || !strings.Contains(view, "PathSegmentDescriptor[0]") {
		t.Fatalf("filtered view = %q", view)
	}
}

func TestPushKeyUsesAction(t *testing.T) {
	called := make(chan struct{}, 1)
	m := apply(t, newModel(), setActionsMsg{push: func() { called <- struct{}{} }})
	m = apply(t, m, busyMsg{busy: true}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	select {
	case <-called:
		t.Fatalf("push started while busy")
	case <-time.After(20 * time.Millisecond):
	}
	apply(t, m, busyMsg{busy: false}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("push action not called")
	}
}
