// Package tui renders push and pull progress in a terminal UI.
package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"pathplanner/internal/audit"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type logMsg struct{ line string }

type eventMsg struct{ audit.Event }

type adminMsg struct{ active bool }

type busyMsg struct{ busy bool }

type planMsg struct{ waypoints, segments int }

// setActionsMsg registers the callbacks behind the push and pull keys.
type setActionsMsg struct{ push, pull func() }

const maxLogLines = 2000

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Available reports whether stdout is an interactive terminal.
func Available() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Monitor is an audit.Writer that shows sync events in a bubbletea UI.
type Monitor struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewMonitor starts the UI on the alternate screen. When the user quits, the
// process receives an interrupt so the command shuts down like on Ctrl+C.
func NewMonitor() *Monitor {
	w := &Monitor{done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newModel()
	if width, height, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		m = m.resize(width, height)
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements audit.Writer.
func (w *Monitor) Write(e audit.Event) error {
	w.program.Send(logMsg{line: formatEvent(e)})
	w.program.Send(eventMsg{e})
	return nil
}

// WriteBatch implements audit.BatchWriter.
func (w *Monitor) WriteBatch(events []audit.Event) error {
	for _, e := range events {
		_ = w.Write(e)
	}
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *Monitor) SetAdminStatus(active bool) { w.program.Send(adminMsg{active: active}) }

// SetBusy updates the sync-in-progress indicator.
func (w *Monitor) SetBusy(busy bool) { w.program.Send(busyMsg{busy: busy}) }

// SetPlan shows the current number of local records.
func (w *Monitor) SetPlan(waypoints, segments int) {
	w.program.Send(planMsg{waypoints: waypoints, segments: segments})
}

// SetActions registers what the p and l keys trigger. Both run on their own
// goroutine.
func (w *Monitor) SetActions(push, pull func()) {
	w.program.Send(setActionsMsg{push: push, pull: pull})
}

// Close shuts down the UI and waits for the terminal to be restored.
func (w *Monitor) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

func outcomeStyle(o audit.Outcome) lipgloss.Style {
	switch o {
	case audit.OutcomeAcked, audit.OutcomeSucceeded, audit.OutcomePulled:
		return okStyle
	case audit.OutcomeNacked, audit.OutcomeTimeout:
		return warnStyle
	case audit.OutcomeFailed, audit.OutcomeCancelled:
		return errStyle
	case audit.OutcomeStarted, audit.OutcomeCreated:
		return infoStyle
	}
	return dimStyle
}

func formatEvent(e audit.Event) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(e.Timestamp.Format("15:04:05.000")))
	fmt.Fprintf(&b, " %-4s %s", e.Operation, outcomeStyle(e.Outcome).Render(fmt.Sprintf("%-9s", e.Outcome)))
	if e.Object != "" {
		fmt.Fprintf(&b, " %s[%d]", e.Object, e.Index)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, " attempt=%d", e.Attempt)
	}
	if e.LatencyMS > 0 {
		fmt.Fprintf(&b, " latency=%.1fms", e.LatencyMS)
	}
	if e.Error != "" {
		b.WriteString(" " + errStyle.Render("err="+e.Error))
	}
	return b.String()
}

type model struct {
	table      table.Model
	vp         viewport.Model
	filter     textinput.Model
	filtering  bool
	recorder   *audit.Recorder
	logs       []string
	wrap       bool
	autoscroll bool
	help       bool
	admin      bool
	busy       bool
	waypoints  int
	segments   int
	width      int
	height     int
	push, pull func()
}

func newModel() model {
	cols := []table.Column{
		{Title: "Operation", Width: 10},
		{Title: "Kind", Width: 5},
		{Title: "Outcome", Width: 10},
		{Title: "Attempts", Width: 8},
		{Title: "Retries", Width: 7},
		{Title: "Failed", Width: 24},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(6))
	fi := textinput.New()
	fi.Placeholder = "object or outcome"
	fi.Prompt = "filter> "
	return model{
		table:      t,
		vp:         viewport.New(0, 0),
		filter:     fi,
		recorder:   &audit.Recorder{},
		autoscroll: true,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) resize(width, height int) model {
	m.width, m.height = width, height
	m.table.SetWidth(width)
	m.vp.Width = width
	m.updateViewportHeight()
	m.refreshViewport()
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil
	case tea.KeyMsg:
		if m.filtering {
			switch msg.Type {
			case tea.KeyEnter, tea.KeyEsc:
				if msg.Type == tea.KeyEsc {
					m.filter.SetValue("")
				}
				m.filtering = false
				m.filter.Blur()
				m.refreshViewport()
				m.updateViewportHeight()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.refreshViewport()
			return m, cmd
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "/":
			m.filtering = true
			m.filter.Focus()
			m.updateViewportHeight()
			return m, textinput.Blink
		case "p":
			if m.push != nil && !m.busy {
				go m.push()
			}
		case "l":
			if m.pull != nil && !m.busy {
				go m.pull()
			}
		case "?", "h":
			m.help = true
		default:
			if !m.autoscroll {
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case eventMsg:
		_ = m.recorder.Write(msg.Event)
		m.refreshTable()
	case adminMsg:
		m.admin = msg.active
	case busyMsg:
		m.busy = msg.busy
	case planMsg:
		m.waypoints, m.segments = msg.waypoints, msg.segments
	case setActionsMsg:
		m.push, m.pull = msg.push, msg.pull
	}
	return m, nil
}

func (m *model) refreshTable() {
	sums := m.recorder.Summaries()
	rows := make([]table.Row, 0, len(sums))
	for _, s := range sums {
		failed := ""
		if s.FailedIndex >= 0 {
			failed = fmt.Sprintf("%s[%d]", s.Object, s.FailedIndex)
		}
		outcome := string(s.Outcome)
		if outcome == "" {
			outcome = "running"
		}
		rows = append(rows, table.Row{
			shortID(s.OperationID), s.Operation, outcome,
			strconv.Itoa(s.Attempts), strconv.Itoa(s.Retries), failed,
		})
	}
	m.table.SetRows(rows)
	m.table.GotoBottom()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m *model) refreshViewport() {
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	var lines []string
	for _, l := range m.logs {
		if needle != "" && !strings.Contains(strings.ToLower(l), needle) {
			continue
		}
		if m.wrap && m.vp.Width > 0 {
			l = wordwrap.String(l, m.vp.Width)
		}
		lines = append(lines, l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *model) updateViewportHeight() {
	used := lipgloss.Height(m.table.View()) + lipgloss.Height(m.renderBottom()) + 4
	if m.filtering {
		used++
	}
	h := m.height - used
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) View() string {
	if m.help {
		return renderHelp()
	}
	divider := dimStyle.Render(strings.Repeat("─", m.vp.Width))
	sections := []string{
		titleStyle.Render("Operations"),
		m.table.View(),
		divider,
		m.vp.View(),
	}
	if m.filtering {
		sections = append(sections, m.filter.View())
	}
	sections = append(sections, divider, m.renderBottom())
	return strings.Join(sections, "\n")
}

func indicator(on bool) string {
	if on {
		return okStyle.Render("●")
	}
	return errStyle.Render("●")
}

func (m model) renderBottom() string {
	plan := fmt.Sprintf("PLAN waypoints=%d segments=%d", m.waypoints, m.segments)
	sync := okStyle.Render("idle")
	if m.busy {
		sync = warnStyle.Render("syncing")
	}
	return fmt.Sprintf("%s | %s | Admin UI %s | Wrap %s | Scroll %s | Help ?",
		plan, sync, indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll))
}

func renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q    quit",
		" p    push the plan to the vehicle",
		" l    pull the plan from the vehicle",
		" /    filter the event log",
		" w    toggle wrap",
		" s    toggle auto-scroll",
		" h/?  toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
