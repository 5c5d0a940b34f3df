// Writers printing audit events to STDOUT
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

// JSONStdoutWriter prints events as JSON lines.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs one event in JSON format.
func (w *JSONStdoutWriter) Write(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// ColorStdoutWriter prints one human readable, colorized line per event.
type ColorStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter() *ColorStdoutWriter {
	return &ColorStdoutWriter{out: os.Stdout}
}

func outcomeColor(o Outcome) string {
	switch o {
	case OutcomeAcked, OutcomeSucceeded, OutcomePulled:
		return colorGreen
	case OutcomeNacked, OutcomeTimeout:
		return colorYellow
	case OutcomeFailed, OutcomeCancelled:
		return colorRed
	case OutcomeStarted, OutcomeCreated:
		return colorCyan
	}
	return colorGray
}

// Write outputs one event.
func (w *ColorStdoutWriter) Write(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	line := fmt.Sprintf("%s%s%s %-4s %s%-9s%s", colorGray, e.Timestamp.Format("15:04:05.000"), colorReset,
		e.Operation, outcomeColor(e.Outcome), e.Outcome, colorReset)
	if e.Object != "" {
		line += fmt.Sprintf(" %s[%d]", e.Object, e.Index)
	}
	if e.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", e.Attempt)
	}
	if e.LatencyMS > 0 {
		line += fmt.Sprintf(" latency=%.1fms", e.LatencyMS)
	}
	if e.Error != "" {
		line += fmt.Sprintf(" %serr=%s%s", colorRed, e.Error, colorReset)
	}
	_, err := fmt.Fprintln(w.out, line)
	return err
}
