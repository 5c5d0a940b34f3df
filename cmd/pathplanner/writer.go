package main

import (
	"pathplanner/internal/audit"
	"pathplanner/internal/config"
	"pathplanner/internal/tui"
)

// newEventWriters sets up the audit writers based on flags and config.
// It returns the writer and a cleanup function to close any resources.
func newEventWriters(cfg *config.Config, printOnly bool, logFile string) (audit.Writer, func(), error) {
	cleanup := func() {}

	writer, err := baseWriter(cfg, printOnly)
	if err != nil {
		return nil, nil, err
	}
	if logFile == "" {
		return writer, cleanup, nil
	}

	fw, err := audit.NewFileWriter(logFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup = func() { fw.Close() }
	return audit.NewMultiWriter(writer, fw), cleanup, nil
}

// baseWriter writes to GreptimeDB when an endpoint is configured, otherwise
// to STDOUT: colorized on a terminal, JSON lines when piped.
func baseWriter(cfg *config.Config, printOnly bool) (audit.Writer, error) {
	if printOnly || cfg == nil || cfg.Audit.Greptime.Endpoint == "" {
		if tui.Available() {
			return audit.NewColorStdoutWriter(), nil
		}
		return audit.NewJSONStdoutWriter(), nil
	}
	g := cfg.Audit.Greptime
	return audit.NewGreptimeDBWriter(g.Endpoint, g.Database, g.Table)
}
