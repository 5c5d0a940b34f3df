package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
log_level: debug
home:
  latitude: 47.3977
  longitude: 8.5456
  altitude: 488
sync:
  ack_timeout: 250ms
  max_attempts: 4
link:
  transport: serial
  port: /dev/ttyUSB0
  baud: 115200
audit:
  log_file: sync.jsonl
vehicle:
  communication_loss: 0.2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pathplanner.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample), "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Home.Latitude != 47.3977 || cfg.Sync.AckTimeout.Std() != 250*time.Millisecond || cfg.Sync.MaxAttempts != 4 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Link.Transport != "serial" || cfg.Link.Baud != 115200 {
		t.Errorf("link = %+v", cfg.Link)
	}
	// Defaults survive for sections the file leaves out.
	if cfg.Sync.RetryBackoff.Std() != 500*time.Millisecond || cfg.Overlay.RefreshDelay.Std() != 50*time.Millisecond {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Audit.Greptime.Table != "sync_events" {
		t.Errorf("greptime = %+v", cfg.Audit.Greptime)
	}
}

func TestLoadConfig_SchemaErrors(t *testing.T) {
	cases := map[string]string{
		"latitude out of range": "home:\n  latitude: 91\n  longitude: 0\n",
		"unknown key":           "colour: red\n",
		"bad duration":          "sync:\n  ack_timeout: soon\n",
		"zero attempts":         "sync:\n  max_attempts: 0\n",
		"bad transport":         "link:\n  transport: carrier-pigeon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), "")
			if !errors.Is(err, ErrSchema) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestLoadConfig_ExternalSchema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "strict.cue")
	if err := os.WriteFile(schema, []byte("#Config: {log_level: \"error\"}\n"), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if _, err := Load(writeConfig(t, "log_level: debug\n"), schema); err == nil {
		t.Fatalf("expected external schema to reject config")
	}
	if err := ValidateWithCue(writeConfig(t, "log_level: error\n"), schema); err != nil {
		t.Fatalf("ValidateWithCue: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "greptime:4001")
	t.Setenv("SYNC_ACK_TIMEOUT", "1s")
	t.Setenv("SYNC_MAX_ATTEMPTS", "3")
	cfg, err := Load(writeConfig(t, sample), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audit.Greptime.Endpoint != "greptime:4001" || cfg.Sync.AckTimeout.Std() != time.Second || cfg.Sync.MaxAttempts != 3 {
		t.Fatalf("env not applied: %+v", cfg)
	}

	bad := Default()
	env := map[string]string{"SYNC_MAX_ATTEMPTS": "none"}
	err = bad.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatalf("expected invalid SYNC_MAX_ATTEMPTS error")
	}
}
