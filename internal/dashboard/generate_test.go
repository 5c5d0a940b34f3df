package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	t.Setenv("PROMETHEUS_DATASOURCE_UID", "")
	if err := Render(t.TempDir(), Params{}); err == nil {
		t.Fatalf("expected error for missing env vars")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")
	t.Setenv("PROMETHEUS_DATASOURCE_UID", "uid2")

	dir := t.TempDir()
	if err := Render(dir, Params{Table: "planner_events"}); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "sync-events.json"))
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if !strings.Contains(string(b), "uid1") || !strings.Contains(string(b), "FROM planner_events") {
		t.Fatalf("greptime dashboard not rendered: %s", b)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("dashboard is not valid JSON: %v", err)
	}

	b, err = os.ReadFile(filepath.Join(dir, "sync-metrics.json"))
	if err != nil {
		t.Fatalf("read metrics dashboard: %v", err)
	}
	if !strings.Contains(string(b), "uid2") {
		t.Fatalf("prometheus uid not rendered")
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("metrics dashboard is not valid JSON: %v", err)
	}
}
