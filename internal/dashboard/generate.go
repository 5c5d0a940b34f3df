// Grafana dashboards for the sync event table and the sync metrics
package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

var templateFiles = []string{
	"sync-events.json.tmpl",
	"sync-metrics.json.tmpl",
}

// Params fills the dashboard templates.
type Params struct {
	// Table is the GreptimeDB table holding sync events.
	Table string
}

// Render parses dashboard templates and writes rendered dashboards to outDir.
// Datasource UIDs come from GREPTIMEDB_DATASOURCE_UID and
// PROMETHEUS_DATASOURCE_UID.
func Render(outDir string, p Params) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}
	if p.Table == "" {
		p.Table = "sync_events"
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, tplName := range templateFiles {
		t, err := template.New(tplName).Funcs(funcMap).ParseFS(templates, "templates/"+tplName)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(tplName, ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, p); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
