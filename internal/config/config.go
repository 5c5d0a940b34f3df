// YAML config loader with CUE validation integration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pathplanner/internal/geo"
)

//go:embed config.cue
var Schema []byte

// Duration is a time.Duration written as "500ms" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Home is the mission origin.
type Home struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

func (h Home) LLA() geo.LLA { return geo.LLA{Lat: h.Latitude, Lon: h.Longitude, Alt: h.Altitude} }

// Sync tunes push retries.
type Sync struct {
	AckTimeout   Duration `yaml:"ack_timeout"`
	MaxAttempts  int      `yaml:"max_attempts"`
	RetryBackoff Duration `yaml:"retry_backoff"`
}

type Overlay struct {
	RefreshDelay Duration `yaml:"refresh_delay"`
}

// Link selects the transport to the vehicle.
type Link struct {
	Transport string `yaml:"transport"`
	URL       string `yaml:"url"`
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
}

type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Audit selects where sync events are written.
type Audit struct {
	LogFile  string   `yaml:"log_file"`
	Greptime Greptime `yaml:"greptime"`
}

type Admin struct {
	Listen string `yaml:"listen"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Vehicle configures the simulated vehicle.
type Vehicle struct {
	Listen            string   `yaml:"listen"`
	CommunicationLoss float64  `yaml:"communication_loss"`
	NackRate          float64  `yaml:"nack_rate"`
	AckDelay          Duration `yaml:"ack_delay"`
	Seed              int64    `yaml:"seed"`
}

// Config is the root configuration of the planner and the vehicle simulator.
type Config struct {
	LogLevel string  `yaml:"log_level"`
	Plan     string  `yaml:"plan"`
	Home     Home    `yaml:"home"`
	Sync     Sync    `yaml:"sync"`
	Overlay  Overlay `yaml:"overlay"`
	Link     Link    `yaml:"link"`
	Audit    Audit   `yaml:"audit"`
	Admin    Admin   `yaml:"admin"`
	Tracing  Tracing `yaml:"tracing"`
	Vehicle  Vehicle `yaml:"vehicle"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		LogLevel: "info",
		Sync: Sync{
			AckTimeout:   Duration(500 * time.Millisecond),
			MaxAttempts:  10,
			RetryBackoff: Duration(500 * time.Millisecond),
		},
		Overlay: Overlay{RefreshDelay: Duration(50 * time.Millisecond)},
		Link:    Link{Transport: "websocket", URL: "ws://127.0.0.1:9090/link", Baud: 57600},
		Audit:   Audit{Greptime: Greptime{Database: "public", Table: "sync_events"}},
		Admin:   Admin{Listen: ":8080"},
		Tracing: Tracing{Exporter: "stdout", ServiceName: "pathplanner", SampleRatio: 1},
		Vehicle: Vehicle{Listen: ":9090", AckDelay: Duration(5 * time.Millisecond), Seed: 1},
	}
}

// Load reads configPath, validates it against the CUE schema at
// cueSchemaPath (the embedded schema when empty), fills in defaults and
// applies environment overrides.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	schema := Schema
	if cueSchemaPath != "" {
		if schema, err = os.ReadFile(cueSchemaPath); err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	return Parse(configPath, data, schema)
}

// Parse is Load for an in-memory document.
func Parse(name string, data, schema []byte) (*Config, error) {
	if err := ValidateYAML(name, data, schema, "#Config"); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := geo.ValidateLLA(cfg.Home.LLA()); err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("GREPTIMEDB_ENDPOINT", &c.Audit.Greptime.Endpoint)
	str("GREPTIMEDB_DATABASE", &c.Audit.Greptime.Database)
	str("GREPTIMEDB_TABLE", &c.Audit.Greptime.Table)
	str("LINK_URL", &c.Link.URL)
	str("ADMIN_LISTEN", &c.Admin.Listen)

	if v, ok := lookup("SYNC_ACK_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid SYNC_ACK_TIMEOUT %q", v)
		}
		c.Sync.AckTimeout = Duration(d)
	}
	if v, ok := lookup("SYNC_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid SYNC_MAX_ATTEMPTS %q", v)
		}
		c.Sync.MaxAttempts = n
	}
	return nil
}
