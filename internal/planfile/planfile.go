// Package planfile reads and writes mission plans as YAML documents. The
// order of records in the document is the mission sequence.
package planfile

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pathplanner/internal/config"
	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
	"pathplanner/internal/model"
)

//go:embed plan.cue
var schema []byte

// Home is the origin the plan was written against.
type Home struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

func (h Home) lla() geo.LLA { return geo.LLA{Lat: h.Latitude, Lon: h.Longitude, Alt: h.Altitude} }

// ModeName is a waypoint mode written by label and read by label or number.
type ModeName mission.Mode

func (m *ModeName) UnmarshalYAML(n *yaml.Node) error {
	v, err := mission.ParseMode(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*m = ModeName(v)
	return nil
}

func (m ModeName) MarshalYAML() (any, error) { return mission.Mode(m).String(), nil }

// RankName is an arc rank written by label and read by label or number.
type RankName mission.ArcRank

func (r *RankName) UnmarshalYAML(n *yaml.Node) error {
	v, err := mission.ParseArcRank(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*r = RankName(v)
	return nil
}

func (r RankName) MarshalYAML() (any, error) { return mission.ArcRank(r).String(), nil }

type Waypoint struct {
	Description string    `yaml:"description,omitempty"`
	Latitude    float64   `yaml:"latitude"`
	Longitude   float64   `yaml:"longitude"`
	Altitude    float64   `yaml:"altitude"`
	Velocity    float64   `yaml:"velocity"`
	Mode        *ModeName `yaml:"mode,omitempty"`
	ModeParams  float64   `yaml:"mode_params"`
	Locked      bool      `yaml:"is_locked"`
}

type Vector struct {
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
	Down  float64 `yaml:"down"`
}

func (v Vector) ned() geo.NED { return geo.NED{North: v.North, East: v.East, Down: v.Down} }

func vectorOf(n geo.NED) Vector { return Vector{North: n.North, East: n.East, Down: n.Down} }

type Segment struct {
	Description  string    `yaml:"description,omitempty"`
	Position     Vector    `yaml:"position"`
	Velocity     Vector    `yaml:"velocity"`
	Acceleration Vector    `yaml:"acceleration"`
	Curvature    float64   `yaml:"curvature"`
	NumOrbits    int       `yaml:"number_of_orbits"`
	ArcRank      *RankName `yaml:"arc_rank,omitempty"`
}

// Plan is one plan document.
type Plan struct {
	Home         *Home      `yaml:"home,omitempty"`
	Waypoints    []Waypoint `yaml:"waypoints"`
	PathSegments []Segment  `yaml:"path_segments,omitempty"`
}

// Read parses and validates a plan document.
func Read(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return parse("plan.yaml", data)
}

// Load reads the plan stored at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return parse(filepath.Base(path), data)
}

func parse(name string, data []byte) (*Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Plan{}, nil
	}
	if err := config.ValidateYAML(name, data, schema, "#Plan"); err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// Write encodes p as YAML.
func Write(w io.Writer, p *Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

// Save writes p to path, replacing the file only once the document is
// complete.
func Save(path string, p *Plan) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".plan-*.yaml")
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := Write(tmp, p); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// FromStores captures the current contents of both stores.
func FromStores(wps *mission.WaypointStore, segs *mission.SegmentStore) *Plan {
	o := wps.Origin()
	p := &Plan{Home: &Home{Latitude: o.Lat, Longitude: o.Lon, Altitude: o.Alt}}
	for _, w := range wps.Snapshot() {
		mode := ModeName(w.Mode)
		p.Waypoints = append(p.Waypoints, Waypoint{
			Description: w.Description,
			Latitude:    w.Position.Lat,
			Longitude:   w.Position.Lon,
			Altitude:    w.Position.Alt,
			Velocity:    w.Velocity,
			Mode:        &mode,
			ModeParams:  w.ModeParams,
			Locked:      w.Locked,
		})
	}
	if segs == nil {
		return p
	}
	for _, s := range segs.Snapshot() {
		rank := RankName(s.ArcRank)
		p.PathSegments = append(p.PathSegments, Segment{
			Description:  s.Description,
			Position:     vectorOf(s.Position),
			Velocity:     vectorOf(s.Velocity),
			Acceleration: vectorOf(s.Acceleration),
			Curvature:    s.Curvature,
			NumOrbits:    s.NumOrbits,
			ArcRank:      &rank,
		})
	}
	return p
}

// Stage builds fresh stores holding the records of p, anchored at the given
// origins. Segment positions written against a different home are moved so
// they keep their geodetic location.
func Stage(p *Plan, wpOrigin, segOrigin geo.LLA) (*mission.WaypointStore, *mission.SegmentStore, error) {
	wps, err := mission.NewWaypointStore(wpOrigin)
	if err != nil {
		return nil, nil, err
	}
	for i, rec := range p.Waypoints {
		w := mission.Waypoint{
			Description: rec.Description,
			Position:    geo.LLA{Lat: rec.Latitude, Lon: rec.Longitude, Alt: rec.Altitude},
			Velocity:    rec.Velocity,
			Mode:        mission.DefaultMode,
			ModeParams:  rec.ModeParams,
			Locked:      rec.Locked,
		}
		if rec.Mode != nil {
			w.Mode = mission.Mode(*rec.Mode)
		}
		if _, err := wps.Append(w); err != nil {
			return nil, nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	segs, err := mission.NewSegmentStore(segOrigin)
	if err != nil {
		return nil, nil, err
	}
	for i, rec := range p.PathSegments {
		pos := rec.Position.ned()
		if p.Home != nil && p.Home.lla() != segOrigin {
			pos = geo.ToNED(segOrigin, geo.ToLLA(p.Home.lla(), pos))
		}
		s := mission.PathSegment{
			Description:  rec.Description,
			Position:     pos,
			Velocity:     rec.Velocity.ned(),
			Acceleration: rec.Acceleration.ned(),
			Curvature:    rec.Curvature,
			NumOrbits:    rec.NumOrbits,
		}
		if rec.ArcRank != nil {
			s.ArcRank = mission.ArcRank(*rec.ArcRank)
		}
		if _, err := segs.Append(s); err != nil {
			return nil, nil, fmt.Errorf("path segment %d: %w", i, err)
		}
	}
	return wps, segs, nil
}

// Apply replaces the contents of both tables with p. Nothing is changed
// when any record is invalid.
func Apply(p *Plan, wps *model.WaypointTable, segs *model.SegmentTable) error {
	segOrigin := wps.Store().Origin()
	if segs != nil {
		segOrigin = segs.Store().Origin()
	}
	stagedW, stagedS, err := Stage(p, wps.Store().Origin(), segOrigin)
	if err != nil {
		return err
	}
	wps.ReplaceAll(stagedW)
	if segs != nil {
		segs.ReplaceAll(stagedS)
	}
	return nil
}
