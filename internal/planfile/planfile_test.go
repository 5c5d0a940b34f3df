package planfile

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"pathplanner/internal/config"
	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
	"pathplanner/internal/model"
)

var home = geo.LLA{Lat: 47.3977, Lon: 8.5456, Alt: 488}

const doc = `
waypoints:
  - description: take-off
    latitude: 47.398
    longitude: 8.546
    altitude: 500
    velocity: 5
    mode: Fly Endpoint
    is_locked: true
  - latitude: 47.399
    longitude: 8.547
    mode: 3
    mode_params: 40
    colour: blue
  - latitude: 47.4
    longitude: 8.548
path_segments:
  - description: first
    position: {north: 10, east: 20, down: -30}
    curvature: 0.02
    number_of_orbits: 1
    arc_rank: Minor
`

func newTables(t *testing.T) (*model.WaypointTable, *model.SegmentTable) {
	t.Helper()
	ws, err := mission.NewWaypointStore(home)
	if err != nil {
		t.Fatalf("NewWaypointStore: %v", err)
	}
	ss, err := mission.NewSegmentStore(home)
	if err != nil {
		t.Fatalf("NewSegmentStore: %v", err)
	}
	return model.NewWaypointTable(ws), model.NewSegmentTable(ss)
}

func TestReadAppliesDefaults(t *testing.T) {
	p, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	wps, segs := newTables(t)
	if err := Apply(p, wps, segs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if wps.RowCount() != 3 || segs.RowCount() != 1 {
		t.Fatalf("rows = %d/%d", wps.RowCount(), segs.RowCount())
	}
	first, _ := wps.Store().Record(0)
	if first.Description != "take-off" || !first.Locked || first.Mode != mission.ModeFlyEndpoint || first.Velocity != 5 {
		t.Fatalf("waypoint 0 = %+v", first)
	}
	second, _ := wps.Store().Record(1)
	if second.Mode != mission.ModeFlyCircleLeft || second.ModeParams != 40 || second.Locked {
		t.Fatalf("waypoint 1 = %+v", second)
	}
	third, _ := wps.Store().Record(2)
	if third.Mode != mission.DefaultMode || third.Velocity != 0 || third.Position.Alt != 0 {
		t.Fatalf("waypoint 2 = %+v", third)
	}
	want := geo.ToNED(home, third.Position)
	if math.Abs(third.Local.North-want.North) > 1e-9 {
		t.Fatalf("local position not derived: %+v", third.Local)
	}
	seg, _ := segs.Store().Record(0)
	if seg.ArcRank != mission.ArcRankMinor || seg.NumOrbits != 1 || seg.Position.East != 20 {
		t.Fatalf("segment = %+v", seg)
	}
}

func TestReadRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"latitude out of range": "waypoints:\n  - latitude: 91\n    longitude: 0\n",
		"orbits out of range":   "path_segments:\n  - number_of_orbits: 300\n",
		"locked not bool":       "waypoints:\n  - is_locked: maybe\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(body)); !errors.Is(err, config.ErrSchema) {
				t.Fatalf("err = %v", err)
			}
		})
	}
	if _, err := Read(strings.NewReader("waypoints:\n  - mode: Hover\n")); err == nil {
		t.Fatalf("unknown mode label accepted")
	}
}

func TestApplyFailureLeavesTablesUntouched(t *testing.T) {
	wps, segs := newTables(t)
	if err := wps.InsertRows(0, 2); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	bad := &Plan{Waypoints: []Waypoint{{Latitude: 10}, {Latitude: 100}}}
	if err := Apply(bad, wps, segs); !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("err = %v", err)
	}
	if wps.RowCount() != 2 {
		t.Fatalf("rows = %d", wps.RowCount())
	}
}

func TestReadRejectsWideEnumText(t *testing.T) {
	wps, segs := newTables(t)
	if err := wps.InsertRows(0, 2); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	cases := map[string]string{
		"mode 256":     "waypoints:\n  - latitude: 47.4\n    longitude: 8.5\n    mode: \"256\"\n",
		"mode 257":     "waypoints:\n  - mode: \"257\"\n",
		"arc rank 257": "path_segments:\n  - arc_rank: \"257\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := Read(strings.NewReader(body))
			if !errors.Is(err, mission.ErrInvalidValue) {
				t.Fatalf("Read = %+v, %v", p, err)
			}
			if wps.RowCount() != 2 || segs.RowCount() != 0 {
				t.Fatalf("rows = %d/%d", wps.RowCount(), segs.RowCount())
			}
			for row := 0; row < 2; row++ {
				if w, _ := wps.Store().Record(row); w.Mode != mission.DefaultMode {
					t.Fatalf("row %d mode = %v", row, w.Mode)
				}
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	wps, segs := newTables(t)
	p, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := Apply(p, wps, segs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	path := filepath.Join(t.TempDir(), "mission.yaml")
	if err := Save(path, FromStores(wps.Store(), segs.Store())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Waypoints) != 3 || *loaded.Waypoints[0].Mode != ModeName(mission.ModeFlyEndpoint) || !loaded.Waypoints[0].Locked {
		t.Fatalf("loaded = %+v", loaded.Waypoints)
	}
	if loaded.Home == nil || loaded.Home.Latitude != home.Lat {
		t.Fatalf("home = %+v", loaded.Home)
	}
}

func TestWriteUsesLabels(t *testing.T) {
	mode := ModeName(mission.ModeLand)
	rank := RankName(mission.ArcRankMajor)
	var buf bytes.Buffer
	err := Write(&buf, &Plan{
		Waypoints:    []Waypoint{{Mode: &mode}},
		PathSegments: []Segment{{ArcRank: &rank}},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "mode: Land") || !strings.Contains(out, "arc_rank: Major") {
		t.Fatalf("output = %s", out)
	}
}

func TestSegmentsMoveWithHome(t *testing.T) {
	other := geo.LLA{Lat: home.Lat + 0.001, Lon: home.Lon, Alt: home.Alt}
	p := &Plan{
		Home:         &Home{Latitude: other.Lat, Longitude: other.Lon, Altitude: other.Alt},
		PathSegments: []Segment{{}},
	}
	_, segs, err := Stage(p, home, home)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	s, _ := segs.Record(0)
	if s.Position.North < 100 || s.Position.North > 120 {
		t.Fatalf("segment north = %v", s.Position.North)
	}
}
