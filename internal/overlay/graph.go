package overlay

import (
	"fmt"
	"math"

	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
)

// Point is one vertex of the overlay. Curvature, NumOrbits and ArcRank
// describe how the path arrives at this point from the previous one.
type Point struct {
	Position  geo.LLA         `json:"position"`
	Local     geo.NED         `json:"local"`
	Curvature float64         `json:"curvature"`
	NumOrbits int             `json:"num_orbits"`
	ArcRank   mission.ArcRank `json:"arc_rank"`
}

// EdgeKind tells how two consecutive points are joined.
type EdgeKind int

const (
	EdgeLine EdgeKind = iota
	EdgeArc
)

func (k EdgeKind) String() string {
	if k == EdgeArc {
		return "arc"
	}
	return "line"
}

func (k EdgeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EdgeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "line":
		*k = EdgeLine
	case "arc":
		*k = EdgeArc
	default:
		return fmt.Errorf("unknown edge kind %q", b)
	}
	return nil
}

// Edge joins Points[From] to Points[To]. Arc fields are only meaningful for
// EdgeArc edges without Err.
type Edge struct {
	From       int      `json:"from"`
	To         int      `json:"to"`
	Kind       EdgeKind `json:"kind"`
	Center     NE       `json:"center"`
	Radius     float64  `json:"radius,omitempty"`
	Clockwise  bool     `json:"clockwise,omitempty"`
	Minor      bool     `json:"minor,omitempty"`
	StartAngle float64  `json:"start_angle,omitempty"`
	Span       float64  `json:"span,omitempty"`
	FullCircle bool     `json:"full_circle,omitempty"`
	Err        error    `json:"-"`
	Problem    string   `json:"error,omitempty"`
}

// Graph is the drawable plan.
type Graph struct {
	Points []Point `json:"points"`
	Edges  []Edge  `json:"edges"`
}

// Broken returns the edges whose geometry could not be solved.
func (g Graph) Broken() []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// Build joins every pair of consecutive points.
func Build(points []Point) Graph {
	g := Graph{Points: points}
	for i := 0; i+1 < len(points); i++ {
		g.Edges = append(g.Edges, buildEdge(points, i, i+1))
	}
	return g
}

func buildEdge(points []Point, from, to int) Edge {
	e := Edge{From: from, To: to, Kind: EdgeLine}
	p := points[to]
	if p.Curvature == 0 {
		return e
	}
	e.Kind = EdgeArc
	e.Radius = 1 / math.Abs(p.Curvature)
	e.Clockwise = p.Curvature > 0
	e.Minor = p.ArcRank == mission.ArcRankMinor

	start := neOf(points[from].Local)
	end := neOf(p.Local)
	c, err := FindArcCenter(start, end, e.Radius, e.Clockwise, e.Minor)
	if err != nil {
		e.Err = err
		e.Problem = err.Error()
		return e
	}
	e.Center = c
	e.StartAngle = angleOf(c, start)
	e.Span = sweep(e.StartAngle, angleOf(c, end), e.Clockwise)
	if p.NumOrbits > 0 {
		e.FullCircle = true
		e.Span = 2 * math.Pi
		if e.Clockwise {
			e.Span = -e.Span
		}
	}
	return e
}

func neOf(n geo.NED) NE { return NE{North: n.North, East: n.East} }

// PointsFromSegments converts path segment switching loci, anchored at
// origin.
func PointsFromSegments(segments []mission.PathSegment, origin geo.LLA) []Point {
	out := make([]Point, len(segments))
	for i, s := range segments {
		out[i] = Point{
			Position:  geo.ToLLA(origin, s.Position),
			Local:     s.Position,
			Curvature: s.Curvature,
			NumOrbits: s.NumOrbits,
			ArcRank:   s.ArcRank,
		}
	}
	return out
}

// PointsFromWaypoints converts waypoints. A circle mode makes the leg into
// the waypoint an arc whose radius is the mode parameter; right-hand modes
// turn clockwise.
func PointsFromWaypoints(waypoints []mission.Waypoint) []Point {
	out := make([]Point, len(waypoints))
	for i, w := range waypoints {
		p := Point{Position: w.Position, Local: w.Local, ArcRank: mission.ArcRankMinor}
		if circle, clockwise := w.Mode.Circle(); circle {
			// A non-positive radius becomes a vanishing one, which Build
			// reports as an unsolvable arc.
			k := math.MaxFloat64
			if w.ModeParams > 0 {
				k = 1 / w.ModeParams
			}
			if !clockwise {
				k = -k
			}
			p.Curvature = k
		}
		out[i] = p
	}
	return out
}
