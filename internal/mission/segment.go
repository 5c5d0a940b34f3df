package mission

import (
	"fmt"

	"pathplanner/internal/geo"
)

// PathSegment describes how the vehicle reaches its switching locus.
type PathSegment struct {
	Description  string  `json:"description"`
	Position     geo.NED `json:"position"`
	Velocity     geo.NED `json:"velocity"`
	Acceleration geo.NED `json:"acceleration"`
	Curvature    float64 `json:"curvature"`
	NumOrbits    int     `json:"num_orbits"`
	ArcRank      ArcRank `json:"arc_rank"`
}

// SegmentField identifies a path segment column.
type SegmentField int

const (
	SegmentDescription SegmentField = iota
	SegmentPosNorth
	SegmentPosEast
	SegmentPosDown
	SegmentVelNorth
	SegmentVelEast
	SegmentVelDown
	SegmentAccNorth
	SegmentAccEast
	SegmentAccDown
	SegmentCurvature
	SegmentNumOrbits
	SegmentArcRank
	SegmentFieldCount
)

// Valid reports whether f names a path segment column.
func (f SegmentField) Valid() bool { return f >= 0 && f < SegmentFieldCount }

func (f SegmentField) String() string {
	if !f.Valid() {
		return fmt.Sprintf("SegmentField(%d)", int(f))
	}
	return segmentAccessors[f].name
}

type segmentAccessor struct {
	name string
	get  func(*PathSegment) Value
	set  func(*PathSegment, Value) error
}

func segmentFloat(name string, field func(*PathSegment) *float64) segmentAccessor {
	return segmentAccessor{
		name: name,
		get:  func(p *PathSegment) Value { return FloatValue(*field(p)) },
		set: func(p *PathSegment, v Value) error {
			f, err := finiteFloat(v)
			if err != nil {
				return err
			}
			*field(p) = f
			return nil
		},
	}
}

var segmentAccessors = [SegmentFieldCount]segmentAccessor{
	SegmentDescription: {
		name: "description",
		get:  func(p *PathSegment) Value { return StringValue(p.Description) },
		set: func(p *PathSegment, v Value) error {
			p.Description = v.String()
			return nil
		},
	},
	SegmentPosNorth:  segmentFloat("pos_north", func(p *PathSegment) *float64 { return &p.Position.North }),
	SegmentPosEast:   segmentFloat("pos_east", func(p *PathSegment) *float64 { return &p.Position.East }),
	SegmentPosDown:   segmentFloat("pos_down", func(p *PathSegment) *float64 { return &p.Position.Down }),
	SegmentVelNorth:  segmentFloat("vel_north", func(p *PathSegment) *float64 { return &p.Velocity.North }),
	SegmentVelEast:   segmentFloat("vel_east", func(p *PathSegment) *float64 { return &p.Velocity.East }),
	SegmentVelDown:   segmentFloat("vel_down", func(p *PathSegment) *float64 { return &p.Velocity.Down }),
	SegmentAccNorth:  segmentFloat("acc_north", func(p *PathSegment) *float64 { return &p.Acceleration.North }),
	SegmentAccEast:   segmentFloat("acc_east", func(p *PathSegment) *float64 { return &p.Acceleration.East }),
	SegmentAccDown:   segmentFloat("acc_down", func(p *PathSegment) *float64 { return &p.Acceleration.Down }),
	SegmentCurvature: segmentFloat("curvature", func(p *PathSegment) *float64 { return &p.Curvature }),
	SegmentNumOrbits: {
		name: "num_orbits",
		get:  func(p *PathSegment) Value { return IntValue(int64(p.NumOrbits)) },
		set: func(p *PathSegment, v Value) error {
			n, err := v.Int()
			if err != nil {
				return err
			}
			if n < 0 || n > 255 {
				return fmt.Errorf("%w: number of orbits %d", ErrInvalidValue, n)
			}
			p.NumOrbits = int(n)
			return nil
		},
	},
	SegmentArcRank: {
		name: "arc_rank",
		get:  func(p *PathSegment) Value { return IntValue(int64(p.ArcRank)) },
		set: func(p *PathSegment, v Value) error {
			r, err := arcRankFromValue(v)
			if err != nil {
				return err
			}
			p.ArcRank = r
			return nil
		},
	},
}

func arcRankFromValue(v Value) (ArcRank, error) {
	if v.Kind() == KindString {
		return ParseArcRank(v.String())
	}
	n, err := v.Int()
	if err != nil {
		return 0, err
	}
	return arcRankFromInt(n)
}

// Get returns the value of field f.
func (p *PathSegment) Get(f SegmentField) (Value, error) {
	if !f.Valid() {
		return Value{}, fmt.Errorf("%w: %d", ErrInvalidField, int(f))
	}
	return segmentAccessors[f].get(p), nil
}

// Validate checks the fields that have a restricted domain.
func (p PathSegment) Validate() error {
	if p.NumOrbits < 0 || p.NumOrbits > 255 {
		return fmt.Errorf("%w: number of orbits %d", ErrInvalidValue, p.NumOrbits)
	}
	if !p.ArcRank.Valid() {
		return fmt.Errorf("%w: arc rank %d", ErrInvalidValue, p.ArcRank)
	}
	return nil
}
