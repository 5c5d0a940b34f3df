// Package overlay turns the mission plan into drawable geometry: straight
// legs and circular arcs between consecutive points, rebuilt whenever the
// plan changes.
package overlay

import (
	"errors"
	"math"
)

var (
	// ErrCoincidentPoints means both ends of an arc are the same point, so
	// no unique circle passes through them.
	ErrCoincidentPoints = errors.New("coincident arc end points")
	// ErrInsufficientRadius means the radius is shorter than half the chord.
	ErrInsufficientRadius = errors.New("arc radius too small to join points")
)

// NE is a position in the local horizontal plane, in metres.
type NE struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

const (
	coincidentTolerance = 1e-6
	// Radius shortfall accepted as roundoff, relative to the radius.
	radiusTolerance = 0.01
)

// FindArcCenter returns the centre of the circle of the given radius passing
// through start and end. Of the two candidates, clockwise and minor select
// the one whose arc from start to end turns the requested way and is the
// requested length.
func FindArcCenter(start, end NE, radius float64, clockwise, minor bool) (NE, error) {
	dN := end.North - start.North
	dE := end.East - start.East
	if math.Abs(dN) < coincidentTolerance && math.Abs(dE) < coincidentTolerance {
		return NE{}, ErrCoincidentPoints
	}
	mid := NE{North: (start.North + end.North) / 2, East: (start.East + end.East) / 2}

	// Normal to the chord, pointing right of the direction of travel.
	pN, pE := -dE, dN
	if clockwise != minor {
		pN, pE = -pN, -pE
	}

	d2 := radius*radius/(pN*pN+pE*pE) - 0.25
	if d2 < 0 {
		if d2 <= -math.Pow(radius*radiusTolerance, 2) {
			return NE{}, ErrInsufficientRadius
		}
		d2 = 0
	}
	d := math.Sqrt(d2)
	return NE{North: mid.North + pN*d, East: mid.East + pE*d}, nil
}

// angleOf returns the mathematical angle of p around c, counter-clockwise
// from east.
func angleOf(c, p NE) float64 {
	return math.Atan2(p.North-c.North, p.East-c.East)
}

// sweep returns the signed angle travelled from a to b: negative and in
// (-2π, 0] when clockwise, positive and in [0, 2π) otherwise.
func sweep(a, b float64, clockwise bool) float64 {
	span := b - a
	if clockwise {
		for span > 0 {
			span -= 2 * math.Pi
		}
		for span <= -2*math.Pi {
			span += 2 * math.Pi
		}
		return span
	}
	for span < 0 {
		span += 2 * math.Pi
	}
	for span >= 2*math.Pi {
		span -= 2 * math.Pi
	}
	return span
}
