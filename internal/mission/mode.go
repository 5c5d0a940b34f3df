package mission

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is the flight behaviour the vehicle applies when it reaches a waypoint.
// The raw values match the vehicle's waypoint object.
type Mode uint8

const (
	ModeFlyEndpoint Mode = iota
	ModeFlyVector
	ModeFlyCircleRight
	ModeFlyCircleLeft
	ModeDriveEndpoint
	ModeDriveVector
	ModeDriveCircleLeft
	ModeDriveCircleRight
	ModeCirclePositionLeft
	ModeCirclePositionRight
	ModeLand
	ModeStop
	modeCount
)

// DefaultMode is used for waypoints with no predecessor.
const DefaultMode = ModeFlyVector

var modeLabels = [modeCount]string{
	ModeFlyEndpoint:         "Fly Endpoint",
	ModeFlyVector:           "Fly Vector",
	ModeFlyCircleRight:      "Fly Circle Right",
	ModeFlyCircleLeft:       "Fly Circle Left",
	ModeDriveEndpoint:       "Drive Endpoint",
	ModeDriveVector:         "Drive Vector",
	ModeDriveCircleLeft:     "Drive Circle Left",
	ModeDriveCircleRight:    "Drive Circle Right",
	ModeCirclePositionLeft:  "Circle Position Left",
	ModeCirclePositionRight: "Circle Position Right",
	ModeLand:                "Land",
	ModeStop:                "Stop",
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m < modeCount }

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
	return modeLabels[m]
}

// Circle reports whether the mode orbits around the waypoint, and in which sense.
func (m Mode) Circle() (circle, clockwise bool) {
	switch m {
	case ModeFlyCircleRight, ModeDriveCircleRight, ModeCirclePositionRight:
		return true, true
	case ModeFlyCircleLeft, ModeDriveCircleLeft, ModeCirclePositionLeft:
		return true, false
	default:
		return false, false
	}
}

// Modes lists every mode in raw value order.
func Modes() []Mode {
	out := make([]Mode, 0, modeCount)
	for m := Mode(0); m < modeCount; m++ {
		out = append(out, m)
	}
	return out
}

// ParseMode accepts a label ("Fly Vector", case-insensitive) or a raw integer.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return modeFromInt(n)
	}
	for m, label := range modeLabels {
		if strings.EqualFold(label, s) {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidValue, s)
}

// modeFromInt range-checks n before narrowing it to a Mode.
func modeFromInt(n int64) (Mode, error) {
	if n < 0 || n >= int64(modeCount) {
		return 0, fmt.Errorf("%w: mode %d", ErrInvalidValue, n)
	}
	return Mode(n), nil
}

// ArcRank selects between the two arcs joining two points on a circle.
type ArcRank uint8

const (
	ArcRankMajor ArcRank = iota
	ArcRankMinor
)

func (r ArcRank) String() string {
	switch r {
	case ArcRankMajor:
		return "Major"
	case ArcRankMinor:
		return "Minor"
	default:
		return fmt.Sprintf("ArcRank(%d)", uint8(r))
	}
}

// Valid reports whether r is a known rank.
func (r ArcRank) Valid() bool { return r == ArcRankMajor || r == ArcRankMinor }

func arcRankFromInt(n int64) (ArcRank, error) {
	if n < 0 || n > int64(ArcRankMinor) {
		return 0, fmt.Errorf("%w: arc rank %d", ErrInvalidValue, n)
	}
	return ArcRank(n), nil
}

// ParseArcRank accepts "Major", "Minor" or the raw integer.
func ParseArcRank(s string) (ArcRank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "major", "0":
		return ArcRankMajor, nil
	case "minor", "1":
		return ArcRankMinor, nil
	}
	return 0, fmt.Errorf("%w: unknown arc rank %q", ErrInvalidValue, s)
}
