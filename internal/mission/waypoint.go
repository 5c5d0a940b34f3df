package mission

import (
	"fmt"
	"math"

	"pathplanner/internal/geo"
)

// Waypoint is one point of the mission plan. Position and Local always describe
// the same point under the store's origin.
type Waypoint struct {
	Description string  `json:"description"`
	Position    geo.LLA `json:"position"`
	Local       geo.NED `json:"local"`
	Velocity    float64 `json:"velocity"`
	Mode        Mode    `json:"mode"`
	ModeParams  float64 `json:"mode_params"`
	Locked      bool    `json:"locked"`
}

// WaypointField identifies a waypoint column.
type WaypointField int

const (
	WaypointDescription WaypointField = iota
	WaypointLatitude
	WaypointLongitude
	WaypointAltitude
	WaypointNorth
	WaypointEast
	WaypointDown
	WaypointVelocity
	WaypointMode
	WaypointModeParams
	WaypointLocked
	WaypointFieldCount
)

// Valid reports whether f names a waypoint column.
func (f WaypointField) Valid() bool { return f >= 0 && f < WaypointFieldCount }

func (f WaypointField) String() string {
	if !f.Valid() {
		return fmt.Sprintf("WaypointField(%d)", int(f))
	}
	return waypointAccessors[f].name
}

type waypointAccessor struct {
	name string
	get  func(*Waypoint) Value
	set  func(*Waypoint, Value) error
}

var waypointAccessors = [WaypointFieldCount]waypointAccessor{
	WaypointDescription: {
		name: "description",
		get:  func(w *Waypoint) Value { return StringValue(w.Description) },
		set: func(w *Waypoint, v Value) error {
			w.Description = v.String()
			return nil
		},
	},
	WaypointLatitude: {
		name: "latitude",
		get:  func(w *Waypoint) Value { return FloatValue(w.Position.Lat) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Position.Lat }),
	},
	WaypointLongitude: {
		name: "longitude",
		get:  func(w *Waypoint) Value { return FloatValue(w.Position.Lon) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Position.Lon }),
	},
	WaypointAltitude: {
		name: "altitude",
		get:  func(w *Waypoint) Value { return FloatValue(w.Position.Alt) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Position.Alt }),
	},
	WaypointNorth: {
		name: "north",
		get:  func(w *Waypoint) Value { return FloatValue(w.Local.North) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Local.North }),
	},
	WaypointEast: {
		name: "east",
		get:  func(w *Waypoint) Value { return FloatValue(w.Local.East) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Local.East }),
	},
	WaypointDown: {
		name: "down",
		get:  func(w *Waypoint) Value { return FloatValue(w.Local.Down) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Local.Down }),
	},
	WaypointVelocity: {
		name: "velocity",
		get:  func(w *Waypoint) Value { return FloatValue(w.Velocity) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.Velocity }),
	},
	WaypointMode: {
		name: "mode",
		get:  func(w *Waypoint) Value { return IntValue(int64(w.Mode)) },
		set: func(w *Waypoint, v Value) error {
			m, err := modeFromValue(v)
			if err != nil {
				return err
			}
			w.Mode = m
			return nil
		},
	},
	WaypointModeParams: {
		name: "mode_params",
		get:  func(w *Waypoint) Value { return FloatValue(w.ModeParams) },
		set:  setFloat(func(w *Waypoint) *float64 { return &w.ModeParams }),
	},
	WaypointLocked: {
		name: "locked",
		get:  func(w *Waypoint) Value { return BoolValue(w.Locked) },
		set: func(w *Waypoint, v Value) error {
			b, err := v.Bool()
			if err != nil {
				return err
			}
			w.Locked = b
			return nil
		},
	},
}

func setFloat(field func(*Waypoint) *float64) func(*Waypoint, Value) error {
	return func(w *Waypoint, v Value) error {
		f, err := finiteFloat(v)
		if err != nil {
			return err
		}
		*field(w) = f
		return nil
	}
}

func finiteFloat(v Value) (float64, error) {
	f, err := v.Float()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidValue, f)
	}
	return f, nil
}

// modeFromValue accepts the raw integer or the display label.
func modeFromValue(v Value) (Mode, error) {
	if v.Kind() == KindString {
		return ParseMode(v.String())
	}
	n, err := v.Int()
	if err != nil {
		return 0, err
	}
	return modeFromInt(n)
}

// Get returns the value of field f.
func (w *Waypoint) Get(f WaypointField) (Value, error) {
	if !f.Valid() {
		return Value{}, fmt.Errorf("%w: %d", ErrInvalidField, int(f))
	}
	return waypointAccessors[f].get(w), nil
}

// derived returns the columns recomputed when f changes.
func (f WaypointField) derived() []WaypointField {
	switch f {
	case WaypointLatitude, WaypointLongitude, WaypointAltitude:
		return []WaypointField{WaypointNorth, WaypointEast, WaypointDown}
	case WaypointNorth, WaypointEast, WaypointDown:
		return []WaypointField{WaypointLatitude, WaypointLongitude, WaypointAltitude}
	default:
		return nil
	}
}
