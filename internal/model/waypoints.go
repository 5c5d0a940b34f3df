package model

import (
	"fmt"

	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
)

var waypointHeaders = [mission.WaypointFieldCount]string{
	mission.WaypointDescription: "Description",
	mission.WaypointLatitude:    "Latitude",
	mission.WaypointLongitude:   "Longitude",
	mission.WaypointAltitude:    "Altitude",
	mission.WaypointNorth:       "Relative North",
	mission.WaypointEast:        "Relative East",
	mission.WaypointDown:        "Relative Down",
	mission.WaypointVelocity:    "Velocity",
	mission.WaypointMode:        "Mode",
	mission.WaypointModeParams:  "Mode parameters",
	mission.WaypointLocked:      "Locked",
}

// WaypointTable exposes a WaypointStore as an 11 column table.
type WaypointTable struct {
	notifier
	store *mission.WaypointStore
}

// NewWaypointTable wraps store.
func NewWaypointTable(store *mission.WaypointStore) *WaypointTable {
	return &WaypointTable{store: store}
}

// Store returns the underlying store for read access.
func (t *WaypointTable) Store() *mission.WaypointStore { return t.store }

func (t *WaypointTable) RowCount() int    { return t.store.RowCount() }
func (t *WaypointTable) ColumnCount() int { return int(mission.WaypointFieldCount) }

func (t *WaypointTable) Header(col int) string {
	if col < 0 || col >= len(waypointHeaders) {
		return ""
	}
	return waypointHeaders[col]
}

// Data returns the cell at row, col. With RoleDisplay the mode column holds
// its label; with RoleRaw it holds the raw mode number.
func (t *WaypointTable) Data(row, col int, role Role) (mission.Value, error) {
	f := mission.WaypointField(col)
	if !f.Valid() {
		return mission.Value{}, fmt.Errorf("%w: %d", ErrColumnOutOfRange, col)
	}
	v, err := t.store.Get(row, f)
	if err != nil {
		return mission.Value{}, err
	}
	if f == mission.WaypointMode && role == RoleDisplay {
		n, _ := v.Int()
		return mission.StringValue(mission.Mode(n).String()), nil
	}
	return v, nil
}

// SetData stores v and notifies listeners of the edited cell followed by
// every derived cell before returning.
func (t *WaypointTable) SetData(row, col int, v mission.Value) error {
	f := mission.WaypointField(col)
	if !f.Valid() {
		return fmt.Errorf("%w: %d", ErrColumnOutOfRange, col)
	}
	changed, err := t.store.Set(row, f, v)
	if err != nil {
		return err
	}
	events := make([]Event, len(changed))
	for i, c := range changed {
		events[i] = Event{Kind: DataChanged, Row: row, Column: int(c)}
	}
	t.emit(events...)
	return nil
}

// Editable reports whether SetData may change the cell. The locked column is
// always editable; other cells of a locked waypoint are not.
func (t *WaypointTable) Editable(row, col int) bool {
	f := mission.WaypointField(col)
	if !f.Valid() {
		return false
	}
	if f == mission.WaypointLocked {
		return true
	}
	v, err := t.store.Get(row, mission.WaypointLocked)
	if err != nil {
		return false
	}
	locked, _ := v.Bool()
	return !locked
}

func (t *WaypointTable) InsertRows(at, count int) error {
	if err := t.store.Insert(at, count); err != nil {
		return err
	}
	t.emit(Event{Kind: RowsInserted, First: at, Last: at + count - 1})
	return nil
}

func (t *WaypointTable) RemoveRows(at, count int) error {
	if err := t.store.Remove(at, count); err != nil {
		return err
	}
	t.emit(Event{Kind: RowsRemoved, First: at, Last: at + count - 1})
	return nil
}

// ReplaceAll copies from into the table and announces a reset.
func (t *WaypointTable) ReplaceAll(from *mission.WaypointStore) {
	t.store.ReplaceAll(from)
	t.emit(Event{Kind: ModelReset})
}

// ReplaceAllLocal copies from into the table keeping each record's local
// position, and announces a reset.
func (t *WaypointTable) ReplaceAllLocal(from *mission.WaypointStore) {
	t.store.ReplaceAllLocal(from)
	t.emit(Event{Kind: ModelReset})
}

// SetOrigin re-anchors every waypoint and announces the recomputed local
// columns of every row.
func (t *WaypointTable) SetOrigin(origin geo.LLA) error {
	if err := t.store.SetOrigin(origin); err != nil {
		return err
	}
	n := t.store.RowCount()
	events := make([]Event, 0, 3*n)
	for row := 0; row < n; row++ {
		for _, f := range []mission.WaypointField{mission.WaypointNorth, mission.WaypointEast, mission.WaypointDown} {
			events = append(events, Event{Kind: DataChanged, Row: row, Column: int(f)})
		}
	}
	t.emit(events...)
	return nil
}

// FollowOrigin keeps the table anchored to src's home location.
func (t *WaypointTable) FollowOrigin(src geo.OriginSource) (cancel func(), err error) {
	if err := t.SetOrigin(src.Origin()); err != nil {
		return nil, err
	}
	return src.Subscribe(func(o geo.LLA) {
		if err := t.SetOrigin(o); err != nil {
			t.logger().Warn("home location rejected", "table", "waypoints", "error", err)
		}
	}), nil
}
