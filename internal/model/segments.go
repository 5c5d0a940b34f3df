package model

import (
	"fmt"

	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
)

var segmentHeaders = [mission.SegmentFieldCount]string{
	mission.SegmentDescription: "Description",
	mission.SegmentPosNorth:    "Relative North position",
	mission.SegmentPosEast:     "Relative East position",
	mission.SegmentPosDown:     "Relative Down position",
	mission.SegmentVelNorth:    "Relative North velocity",
	mission.SegmentVelEast:     "Relative East velocity",
	mission.SegmentVelDown:     "Relative Down velocity",
	mission.SegmentAccNorth:    "Relative North acceleration",
	mission.SegmentAccEast:     "Relative East acceleration",
	mission.SegmentAccDown:     "Relative Down acceleration",
	mission.SegmentCurvature:   "Curvature",
	mission.SegmentNumOrbits:   "Number of orbits",
	mission.SegmentArcRank:     "Arc rank",
}

// SegmentTable exposes a SegmentStore as a 13 column table.
type SegmentTable struct {
	notifier
	store *mission.SegmentStore
}

func NewSegmentTable(store *mission.SegmentStore) *SegmentTable {
	return &SegmentTable{store: store}
}

func (t *SegmentTable) Store() *mission.SegmentStore { return t.store }
func (t *SegmentTable) RowCount() int                { return t.store.RowCount() }
func (t *SegmentTable) ColumnCount() int             { return int(mission.SegmentFieldCount) }

func (t *SegmentTable) Header(col int) string {
	if col < 0 || col >= len(segmentHeaders) {
		return ""
	}
	return segmentHeaders[col]
}

// Data returns the cell at row, col. The arc rank column holds "Major" or
// "Minor" for RoleDisplay.
func (t *SegmentTable) Data(row, col int, role Role) (mission.Value, error) {
	f := mission.SegmentField(col)
	if !f.Valid() {
		return mission.Value{}, fmt.Errorf("%w: %d", ErrColumnOutOfRange, col)
	}
	v, err := t.store.Get(row, f)
	if err != nil {
		return mission.Value{}, err
	}
	if f == mission.SegmentArcRank && role == RoleDisplay {
		n, _ := v.Int()
		return mission.StringValue(mission.ArcRank(n).String()), nil
	}
	return v, nil
}

func (t *SegmentTable) SetData(row, col int, v mission.Value) error {
	f := mission.SegmentField(col)
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

// Editable reports whether the cell exists; segments have no lock.
func (t *SegmentTable) Editable(row, col int) bool {
	return mission.SegmentField(col).Valid() && row >= 0 && row < t.store.RowCount()
}

func (t *SegmentTable) InsertRows(at, count int) error {
	if err := t.store.Insert(at, count); err != nil {
		return err
	}
	t.emit(Event{Kind: RowsInserted, First: at, Last: at + count - 1})
	return nil
}

func (t *SegmentTable) RemoveRows(at, count int) error {
	if err := t.store.Remove(at, count); err != nil {
		return err
	}
	t.emit(Event{Kind: RowsRemoved, First: at, Last: at + count - 1})
	return nil
}

func (t *SegmentTable) ReplaceAll(from *mission.SegmentStore) {
	t.store.ReplaceAll(from)
	t.emit(Event{Kind: ModelReset})
}

// FollowOrigin keeps the segment store's reference point on src's home
// location. Segment fields are local, so only a reset is announced.
func (t *SegmentTable) FollowOrigin(src geo.OriginSource) (cancel func(), err error) {
	if err := t.store.SetOrigin(src.Origin()); err != nil {
		return nil, err
	}
	return src.Subscribe(func(o geo.LLA) {
		if err := t.store.SetOrigin(o); err != nil {
			t.logger().Warn("home location rejected", "table", "segments", "error", err)
			return
		}
		t.emit(Event{Kind: ModelReset})
	}), nil
}
