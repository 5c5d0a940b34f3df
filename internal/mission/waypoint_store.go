package mission

import (
	"fmt"
	"sync"

	"pathplanner/internal/geo"
)

// WaypointStore is the ordered waypoint list of a mission plan. All records
// share one origin; changing it re-derives every local position before any
// reader sees the new origin.
type WaypointStore struct {
	mu     sync.RWMutex
	origin geo.LLA
	rows   []Waypoint
}

// NewWaypointStore returns an empty store anchored at origin.
func NewWaypointStore(origin geo.LLA) (*WaypointStore, error) {
	if err := geo.ValidateLLA(origin); err != nil {
		return nil, err
	}
	return &WaypointStore{origin: origin}, nil
}

// RowCount returns the number of waypoints.
func (s *WaypointStore) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Origin returns the shared reference point.
func (s *WaypointStore) Origin() geo.LLA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

// SetOrigin moves the reference point and recomputes every local position
// from its geodetic position.
func (s *WaypointStore) SetOrigin(origin geo.LLA) error {
	if err := geo.ValidateLLA(origin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = origin
	for i := range s.rows {
		s.rows[i].Local = geo.ToNED(origin, s.rows[i].Position)
	}
	return nil
}

// Insert adds count default waypoints before row at. Numeric fields and the
// local position are zero; Mode and Locked are inherited from the waypoint
// preceding the insertion point.
func (s *WaypointStore) Insert(at, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at < 0 || at > len(s.rows) {
		return fmt.Errorf("%w: insert at %d, %d rows", ErrRowOutOfRange, at, len(s.rows))
	}
	if count < 1 {
		return fmt.Errorf("%w: insert count %d", ErrInvalidValue, count)
	}
	tmpl := Waypoint{Mode: DefaultMode}
	if at > 0 {
		prev := s.rows[at-1]
		tmpl.Mode = prev.Mode
		tmpl.Locked = prev.Locked
	}
	// Zero local offset: new waypoints sit on the origin.
	tmpl.Position = s.origin

	added := make([]Waypoint, count)
	for i := range added {
		added[i] = tmpl
	}
	s.rows = append(s.rows[:at], append(added, s.rows[at:]...)...)
	return nil
}

// Remove deletes count waypoints starting at row at.
func (s *WaypointStore) Remove(at, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count < 1 || at < 0 || at+count > len(s.rows) {
		return fmt.Errorf("%w: remove %d at %d, %d rows", ErrRowOutOfRange, count, at, len(s.rows))
	}
	s.rows = append(s.rows[:at], s.rows[at+count:]...)
	return nil
}

// Get returns field f of waypoint row.
func (s *WaypointStore) Get(row int, f WaypointField) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkRow(row); err != nil {
		return Value{}, err
	}
	return s.rows[row].Get(f)
}

// Set changes field f of waypoint row and returns every field that changed,
// the target first followed by the fields derived from it. A locked waypoint
// only accepts changes to WaypointLocked.
func (s *WaypointStore) Set(row int, f WaypointField, v Value) ([]WaypointField, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidField, int(f))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRow(row); err != nil {
		return nil, err
	}
	cur := s.rows[row]
	if cur.Locked && f != WaypointLocked {
		return nil, fmt.Errorf("%w: row %d field %s", ErrLocked, row, f)
	}

	next := cur
	if err := waypointAccessors[f].set(&next, v); err != nil {
		return nil, fmt.Errorf("row %d field %s: %w", row, f, err)
	}
	derived := f.derived()
	switch f {
	case WaypointLatitude, WaypointLongitude, WaypointAltitude:
		if err := geo.ValidateLLA(next.Position); err != nil {
			return nil, fmt.Errorf("row %d field %s: %w", row, f, err)
		}
		next.Local = geo.ToNED(s.origin, next.Position)
	case WaypointNorth, WaypointEast, WaypointDown:
		next.Position = geo.ToLLA(s.origin, next.Local)
	}
	s.rows[row] = next
	return append([]WaypointField{f}, derived...), nil
}

// Record returns a copy of waypoint row.
func (s *WaypointStore) Record(row int) (Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkRow(row); err != nil {
		return Waypoint{}, err
	}
	return s.rows[row], nil
}

// Snapshot returns a copy of every waypoint in order.
func (s *WaypointStore) Snapshot() []Waypoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Waypoint, len(s.rows))
	copy(out, s.rows)
	return out
}

// Append adds w at the end, deriving the local position from w.Position.
func (s *WaypointStore) Append(w Waypoint) (int, error) {
	if err := geo.ValidateLLA(w.Position); err != nil {
		return 0, err
	}
	if !w.Mode.Valid() {
		return 0, fmt.Errorf("%w: mode %d", ErrInvalidValue, w.Mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Local = geo.ToNED(s.origin, w.Position)
	s.rows = append(s.rows, w)
	return len(s.rows) - 1, nil
}

// AppendLocal adds w at the end, deriving the geodetic position from w.Local.
func (s *WaypointStore) AppendLocal(w Waypoint) (int, error) {
	if !w.Mode.Valid() {
		return 0, fmt.Errorf("%w: mode %d", ErrInvalidValue, w.Mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Position = geo.ToLLA(s.origin, w.Local)
	if err := geo.ValidateLLA(w.Position); err != nil {
		return 0, err
	}
	s.rows = append(s.rows, w)
	return len(s.rows) - 1, nil
}

// ReplaceAll discards every waypoint and copies the contents of from. Values
// are copied verbatim; local positions are re-derived only when the two
// stores use different origins.
func (s *WaypointStore) ReplaceAll(from *WaypointStore) {
	if from == s {
		return
	}
	rows := from.Snapshot()
	fromOrigin := from.Origin()

	s.mu.Lock()
	defer s.mu.Unlock()
	if fromOrigin != s.origin {
		for i := range rows {
			rows[i].Local = geo.ToNED(s.origin, rows[i].Position)
		}
	}
	s.rows = rows
}

// ReplaceAllLocal is ReplaceAll for records whose local position is
// authoritative: when the origins differ the geodetic position is re-derived
// from the local one.
func (s *WaypointStore) ReplaceAllLocal(from *WaypointStore) {
	if from == s {
		return
	}
	rows := from.Snapshot()
	fromOrigin := from.Origin()

	s.mu.Lock()
	defer s.mu.Unlock()
	if fromOrigin != s.origin {
		for i := range rows {
			rows[i].Position = geo.ToLLA(s.origin, rows[i].Local)
		}
	}
	s.rows = rows
}

func (s *WaypointStore) checkRow(row int) error {
	if row < 0 || row >= len(s.rows) {
		return fmt.Errorf("%w: row %d, %d rows", ErrRowOutOfRange, row, len(s.rows))
	}
	return nil
}
