package mission

import (
	"fmt"
	"sync"

	"pathplanner/internal/geo"
)

// SegmentStore is the ordered list of path segments. Segments are expressed
// in the local frame; the origin is kept so geodetic views can be derived.
type SegmentStore struct {
	mu     sync.RWMutex
	origin geo.LLA
	rows   []PathSegment
}

// NewSegmentStore returns an empty store anchored at origin.
func NewSegmentStore(origin geo.LLA) (*SegmentStore, error) {
	if err := geo.ValidateLLA(origin); err != nil {
		return nil, err
	}
	return &SegmentStore{origin: origin}, nil
}

func (s *SegmentStore) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *SegmentStore) Origin() geo.LLA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

// SetOrigin replaces the reference point. Segment fields are local and stay
// unchanged.
func (s *SegmentStore) SetOrigin(origin geo.LLA) error {
	if err := geo.ValidateLLA(origin); err != nil {
		return err
	}
	s.mu.Lock()
	s.origin = origin
	s.mu.Unlock()
	return nil
}

// Insert adds count zeroed segments before row at.
func (s *SegmentStore) Insert(at, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at < 0 || at > len(s.rows) {
		return fmt.Errorf("%w: insert at %d, %d rows", ErrRowOutOfRange, at, len(s.rows))
	}
	if count < 1 {
		return fmt.Errorf("%w: insert count %d", ErrInvalidValue, count)
	}
	added := make([]PathSegment, count)
	s.rows = append(s.rows[:at], append(added, s.rows[at:]...)...)
	return nil
}

func (s *SegmentStore) Remove(at, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count < 1 || at < 0 || at+count > len(s.rows) {
		return fmt.Errorf("%w: remove %d at %d, %d rows", ErrRowOutOfRange, count, at, len(s.rows))
	}
	s.rows = append(s.rows[:at], s.rows[at+count:]...)
	return nil
}

func (s *SegmentStore) Get(row int, f SegmentField) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkRow(row); err != nil {
		return Value{}, err
	}
	return s.rows[row].Get(f)
}

// Set changes field f of segment row. Segment fields have no derived columns,
// so the result only ever holds f.
func (s *SegmentStore) Set(row int, f SegmentField, v Value) ([]SegmentField, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidField, int(f))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRow(row); err != nil {
		return nil, err
	}
	next := s.rows[row]
	if err := segmentAccessors[f].set(&next, v); err != nil {
		return nil, fmt.Errorf("row %d field %s: %w", row, f, err)
	}
	s.rows[row] = next
	return []SegmentField{f}, nil
}

func (s *SegmentStore) Record(row int) (PathSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkRow(row); err != nil {
		return PathSegment{}, err
	}
	return s.rows[row], nil
}

func (s *SegmentStore) Snapshot() []PathSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PathSegment, len(s.rows))
	copy(out, s.rows)
	return out
}

// Append adds p at the end.
func (s *SegmentStore) Append(p PathSegment) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, p)
	return len(s.rows) - 1, nil
}

// ReplaceAll discards every segment and copies the contents of from verbatim.
func (s *SegmentStore) ReplaceAll(from *SegmentStore) {
	if from == s {
		return
	}
	rows := from.Snapshot()
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

func (s *SegmentStore) checkRow(row int) error {
	if row < 0 || row >= len(s.rows) {
		return fmt.Errorf("%w: row %d, %d rows", ErrRowOutOfRange, row, len(s.rows))
	}
	return nil
}
