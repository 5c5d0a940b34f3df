// Row/column table views over the mission stores with change notification
package model

import (
	"errors"
	"log/slog"
	"sync"

	"pathplanner/internal/mission"
)

// ErrColumnOutOfRange is returned for column indexes the table does not have.
var ErrColumnOutOfRange = errors.New("column out of range")

// Role selects the representation returned by Data.
type Role int

const (
	// RoleDisplay returns enumerations as their labels.
	RoleDisplay Role = iota
	// RoleRaw returns enumerations as their raw integer values.
	RoleRaw
)

// EventKind classifies a table change.
type EventKind int

const (
	DataChanged EventKind = iota
	RowsInserted
	RowsRemoved
	ModelReset
)

func (k EventKind) String() string {
	switch k {
	case DataChanged:
		return "data_changed"
	case RowsInserted:
		return "rows_inserted"
	case RowsRemoved:
		return "rows_removed"
	case ModelReset:
		return "model_reset"
	}
	return "unknown"
}

// Event describes one change. Row and Column are set for DataChanged, First
// and Last (inclusive) for row insertion and removal.
type Event struct {
	Kind   EventKind
	Row    int
	Column int
	First  int
	Last   int
}

// Listener receives table events on the goroutine that made the change.
type Listener func(Event)

// Table is the row/column surface shared by the waypoint and segment views.
type Table interface {
	RowCount() int
	ColumnCount() int
	Header(col int) string
	Data(row, col int, role Role) (mission.Value, error)
	SetData(row, col int, v mission.Value) error
	Editable(row, col int) bool
	InsertRows(at, count int) error
	RemoveRows(at, count int) error
	Subscribe(l Listener) (cancel func())
}

var (
	_ Table = (*WaypointTable)(nil)
	_ Table = (*SegmentTable)(nil)
)

type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Listener
	log    *slog.Logger
}

// SetLogger sets the logger used for failures that have no caller to
// return to, such as a rejected home location update.
func (n *notifier) SetLogger(l *slog.Logger) {
	n.mu.Lock()
	n.log = l
	n.mu.Unlock()
}

func (n *notifier) logger() *slog.Logger {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.log == nil {
		return slog.Default()
	}
	return n.log
}

func (n *notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]Listener)
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = l
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// emit delivers events in order to every listener, in subscription order.
// No store lock is held while listeners run.
func (n *notifier) emit(events ...Event) {
	n.mu.Lock()
	ls := make([]Listener, 0, len(n.subs))
	for i := 0; i < n.nextID; i++ {
		if l, ok := n.subs[i]; ok {
			ls = append(ls, l)
		}
	}
	n.mu.Unlock()
	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}
