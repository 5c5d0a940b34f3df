// Remote object instance sets exchanged with the vehicle
package uavobject

import (
	"errors"
	"fmt"
)

var (
	ErrNoInstance     = errors.New("no such instance")
	ErrInstanceExists = errors.New("instance already exists")
)

// UpdateMode is the telemetry update policy of an object.
type UpdateMode uint8

const (
	UpdateManual UpdateMode = iota
	UpdatePeriodic
	UpdateOnChange
	UpdateThrottled
)

// Metadata controls how updates of an object are delivered.
type Metadata struct {
	Acked      bool       `json:"acked"`
	UpdateMode UpdateMode `json:"update_mode"`
	PeriodMs   uint32     `json:"period_ms"`
}

// Transaction reports the completion of a submitted update.
type Transaction struct {
	Object     string `json:"object"`
	InstanceID uint16 `json:"instance"`
	Success    bool   `json:"success"`
}

// Instance is one addressable instance of a remote object.
type Instance[T any] interface {
	ID() uint16
	Data() T
	SetData(T)
	Metadata() Metadata
	SetMetadata(Metadata)
	// Updated submits the current data. Completion is reported through the
	// owning set's transaction listeners.
	Updated() error
}

// Set is the collection of instances of one object type.
type Set[T any] interface {
	Name() string
	Instance(i int) (Instance[T], error)
	NumInstances() int
	CreateInstance(i int) (Instance[T], error)
	OnTransaction(fn func(Transaction)) (cancel func())
}

func checkIndex(name string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %s[%d] of %d", ErrNoInstance, name, i, n)
	}
	return nil
}
