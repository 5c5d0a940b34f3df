// Package transfer synchronizes the local mission plan with the vehicle's
// waypoint and path segment objects.
//
// Push uploads every local record, in order, as an acknowledged update of the
// remote instance with the same index. Each update is retried on timeout or
// negative acknowledgement up to a fixed number of attempts; the first record
// that exhausts its attempts aborts the push. Records already uploaded stay
// on the vehicle. Push never modifies the local plan.
//
// Pull replaces the local plan with the vehicle's current objects.
package transfer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"pathplanner/internal/audit"
	"pathplanner/internal/model"
	"pathplanner/internal/observability"
	"pathplanner/internal/uavobject"
)

const (
	DefaultAckTimeout   = 500 * time.Millisecond
	DefaultMaxAttempts  = 10
	DefaultRetryBackoff = 500 * time.Millisecond
)

var (
	// ErrPushInProgress is returned when a push or pull is already running.
	ErrPushInProgress = errors.New("sync already in progress")
	// ErrPushFailed is returned when a record could not be uploaded.
	ErrPushFailed = errors.New("push failed")
	ErrAckTimeout = errors.New("acknowledgement timed out")
	ErrNacked     = errors.New("update rejected by vehicle")
)

// Failure identifies the record that aborted a push.
type Failure struct {
	Object   string
	Index    int
	Attempts int
	Cause    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s[%d] after %d attempts: %v", f.Object, f.Index, f.Attempts, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Result summarizes a push.
type Result struct {
	OperationID string
	Waypoints   int
	Segments    int
	Failed      *Failure
}

// OK reports whether every record was acknowledged.
func (r Result) OK() bool { return r.Failed == nil }

type options struct {
	ackTimeout  time.Duration
	maxAttempts int
	backoff     time.Duration
	events      audit.Writer
	metrics     *observability.SyncCollector
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

func WithAckTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ackTimeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.backoff = d
		}
	}
}

// WithEventWriter sends an audit event for every step of push and pull.
func WithEventWriter(w audit.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.events = w
		}
	}
}

func WithMetrics(c *observability.SyncCollector) Option {
	return func(o *options) { o.metrics = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Engine moves the plan between the local tables and the remote sets.
type Engine struct {
	waypoints  *model.WaypointTable
	segments   *model.SegmentTable
	remoteWps  uavobject.Set[uavobject.WaypointData]
	remoteSegs uavobject.Set[uavobject.PathSegmentData]

	opts   options
	tracer trace.Tracer
	busy   atomic.Bool
}

// New returns an engine syncing the two tables with the two remote sets.
func New(
	waypoints *model.WaypointTable,
	segments *model.SegmentTable,
	remoteWps uavobject.Set[uavobject.WaypointData],
	remoteSegs uavobject.Set[uavobject.PathSegmentData],
	opts ...Option,
) *Engine {
	o := options{
		ackTimeout:  DefaultAckTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
		events:      audit.Discard,
		logger:      slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Engine{
		waypoints:  waypoints,
		segments:   segments,
		remoteWps:  remoteWps,
		remoteSegs: remoteSegs,
		opts:       o,
		tracer:     otel.Tracer("pathplanner/transfer"),
	}
}

// Busy reports whether a push or pull is running.
func (e *Engine) Busy() bool { return e.busy.Load() }

func (e *Engine) emit(ev audit.Event) {
	if err := e.opts.events.Write(ev); err != nil {
		e.opts.logger.Warn("audit write failed", "operation", ev.Operation, "error", err)
	}
}
