package overlay

import (
	"log/slog"
	"sync"
	"time"

	"pathplanner/internal/model"
)

// Sink receives every rebuilt graph.
type Sink interface {
	Render(Graph)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Graph)

func (f SinkFunc) Render(g Graph) { f(g) }

// Projector keeps a graph in step with a table. Change notifications are
// debounced and each rebuild reads the table as it is when the timer fires.
type Projector struct {
	name   string
	build  func() Graph
	sink   Sink
	log    *slog.Logger
	cancel func()
	deb    *Debouncer

	mu      sync.RWMutex
	latest  Graph
	builds  int
	running sync.Mutex
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

func WithSink(s Sink) ProjectorOption {
	return func(p *Projector) { p.sink = s }
}

func WithLogger(l *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		if l != nil {
			p.log = l
		}
	}
}

// NewSegmentProjector draws the path segment table.
func NewSegmentProjector(t *model.SegmentTable, delay time.Duration, opts ...ProjectorOption) *Projector {
	build := func() Graph {
		s := t.Store()
		return Build(PointsFromSegments(s.Snapshot(), s.Origin()))
	}
	return newProjector("segments", t.Subscribe, build, delay, opts)
}

// NewWaypointProjector draws the waypoint table.
func NewWaypointProjector(t *model.WaypointTable, delay time.Duration, opts ...ProjectorOption) *Projector {
	build := func() Graph {
		return Build(PointsFromWaypoints(t.Store().Snapshot()))
	}
	return newProjector("waypoints", t.Subscribe, build, delay, opts)
}

func newProjector(name string, subscribe func(model.Listener) func(), build func() Graph, delay time.Duration, opts []ProjectorOption) *Projector {
	p := &Projector{name: name, build: build, log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	p.deb = NewDebouncer(delay, p.Refresh)
	p.Refresh()
	p.cancel = subscribe(func(model.Event) { p.deb.Trigger() })
	return p
}

// Refresh rebuilds immediately.
func (p *Projector) Refresh() {
	p.running.Lock()
	defer p.running.Unlock()

	g := p.build()
	for _, e := range g.Broken() {
		p.log.Warn("overlay edge not drawable", "overlay", p.name, "from", e.From, "to", e.To, "error", e.Err)
	}
	p.mu.Lock()
	p.latest = g
	p.builds++
	p.mu.Unlock()
	if p.sink != nil {
		p.sink.Render(g)
	}
}

// Latest returns the last graph built.
func (p *Projector) Latest() Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Builds returns how many times the graph was rebuilt.
func (p *Projector) Builds() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.builds
}

// Close stops following the table.
func (p *Projector) Close() {
	p.cancel()
	p.deb.Stop()
}
