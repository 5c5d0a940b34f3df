// Package vehicle simulates the flight controller end of the link: it holds
// the waypoint and path segment objects and acknowledges, rejects or loses
// updates according to its chaos settings.
package vehicle

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"pathplanner/internal/link"
	"pathplanner/internal/observability"
	"pathplanner/internal/uavobject"
)

// Config holds the chaos knobs of the vehicle.
type Config struct {
	// CommunicationLoss is the probability an acked update is lost.
	CommunicationLoss float64
	// NackRate is the probability a delivered acked update is rejected.
	NackRate float64
	AckDelay time.Duration
	Seed     int64
}

// Vehicle is a simulated vehicle.
type Vehicle struct {
	cfg     Config
	log     *slog.Logger
	metrics *observability.VehicleCollector

	waypoints *uavobject.MemorySet[uavobject.WaypointData]
	segments  *uavobject.MemorySet[uavobject.PathSegmentData]

	mu    sync.Mutex
	rng   *rand.Rand
	chaos bool
}

// New returns a vehicle with chaos enabled when any chaos rate is set.
func New(cfg Config, metrics *observability.VehicleCollector, log *slog.Logger) *Vehicle {
	if log == nil {
		log = slog.Default()
	}
	v := &Vehicle{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		chaos:   cfg.CommunicationLoss > 0 || cfg.NackRate > 0,
	}
	v.waypoints = uavobject.NewMemorySet[uavobject.WaypointData](uavobject.WaypointObject,
		uavobject.WithAckPolicy(v.policy(uavobject.WaypointObject)), uavobject.WithAckDelay(cfg.AckDelay))
	v.segments = uavobject.NewMemorySet[uavobject.PathSegmentData](uavobject.PathSegmentObject,
		uavobject.WithAckPolicy(v.policy(uavobject.PathSegmentObject)), uavobject.WithAckDelay(cfg.AckDelay))
	v.waypoints.OnCommit(func(uint16, uavobject.WaypointData) {
		v.metrics.SetInstances(uavobject.WaypointObject, v.waypoints.NumInstances())
	})
	v.segments.OnCommit(func(uint16, uavobject.PathSegmentData) {
		v.metrics.SetInstances(uavobject.PathSegmentObject, v.segments.NumInstances())
	})
	return v
}

func (v *Vehicle) Waypoints() *uavobject.MemorySet[uavobject.WaypointData]    { return v.waypoints }
func (v *Vehicle) Segments() *uavobject.MemorySet[uavobject.PathSegmentData] { return v.segments }

func (v *Vehicle) policy(object string) uavobject.AckPolicy {
	return func(id uint16, attempt int) uavobject.Outcome {
		out := v.decide()
		v.metrics.ObserveUpdate(object, out.String())
		v.log.Debug("update", "object", object, "instance", id, "attempt", attempt, "outcome", out)
		return out
	}
}

func (v *Vehicle) decide() uavobject.Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.chaos {
		return uavobject.Ack
	}
	if v.rng.Float64() < v.cfg.CommunicationLoss {
		return uavobject.Drop
	}
	if v.rng.Float64() < v.cfg.NackRate {
		return uavobject.Nack
	}
	return uavobject.Ack
}

// Chaos reports whether loss and rejection are applied.
func (v *Vehicle) Chaos() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.chaos
}

// ToggleChaos flips chaos mode and returns the new state.
func (v *Vehicle) ToggleChaos() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chaos = !v.chaos
	return v.chaos
}

// ServeConn answers one planner until the link closes or ctx ends.
func (v *Vehicle) ServeConn(ctx context.Context, conn link.Conn) error {
	defer conn.Close()
	v.metrics.LinkOpened()
	defer v.metrics.LinkClosed()
	return link.NewServer(conn, v.waypoints, v.segments, v.log).Serve(ctx)
}

// State is the committed plan held by the vehicle.
type State struct {
	Chaos     bool                        `json:"chaos"`
	Waypoints []uavobject.WaypointData    `json:"waypoints"`
	Segments  []uavobject.PathSegmentData `json:"path_segments"`
}

// Snapshot returns the committed data of every instance.
func (v *Vehicle) Snapshot() State {
	s := State{Chaos: v.Chaos()}
	for i := 0; i < v.waypoints.NumInstances(); i++ {
		if d, err := v.waypoints.Committed(i); err == nil {
			s.Waypoints = append(s.Waypoints, d)
		}
	}
	for i := 0; i < v.segments.NumInstances(); i++ {
		if d, err := v.segments.Committed(i); err == nil {
			s.Segments = append(s.Segments, d)
		}
	}
	return s
}

// Handler serves /link, /state, /toggle-chaos and /metrics.
func (v *Vehicle) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/link", func(w http.ResponseWriter, r *http.Request) {
		conn, err := link.Upgrade(w, r)
		if err != nil {
			v.log.Warn("link upgrade failed", "error", err)
			return
		}
		v.log.Info("planner connected", "remote", r.RemoteAddr)
		if err := v.ServeConn(ctx, conn); err != nil {
			v.log.Warn("link ended", "remote", r.RemoteAddr, "error", err)
			return
		}
		v.log.Info("planner disconnected", "remote", r.RemoteAddr)
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v.Snapshot())
	})
	mux.HandleFunc("/toggle-chaos", func(w http.ResponseWriter, r *http.Request) {
		state := v.ToggleChaos()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"chaos": state})
	})
	if v.metrics != nil {
		mux.Handle("/metrics", v.metrics.Handler())
	}
	return mux
}
