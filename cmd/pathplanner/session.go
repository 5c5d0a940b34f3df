package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"

	"pathplanner/internal/audit"
	"pathplanner/internal/config"
	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
	"pathplanner/internal/model"
	"pathplanner/internal/observability"
	"pathplanner/internal/planfile"
	"pathplanner/internal/transfer"
	"pathplanner/internal/uavobject"
)

// session is the local plan: both tables anchored at a shared home location.
type session struct {
	home      *geo.HomeLocation
	waypoints *model.WaypointTable
	segments  *model.SegmentTable
	unfollow  []func()
}

// newSession builds empty tables at the configured home and loads planPath
// when it exists. A plan carrying its own home moves the home location there.
func newSession(cfg *config.Config, planPath string) (*session, error) {
	origin := cfg.Home.LLA()
	var plan *planfile.Plan
	if planPath != "" {
		p, err := planfile.Load(planPath)
		switch {
		case err == nil:
			plan = p
			if p.Home != nil {
				origin = geo.LLA{Lat: p.Home.Latitude, Lon: p.Home.Longitude, Alt: p.Home.Altitude}
			}
		case errors.Is(err, fs.ErrNotExist):
			log.Printf("[Main] Plan %s not found, starting empty", planPath)
		default:
			return nil, err
		}
	}

	home, err := geo.NewHomeLocation(origin)
	if err != nil {
		return nil, fmt.Errorf("home location: %w", err)
	}
	ws, err := mission.NewWaypointStore(origin)
	if err != nil {
		return nil, err
	}
	ss, err := mission.NewSegmentStore(origin)
	if err != nil {
		return nil, err
	}
	s := &session{home: home, waypoints: model.NewWaypointTable(ws), segments: model.NewSegmentTable(ss)}
	for _, follow := range []func(geo.OriginSource) (func(), error){s.waypoints.FollowOrigin, s.segments.FollowOrigin} {
		cancel, err := follow(home)
		if err != nil {
			s.close()
			return nil, err
		}
		s.unfollow = append(s.unfollow, cancel)
	}
	if plan != nil {
		if err := planfile.Apply(plan, s.waypoints, s.segments); err != nil {
			s.close()
			return nil, fmt.Errorf("plan %s: %w", planPath, err)
		}
		log.Printf("[Main] Loaded %d waypoints and %d path segments from %s",
			s.waypoints.RowCount(), s.segments.RowCount(), planPath)
	}
	return s, nil
}

func (s *session) close() {
	for _, cancel := range s.unfollow {
		cancel()
	}
}

func (s *session) save(path string) error {
	return planfile.Save(path, planfile.FromStores(s.waypoints.Store(), s.segments.Store()))
}

// engine returns a sync engine between the session and the remote sets.
func (s *session) engine(
	cfg *config.Config,
	remoteWps uavobject.Set[uavobject.WaypointData],
	remoteSegs uavobject.Set[uavobject.PathSegmentData],
	events audit.Writer,
	metrics *observability.SyncCollector,
	logger *slog.Logger,
) *transfer.Engine {
	if logger != nil {
		s.waypoints.SetLogger(logger.With("component", "model"))
		s.segments.SetLogger(logger.With("component", "model"))
	}
	return transfer.New(s.waypoints, s.segments, remoteWps, remoteSegs,
		transfer.WithAckTimeout(cfg.Sync.AckTimeout.Std()),
		transfer.WithMaxAttempts(cfg.Sync.MaxAttempts),
		transfer.WithRetryBackoff(cfg.Sync.RetryBackoff.Std()),
		transfer.WithEventWriter(events),
		transfer.WithMetrics(metrics),
		transfer.WithLogger(logger),
	)
}
