package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pathplanner/internal/audit"
	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
	"pathplanner/internal/uavobject"
)

// Refresher is implemented by remote sets whose instance cache must be
// fetched from the vehicle before it can be read.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Pull replaces both local tables with the vehicle's objects. The tables are
// only touched once both sets were read successfully.
func (e *Engine) Pull(ctx context.Context) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrPushInProgress
	}
	defer e.busy.Store(false)

	opID := uuid.NewString()
	log := e.opts.logger.With("operation", "pull", "operation_id", opID)
	ctx, span := e.tracer.Start(ctx, "transfer.Pull")
	defer span.End()
	start := time.Now()
	e.emit(audit.NewEvent(opID, "pull", "", -1, -1, audit.OutcomeStarted))

	wps, segs, err := e.stage(ctx, opID)
	if err != nil {
		result, outcome := "failed", audit.OutcomeFailed
		if ctx.Err() != nil {
			result, outcome = "cancelled", audit.OutcomeCancelled
		}
		ev := audit.NewEvent(opID, "pull", "", -1, -1, outcome)
		ev.Error = err.Error()
		e.emit(ev)
		e.opts.metrics.ObserveOperation("pull", result, time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("pull failed", "error", err)
		return err
	}

	// The vehicle stores local positions; keep them if the home moved meanwhile.
	e.waypoints.ReplaceAllLocal(wps)
	e.segments.ReplaceAll(segs)
	e.opts.metrics.SetRows("waypoints", wps.RowCount())
	e.opts.metrics.SetRows("segments", segs.RowCount())
	span.SetAttributes(
		attribute.String("operation_id", opID),
		attribute.Int("waypoints", wps.RowCount()),
		attribute.Int("segments", segs.RowCount()),
	)
	ev := audit.NewEvent(opID, "pull", "", -1, -1, audit.OutcomeSucceeded)
	ev.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	e.emit(ev)
	e.opts.metrics.ObserveOperation("pull", "success", time.Since(start).Seconds())
	log.Info("pull completed", "waypoints", wps.RowCount(), "segments", segs.RowCount(), "elapsed", time.Since(start))
	return nil
}

func (e *Engine) stage(ctx context.Context, opID string) (*mission.WaypointStore, *mission.SegmentStore, error) {
	for _, set := range []any{e.remoteWps, e.remoteSegs} {
		if r, ok := set.(Refresher); ok {
			if err := r.Refresh(ctx); err != nil {
				return nil, nil, fmt.Errorf("refresh: %w", err)
			}
		}
	}

	wps, err := mission.NewWaypointStore(e.waypoints.Store().Origin())
	if err != nil {
		return nil, nil, err
	}
	err = readAll(ctx, e.remoteWps, func(i int, d uavobject.WaypointData) error {
		mode := mission.Mode(d.Mode)
		if !mode.Valid() {
			return fmt.Errorf("%w: mode %d", mission.ErrInvalidValue, d.Mode)
		}
		_, err := wps.AppendLocal(mission.Waypoint{
			Local:      geo.NED{North: float64(d.Position[0]), East: float64(d.Position[1]), Down: float64(d.Position[2])},
			Velocity:   float64(d.Velocity),
			Mode:       mode,
			ModeParams: float64(d.ModeParameters),
		})
		if err == nil {
			e.emit(audit.NewEvent(opID, "pull", e.remoteWps.Name(), i, -1, audit.OutcomePulled))
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	segs, err := mission.NewSegmentStore(e.segments.Store().Origin())
	if err != nil {
		return nil, nil, err
	}
	err = readAll(ctx, e.remoteSegs, func(i int, d uavobject.PathSegmentData) error {
		var rank mission.ArcRank
		switch d.ArcRank {
		case remoteArcRankMajor:
			rank = mission.ArcRankMajor
		case remoteArcRankMinor:
			rank = mission.ArcRankMinor
		default:
			return fmt.Errorf("%w: arc rank %d", mission.ErrInvalidValue, d.ArcRank)
		}
		_, err := segs.Append(mission.PathSegment{
			Position:  geo.NED{North: float64(d.SwitchingLocus[0]), East: float64(d.SwitchingLocus[1]), Down: float64(d.SwitchingLocus[2])},
			Curvature: float64(d.PathCurvature),
			NumOrbits: int(d.NumberOfOrbits),
			ArcRank:   rank,
		})
		if err == nil {
			e.emit(audit.NewEvent(opID, "pull", e.remoteSegs.Name(), i, -1, audit.OutcomePulled))
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return wps, segs, nil
}

func readAll[T any](ctx context.Context, set uavobject.Set[T], fn func(int, T) error) error {
	n := set.NumInstances()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		inst, err := set.Instance(i)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", set.Name(), i, err)
		}
		if err := fn(i, inst.Data()); err != nil {
			return fmt.Errorf("%s[%d]: %w", set.Name(), i, err)
		}
	}
	return nil
}
