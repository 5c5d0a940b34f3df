package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pathplanner/internal/audit"
	"pathplanner/internal/mission"
	"pathplanner/internal/uavobject"
)

// Push uploads waypoints and then path segments. It returns ErrPushFailed
// (wrapping the Failure) when a record exhausts its attempts, and ctx.Err()
// when ctx is cancelled. Metadata of every touched remote instance is
// restored before Push returns.
func (e *Engine) Push(ctx context.Context) (Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return Result{}, ErrPushInProgress
	}
	defer e.busy.Store(false)

	opID := uuid.NewString()
	res := Result{OperationID: opID}
	log := e.opts.logger.With("operation", "push", "operation_id", opID)
	ctx, span := e.tracer.Start(ctx, "transfer.Push")
	defer span.End()
	span.SetAttributes(
		attribute.String("operation_id", opID),
		attribute.Int("waypoints", e.waypoints.RowCount()),
		attribute.Int("segments", e.segments.RowCount()),
	)

	start := time.Now()
	e.emit(audit.NewEvent(opID, "push", "", -1, -1, audit.OutcomeStarted))
	log.Info("push started", "waypoints", e.waypoints.RowCount(), "segments", e.segments.RowCount())

	p := &pusher{engine: e, opID: opID, log: log}
	var err error
	res.Waypoints, err = pushAll(ctx, p, e.remoteWps, e.waypoints.RowCount, e.waypointData)
	if err == nil {
		res.Segments, err = pushAll(ctx, p, e.remoteSegs, e.segments.RowCount, e.segmentData)
	}

	result := "success"
	outcome := audit.OutcomeSucceeded
	var failure *Failure
	switch {
	case err == nil:
		log.Info("push completed", "waypoints", res.Waypoints, "segments", res.Segments, "elapsed", time.Since(start))
	case errors.As(err, &failure):
		res.Failed = failure
		err = fmt.Errorf("%w: %w", ErrPushFailed, failure)
		result, outcome = "failed", audit.OutcomeFailed
		log.Error("push aborted", "object", failure.Object, "index", failure.Index, "attempts", failure.Attempts, "error", failure.Cause)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result, outcome = "cancelled", audit.OutcomeCancelled
		log.Warn("push cancelled", "error", err)
	default:
		result, outcome = "failed", audit.OutcomeFailed
		log.Error("push failed", "error", err)
	}

	final := audit.NewEvent(opID, "push", "", -1, -1, outcome)
	if res.Failed != nil {
		final.Object, final.Index = res.Failed.Object, res.Failed.Index
	}
	if err != nil {
		final.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	final.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	e.emit(final)
	e.opts.metrics.ObserveOperation("push", result, time.Since(start).Seconds())
	return res, err
}

func (e *Engine) waypointData(row int, cur uavobject.WaypointData) (uavobject.WaypointData, error) {
	w, err := e.waypoints.Store().Record(row)
	if err != nil {
		return cur, err
	}
	if !w.Mode.Valid() {
		return cur, fmt.Errorf("%w: mode %d", mission.ErrInvalidValue, w.Mode)
	}
	cur.Position = [3]float32{float32(w.Local.North), float32(w.Local.East), float32(w.Local.Down)}
	cur.Velocity = float32(w.Velocity)
	cur.Mode = uint8(w.Mode)
	cur.ModeParameters = float32(w.ModeParams)
	return cur, nil
}

// Vehicle arc rank values.
const (
	remoteArcRankMajor uint8 = 0
	remoteArcRankMinor uint8 = 1
)

func (e *Engine) segmentData(row int, cur uavobject.PathSegmentData) (uavobject.PathSegmentData, error) {
	p, err := e.segments.Store().Record(row)
	if err != nil {
		return cur, err
	}
	if p.NumOrbits < 0 || p.NumOrbits > 255 {
		return cur, fmt.Errorf("%w: number of orbits %d", mission.ErrInvalidValue, p.NumOrbits)
	}
	switch p.ArcRank {
	case mission.ArcRankMajor:
		cur.ArcRank = remoteArcRankMajor
	case mission.ArcRankMinor:
		cur.ArcRank = remoteArcRankMinor
	default:
		return cur, fmt.Errorf("%w: arc rank %d", mission.ErrInvalidValue, p.ArcRank)
	}
	cur.SwitchingLocus = [3]float32{float32(p.Position.North), float32(p.Position.East), float32(p.Position.Down)}
	cur.PathCurvature = float32(p.Curvature)
	cur.NumberOfOrbits = uint8(p.NumOrbits)
	return cur, nil
}

type pusher struct {
	engine *Engine
	opID   string
	log    *slog.Logger
}

// pushAll uploads rows 0..rows()-1 to set. The row count is re-read on every
// iteration so rows removed while the push runs end it early.
func pushAll[T any](
	ctx context.Context,
	p *pusher,
	set uavobject.Set[T],
	rows func() int,
	translate func(int, T) (T, error),
) (pushed int, err error) {
	object := set.Name()
	router := newAckRouter(object)
	cancel := set.OnTransaction(router.handle)
	defer cancel()

	// Metadata may be shared between instances, so restore newest first.
	var restore []func()
	defer func() {
		for i := len(restore) - 1; i >= 0; i-- {
			restore[i]()
		}
	}()

	for row := 0; row < rows(); row++ {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}
		inst, err := resolveInstance(p, set, row)
		if err != nil {
			return pushed, &Failure{Object: object, Index: row, Cause: err}
		}

		prior := inst.Metadata()
		restore = append(restore, func() { inst.SetMetadata(prior) })
		forced := prior
		forced.Acked = true
		inst.SetMetadata(forced)

		data, err := translate(row, inst.Data())
		if err != nil {
			return pushed, &Failure{Object: object, Index: row, Cause: err}
		}
		inst.SetData(data)
		if err := p.update(ctx, router, inst.ID(), inst.Updated, object, row); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

// resolveInstance returns instance row of set, creating it when the vehicle
// has fewer instances.
func resolveInstance[T any](p *pusher, set uavobject.Set[T], row int) (uavobject.Instance[T], error) {
	if row < set.NumInstances() {
		return set.Instance(row)
	}
	inst, err := set.CreateInstance(row)
	if errors.Is(err, uavobject.ErrInstanceExists) {
		return set.Instance(row)
	}
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	p.engine.emit(audit.NewEvent(p.opID, "push", set.Name(), row, 0, audit.OutcomeCreated))
	p.log.Debug("instance created", "object", set.Name(), "index", row)
	return inst, nil
}

// update submits one record and waits for its acknowledgement, retrying up
// to maxAttempts times. It returns a *Failure once every attempt failed.
func (p *pusher) update(ctx context.Context, router *ackRouter, id uint16, submit func() error, object string, row int) error {
	o := p.engine.opts
	var cause error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		ack := router.arm(id)
		start := time.Now()
		if err := submit(); err != nil {
			router.disarm(id)
			cause = err
		} else {
			cause = p.wait(ctx, router, ack, id, o.ackTimeout)
		}
		elapsed := time.Since(start)

		if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
			return cause
		}
		ev := audit.NewEvent(p.opID, "push", object, row, attempt, audit.OutcomeAcked)
		ev.LatencyMS = float64(elapsed.Microseconds()) / 1000
		switch {
		case cause == nil:
			p.engine.emit(ev)
			o.metrics.ObserveAttempt(object, string(audit.OutcomeAcked), elapsed.Seconds())
			return nil
		case errors.Is(cause, ErrAckTimeout):
			ev.Outcome = audit.OutcomeTimeout
		case errors.Is(cause, ErrNacked):
			ev.Outcome = audit.OutcomeNacked
		default:
			ev.Outcome = audit.OutcomeFailed
		}
		ev.Error = cause.Error()
		p.engine.emit(ev)
		o.metrics.ObserveAttempt(object, string(ev.Outcome), elapsed.Seconds())
		p.log.Warn("update not acknowledged", "object", object, "index", row, "attempt", attempt, "error", cause)

		if attempt == o.maxAttempts {
			break
		}
		if err := sleep(ctx, o.backoff); err != nil {
			return err
		}
	}
	return &Failure{Object: object, Index: row, Attempts: o.maxAttempts, Cause: cause}
}

func (p *pusher) wait(ctx context.Context, router *ackRouter, ack <-chan bool, id uint16, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ok := <-ack:
		if !ok {
			return ErrNacked
		}
		return nil
	case <-timer.C:
		router.disarm(id)
		// A notification racing the timer still counts.
		if router.result(id) {
			return nil
		}
		return ErrAckTimeout
	case <-ctx.Done():
		router.disarm(id)
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
