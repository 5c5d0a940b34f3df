package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"pathplanner/internal/uavobject"
)

// Server answers a planner on the vehicle side of a link, applying updates
// to the two memory sets.
type Server struct {
	conn      Conn
	waypoints *uavobject.MemorySet[uavobject.WaypointData]
	segments  *uavobject.MemorySet[uavobject.PathSegmentData]
	log       *slog.Logger
}

// NewServer returns a server for one connection.
func NewServer(conn Conn, wps *uavobject.MemorySet[uavobject.WaypointData], segs *uavobject.MemorySet[uavobject.PathSegmentData], log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{conn: conn, waypoints: wps, segments: segs, log: log}
}

// Serve handles frames until ctx ends or the link closes. Completed acked
// updates are answered with ack or nack frames.
func (s *Server) Serve(ctx context.Context) error {
	forward := func(tx uavobject.Transaction) {
		t := FrameAck
		if !tx.Success {
			t = FrameNack
		}
		if err := s.conn.WriteFrame(Frame{Type: t, Object: tx.Object, Instance: tx.InstanceID, Success: tx.Success}); err != nil {
			s.log.Debug("ack not sent", "object", tx.Object, "instance", tx.InstanceID, "error", err)
		}
	}
	defer s.waypoints.OnTransaction(forward)()
	defer s.segments.OnTransaction(forward)()

	for {
		f, err := s.conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		if err := s.handle(f); err != nil {
			s.log.Warn("frame rejected", "type", f.Type, "object", f.Object, "instance", f.Instance, "error", err)
		}
	}
}

func (s *Server) handle(f Frame) error {
	switch f.Type {
	case FrameUpdate:
		switch f.Object {
		case s.waypoints.Name():
			return applyUpdate(s.waypoints, f)
		case s.segments.Name():
			return applyUpdate(s.segments, f)
		}
		return fmt.Errorf("unknown object %q", f.Object)
	case FrameDumpRequest:
		var (
			instances []json.RawMessage
			err       error
		)
		switch f.Object {
		case s.waypoints.Name():
			instances, err = dump(s.waypoints)
		case s.segments.Name():
			instances, err = dump(s.segments)
		default:
			err = fmt.Errorf("unknown object %q", f.Object)
		}
		if err != nil {
			return err
		}
		return s.conn.WriteFrame(Frame{Type: FrameDump, Object: f.Object, Instances: instances})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
}

func applyUpdate[T any](set *uavobject.MemorySet[T], f Frame) error {
	var data T
	if err := json.Unmarshal(f.Data, &data); err != nil {
		return fmt.Errorf("decode %s: %w", f.Object, err)
	}
	inst, err := set.Instance(int(f.Instance))
	if errors.Is(err, uavobject.ErrNoInstance) {
		inst, err = set.CreateInstance(int(f.Instance))
	}
	if err != nil {
		return err
	}
	meta := inst.Metadata()
	meta.Acked = f.Acked
	inst.SetMetadata(meta)
	inst.SetData(data)
	return inst.Updated()
}

// dump lists the committed data of every instance.
func dump[T any](set *uavobject.MemorySet[T]) ([]json.RawMessage, error) {
	n := set.NumInstances()
	out := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		d, err := set.Committed(i)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
