package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pathplanner/internal/uavobject"
)

// Client mirrors the vehicle's waypoint and path segment objects. Run must
// be running for acknowledgements and dumps to arrive.
type Client struct {
	conn Conn
	log  *slog.Logger

	waypoints *RemoteSet[uavobject.WaypointData]
	segments  *RemoteSet[uavobject.PathSegmentData]

	mu    sync.Mutex
	dumps map[string][]chan Frame
}

// NewClient returns a client speaking over conn.
func NewClient(conn Conn, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{conn: conn, log: log, dumps: make(map[string][]chan Frame)}
	c.waypoints = newRemoteSet[uavobject.WaypointData](c, uavobject.WaypointObject)
	c.segments = newRemoteSet[uavobject.PathSegmentData](c, uavobject.PathSegmentObject)
	return c
}

func (c *Client) Waypoints() *RemoteSet[uavobject.WaypointData]    { return c.waypoints }
func (c *Client) Segments() *RemoteSet[uavobject.PathSegmentData] { return c.segments }

// Run dispatches incoming frames until ctx ends or the link closes.
func (c *Client) Run(ctx context.Context) error {
	for {
		f, err := c.conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		switch f.Type {
		case FrameAck, FrameNack:
			c.transaction(f)
		case FrameDump:
			if err := c.applyDump(f); err != nil {
				c.log.Warn("bad dump", "object", f.Object, "error", err)
			}
		default:
			c.log.Debug("frame ignored", "type", f.Type, "object", f.Object)
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Sync refreshes both mirrors from the vehicle.
func (c *Client) Sync(ctx context.Context) error {
	if err := c.waypoints.Refresh(ctx); err != nil {
		return err
	}
	return c.segments.Refresh(ctx)
}

func (c *Client) transaction(f Frame) {
	tx := uavobject.Transaction{Object: f.Object, InstanceID: f.Instance, Success: f.Type == FrameAck}
	switch f.Object {
	case c.waypoints.name:
		c.waypoints.notify(tx)
	case c.segments.name:
		c.segments.notify(tx)
	}
}

func (c *Client) applyDump(f Frame) error {
	var err error
	switch f.Object {
	case c.waypoints.name:
		err = c.waypoints.load(f.Instances)
	case c.segments.name:
		err = c.segments.load(f.Instances)
	default:
		err = fmt.Errorf("unknown object %q", f.Object)
	}

	c.mu.Lock()
	waiters := c.dumps[f.Object]
	delete(c.dumps, f.Object)
	c.mu.Unlock()
	for _, ch := range waiters {
		ch <- f
	}
	return err
}

func (c *Client) requestDump(ctx context.Context, object string) error {
	ch := make(chan Frame, 1)
	c.mu.Lock()
	c.dumps[object] = append(c.dumps[object], ch)
	c.mu.Unlock()

	if err := c.conn.WriteFrame(Frame{Type: FrameDumpRequest, Object: object}); err != nil {
		c.dropWaiter(object, ch)
		return fmt.Errorf("request %s: %w", object, err)
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		c.dropWaiter(object, ch)
		return ctx.Err()
	}
}

func (c *Client) dropWaiter(object string, ch chan Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.dumps[object]
	for i, w := range ws {
		if w == ch {
			c.dumps[object] = append(ws[:i], ws[i+1:]...)
			return
		}
	}
}

// RemoteSet is the client side mirror of one vehicle object.
type RemoteSet[T any] struct {
	client *Client
	name   string

	mu        sync.Mutex
	meta      uavobject.Metadata
	instances []*remoteInstance[T]
	subs      map[int]func(uavobject.Transaction)
	nextSub   int
}

func newRemoteSet[T any](c *Client, name string) *RemoteSet[T] {
	return &RemoteSet[T]{client: c, name: name, subs: make(map[int]func(uavobject.Transaction))}
}

func (s *RemoteSet[T]) Name() string { return s.name }

func (s *RemoteSet[T]) NumInstances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

func (s *RemoteSet[T]) Instance(i int) (uavobject.Instance[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.instances) {
		return nil, fmt.Errorf("%w: %s[%d] of %d", uavobject.ErrNoInstance, s.name, i, len(s.instances))
	}
	return s.instances[i], nil
}

// CreateInstance adds instance i to the mirror. The vehicle creates it when
// the first update arrives.
func (s *RemoteSet[T]) CreateInstance(i int) (uavobject.Instance[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.instances) {
		return nil, uavobject.ErrInstanceExists
	}
	for len(s.instances) <= i {
		s.instances = append(s.instances, &remoteInstance[T]{set: s, id: uint16(len(s.instances))})
	}
	return s.instances[i], nil
}

func (s *RemoteSet[T]) OnTransaction(fn func(uavobject.Transaction)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Subscribers returns the number of transaction listeners.
func (s *RemoteSet[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Refresh replaces the mirror with the vehicle's instances.
func (s *RemoteSet[T]) Refresh(ctx context.Context) error {
	return s.client.requestDump(ctx, s.name)
}

func (s *RemoteSet[T]) notify(tx uavobject.Transaction) {
	s.mu.Lock()
	fns := make([]func(uavobject.Transaction), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(tx)
	}
}

func (s *RemoteSet[T]) load(raw []json.RawMessage) error {
	data := make([]T, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &data[i]); err != nil {
			return fmt.Errorf("%s[%d]: %w", s.name, i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = s.instances[:0]
	for i, d := range data {
		s.instances = append(s.instances, &remoteInstance[T]{set: s, id: uint16(i), data: d})
	}
	return nil
}

func (s *RemoteSet[T]) submit(inst *remoteInstance[T]) error {
	s.mu.Lock()
	acked := s.meta.Acked
	data := inst.data
	s.mu.Unlock()

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.name, err)
	}
	f := Frame{Type: FrameUpdate, Object: s.name, Instance: inst.id, Data: b, Acked: acked}
	if err := s.client.conn.WriteFrame(f); err != nil {
		return fmt.Errorf("send %s[%d]: %w", s.name, inst.id, err)
	}
	if !acked {
		s.notify(uavobject.Transaction{Object: s.name, InstanceID: inst.id, Success: true})
	}
	return nil
}

type remoteInstance[T any] struct {
	set  *RemoteSet[T]
	id   uint16
	data T
}

func (i *remoteInstance[T]) ID() uint16 { return i.id }

func (i *remoteInstance[T]) Data() T {
	i.set.mu.Lock()
	defer i.set.mu.Unlock()
	return i.data
}

func (i *remoteInstance[T]) SetData(d T) {
	i.set.mu.Lock()
	i.data = d
	i.set.mu.Unlock()
}

// Metadata is shared by every instance of the set, as on the vehicle.
func (i *remoteInstance[T]) Metadata() uavobject.Metadata {
	i.set.mu.Lock()
	defer i.set.mu.Unlock()
	return i.set.meta
}

func (i *remoteInstance[T]) SetMetadata(m uavobject.Metadata) {
	i.set.mu.Lock()
	i.set.meta = m
	i.set.mu.Unlock()
}

func (i *remoteInstance[T]) Updated() error { return i.set.submit(i) }
