package uavobject

import (
	"sync"
	"time"
)

// Outcome is what the remote end does with one acknowledged update.
type Outcome int

const (
	Ack Outcome = iota
	Nack
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	case Drop:
		return "drop"
	}
	return "unknown"
}

// AckPolicy decides the outcome of the attempt-th submit (1-based) of an
// instance.
type AckPolicy func(instance uint16, attempt int) Outcome

// AlwaysAck acknowledges every update.
func AlwaysAck(uint16, int) Outcome { return Ack }

// Submit records one call to Updated.
type Submit[T any] struct {
	InstanceID uint16
	Data       T
	Acked      bool
	Outcome    Outcome
}

type memoryConfig struct {
	policy AckPolicy
	delay  time.Duration
}

// MemoryOption configures a MemorySet.
type MemoryOption func(*memoryConfig)

// WithAckPolicy sets the policy applied to acknowledged updates.
func WithAckPolicy(p AckPolicy) MemoryOption {
	return func(c *memoryConfig) { c.policy = p }
}

// WithAckDelay delays transaction notifications by d.
func WithAckDelay(d time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.delay = d }
}

// MemorySet is an in-process instance set. Each instance keeps the local
// data set by SetData and the data last committed by an acknowledged
// update.
type MemorySet[T any] struct {
	name string

	mu        sync.Mutex
	meta      Metadata
	instances []*memInstance[T]
	policy    AckPolicy
	delay     time.Duration
	attempts  map[uint16]int
	submits   []Submit[T]
	subs      map[int]func(Transaction)
	nextSub   int
	onCommit  func(uint16, T)
}

// NewMemorySet returns an empty set for object name.
func NewMemorySet[T any](name string, opts ...MemoryOption) *MemorySet[T] {
	cfg := memoryConfig{policy: AlwaysAck}
	for _, o := range opts {
		o(&cfg)
	}
	return &MemorySet[T]{
		name:     name,
		policy:   cfg.policy,
		delay:    cfg.delay,
		attempts: make(map[uint16]int),
		subs:     make(map[int]func(Transaction)),
	}
}

func (s *MemorySet[T]) Name() string { return s.name }

func (s *MemorySet[T]) NumInstances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

func (s *MemorySet[T]) Instance(i int) (Instance[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkIndex(s.name, i, len(s.instances)); err != nil {
		return nil, err
	}
	return s.instances[i], nil
}

// CreateInstance registers instance i, and any missing instances before it.
func (s *MemorySet[T]) CreateInstance(i int) (Instance[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.instances) {
		return nil, ErrInstanceExists
	}
	s.grow(i)
	return s.instances[i], nil
}

func (s *MemorySet[T]) grow(i int) {
	for len(s.instances) <= i {
		s.instances = append(s.instances, &memInstance[T]{set: s, id: uint16(len(s.instances))})
	}
}

// OnTransaction registers fn for completed updates.
func (s *MemorySet[T]) OnTransaction(fn func(Transaction)) func() {
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

// Subscribers returns the number of registered transaction listeners.
func (s *MemorySet[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// SetAckPolicy replaces the acknowledgement policy.
func (s *MemorySet[T]) SetAckPolicy(p AckPolicy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// OnCommit registers fn to run whenever an instance's data is committed.
func (s *MemorySet[T]) OnCommit(fn func(uint16, T)) {
	s.mu.Lock()
	s.onCommit = fn
	s.mu.Unlock()
}

// Submits returns every update submitted so far, in order.
func (s *MemorySet[T]) Submits() []Submit[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submit[T], len(s.submits))
	copy(out, s.submits)
	return out
}

// Attempts returns how many updates instance id has submitted.
func (s *MemorySet[T]) Attempts(id uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

// Committed returns the data last committed for instance i.
func (s *MemorySet[T]) Committed(i int) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if err := checkIndex(s.name, i, len(s.instances)); err != nil {
		return zero, err
	}
	return s.instances[i].committed, nil
}

// Apply sets both the local and committed data of instance i, creating it if
// needed. It models a change made on the remote end.
func (s *MemorySet[T]) Apply(i int, data T) {
	s.mu.Lock()
	s.grow(i)
	inst := s.instances[i]
	inst.data = data
	inst.committed = data
	s.mu.Unlock()
}

// Truncate drops every instance from n onwards.
func (s *MemorySet[T]) Truncate(n int) {
	s.mu.Lock()
	if n < len(s.instances) {
		s.instances = s.instances[:n]
	}
	s.mu.Unlock()
}

func (s *MemorySet[T]) submit(inst *memInstance[T]) {
	s.mu.Lock()
	s.attempts[inst.id]++
	sub := Submit[T]{InstanceID: inst.id, Data: inst.data, Acked: s.meta.Acked, Outcome: Ack}
	if s.meta.Acked {
		sub.Outcome = s.policy(inst.id, s.attempts[inst.id])
	}
	s.submits = append(s.submits, sub)
	var commit func(uint16, T)
	if sub.Outcome == Ack {
		inst.committed = inst.data
		commit = s.onCommit
	}
	delay := s.delay
	s.mu.Unlock()

	if commit != nil {
		commit(sub.InstanceID, sub.Data)
	}
	if sub.Outcome == Drop {
		return
	}
	tx := Transaction{Object: s.name, InstanceID: inst.id, Success: sub.Outcome == Ack}
	time.AfterFunc(delay, func() { s.notify(tx) })
}

func (s *MemorySet[T]) notify(tx Transaction) {
	s.mu.Lock()
	fns := make([]func(Transaction), 0, len(s.subs))
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

type memInstance[T any] struct {
	set       *MemorySet[T]
	id        uint16
	data      T
	committed T
}

func (i *memInstance[T]) ID() uint16 { return i.id }

func (i *memInstance[T]) Data() T {
	i.set.mu.Lock()
	defer i.set.mu.Unlock()
	return i.data
}

func (i *memInstance[T]) SetData(d T) {
	i.set.mu.Lock()
	i.data = d
	i.set.mu.Unlock()
}

// Metadata is shared by every instance of the set.
func (i *memInstance[T]) Metadata() Metadata {
	i.set.mu.Lock()
	defer i.set.mu.Unlock()
	return i.set.meta
}

func (i *memInstance[T]) SetMetadata(m Metadata) {
	i.set.mu.Lock()
	i.set.meta = m
	i.set.mu.Unlock()
}

func (i *memInstance[T]) Updated() error {
	i.set.submit(i)
	return nil
}
