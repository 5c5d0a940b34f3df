package transfer

import (
	"sync"

	"pathplanner/internal/uavobject"
)

// ackRouter correlates transaction notifications of one object with the
// attempt waiting on the same instance id. There is at most one waiter per
// id; notifications nobody waits for are dropped.
type ackRouter struct {
	object string

	mu      sync.Mutex
	pending map[uint16]chan bool
	results map[uint16]bool
}

func newAckRouter(object string) *ackRouter {
	return &ackRouter{
		object:  object,
		pending: make(map[uint16]chan bool),
		results: make(map[uint16]bool),
	}
}

// arm resets the result of id and registers a fresh waiter for it.
func (r *ackRouter) arm(id uint16) <-chan bool {
	ch := make(chan bool, 1)
	r.mu.Lock()
	r.results[id] = false
	r.pending[id] = ch
	r.mu.Unlock()
	return ch
}

// disarm drops the waiter of id, if any.
func (r *ackRouter) disarm(id uint16) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *ackRouter) result(id uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[id]
}

func (r *ackRouter) handle(tx uavobject.Transaction) {
	if tx.Object != r.object {
		return
	}
	r.mu.Lock()
	ch, ok := r.pending[tx.InstanceID]
	if ok {
		r.results[tx.InstanceID] = tx.Success
		delete(r.pending, tx.InstanceID)
	}
	r.mu.Unlock()
	if ok {
		ch <- tx.Success
	}
}

// waiting reports how many instance ids have an armed waiter.
func (r *ackRouter) waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
