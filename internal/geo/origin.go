package geo

import "sync"

// OriginSource provides the current home location and notifies on change.
type OriginSource interface {
	Origin() LLA
	Subscribe(fn func(LLA)) (cancel func())
}

// HomeLocation is a mutable OriginSource.
type HomeLocation struct {
	mu     sync.Mutex
	origin LLA
	nextID int
	subs   map[int]func(LLA)
}

// NewHomeLocation returns a home location set to origin.
func NewHomeLocation(origin LLA) (*HomeLocation, error) {
	if err := ValidateLLA(origin); err != nil {
		return nil, err
	}
	return &HomeLocation{origin: origin, subs: make(map[int]func(LLA))}, nil
}

// Origin returns the current home location.
func (h *HomeLocation) Origin() LLA {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.origin
}

// Set validates and stores a new home location, then notifies subscribers in
// subscription order on the calling goroutine.
func (h *HomeLocation) Set(origin LLA) error {
	if err := ValidateLLA(origin); err != nil {
		return err
	}
	h.mu.Lock()
	h.origin = origin
	fns := make([]func(LLA), 0, len(h.subs))
	for i := 0; i < h.nextID; i++ {
		if fn, ok := h.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(origin)
	}
	return nil
}

// Subscribe registers fn for home location changes.
func (h *HomeLocation) Subscribe(fn func(LLA)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
