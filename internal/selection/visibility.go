// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"sync"
)

// Registry tracks how much of each bound row is visible in its scroll
// container and reports when a different row becomes the most visible one.
type Registry struct {
	mu       sync.Mutex
	next     int
	rows     map[string]*row
	leader   string
	onLeader func(urn string)
}

type row struct {
	handle int
	order  int
	ratio  float64
}

// Handle is the binder for a single row.
type Handle struct {
	registry *Registry
	urn      string
	id       int
}

// NewRegistry creates a registry. onLeader may be nil.
func NewRegistry(onLeader func(urn string)) *Registry {
	return &Registry{rows: make(map[string]*row), onLeader: onLeader}
}

// Bind starts observing urn. Binding the same URN again replaces the earlier
// handle, which then becomes inert.
func (r *Registry) Bind(urn string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	order := r.next
	if existing, ok := r.rows[urn]; ok {
		order = existing.order
	}
	r.rows[urn] = &row{handle: r.next, order: order}
	return &Handle{registry: r, urn: urn, id: r.next}
}

// URN returns the row the handle observes.
func (h *Handle) URN() string {
	return h.urn
}

// Report records the visible fraction of the row, clamped to [0, 1].
func (h *Handle) Report(ratio float64) {
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	h.registry.update(h, func(rw *row) { rw.ratio = ratio })
}

// Release stops observing the row.
func (h *Handle) Release() {
	r := h.registry
	r.mu.Lock()
	if rw, ok := r.rows[h.urn]; !ok || rw.handle != h.id {
		r.mu.Unlock()
		return
	}
	delete(r.rows, h.urn)
	leader, changed := r.electLocked()
	r.mu.Unlock()

	r.announce(leader, changed)
}

// Leader returns the most visible row, or "" when nothing is visible.
func (r *Registry) Leader() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leader
}

func (r *Registry) update(h *Handle, apply func(*row)) {
	r.mu.Lock()
	rw, ok := r.rows[h.urn]
	if !ok || rw.handle != h.id {
		r.mu.Unlock()
		return
	}
	apply(rw)
	leader, changed := r.electLocked()
	r.mu.Unlock()

	r.announce(leader, changed)
}

// electLocked picks the row with the highest ratio. Ties go to the row bound
// first so that equal rows do not flap.
func (r *Registry) electLocked() (string, bool) {
	best := ""
	var bestRow *row
	for urn, rw := range r.rows {
		if rw.ratio <= 0 {
			continue
		}
		if bestRow == nil || rw.ratio > bestRow.ratio ||
			(rw.ratio == bestRow.ratio && rw.order < bestRow.order) {
			best, bestRow = urn, rw
		}
	}
	if best == r.leader {
		return best, false
	}
	r.leader = best
	return best, true
}

func (r *Registry) announce(leader string, changed bool) {
	if !changed || leader == "" || r.onLeader == nil {
		return
	}
	r.onLeader(leader)
}
