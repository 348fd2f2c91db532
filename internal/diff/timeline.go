// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"sync"

	"github.com/finlens/evidence-mcp/internal/evidence"
)

// Timeline retains the most recent complete snapshots in submission order so
// that the engine always diffs the two latest ones.
type Timeline struct {
	mu        sync.Mutex
	capacity  int
	snapshots []evidence.Snapshot
}

// NewTimeline creates a bounded snapshot history (default 20 entries).
func NewTimeline(capacity int) *Timeline {
	if capacity < 2 {
		capacity = 20
	}
	return &Timeline{capacity: capacity}
}

// Submit appends a snapshot. Partial snapshots are ignored and false is
// returned.
func (t *Timeline) Submit(s evidence.Snapshot) bool {
	if !s.Complete() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots = append(t.snapshots, s)
	if len(t.snapshots) > t.capacity {
		trim := len(t.snapshots) - t.capacity
		t.snapshots = t.snapshots[trim:]
	}
	return true
}

// Latest diffs the two most recent complete snapshots. With a single
// snapshot every item is created; with none, ok is false.
func (t *Timeline) Latest() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n := len(t.snapshots); n {
	case 0:
		return Result{}, false
	case 1:
		return Compute(evidence.Snapshot{}, t.snapshots[0]), true
	default:
		return Compute(t.snapshots[n-2], t.snapshots[n-1]), true
	}
}

// Current returns the most recent complete snapshot.
func (t *Timeline) Current() (evidence.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.snapshots) == 0 {
		return evidence.Snapshot{}, false
	}
	return t.snapshots[len(t.snapshots)-1], true
}

// Len returns the number of retained snapshots.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.snapshots)
}
