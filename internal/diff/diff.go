// SPDX-License-Identifier: Apache-2.0

// Package diff classifies evidence items between successive snapshots.
package diff

import (
	"errors"
	"fmt"

	"github.com/finlens/evidence-mcp/internal/evidence"
)

// ErrPartialSnapshot is returned when a snapshot that is still streaming is
// offered for diffing.
var ErrPartialSnapshot = errors.New("partial snapshot cannot be diffed")

// Result is the classification of a current snapshot against the previous one.
type Result struct {
	// Types holds exactly one DiffType for every URN in the current snapshot.
	Types map[string]evidence.DiffType
	// Order lists current URNs in snapshot order.
	Order []string
	// Removed holds items present in previous but absent from current, in
	// previous-snapshot order.
	Removed []evidence.Item

	current []evidence.Item
}

// ComputeComplete is Compute for snapshots of unknown provenance: it refuses
// partial snapshots instead of reporting their missing items as removed.
func ComputeComplete(previous, current evidence.Snapshot) (Result, error) {
	if !previous.Complete() {
		return Result{}, fmt.Errorf("%w: previous", ErrPartialSnapshot)
	}
	if !current.Complete() {
		return Result{}, fmt.Errorf("%w: current", ErrPartialSnapshot)
	}
	return Compute(previous, current), nil
}

// Summary counts items per diff type.
type Summary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Compute compares two snapshots by URN. It is pure and never looks at
// selection or anchoring state.
func Compute(previous, current evidence.Snapshot) Result {
	prevIdx := previous.Index()

	result := Result{
		Types:   make(map[string]evidence.DiffType, len(current.Items)),
		Order:   make([]string, 0, len(current.Items)),
		current: current.Items,
	}

	for _, item := range current.Items {
		if _, seen := result.Types[item.URN]; seen {
			continue
		}
		result.Order = append(result.Order, item.URN)

		prev, ok := prevIdx[item.URN]
		switch {
		case !ok:
			result.Types[item.URN] = evidence.DiffCreated
		case prev.ContentEqual(item):
			result.Types[item.URN] = evidence.DiffUnchanged
		default:
			result.Types[item.URN] = evidence.DiffUpdated
		}
	}

	seenRemoved := make(map[string]struct{})
	for _, item := range previous.Items {
		if _, ok := result.Types[item.URN]; ok {
			continue
		}
		if _, dup := seenRemoved[item.URN]; dup {
			continue
		}
		seenRemoved[item.URN] = struct{}{}
		removed := item
		removed.DiffType = evidence.DiffRemoved
		result.Removed = append(result.Removed, removed)
	}

	return result
}

// Annotate returns a copy of the current items with DiffType populated.
func (r Result) Annotate() []evidence.Item {
	out := make([]evidence.Item, len(r.current))
	for i, item := range r.current {
		item.DiffType = r.Types[item.URN]
		out[i] = item
	}
	return out
}

// RemovedURNs returns the URNs of removed items in order.
func (r Result) RemovedURNs() []string {
	urns := make([]string, len(r.Removed))
	for i, item := range r.Removed {
		urns[i] = item.URN
	}
	return urns
}

// Summary counts the classification.
func (r Result) Summary() Summary {
	var s Summary
	for _, t := range r.Types {
		switch t {
		case evidence.DiffCreated:
			s.Created++
		case evidence.DiffUpdated:
			s.Updated++
		case evidence.DiffUnchanged:
			s.Unchanged++
		}
	}
	s.Removed = len(r.Removed)
	return s
}
