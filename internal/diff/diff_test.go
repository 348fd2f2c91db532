// SPDX-License-Identifier: Apache-2.0

package diff_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/evidence-mcp/internal/diff"
	"github.com/finlens/evidence-mcp/internal/evidence"
)

func snap(items ...evidence.Item) evidence.Snapshot {
	return evidence.Snapshot{Items: items}
}

// ---------------------------------------------------------------------------
// Compute
// ---------------------------------------------------------------------------

func TestCompute_TotalAndExclusive(t *testing.T) {
	previous := snap(evidence.Item{URN: "a"}, evidence.Item{URN: "b"})
	current := snap(evidence.Item{URN: "b", Quote: "x"}, evidence.Item{URN: "c"})

	result := diff.Compute(previous, current)

	assert.Equal(t, map[string]evidence.DiffType{
		"b": evidence.DiffUpdated,
		"c": evidence.DiffCreated,
	}, result.Types)
	assert.Equal(t, []string{"a"}, result.RemovedURNs())
	assert.Equal(t, evidence.DiffRemoved, result.Removed[0].DiffType)
	assert.Equal(t, []string{"b", "c"}, result.Order)
}

func TestCompute_Rules(t *testing.T) {
	page := evidence.IntPtr(3)
	rect := &evidence.Anchor{Rect: &evidence.PageRect{Page: 3, X: 1, Y: 1, Width: 10, Height: 2}}

	tests := []struct {
		name string
		prev evidence.Item
		curr evidence.Item
		want evidence.DiffType
	}{
		{
			name: "identical fields are unchanged",
			prev: evidence.Item{URN: "x", Quote: "q", PageNumber: page, Anchor: rect},
			curr: evidence.Item{URN: "x", Quote: "q", PageNumber: evidence.IntPtr(3), Anchor: &evidence.Anchor{Rect: &evidence.PageRect{Page: 3, X: 1, Y: 1, Width: 10, Height: 2}}},
			want: evidence.DiffUnchanged,
		},
		{
			name: "source url is not compared",
			prev: evidence.Item{URN: "x", Quote: "q", SourceURL: "a"},
			curr: evidence.Item{URN: "x", Quote: "q", SourceURL: "b"},
			want: evidence.DiffUnchanged,
		},
		{
			name: "section change",
			prev: evidence.Item{URN: "x", Section: "Item 7"},
			curr: evidence.Item{URN: "x", Section: "Item 7A"},
			want: evidence.DiffUpdated,
		},
		{
			name: "page change",
			prev: evidence.Item{URN: "x", PageNumber: evidence.IntPtr(1)},
			curr: evidence.Item{URN: "x", PageNumber: evidence.IntPtr(2)},
			want: evidence.DiffUpdated,
		},
		{
			name: "anchor kind change",
			prev: evidence.Item{URN: "x", Anchor: rect},
			curr: evidence.Item{URN: "x", Anchor: &evidence.Anchor{Path: "//p[1]"}},
			want: evidence.DiffUpdated,
		},
		{
			name: "reliability change",
			prev: evidence.Item{URN: "x", SourceReliability: evidence.FloatPtr(0.7)},
			curr: evidence.Item{URN: "x", SourceReliability: evidence.FloatPtr(0.71)},
			want: evidence.DiffUpdated,
		},
		{
			name: "self-check added",
			prev: evidence.Item{URN: "x"},
			curr: evidence.Item{URN: "x", SelfCheck: &evidence.SelfCheck{Verdict: evidence.VerdictFail}},
			want: evidence.DiffUpdated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := diff.Compute(snap(tt.prev), snap(tt.curr))
			assert.Equal(t, tt.want, result.Types["x"])
			assert.Empty(t, result.Removed)
		})
	}
}

func TestCompute_RemovedPreservesOrderWithoutDuplicates(t *testing.T) {
	previous := snap(
		evidence.Item{URN: "r3"},
		evidence.Item{URN: "keep"},
		evidence.Item{URN: "r1"},
		evidence.Item{URN: "r3"},
		evidence.Item{URN: "r2"},
	)
	current := snap(evidence.Item{URN: "keep"})

	result := diff.Compute(previous, current)
	assert.Equal(t, []string{"r3", "r1", "r2"}, result.RemovedURNs())
}

func TestCompute_EmptyPreviousMarksAllCreated(t *testing.T) {
	result := diff.Compute(evidence.Snapshot{}, snap(evidence.Item{URN: "a"}, evidence.Item{URN: "b"}))
	assert.Equal(t, diff.Summary{Created: 2}, result.Summary())
}

func TestComputeComplete_RejectsPartial(t *testing.T) {
	previous := snap(evidence.Item{URN: "a"}, evidence.Item{URN: "b"})
	partial := snap(evidence.Item{URN: "a"})
	partial.Partial = true

	_, err := diff.ComputeComplete(previous, partial)
	assert.ErrorIs(t, err, diff.ErrPartialSnapshot)
	_, err = diff.ComputeComplete(partial, previous)
	assert.ErrorIs(t, err, diff.ErrPartialSnapshot)

	result, err := diff.ComputeComplete(previous, snap(evidence.Item{URN: "a"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.RemovedURNs())
}

func TestResult_Annotate(t *testing.T) {
	previous := snap(evidence.Item{URN: "a", Quote: "old"})
	current := snap(evidence.Item{URN: "a", Quote: "new"}, evidence.Item{URN: "b"})

	annotated := diff.Compute(previous, current).Annotate()
	require.Len(t, annotated, 2)
	assert.Equal(t, evidence.DiffUpdated, annotated[0].DiffType)
	assert.Equal(t, evidence.DiffCreated, annotated[1].DiffType)
	assert.Empty(t, current.Items[0].DiffType, "input snapshot must not be mutated")
}

// ---------------------------------------------------------------------------
// QuoteDelta
// ---------------------------------------------------------------------------

func TestQuoteDelta(t *testing.T) {
	spans := diff.QuoteDelta("Revenue grew 12% year over year", "Revenue grew 14% year over year")
	require.NotEmpty(t, spans)

	var before, after strings.Builder
	for _, s := range spans {
		if s.Op != diff.SpanInsert {
			before.WriteString(s.Text)
		}
		if s.Op != diff.SpanDelete {
			after.WriteString(s.Text)
		}
	}
	assert.Equal(t, "Revenue grew 12% year over year", before.String())
	assert.Equal(t, "Revenue grew 14% year over year", after.String())
	assert.Equal(t, 1, diff.EditDistance("12%", "14%"))
}

// ---------------------------------------------------------------------------
// Timeline
// ---------------------------------------------------------------------------

func TestTimeline_DiffsTwoMostRecentComplete(t *testing.T) {
	tl := diff.NewTimeline(3)

	_, ok := tl.Latest()
	assert.False(t, ok)

	assert.True(t, tl.Submit(snap(evidence.Item{URN: "a"})))
	first, ok := tl.Latest()
	require.True(t, ok)
	assert.Equal(t, evidence.DiffCreated, first.Types["a"])

	assert.True(t, tl.Submit(snap(evidence.Item{URN: "a"}, evidence.Item{URN: "b"})))

	partial := snap(evidence.Item{URN: "z"})
	partial.Partial = true
	assert.False(t, tl.Submit(partial), "partial snapshots are never diffed")

	latest, ok := tl.Latest()
	require.True(t, ok)
	assert.Equal(t, evidence.DiffUnchanged, latest.Types["a"])
	assert.Equal(t, evidence.DiffCreated, latest.Types["b"])
	assert.NotContains(t, latest.Types, "z")
}

func TestTimeline_Capacity(t *testing.T) {
	tl := diff.NewTimeline(2)
	tl.Submit(evidence.Snapshot{ID: "1"})
	tl.Submit(evidence.Snapshot{ID: "2"})
	tl.Submit(evidence.Snapshot{ID: "3"})

	assert.Equal(t, 2, tl.Len())
	current, ok := tl.Current()
	require.True(t, ok)
	assert.Equal(t, "3", current.ID)
}
