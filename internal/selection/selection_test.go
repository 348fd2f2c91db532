// SPDX-License-Identifier: Apache-2.0

package selection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/selection"
	"github.com/finlens/evidence-mcp/internal/store"
)

func newTarget(t *testing.T, urns ...string) *store.Store {
	t.Helper()
	items := make([]evidence.Item, 0, len(urns))
	for _, urn := range urns {
		items = append(items, evidence.Item{URN: urn})
	}
	s, err := store.New(store.WithItems(items))
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// Explicit selection
// ---------------------------------------------------------------------------

func TestHandleSelect_Idempotent(t *testing.T) {
	target := newTarget(t, "a", "b")

	transitions := 0
	target.Subscribe(func(store.State) { transitions++ })

	var selected []string
	c := selection.NewController(target, selection.OnSelect(func(urn string, src selection.Source) {
		assert.Equal(t, selection.SourceClick, src)
		selected = append(selected, urn)
	}))

	assert.True(t, c.HandleSelect("b"))
	assert.False(t, c.HandleSelect("b"))

	assert.Equal(t, 1, transitions)
	assert.Equal(t, []string{"b"}, selected)
	assert.Equal(t, "b", target.State().ActiveURN)
}

func TestHandleSelect_StaleID(t *testing.T) {
	target := newTarget(t, "a")
	c := selection.NewController(target)

	assert.False(t, c.HandleSelect("gone"))
	assert.Equal(t, "a", target.State().ActiveURN)
}

func TestFocus(t *testing.T) {
	target := newTarget(t, "a", "b")

	var source selection.Source
	c := selection.NewController(target, selection.OnSelect(func(_ string, src selection.Source) {
		source = src
	}))

	assert.True(t, c.Focus("b"))
	assert.Equal(t, selection.SourceFocus, source)
}

func TestHover(t *testing.T) {
	target := newTarget(t, "a")

	var hovered []string
	c := selection.NewController(target, selection.OnHover(func(urn string) {
		hovered = append(hovered, urn)
	}))

	c.Hover("a")
	c.Hover("a")
	c.Hover("")
	assert.Equal(t, []string{"a", ""}, hovered)
	assert.Empty(t, c.Hovered())
}

// ---------------------------------------------------------------------------
// Visibility
// ---------------------------------------------------------------------------

func TestVisibility_DisabledByDefault(t *testing.T) {
	target := newTarget(t, "a", "b")
	c := selection.NewController(target)

	c.Bind("b").Report(1)
	assert.Equal(t, "a", target.State().ActiveURN)
}

func TestVisibility_PromotesMostVisible(t *testing.T) {
	target := newTarget(t, "a", "b", "c")
	c := selection.NewController(target, selection.WithVisibilityTracking())

	a, b := c.Bind("a"), c.Bind("b")
	a.Report(0.4)
	b.Report(0.9)
	assert.Equal(t, "b", target.State().ActiveURN)

	b.Release()
	assert.Equal(t, "a", target.State().ActiveURN, "next most visible row takes over")
}

func TestVisibility_PromotionNotifies(t *testing.T) {
	target := newTarget(t, "a", "b")

	type event struct {
		urn string
		src selection.Source
	}
	var events []event
	c := selection.NewController(target,
		selection.WithVisibilityTracking(),
		selection.OnSelect(func(urn string, src selection.Source) {
			events = append(events, event{urn, src})
		}))

	row := c.Bind("b")
	row.Report(0.9)
	row.Report(0.95)

	assert.Equal(t, []event{{"b", selection.SourceVisibility}}, events, "one notification per actual change")
}

func TestVisibility_ExplicitWinsWithinTick(t *testing.T) {
	target := newTarget(t, "a", "b", "c")
	c := selection.NewController(target, selection.WithVisibilityTracking())

	b, cRow := c.Bind("b"), c.Bind("c")

	c.HandleSelect("c")
	b.Report(1)
	assert.Equal(t, "c", target.State().ActiveURN, "click made this tick is not overridden")

	c.Tick()
	b.Report(0.2)
	cRow.Report(0.9)
	assert.Equal(t, "c", target.State().ActiveURN)

	b.Report(1)
	assert.Equal(t, "b", target.State().ActiveURN, "promotion applies in a later tick")
}

func TestRegistry_LeaderTies(t *testing.T) {
	var leaders []string
	r := selection.NewRegistry(func(urn string) { leaders = append(leaders, urn) })

	first, second := r.Bind("first"), r.Bind("second")
	second.Report(0.5)
	first.Report(0.5)
	assert.Equal(t, "first", r.Leader(), "earlier bound row wins ties")

	first.Report(-1)
	assert.Equal(t, "second", r.Leader())
	assert.Equal(t, []string{"second", "first", "second"}, leaders)
}

func TestRegistry_RebindMakesOldHandleInert(t *testing.T) {
	r := selection.NewRegistry(nil)

	old := r.Bind("a")
	fresh := r.Bind("a")
	old.Report(1)
	assert.Empty(t, r.Leader())

	old.Release()
	fresh.Report(1)
	assert.Equal(t, "a", r.Leader())
	assert.Equal(t, "a", fresh.URN())
}
