// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/status"
	"github.com/finlens/evidence-mcp/internal/store"
)

func items(urns ...string) []evidence.Item {
	out := make([]evidence.Item, 0, len(urns))
	for _, urn := range urns {
		out = append(out, evidence.Item{URN: urn, Quote: "quote " + urn})
	}
	return out
}

func newStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.New(opts...)
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// Initial state
// ---------------------------------------------------------------------------

func TestNew_DefaultsToFirstItem(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b")))

	st := s.State()
	assert.Equal(t, "a", st.ActiveURN)
	assert.Equal(t, status.PanelLoading, st.Panel)
	assert.Equal(t, status.RenderIdle, st.PdfStatus)
	assert.False(t, st.DiffActive)
}

func TestNew_ExplicitActive(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b")), store.WithActive("b"))
	assert.Equal(t, "b", s.State().ActiveURN)

	s = newStore(t, store.WithItems(items("a", "b")), store.WithActive("zzz"))
	assert.Equal(t, "a", s.State().ActiveURN, "unknown initial id falls back to first item")
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

func TestSetSelection(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b")))

	assert.True(t, s.SetSelection("b"))
	assert.Equal(t, "b", s.State().ActiveURN)

	assert.False(t, s.SetSelection("b"), "reselecting is a no-op")
	assert.False(t, s.SetSelection("missing"), "unknown ids are ignored")
	assert.Equal(t, "b", s.State().ActiveURN)

	active, ok := s.State().Active()
	require.True(t, ok)
	assert.Equal(t, "quote b", active.Quote)
}

func TestSetItems_ReconcilesActive(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b", "c")), store.WithActive("b"))

	s.SetItems(items("c", "b"))
	assert.Equal(t, "b", s.State().ActiveURN, "kept while still present")

	s.SetItems(items("x", "y"))
	assert.Equal(t, "x", s.State().ActiveURN, "dangling id reassigned to first item")

	s.SetItems(nil)
	assert.Empty(t, s.State().ActiveURN)
	_, ok := s.State().Active()
	assert.False(t, ok)
}

func TestState_IsImmutable(t *testing.T) {
	s := newStore(t, store.WithItems(items("a")))

	st := s.State()
	st.Items[0].Quote = "mutated"

	assert.Equal(t, "quote a", s.State().Items[0].Quote)
}

// ---------------------------------------------------------------------------
// Sub-states
// ---------------------------------------------------------------------------

func TestToggleDiff_LeavesItems(t *testing.T) {
	s := newStore(t, store.WithItems(items("a")))

	assert.True(t, s.ToggleDiff(true))
	assert.False(t, s.ToggleDiff(true))
	st := s.State()
	assert.True(t, st.DiffActive)
	assert.Len(t, st.Items, 1)
}

func TestSetPdfState(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetPdfState(status.RenderLoading, ""))
	require.NoError(t, s.SetPdfState(status.RenderError, "corrupt page"))
	st := s.State()
	assert.Equal(t, status.RenderError, st.PdfStatus)
	assert.Equal(t, "corrupt page", st.PdfError)

	require.NoError(t, s.SetPdfState(status.RenderLoading, ""))
	assert.Empty(t, s.State().PdfError)

	err := s.SetPdfState(status.RenderStatus("bogus"), "")
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestLoadLifecycle(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.CompleteLoad(store.InitialLoad, evidence.Snapshot{Items: items("a", "b")}, nil))
	st := s.State()
	assert.Equal(t, status.PanelReady, st.Panel)
	assert.Equal(t, "a", st.ActiveURN)

	require.NoError(t, s.MarkAnchorMismatch("no match"))
	assert.Equal(t, status.PanelAnchorMismatch, s.State().Panel)
	require.NoError(t, s.MarkAnchorResolved())
	assert.Equal(t, status.PanelReady, s.State().Panel)

	err := s.CompleteLoad(store.InitialLoad, evidence.Snapshot{Items: items("z")}, nil)
	assert.ErrorIs(t, err, status.ErrInvalidTransition, "must begin a load first")
	assert.Equal(t, "a", s.State().ActiveURN)

	token, err := s.BeginLoad()
	require.NoError(t, err)
	require.NoError(t, s.FailLoad(token, errors.New("503")))
	st = s.State()
	assert.Equal(t, status.PanelError, st.Panel)
	assert.Equal(t, "503", st.PanelError)
	assert.Empty(t, st.Items, "no stale data next to an error")

	token, err = s.BeginLoad()
	require.NoError(t, err)
	require.NoError(t, s.CompleteLoad(token, evidence.Snapshot{}, nil))
	st = s.State()
	assert.Equal(t, status.PanelEmpty, st.Panel)
	assert.Empty(t, st.PanelError)
}

func TestLoad_StaleTokenIsRejected(t *testing.T) {
	s := newStore(t)

	first, err := s.BeginLoad()
	require.NoError(t, err)
	second, err := s.BeginLoad()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	prepared := false
	err = s.CompleteLoad(first, evidence.Snapshot{Items: items("old")}, func(snap evidence.Snapshot) evidence.Snapshot {
		prepared = true
		return snap
	})
	assert.ErrorIs(t, err, store.ErrStaleLoad)
	assert.False(t, prepared, "superseded loads do no follow-up work")
	assert.Equal(t, status.PanelLoading, s.State().Panel)
	assert.Empty(t, s.State().Items)

	assert.ErrorIs(t, s.FailLoad(first, errors.New("timeout")), store.ErrStaleLoad)
	assert.Equal(t, status.PanelLoading, s.State().Panel)

	require.NoError(t, s.CompleteLoad(second, evidence.Snapshot{Items: items("new")}, nil))
	st := s.State()
	assert.Equal(t, status.PanelReady, st.Panel)
	assert.Equal(t, "new", st.ActiveURN)
}

func TestFail_DropsItems(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CompleteLoad(store.InitialLoad, evidence.Snapshot{Items: items("a")}, nil))

	require.NoError(t, s.Fail(errors.New("structured fetch failed")))
	st := s.State()
	assert.Equal(t, status.PanelError, st.Panel)
	assert.Empty(t, st.Items)
	assert.Empty(t, st.ActiveURN)
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

func TestSubscribe(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b")))

	var order []string
	var seen []store.State
	unsubFirst := s.Subscribe(func(st store.State) {
		order = append(order, "first")
		seen = append(seen, st)
	})
	s.Subscribe(func(store.State) {
		order = append(order, "second")
	})

	s.SetSelection("b")
	require.Len(t, seen, 1)
	assert.Equal(t, "b", seen[0].ActiveURN)
	assert.Equal(t, []string{"first", "second"}, order)

	s.SetSelection("b")
	assert.Len(t, seen, 1, "no-op writes do not notify")

	unsubFirst()
	s.ToggleDiff(true)
	assert.Len(t, seen, 1)
	assert.Equal(t, []string{"first", "second", "second"}, order)
}

func TestSubscribe_VersionIncreases(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b")))

	var versions []uint64
	s.Subscribe(func(st store.State) { versions = append(versions, st.Version) })

	s.SetSelection("b")
	s.ToggleDiff(true)
	s.SetItems(items("c"))

	assert.Equal(t, []uint64{1, 2, 3}, versions)
}

func TestSubscribe_ListenerMayReadStore(t *testing.T) {
	s := newStore(t, store.WithItems(items("a", "b")))

	var active string
	s.Subscribe(func(store.State) {
		active = s.State().ActiveURN
	})
	s.SetSelection("b")
	assert.Equal(t, "b", active)
}
