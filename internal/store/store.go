// SPDX-License-Identifier: Apache-2.0

// Package store holds the per-panel evidence state. The Store is the only
// writer; views read immutable State values and learn about changes through
// subscriptions.
package store

import (
	"errors"
	"sync"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/logging"
	"github.com/finlens/evidence-mcp/internal/status"
)

// ErrStaleLoad is returned when a load completes after a newer one began.
var ErrStaleLoad = errors.New("load superseded by a newer load")

// LoadToken identifies one load cycle. Only the token of the most recent
// BeginLoad may complete or fail the load.
type LoadToken uint64

// InitialLoad is the token of the load a new store starts in.
const InitialLoad LoadToken = 0

// State is an immutable view of the store at one version.
type State struct {
	Version    uint64
	Items      []evidence.Item
	ActiveURN  string
	DiffActive bool
	PdfStatus  status.RenderStatus
	PdfError   string
	Panel      status.PanelStatus
	PanelError string
}

// Item returns the item with the given URN.
func (s State) Item(urn string) (evidence.Item, bool) {
	for _, item := range s.Items {
		if item.URN == urn {
			return item, true
		}
	}
	return evidence.Item{}, false
}

// Active returns the active item, if any.
func (s State) Active() (evidence.Item, bool) {
	if s.ActiveURN == "" {
		return evidence.Item{}, false
	}
	return s.Item(s.ActiveURN)
}

// Listener is notified after every state change.
type Listener func(State)

type subscription struct {
	id int
	fn Listener
}

// Store is the single reactive container of one evidence panel.
type Store struct {
	mu         sync.Mutex
	version    uint64
	items      []evidence.Item
	active     string
	diffActive bool
	render     *status.RenderMachine
	panel      *status.PanelMachine
	subs       []subscription
	nextSub    int
	load       LoadToken
}

// Option configures a Store.
type Option func(*Store)

// WithActive selects an initial active item. It is ignored when the URN is
// not among the initial items.
func WithActive(urn string) Option {
	return func(s *Store) {
		s.active = urn
	}
}

// WithItems seeds the store with an initial evidence set.
func WithItems(items []evidence.Item) Option {
	return func(s *Store) {
		s.items = cloneItems(items)
	}
}

// New creates a store. Unless an explicit active item is given, the first
// item becomes active.
func New(opts ...Option) (*Store, error) {
	render, err := status.NewRenderMachine()
	if err != nil {
		return nil, err
	}
	panel, err := status.NewPanelMachine()
	if err != nil {
		return nil, err
	}
	s := &Store{render: render, panel: panel}
	for _, opt := range opts {
		opt(s)
	}
	s.active = reconcileActive(s.items, s.active)
	return s, nil
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Listeners run in registration order after the write has
// been committed, outside the store lock.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// SetSelection makes urn the active item. Unknown URNs are ignored because
// selection races with list refreshes; the call reports whether anything
// changed.
func (s *Store) SetSelection(urn string) bool {
	return s.write(func() bool {
		if urn == s.active {
			return false
		}
		if !containsURN(s.items, urn) {
			logging.Debug().
				Add(logging.Component("store")).
				Add(logging.URN(urn)).
				Msg("selection ignored: urn not in current evidence set")
			return false
		}
		s.active = urn
		return true
	})
}

// ClearSelection unsets the active item.
func (s *Store) ClearSelection() bool {
	return s.write(func() bool {
		if s.active == "" {
			return false
		}
		s.active = ""
		return true
	})
}

// ToggleDiff sets diff mode. Items are untouched.
func (s *Store) ToggleDiff(next bool) bool {
	return s.write(func() bool {
		if s.diffActive == next {
			return false
		}
		s.diffActive = next
		return true
	})
}

// SetPdfState moves the page-image sub-state. The error message is cleared
// whenever the status leaves error.
func (s *Store) SetPdfState(to status.RenderStatus, message string) error {
	var err error
	s.write(func() bool {
		before, beforeErr := s.render.Status(), s.render.Error()
		err = s.render.Transition(to, message)
		return err == nil && (before != s.render.Status() || beforeErr != s.render.Error())
	})
	return err
}

// BeginLoad enters the panel loading state for a first fetch or a retry
// and supersedes any load still in flight.
func (s *Store) BeginLoad() (LoadToken, error) {
	var (
		token LoadToken
		err   error
	)
	s.write(func() bool {
		before := s.panel.Status()
		if err = s.panel.Load(); err != nil {
			return false
		}
		s.load++
		token = s.load
		return before != s.panel.Status()
	})
	return token, err
}

// CompleteLoad replaces the evidence set with a freshly fetched one and
// moves the panel to ready or empty. prepare, when non-nil, runs under the
// store lock once the token is known to be current, so work tied to the
// load (such as diffing) happens only for the winning load. CompleteLoad
// fails without touching the items if token is stale or the panel is not
// loading.
func (s *Store) CompleteLoad(token LoadToken, snapshot evidence.Snapshot, prepare func(evidence.Snapshot) evidence.Snapshot) error {
	var err error
	s.write(func() bool {
		if token != s.load {
			err = ErrStaleLoad
			return false
		}
		if err = s.panel.Loaded(len(snapshot.Items)); err != nil {
			return false
		}
		if prepare != nil {
			snapshot = prepare(snapshot)
		}
		s.replaceItemsLocked(snapshot.Items)
		return true
	})
	return err
}

// FailLoad records a transport failure of the load identified by token.
func (s *Store) FailLoad(token LoadToken, cause error) error {
	var err error
	s.write(func() bool {
		if token != s.load {
			err = ErrStaleLoad
			return false
		}
		return s.failLocked(cause, &err)
	})
	return err
}

// Fail records a transport failure outside the evidence load, for example
// of a structured document fetch. Items are dropped so stale evidence is
// never shown next to the error.
func (s *Store) Fail(cause error) error {
	var err error
	s.write(func() bool {
		return s.failLocked(cause, &err)
	})
	return err
}

func (s *Store) failLocked(cause error, errp *error) bool {
	if *errp = s.panel.Fail(cause); *errp != nil {
		return false
	}
	s.items = nil
	s.active = ""
	return true
}

// SetItems swaps in a new snapshot without a load cycle, for example when
// the retrieval collaborator pushes a newer turn. The active URN is kept when
// still present, otherwise reassigned to the first item or cleared.
func (s *Store) SetItems(items []evidence.Item) {
	s.write(func() bool {
		s.replaceItemsLocked(items)
		return true
	})
}

// MarkAnchorMismatch moves a ready panel to anchor-mismatch.
func (s *Store) MarkAnchorMismatch(reason string) error {
	return s.panelWrite(func() error { return s.panel.AnchorMismatch(reason) })
}

// MarkAnchorResolved moves a mismatched panel back to ready.
func (s *Store) MarkAnchorResolved() error {
	return s.panelWrite(s.panel.AnchorResolved)
}

func (s *Store) panelWrite(transition func() error) error {
	var err error
	s.write(func() bool {
		before := s.panel.Status()
		if err = transition(); err != nil {
			return false
		}
		return before != s.panel.Status()
	})
	return err
}

func (s *Store) replaceItemsLocked(items []evidence.Item) {
	s.items = cloneItems(items)
	next := reconcileActive(s.items, s.active)
	if next != s.active && s.active != "" {
		logging.Debug().
			Add(logging.Component("store")).
			Add(logging.URN(s.active)).
			Msg("active item missing from new snapshot; reassigned")
	}
	s.active = next
}

// write applies mutate under the lock and, when it reports a change, bumps
// the version and notifies listeners.
func (s *Store) write(mutate func() bool) bool {
	s.mu.Lock()
	if !mutate() {
		s.mu.Unlock()
		return false
	}
	s.version++
	state := s.stateLocked()
	listeners := make([]Listener, len(s.subs))
	for i, sub := range s.subs {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
	return true
}

func (s *Store) stateLocked() State {
	return State{
		Version:    s.version,
		Items:      cloneItems(s.items),
		ActiveURN:  s.active,
		DiffActive: s.diffActive,
		PdfStatus:  s.render.Status(),
		PdfError:   s.render.Error(),
		Panel:      s.panel.Status(),
		PanelError: s.panel.Error(),
	}
}

func reconcileActive(items []evidence.Item, active string) string {
	if active != "" && containsURN(items, active) {
		return active
	}
	if len(items) > 0 {
		return items[0].URN
	}
	return ""
}

func containsURN(items []evidence.Item, urn string) bool {
	if urn == "" {
		return false
	}
	for _, item := range items {
		if item.URN == urn {
			return true
		}
	}
	return false
}

func cloneItems(items []evidence.Item) []evidence.Item {
	if items == nil {
		return nil
	}
	out := make([]evidence.Item, len(items))
	copy(out, items)
	return out
}
