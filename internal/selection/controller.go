// SPDX-License-Identifier: Apache-2.0

// Package selection reconciles the sources that can change the active
// evidence item: clicks in the list, focus requests from elsewhere in the
// host application, and scroll visibility of list rows.
package selection

import (
	"sync"

	"github.com/finlens/evidence-mcp/internal/logging"
	"github.com/finlens/evidence-mcp/internal/store"
)

// Target is the state container selections are written to.
type Target interface {
	State() store.State
	SetSelection(urn string) bool
}

// Source identifies who asked for a selection.
type Source string

const (
	SourceClick      Source = "click"
	SourceFocus      Source = "focus"
	SourceVisibility Source = "visibility"
)

// Controller serializes selection writes into a Target. Explicit selections
// (click or focus) made during a tick suppress visibility promotions for the
// rest of that tick.
type Controller struct {
	mu           sync.Mutex
	target       Target
	onSelect     func(urn string, source Source)
	onHover      func(urn string)
	tracking     bool
	tick         uint64
	explicitTick uint64
	explicit     bool
	hovered      string
	registry     *Registry
}

// Option configures a Controller.
type Option func(*Controller)

// OnSelect registers a callback fired after a selection changed the active
// item.
func OnSelect(fn func(urn string, source Source)) Option {
	return func(c *Controller) {
		c.onSelect = fn
	}
}

// OnHover registers a callback fired when the hovered row changes. An empty
// URN means nothing is hovered.
func OnHover(fn func(urn string)) Option {
	return func(c *Controller) {
		c.onHover = fn
	}
}

// WithVisibilityTracking lets the most visible bound row become active.
func WithVisibilityTracking() Option {
	return func(c *Controller) {
		c.tracking = true
	}
}

// NewController creates a controller writing into target.
func NewController(target Target, opts ...Option) *Controller {
	c := &Controller{target: target}
	for _, opt := range opts {
		opt(c)
	}
	c.registry = NewRegistry(c.promote)
	return c
}

// HandleSelect selects urn in response to a click. Calling it again with the
// active URN does nothing, as does passing a URN that is no longer in the
// evidence set.
func (c *Controller) HandleSelect(urn string) bool {
	return c.selectExplicit(urn, SourceClick)
}

// Focus selects urn on behalf of another part of the host application.
func (c *Controller) Focus(urn string) bool {
	return c.selectExplicit(urn, SourceFocus)
}

// Hover records the row under the pointer.
func (c *Controller) Hover(urn string) {
	c.mu.Lock()
	if c.hovered == urn {
		c.mu.Unlock()
		return
	}
	c.hovered = urn
	fn := c.onHover
	c.mu.Unlock()

	if fn != nil {
		fn(urn)
	}
}

// Hovered returns the hovered URN, or "".
func (c *Controller) Hovered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered
}

// Tick marks the end of a render cycle. The host calls it once per cycle.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	c.explicit = false
}

// EnableVisibilityTracking switches visibility promotion on or off.
func (c *Controller) EnableVisibilityTracking(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = enabled
}

// Bind returns the visibility handle for the row showing urn.
func (c *Controller) Bind(urn string) *Handle {
	return c.registry.Bind(urn)
}

func (c *Controller) selectExplicit(urn string, source Source) bool {
	c.mu.Lock()
	c.explicit = true
	c.explicitTick = c.tick
	fn := c.onSelect
	c.mu.Unlock()

	if !c.target.SetSelection(urn) {
		return false
	}
	if fn != nil {
		fn(urn, source)
	}
	return true
}

func (c *Controller) promote(urn string) {
	c.mu.Lock()
	if !c.tracking {
		c.mu.Unlock()
		return
	}
	if c.explicit && c.explicitTick == c.tick {
		tick := c.tick
		c.mu.Unlock()
		logging.Debug().
			Add(logging.Component("selection")).
			Add(logging.URN(urn)).
			Add(logging.Generation(tick)).
			Msg("visibility promotion dropped: explicit selection this tick")
		return
	}
	fn := c.onSelect
	c.mu.Unlock()

	if c.target.SetSelection(urn) && fn != nil {
		fn(urn, SourceVisibility)
	}
}
