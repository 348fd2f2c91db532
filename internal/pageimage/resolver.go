// SPDX-License-Identifier: Apache-2.0

package pageimage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/logging"
	"github.com/finlens/evidence-mcp/internal/status"
)

var (
	// ErrRender is the failure reported for load or render errors. It only
	// affects the page-image pane.
	ErrRender = errors.New("page render failed")
	// ErrSuperseded is returned by an Open that a later Open replaced.
	ErrSuperseded = errors.New("render superseded")
	// ErrOtherPage means the anchor points at a page that is not shown.
	ErrOtherPage = errors.New("anchor is on another page")
	// ErrNoRender means no page has finished rendering yet.
	ErrNoRender = errors.New("no completed render")
	// ErrNoAnchor means no rectangle anchor is active.
	ErrNoAnchor = errors.New("no active anchor")
)

// StateSink receives render status changes. The evidence store implements
// it.
type StateSink interface {
	SetPdfState(to status.RenderStatus, message string) error
}

// Render is a completed page render.
type Render struct {
	Source   string
	Page     int
	Pages    int
	Viewport Viewport
	Surface  *Surface
}

// Resolver loads and renders pages, superseding in-flight work when the
// source or page changes, and places the active anchor on the latest
// completed render.
type Resolver struct {
	loader   Loader
	renderer Renderer
	sink     StateSink

	gen     atomic.Uint64
	stateMu sync.Mutex

	mu             sync.Mutex
	cancel         context.CancelFunc
	containerWidth float64
	source         string
	page           int
	anchor         *evidence.PageRect
	rendered       *Render
	renderedGen    uint64
}

// NewResolver creates a resolver. A nil renderer uses PDFRenderer; a nil
// sink keeps status in a private render machine.
func NewResolver(loader Loader, renderer Renderer, sink StateSink) (*Resolver, error) {
	if renderer == nil {
		renderer = PDFRenderer{}
	}
	if sink == nil {
		m, err := status.NewRenderMachine()
		if err != nil {
			return nil, err
		}
		sink = machineSink{m}
	}
	return &Resolver{loader: loader, renderer: renderer, sink: sink}, nil
}

type machineSink struct {
	m *status.RenderMachine
}

func (s machineSink) SetPdfState(to status.RenderStatus, message string) error {
	return s.m.Transition(to, message)
}

// SetContainerWidth records the width available to the page. Zero means it
// is not known yet and pages render at scale 1. It takes effect on the next
// Open or Rerender.
func (r *Resolver) SetContainerWidth(width float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width < 0 || !finite(width) {
		width = 0
	}
	r.containerWidth = width
}

// SetAnchor replaces the active rectangle. A nil rect clears it.
func (r *Resolver) SetAnchor(rect *evidence.PageRect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rect == nil {
		r.anchor = nil
		return
	}
	cp := *rect
	r.anchor = &cp
}

// Current returns the render of the latest Open. It reports false while
// that Open is in flight or after it failed.
func (r *Resolver) Current() (Render, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rendered := r.currentLocked()
	if rendered == nil {
		return Render{}, false
	}
	return *rendered, true
}

func (r *Resolver) currentLocked() *Render {
	if r.rendered == nil || r.renderedGen != r.gen.Load() {
		return nil
	}
	return r.rendered
}

// Open loads source and renders page, cancelling any earlier Open. It blocks
// until the render completes, fails, or is superseded.
func (r *Resolver) Open(ctx context.Context, source string, page int) (Render, error) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	if source != r.source || page != r.page {
		r.rendered = nil
	}
	r.source, r.page = source, page
	width := r.containerWidth
	gen := r.gen.Add(1)
	r.mu.Unlock()
	defer cancel()

	start := time.Now()
	r.apply(gen, status.RenderLoading, "")

	rendered, err := r.load(ctx, source, page, width)
	if err != nil {
		if ctx.Err() != nil || r.gen.Load() != gen {
			logging.Debug().
				Add(logging.Component("pageimage")).
				Add(logging.Source(source)).
				Add(logging.Generation(gen)).
				Msg("stale render discarded")
			return Render{}, ErrSuperseded
		}
		logging.Warn().
			Add(logging.Component("pageimage")).
			Add(logging.Source(source)).
			Add(logging.Page(page)).
			Add(logging.ErrorField(err)).
			Msg("page render failed")
		if !r.apply(gen, status.RenderError, err.Error()) {
			return Render{}, ErrSuperseded
		}
		return Render{}, fmt.Errorf("%w: %w", ErrRender, err)
	}

	committed := r.commit(gen, func() {
		r.mu.Lock()
		r.rendered = &rendered
		r.renderedGen = gen
		r.mu.Unlock()
	})
	if !committed {
		return Render{}, ErrSuperseded
	}
	logging.Debug().
		Add(logging.Component("pageimage")).
		Add(logging.Source(source)).
		Add(logging.Page(rendered.Page)).
		Add(logging.Duration(time.Since(start))).
		Msg("page rendered")
	return rendered, nil
}

// Rerender repeats the last Open, for example after the container resized.
func (r *Resolver) Rerender(ctx context.Context) (Render, error) {
	r.mu.Lock()
	source, page := r.source, r.page
	r.mu.Unlock()
	if source == "" {
		return Render{}, ErrNoRender
	}
	return r.Open(ctx, source, page)
}

func (r *Resolver) load(ctx context.Context, source string, page int, width float64) (Render, error) {
	doc, err := r.loader.Load(ctx, source)
	if err != nil {
		return Render{}, err
	}
	if doc.PageCount() == 0 {
		return Render{}, ErrNoPages
	}
	page = doc.ClampPage(page)
	size, err := doc.PageSize(page)
	if err != nil {
		return Render{}, err
	}

	scale := 1.0
	if width > 0 && size.Width > 0 {
		scale = width / size.Width
	}
	vp, err := NewViewport(size, scale, doc.Rotation(page))
	if err != nil {
		return Render{}, err
	}
	surface, err := r.renderer.Render(ctx, doc, page, vp)
	if err != nil {
		return Render{}, err
	}
	if err := ctx.Err(); err != nil {
		return Render{}, err
	}
	return Render{Source: source, Page: page, Pages: doc.PageCount(), Viewport: vp, Surface: surface}, nil
}

// apply forwards a status change unless gen has been superseded.
func (r *Resolver) apply(gen uint64, to status.RenderStatus, message string) bool {
	return r.commit(gen, func() {
		if err := r.sink.SetPdfState(to, message); err != nil {
			logging.Debug().
				Add(logging.Component("pageimage")).
				Add(logging.ErrorField(err)).
				Msg("render status rejected")
		}
	})
}

func (r *Resolver) commit(gen uint64, fn func()) bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.gen.Load() != gen {
		return false
	}
	fn()
	return true
}

// Highlight returns the display rectangle of the active anchor against the
// render of the latest Open. Any error means the highlight is hidden;
// ErrOtherPage is an ordinary outcome rather than a failure.
func (r *Resolver) Highlight() (Rect, error) {
	r.mu.Lock()
	anchor, rendered := r.anchor, r.currentLocked()
	r.mu.Unlock()

	switch {
	case anchor == nil:
		return Rect{}, ErrNoAnchor
	case rendered == nil:
		return Rect{}, ErrNoRender
	}
	return PlaceHighlight(*anchor, rendered.Page, rendered.Viewport)
}

// PlaceHighlight maps rect onto the viewport of currentPage.
func PlaceHighlight(rect evidence.PageRect, currentPage int, vp Viewport) (Rect, error) {
	if rect.Page != currentPage {
		return Rect{}, fmt.Errorf("%w: anchor page %d, showing %d", ErrOtherPage, rect.Page, currentPage)
	}
	return vp.DisplayRect(rect)
}
