// SPDX-License-Identifier: Apache-2.0

// Package panel composes the evidence store, selection controller, anchor
// resolvers and diff timeline into the evidence panel a host page embeds.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finlens/evidence-mcp/internal/diff"
	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/logging"
	"github.com/finlens/evidence-mcp/internal/pageimage"
	"github.com/finlens/evidence-mcp/internal/selection"
	"github.com/finlens/evidence-mcp/internal/store"
	"github.com/finlens/evidence-mcp/internal/structured"
)

var (
	// ErrTransport is the only failure surfaced as a panel-level error.
	ErrTransport = errors.New("evidence fetch failed")
	// ErrPreviewLocked is returned when inline preview is not entitled.
	ErrPreviewLocked = errors.New("inline preview not available on this plan")
	// ErrSuperseded is returned by a load that a later load replaced.
	ErrSuperseded = errors.New("load superseded")
	// ErrUnknownItem is returned for URNs not in the evidence set.
	ErrUnknownItem = errors.New("unknown evidence item")
)

// Callbacks are the notifications the panel sends to its host. Any may be
// nil.
type Callbacks struct {
	OnSelectEvidence func(urn string)
	// OnHoverEvidence receives "" when the pointer leaves the list.
	OnHoverEvidence  func(urn string)
	OnRequestOpenPdf func(urn string)
	OnRequestUpgrade func(tier string)
	OnToggleDiff     func(next bool)
}

// Entitlements gate features by plan.
type Entitlements struct {
	InlinePreview bool
	Tier          string
}

// FetchFunc retrieves the evidence set for the current turn.
type FetchFunc func(ctx context.Context) (evidence.Snapshot, error)

// Options configures a Panel.
type Options struct {
	Callbacks    Callbacks
	Entitlements Entitlements

	// PageLoader and Renderer back the page-image pane. A nil loader
	// disables it.
	PageLoader pageimage.Loader
	Renderer   pageimage.Renderer
	// DefaultSource is used for rect anchors on items without a source URL.
	DefaultSource  string
	ContainerWidth float64

	// Structured backs the structured pane.
	Structured     structured.Fetcher
	HighlightClass string

	History            int
	VisibilityTracking bool
}

// Panel is one evidence panel instance.
type Panel struct {
	store     *store.Store
	selection *selection.Controller
	pages     *pageimage.Resolver
	tree      *structured.Resolver
	timeline  *diff.Timeline

	callbacks     Callbacks
	entitlements  Entitlements
	defaultSource string

	mu       sync.Mutex
	lastDiff *diff.Result
}

// New creates a panel in the loading state.
func New(opts Options) (*Panel, error) {
	st, err := store.New()
	if err != nil {
		return nil, err
	}

	p := &Panel{
		store:         st,
		timeline:      diff.NewTimeline(opts.History),
		callbacks:     opts.Callbacks,
		entitlements:  opts.Entitlements,
		defaultSource: opts.DefaultSource,
	}

	selOpts := []selection.Option{
		selection.OnSelect(func(urn string, _ selection.Source) {
			if p.callbacks.OnSelectEvidence != nil {
				p.callbacks.OnSelectEvidence(urn)
			}
		}),
		selection.OnHover(func(urn string) {
			if p.callbacks.OnHoverEvidence != nil {
				p.callbacks.OnHoverEvidence(urn)
			}
		}),
	}
	if opts.VisibilityTracking {
		selOpts = append(selOpts, selection.WithVisibilityTracking())
	}
	p.selection = selection.NewController(st, selOpts...)

	if opts.Entitlements.InlinePreview && opts.PageLoader != nil {
		pages, err := pageimage.NewResolver(opts.PageLoader, opts.Renderer, st)
		if err != nil {
			return nil, err
		}
		pages.SetContainerWidth(opts.ContainerWidth)
		p.pages = pages
	}

	p.tree = structured.NewResolver(opts.Structured, structured.WithHighlightClass(opts.HighlightClass))
	return p, nil
}

// State returns the current store state.
func (p *Panel) State() store.State {
	return p.store.State()
}

// Subscribe registers a listener for state changes.
func (p *Panel) Subscribe(fn store.Listener) func() {
	return p.store.Subscribe(fn)
}

// Selection exposes the controller for row visibility binding and ticks.
func (p *Panel) Selection() *selection.Controller {
	return p.selection
}

// LoadEvidence fetches a new evidence set. On failure the panel moves to
// error and no part of the response is shown. Complete snapshots are
// diffed against the previous complete one.
func (p *Panel) LoadEvidence(ctx context.Context, fetch FetchFunc) error {
	token, err := p.store.BeginLoad()
	if err != nil {
		return err
	}

	start := time.Now()
	snapshot, err := fetch(ctx)
	if err != nil {
		if ferr := p.store.FailLoad(token, err); ferr != nil {
			return p.discard(token, ferr)
		}
		logging.Warn().
			Add(logging.Component("panel")).
			Add(logging.ErrorField(err)).
			Msg("evidence fetch failed")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	err = p.store.CompleteLoad(token, snapshot, func(snap evidence.Snapshot) evidence.Snapshot {
		if !p.timeline.Submit(snap) {
			return snap
		}
		if result, ok := p.timeline.Latest(); ok {
			snap.Items = result.Annotate()
			p.mu.Lock()
			p.lastDiff = &result
			p.mu.Unlock()
		}
		return snap
	})
	if err != nil {
		return p.discard(token, err)
	}
	logging.Info().
		Add(logging.Component("panel")).
		Add(logging.Duration(time.Since(start))).
		Add(logging.Status(string(p.store.State().Panel))).
		Msg("evidence loaded")
	return nil
}

func (p *Panel) discard(token store.LoadToken, err error) error {
	if !errors.Is(err, store.ErrStaleLoad) {
		return err
	}
	logging.Debug().
		Add(logging.Component("panel")).
		Add(logging.Generation(uint64(token))).
		Msg("stale evidence load discarded")
	return ErrSuperseded
}

// Diff returns the latest diff of complete snapshots.
func (p *Panel) Diff() (diff.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastDiff == nil {
		return diff.Result{}, false
	}
	return *p.lastDiff, true
}

// RemovedItems returns items dropped since the previous snapshot. It is
// empty unless diff mode is on.
func (p *Panel) RemovedItems() []evidence.Item {
	if !p.store.State().DiffActive {
		return nil
	}
	result, ok := p.Diff()
	if !ok {
		return nil
	}
	return result.Removed
}

// ToggleDiff switches diff mode and tells the host.
func (p *Panel) ToggleDiff(next bool) {
	if p.store.ToggleDiff(next) && p.callbacks.OnToggleDiff != nil {
		p.callbacks.OnToggleDiff(next)
	}
}

// Select handles a click on a list row and resolves its anchor.
func (p *Panel) Select(ctx context.Context, urn string) (Resolution, error) {
	p.selection.HandleSelect(urn)
	return p.ResolveActive(ctx)
}

// Focus selects urn on behalf of the host and resolves its anchor.
func (p *Panel) Focus(ctx context.Context, urn string) (Resolution, error) {
	p.selection.Focus(urn)
	return p.ResolveActive(ctx)
}

// Hover records the hovered row.
func (p *Panel) Hover(urn string) {
	p.selection.Hover(urn)
}

// OpenSource focuses urn and shows its source: inline when preview is
// entitled, otherwise by asking the host to open it externally.
func (p *Panel) OpenSource(ctx context.Context, urn string) (Resolution, error) {
	if _, ok := p.store.State().Item(urn); !ok {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownItem, urn)
	}
	p.selection.Focus(urn)
	if p.pages == nil {
		if p.callbacks.OnRequestOpenPdf != nil {
			p.callbacks.OnRequestOpenPdf(urn)
		}
		return Resolution{URN: urn, Kind: KindExternal}, nil
	}
	return p.ResolveActive(ctx)
}

// RequestPreview asks for inline preview. Without the entitlement the host
// is asked to offer an upgrade.
func (p *Panel) RequestPreview() error {
	if p.entitlements.InlinePreview {
		return nil
	}
	if p.callbacks.OnRequestUpgrade != nil {
		p.callbacks.OnRequestUpgrade(p.entitlements.Tier)
	}
	return ErrPreviewLocked
}

// SetContainerWidth records the width of the page-image pane and re-renders
// the current page.
func (p *Panel) SetContainerWidth(ctx context.Context, width float64) error {
	if p.pages == nil {
		return nil
	}
	p.pages.SetContainerWidth(width)
	if _, ok := p.pages.Current(); !ok {
		return nil
	}
	_, err := p.pages.Rerender(ctx)
	if errors.Is(err, pageimage.ErrSuperseded) {
		return nil
	}
	return err
}

// LoadStructured fetches the structured renditions of documentID. A missing
// rendition is not a failure; a transport failure moves the panel to error.
func (p *Panel) LoadStructured(ctx context.Context, documentID string) error {
	err := p.tree.Load(ctx, documentID)
	switch {
	case err == nil, errors.Is(err, structured.ErrNotAvailable), errors.Is(err, structured.ErrSuperseded):
		return nil
	case errors.Is(err, structured.ErrTransport):
		if ferr := p.store.Fail(err); ferr != nil {
			return ferr
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	default:
		return err
	}
}

// SetStructured installs structured renditions directly.
func (p *Panel) SetStructured(documentID string, docs []structured.SubDocument) {
	_ = p.tree.SetDocuments(documentID, docs)
}

// StructuredMarkup renders the active structured sub-document.
func (p *Panel) StructuredMarkup() (string, error) {
	return p.tree.Markup()
}
