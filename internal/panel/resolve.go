// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"context"
	"errors"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/logging"
	"github.com/finlens/evidence-mcp/internal/pageimage"
	"github.com/finlens/evidence-mcp/internal/status"
	"github.com/finlens/evidence-mcp/internal/structured"
)

// Kind says which pane handled a resolution.
type Kind string

const (
	KindNone       Kind = "none"
	KindRect       Kind = "rect"
	KindPath       Kind = "path"
	KindExternal   Kind = "external"
	KindPending    Kind = "pending"
	KindRenderFail Kind = "render-error"
)

// Resolution is the outcome of placing the active item's anchor.
type Resolution struct {
	URN        string                 `json:"urnId"`
	Kind       Kind                   `json:"kind"`
	Rect       *pageimage.Rect        `json:"rect,omitempty"`
	Page       int                    `json:"page,omitempty"`
	Structured *structured.Resolution `json:"structured,omitempty"`
	// Mismatch explains why the anchor could not be placed. The panel is in
	// anchor-mismatch whenever it is set.
	Mismatch string `json:"mismatch,omitempty"`
}

// ResolveActive places the active item's anchor in the matching pane and
// updates the panel status: anchor-mismatch when the anchor cannot be
// placed, ready when it can. Render failures only affect the page-image
// sub-state.
func (p *Panel) ResolveActive(ctx context.Context) (Resolution, error) {
	item, ok := p.store.State().Active()
	if !ok {
		return Resolution{Kind: KindNone}, nil
	}

	switch {
	case item.Anchor.IsRect():
		return p.resolveRect(ctx, item)
	case item.PathHint() != "":
		return p.resolvePath(item)
	default:
		p.tree.Clear()
		p.resolved()
		return Resolution{URN: item.URN, Kind: KindNone}, nil
	}
}

func (p *Panel) resolveRect(ctx context.Context, item evidence.Item) (Resolution, error) {
	res := Resolution{URN: item.URN, Kind: KindRect}
	if p.pages == nil {
		res.Kind = KindExternal
		return res, nil
	}

	rect := item.Anchor.Rect
	source := item.SourceURL
	if source == "" {
		source = p.defaultSource
	}
	p.pages.SetAnchor(rect)

	current, ok := p.pages.Current()
	if !ok || current.Source != source || current.Page != rect.Page || p.store.State().PdfStatus != status.RenderReady {
		rendered, err := p.pages.Open(ctx, source, rect.Page)
		switch {
		case errors.Is(err, pageimage.ErrSuperseded):
			res.Kind = KindPending
			return res, nil
		case err != nil:
			// The render sub-state already carries the message.
			res.Kind = KindRenderFail
			return res, nil
		}
		current = rendered
	}
	res.Page = current.Page

	display, err := p.pages.Highlight()
	if err != nil {
		return p.mismatch(res, err), nil
	}
	res.Rect = &display
	p.resolved()
	return res, nil
}

func (p *Panel) resolvePath(item evidence.Item) (Resolution, error) {
	res := Resolution{URN: item.URN, Kind: KindPath}

	match, err := p.tree.Resolve(item)
	switch {
	case errors.Is(err, structured.ErrNotLoaded):
		res.Kind = KindPending
		return res, nil
	case err != nil:
		return p.mismatch(res, err), nil
	}
	res.Structured = match
	p.resolved()
	return res, nil
}

func (p *Panel) mismatch(res Resolution, cause error) Resolution {
	res.Mismatch = cause.Error()
	logging.Info().
		Add(logging.Component("panel")).
		Add(logging.URN(res.URN)).
		Add(logging.ErrorField(cause)).
		Msg("anchor mismatch")
	if err := p.store.MarkAnchorMismatch(res.Mismatch); err != nil {
		logging.Debug().
			Add(logging.Component("panel")).
			Add(logging.ErrorField(err)).
			Msg("anchor mismatch not recorded")
	}
	return res
}

func (p *Panel) resolved() {
	if p.store.State().Panel != status.PanelAnchorMismatch {
		return
	}
	if err := p.store.MarkAnchorResolved(); err != nil {
		logging.Debug().
			Add(logging.Component("panel")).
			Add(logging.ErrorField(err)).
			Msg("anchor resolution not recorded")
	}
}
