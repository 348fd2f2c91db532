// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/pageimage"
)

// MetadataResolvePageAnchor describes the resolve_page_anchor tool.
var MetadataResolvePageAnchor = &mcp.Tool{
	Name: "resolve_page_anchor",
	Description: "Place an evidence rectangle on a rendered page. " +
		"The rectangle is in document units with a top-left origin. " +
		"The page is scaled to fit container_width (scale 1 when omitted), and the highlight is returned in display units. " +
		"A rectangle on a page other than current_page is reported as not visible rather than as an error. " +
		"Page geometry comes from source (a PDF path or URL) or from page_width and page_height.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"anchor"},
		"properties": map[string]interface{}{
			"anchor": map[string]interface{}{
				"type":        "object",
				"description": "Rectangle {page, x, y, width, height} in document units",
				"required":    []string{"page", "x", "y", "width", "height"},
				"properties": map[string]interface{}{
					"page":   map[string]interface{}{"type": "integer", "minimum": 1},
					"x":      map[string]interface{}{"type": "number"},
					"y":      map[string]interface{}{"type": "number"},
					"width":  map[string]interface{}{"type": "number", "minimum": 0},
					"height": map[string]interface{}{"type": "number", "minimum": 0},
				},
			},
			"source": map[string]interface{}{
				"type":        "string",
				"description": "PDF path or URL used to discover page count and native page size",
			},
			"page_width": map[string]interface{}{
				"type":        "number",
				"description": "Native page width when no source is given",
			},
			"page_height": map[string]interface{}{
				"type":        "number",
				"description": "Native page height when no source is given",
			},
			"container_width": map[string]interface{}{
				"type":        "number",
				"description": "Width available to the rendered page; 0 or omitted renders at scale 1",
			},
			"current_page": map[string]interface{}{
				"type":        "integer",
				"description": "Page currently shown; defaults to the anchor's page",
			},
			"rotation": map[string]interface{}{
				"type":        "integer",
				"description": "Display rotation in degrees",
				"enum":        []int{0, 90, 180, 270},
			},
		},
	},
}

// InputResolvePageAnchor is the input for the ResolvePageAnchor tool.
type InputResolvePageAnchor struct {
	Anchor         evidence.PageRect `json:"anchor"`
	Source         string            `json:"source"`
	PageWidth      float64           `json:"page_width"`
	PageHeight     float64           `json:"page_height"`
	ContainerWidth float64           `json:"container_width"`
	CurrentPage    int               `json:"current_page"`
	Rotation       int               `json:"rotation"`
}

// OutputResolvePageAnchor is the output for the ResolvePageAnchor tool.
type OutputResolvePageAnchor struct {
	Visible  bool               `json:"visible"`
	Rect     *pageimage.Rect    `json:"rect,omitempty"`
	Page     int                `json:"page"`
	Pages    int                `json:"pages,omitempty"`
	Viewport pageimage.Viewport `json:"viewport"`
	// Reason explains a hidden highlight.
	Reason string `json:"reason,omitempty"`
}

// ResolvePageAnchor computes the display rectangle of an evidence anchor.
func (t *Tools) ResolvePageAnchor(ctx context.Context, _ *mcp.CallToolRequest, input InputResolvePageAnchor) (*mcp.CallToolResult, OutputResolvePageAnchor, error) {
	if input.Anchor.Page < 1 {
		return nil, OutputResolvePageAnchor{}, fmt.Errorf("anchor.page must be at least 1")
	}

	page := input.CurrentPage
	if page == 0 {
		page = input.Anchor.Page
	}

	var doc *pageimage.Document
	switch {
	case input.Source != "":
		if t.loader == nil {
			return nil, OutputResolvePageAnchor{}, fmt.Errorf("source given but no page loader configured")
		}
		loaded, err := t.loader.Load(ctx, input.Source)
		if err != nil {
			return nil, OutputResolvePageAnchor{}, err
		}
		doc = loaded
	case input.PageWidth > 0 && input.PageHeight > 0:
		size := pageimage.Size{Width: input.PageWidth, Height: input.PageHeight}
		doc = pageimage.NewUniformDocument("inline", max(page, input.Anchor.Page), size)
	default:
		return nil, OutputResolvePageAnchor{}, fmt.Errorf("either source or page_width and page_height are required")
	}
	if input.Rotation != 0 {
		doc.WithRotation(page, input.Rotation)
	}

	resolver, err := pageimage.NewResolver(staticLoader{doc}, nil, nil)
	if err != nil {
		return nil, OutputResolvePageAnchor{}, err
	}
	resolver.SetContainerWidth(input.ContainerWidth)
	resolver.SetAnchor(&input.Anchor)

	rendered, err := resolver.Open(ctx, input.Source, page)
	if err != nil {
		return nil, OutputResolvePageAnchor{}, err
	}

	out := OutputResolvePageAnchor{Page: rendered.Page, Pages: rendered.Pages, Viewport: rendered.Viewport}
	rect, err := resolver.Highlight()
	switch {
	case err == nil:
		out.Visible = true
		out.Rect = &rect
	case errors.Is(err, pageimage.ErrOtherPage), errors.Is(err, pageimage.ErrTransform):
		out.Reason = err.Error()
	default:
		return nil, OutputResolvePageAnchor{}, err
	}
	return nil, out, nil
}

// staticLoader hands out an already loaded document.
type staticLoader struct {
	doc *pageimage.Document
}

func (l staticLoader) Load(context.Context, string) (*pageimage.Document, error) {
	return l.doc, nil
}
