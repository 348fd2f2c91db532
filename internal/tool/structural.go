// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/structured"
)

// MetadataResolveStructuralAnchor describes the resolve_structural_anchor tool.
var MetadataResolveStructuralAnchor = &mcp.Tool{
	Name: "resolve_structural_anchor",
	Description: "Evaluate an XPath structural anchor against a structured source document and highlight the first match in document order. " +
		"Supported formats: html, xml, markdown (headings become nested section elements with a data-heading attribute). " +
		"Provide the markup in content, or a document_id to fetch the structured renditions from the document API. " +
		"A path that matches nothing or does not compile is reported as a mismatch, not an error.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"path"},
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "XPath expression addressing the evidence node",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Raw markup of the sub-document",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Format of content. If omitted, auto-detection is used.",
				"enum":        []string{"html", "xml", "markdown"},
			},
			"document_id": map[string]interface{}{
				"type":        "string",
				"description": "Document whose structured renditions should be fetched when content is omitted",
			},
			"document": map[string]interface{}{
				"type":        "string",
				"description": "Preferred sub-document by name or path",
			},
			"include_markup": map[string]interface{}{
				"type":        "boolean",
				"description": "Return the highlighted markup",
			},
		},
	},
}

// InputResolveStructuralAnchor is the input for the ResolveStructuralAnchor tool.
type InputResolveStructuralAnchor struct {
	Path          string `json:"path"`
	Content       string `json:"content"`
	Format        string `json:"format"`
	DocumentID    string `json:"document_id"`
	Document      string `json:"document"`
	IncludeMarkup bool   `json:"include_markup"`
}

// OutputResolveStructuralAnchor is the output for the ResolveStructuralAnchor tool.
type OutputResolveStructuralAnchor struct {
	Matched    bool                   `json:"matched"`
	Resolution *structured.Resolution `json:"resolution,omitempty"`
	// Mismatch explains why nothing was highlighted.
	Mismatch string   `json:"mismatch,omitempty"`
	Markup   string   `json:"markup,omitempty"`
	Docs     []string `json:"documents"`
}

// ResolveStructuralAnchor evaluates a structural path and marks the first
// matching node.
func (t *Tools) ResolveStructuralAnchor(ctx context.Context, _ *mcp.CallToolRequest, input InputResolveStructuralAnchor) (*mcp.CallToolResult, OutputResolveStructuralAnchor, error) {
	if input.Path == "" {
		return nil, OutputResolveStructuralAnchor{}, fmt.Errorf("path is required")
	}

	resolver := structured.NewResolver(t.fetcher, structured.WithHighlightClass(t.highlightClass))
	switch {
	case input.Content != "":
		name := input.Document
		if name == "" {
			name = "inline"
		}
		doc := structured.SubDocument{Name: name, Path: input.Document, Content: input.Content, Format: input.Format}
		if err := resolver.SetDocuments("inline", []structured.SubDocument{doc}); err != nil {
			return nil, OutputResolveStructuralAnchor{}, err
		}
	case input.DocumentID != "":
		if t.fetcher == nil {
			return nil, OutputResolveStructuralAnchor{}, fmt.Errorf("document_id given but no document API configured")
		}
		if err := resolver.Load(ctx, input.DocumentID); err != nil {
			if errors.Is(err, structured.ErrNotAvailable) {
				return nil, OutputResolveStructuralAnchor{Mismatch: err.Error(), Docs: []string{}}, nil
			}
			return nil, OutputResolveStructuralAnchor{}, err
		}
	default:
		return nil, OutputResolveStructuralAnchor{}, fmt.Errorf("either content or document_id is required")
	}

	item := evidence.Item{
		URN:    "tool",
		Anchor: &evidence.Anchor{Path: evidence.StructuralPath(input.Path), Document: input.Document},
	}
	out := OutputResolveStructuralAnchor{Docs: []string{}}
	docs, _ := resolver.Documents()
	for _, d := range docs {
		out.Docs = append(out.Docs, d.Name)
	}

	res, err := resolver.Resolve(item)
	switch {
	case err == nil && res != nil:
		out.Matched = true
		out.Resolution = res
	case errors.Is(err, structured.ErrNoMatch), errors.Is(err, structured.ErrBadPath):
		out.Mismatch = err.Error()
	case err != nil:
		return nil, OutputResolveStructuralAnchor{}, err
	}

	if input.IncludeMarkup {
		if markup, err := resolver.Markup(); err == nil {
			out.Markup = markup
		}
	}
	return nil, out, nil
}
