// SPDX-License-Identifier: Apache-2.0

// Package tool exposes evidence diffing and anchor resolution as MCP tools.
package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/evidence/parsers"
	"github.com/finlens/evidence-mcp/internal/pageimage"
	"github.com/finlens/evidence-mcp/internal/structured"
)

// Tools holds the collaborators the tool handlers share.
type Tools struct {
	pipeline       *evidence.Pipeline
	loader         pageimage.Loader
	fetcher        structured.Fetcher
	highlightClass string
}

// Option configures Tools.
type Option func(*Tools)

// WithPageLoader sets the loader used when resolve_page_anchor is given a
// source instead of page dimensions.
func WithPageLoader(loader pageimage.Loader) Option {
	return func(t *Tools) {
		t.loader = loader
	}
}

// WithStructuredFetcher sets the fetcher used when resolve_structural_anchor
// is given a document_id instead of content.
func WithStructuredFetcher(fetcher structured.Fetcher) Option {
	return func(t *Tools) {
		t.fetcher = fetcher
	}
}

// WithHighlightClass sets the class applied to resolved nodes.
func WithHighlightClass(class string) Option {
	return func(t *Tools) {
		t.highlightClass = class
	}
}

// New creates the tool set with the default evidence parsers.
func New(opts ...Option) (*Tools, error) {
	pipeline, err := parsers.NewDefaultPipeline()
	if err != nil {
		return nil, err
	}
	t := &Tools{pipeline: pipeline, highlightClass: structured.DefaultHighlightClass}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Register adds every tool to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, MetadataDiffEvidenceSnapshots, t.DiffEvidenceSnapshots)
	mcp.AddTool(server, MetadataResolvePageAnchor, t.ResolvePageAnchor)
	mcp.AddTool(server, MetadataResolveStructuralAnchor, t.ResolveStructuralAnchor)
}
