// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/evidence-mcp/internal/diff"
	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/pageimage"
	"github.com/finlens/evidence-mcp/internal/structured"
)

func newTools(t *testing.T, opts ...Option) *Tools {
	t.Helper()
	tools, err := New(opts...)
	require.NoError(t, err)
	return tools
}

// ---------------------------------------------------------------------------
// diff_evidence_snapshots
// ---------------------------------------------------------------------------

func TestDiffEvidenceSnapshots(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	tools := newTools(t)

	tests := []struct {
		name           string
		input          InputDiffEvidenceSnapshots
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputDiffEvidenceSnapshots)
	}{
		{
			name:        "empty current returns error",
			input:       InputDiffEvidenceSnapshots{Previous: `[]`},
			wantErr:     true,
			errContains: "current is required",
		},
		{
			name: "json snapshots classify and list removed",
			input: InputDiffEvidenceSnapshots{
				Previous: `[{"urnId":"a","quote":"q"},{"urnId":"b","quote":"Revenue grew 12%"}]`,
				Current:  `{"items":[{"urnId":"b","quote":"Revenue grew 14%"},{"urnId":"c","quote":"new"}]}`,
			},
			validateOutput: func(t *testing.T, output OutputDiffEvidenceSnapshots) {
				assert.Equal(t, map[string]evidence.DiffType{
					"b": evidence.DiffUpdated,
					"c": evidence.DiffCreated,
				}, output.Types)
				require.Len(t, output.Removed, 1)
				assert.Equal(t, "a", output.Removed[0].URN)
				assert.Equal(t, diff.Summary{Created: 1, Updated: 1, Removed: 1}, output.Summary)
				assert.Contains(t, output.QuoteDeltas, "b")
				assert.Equal(t, "json", output.ParserUsed)
				require.Len(t, output.Items, 2)
				assert.Equal(t, evidence.DiffUpdated, output.Items[0].DiffType)
			},
		},
		{
			name: "yaml snapshots with no previous are all created",
			input: InputDiffEvidenceSnapshots{
				Current: "- urnId: u1\n  quote: hello\n  pageNumber: 2\n",
				Format:  "yaml",
			},
			validateOutput: func(t *testing.T, output OutputDiffEvidenceSnapshots) {
				assert.Equal(t, evidence.DiffCreated, output.Types["u1"])
				assert.NotNil(t, output.Removed)
				assert.Empty(t, output.Removed)
				assert.Equal(t, "yaml", output.ParserUsed)
			},
		},
		{
			name: "per-side formats decode yaml previous with json current",
			input: InputDiffEvidenceSnapshots{
				Previous:       "items:\n  - urnId: a\n    quote: q\n",
				Current:        `[{"urnId":"a","quote":"q"}]`,
				Format:         "json",
				PreviousFormat: "yaml",
			},
			validateOutput: func(t *testing.T, output OutputDiffEvidenceSnapshots) {
				assert.Equal(t, evidence.DiffUnchanged, output.Types["a"])
				assert.Equal(t, "json", output.ParserUsed)
			},
		},
		{
			name: "partial current snapshot is not diffed",
			input: InputDiffEvidenceSnapshots{
				Previous: `[{"urnId":"a","quote":"q"},{"urnId":"b","quote":"r"}]`,
				Current:  `{"partial":true,"items":[{"urnId":"a","quote":"q"}]}`,
			},
			wantErr:     true,
			errContains: "partial snapshot",
		},
		{
			name: "partial previous snapshot is not diffed",
			input: InputDiffEvidenceSnapshots{
				Previous: `{"partial":true,"items":[{"urnId":"a","quote":"q"}]}`,
				Current:  `[{"urnId":"a","quote":"q"}]`,
			},
			wantErr:     true,
			errContains: "partial snapshot",
		},
		{
			name: "invalid item is rejected",
			input: InputDiffEvidenceSnapshots{
				Current: `[{"urnId":"","quote":"x"}]`,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, output, err := tools.DiffEvidenceSnapshots(ctx, req, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Nil(t, result)
			if tt.validateOutput != nil {
				tt.validateOutput(t, output)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// resolve_page_anchor
// ---------------------------------------------------------------------------

type fixedLoader struct{}

func (fixedLoader) Load(_ context.Context, source string) (*pageimage.Document, error) {
	return pageimage.NewDocument(source, []pageimage.Size{{Width: 600, Height: 800}, {Width: 600, Height: 800}}), nil
}

func TestResolvePageAnchor(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	tools := newTools(t, WithPageLoader(fixedLoader{}))

	rect := evidence.PageRect{Page: 2, X: 10, Y: 20, Width: 100, Height: 15}

	_, out, err := tools.ResolvePageAnchor(ctx, req, InputResolvePageAnchor{
		Anchor: rect, PageWidth: 600, PageHeight: 800, ContainerWidth: 900,
	})
	require.NoError(t, err)
	assert.True(t, out.Visible)
	assert.Equal(t, pageimage.Rect{Left: 15, Top: 30, Width: 150, Height: 22.5}, *out.Rect)
	assert.Equal(t, 2, out.Page)

	_, out, err = tools.ResolvePageAnchor(ctx, req, InputResolvePageAnchor{
		Anchor: rect, Source: "10k.pdf", CurrentPage: 1,
	})
	require.NoError(t, err)
	assert.False(t, out.Visible)
	assert.Contains(t, out.Reason, "another page")
	assert.Equal(t, 2, out.Pages)

	_, out, err = tools.ResolvePageAnchor(ctx, req, InputResolvePageAnchor{
		Anchor: rect, PageWidth: 600, PageHeight: 800, CurrentPage: 1 << 50,
	})
	require.NoError(t, err, "huge page numbers must not allocate per page")
	assert.False(t, out.Visible)
	assert.Equal(t, 1<<50, out.Pages)

	_, _, err = tools.ResolvePageAnchor(ctx, req, InputResolvePageAnchor{Anchor: rect})
	assert.Error(t, err, "needs geometry")

	_, _, err = tools.ResolvePageAnchor(ctx, req, InputResolvePageAnchor{Anchor: evidence.PageRect{}})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// resolve_structural_anchor
// ---------------------------------------------------------------------------

type stubFetcher struct {
	docs []structured.SubDocument
}

func (f stubFetcher) Fetch(context.Context, string) ([]structured.SubDocument, error) {
	if len(f.docs) == 0 {
		return nil, structured.ErrNotAvailable
	}
	return f.docs, nil
}

func TestResolveStructuralAnchor(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	tools := newTools(t, WithStructuredFetcher(stubFetcher{docs: []structured.SubDocument{
		{Name: "Main", Path: "main.html", Content: "<html><body><p>one</p><p>two</p></body></html>"},
		{Name: "Facts", Path: "facts.xml", Content: `<?xml version="1.0"?><facts><fact>1</fact></facts>`},
	}}))

	_, out, err := tools.ResolveStructuralAnchor(ctx, req, InputResolveStructuralAnchor{
		Path: "//p[2]", Content: "<p>one</p><p>two</p>", IncludeMarkup: true,
	})
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, "two", out.Resolution.Match.Text)
	assert.Equal(t, "center", out.Resolution.Scroll.Block)
	assert.Contains(t, out.Markup, `<p class="evidence-highlight">two</p>`)

	_, out, err = tools.ResolveStructuralAnchor(ctx, req, InputResolveStructuralAnchor{
		Path: "//fact", DocumentID: "doc-1", Document: "Facts",
	})
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, "Facts", out.Resolution.Document)
	assert.Equal(t, []string{"Main", "Facts"}, out.Docs)

	_, out, err = tools.ResolveStructuralAnchor(ctx, req, InputResolveStructuralAnchor{
		Path: "//table", Content: "<p>x</p>",
	})
	require.NoError(t, err)
	assert.False(t, out.Matched)
	assert.NotEmpty(t, out.Mismatch)

	_, out, err = tools.ResolveStructuralAnchor(ctx, req, InputResolveStructuralAnchor{
		Path: "//p[", Content: "<p>x</p>",
	})
	require.NoError(t, err)
	assert.Contains(t, out.Mismatch, "malformed")

	_, _, err = tools.ResolveStructuralAnchor(ctx, req, InputResolveStructuralAnchor{Path: "//p"})
	assert.Error(t, err)

	_, out, err = newTools(t, WithStructuredFetcher(stubFetcher{})).ResolveStructuralAnchor(ctx, req, InputResolveStructuralAnchor{
		Path: "//p", DocumentID: "none",
	})
	require.NoError(t, err)
	assert.False(t, out.Matched)
}

func TestRegister(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "evidence-mcp-test", Version: "test"}, nil)
	assert.NotPanics(t, func() { newTools(t).Register(server) })
}
