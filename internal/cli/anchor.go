// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/tool"
)

func (a *App) newAnchorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Resolve evidence anchors",
	}
	cmd.AddCommand(a.newAnchorPageCmd(), a.newAnchorPathCmd())
	return cmd
}

func (a *App) newAnchorPageCmd() *cobra.Command {
	in := tool.InputResolvePageAnchor{}
	var rect evidence.PageRect

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Place a page rectangle on a rendered page",
		Long: `Compute the display rectangle of a page anchor.

Examples:
  evidence-mcp anchor page --source 10k.pdf --page 2 --x 10 --y 20 --width 100 --height 15 --container-width 900
  evidence-mcp anchor page --page-width 612 --page-height 792 --page 1 --x 72 --y 72 --width 200 --height 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.ContainerWidth == 0 {
				in.ContainerWidth = a.cfg.Render.DefaultContainerWidth
			}
			in.Anchor = rect
			tools, err := a.tools()
			if err != nil {
				return err
			}
			_, out, err := tools.ResolvePageAnchor(cmd.Context(), &mcp.CallToolRequest{}, in)
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	}

	f := cmd.Flags()
	f.IntVar(&rect.Page, "page", 1, "Anchor page (1-based)")
	f.Float64Var(&rect.X, "x", 0, "Anchor left edge in document units")
	f.Float64Var(&rect.Y, "y", 0, "Anchor top edge in document units")
	f.Float64Var(&rect.Width, "width", 0, "Anchor width in document units")
	f.Float64Var(&rect.Height, "height", 0, "Anchor height in document units")
	f.StringVar(&in.Source, "source", "", "PDF path or URL")
	f.Float64Var(&in.PageWidth, "page-width", 0, "Native page width when no source is given")
	f.Float64Var(&in.PageHeight, "page-height", 0, "Native page height when no source is given")
	f.Float64Var(&in.ContainerWidth, "container-width", 0, "Width available to the page")
	f.IntVar(&in.CurrentPage, "current-page", 0, "Page currently shown (defaults to the anchor page)")
	f.IntVar(&in.Rotation, "rotation", 0, "Display rotation in degrees")
	return cmd
}

func (a *App) newAnchorPathCmd() *cobra.Command {
	in := tool.InputResolveStructuralAnchor{}
	var file string
	var markupOnly bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Highlight the node a structural path addresses",
		Long: `Evaluate an XPath anchor against HTML, XML or Markdown.

Examples:
  evidence-mcp anchor path --file filing.html --path "//table[3]//tr[2]"
  evidence-mcp anchor path --document-id 0000320193-24-000123 --path "//section[@data-heading='Risk Factors']/p[1]"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				in.Content = string(data)
				if in.Document == "" {
					in.Document = file
				}
			}
			in.IncludeMarkup = in.IncludeMarkup || markupOnly

			tools, err := a.tools()
			if err != nil {
				return err
			}
			_, out, err := tools.ResolveStructuralAnchor(cmd.Context(), &mcp.CallToolRequest{}, in)
			if err != nil {
				return err
			}
			if markupOnly {
				if !out.Matched {
					return fmt.Errorf("anchor mismatch: %s", out.Mismatch)
				}
				_, err := fmt.Fprintln(a.stdout, out.Markup)
				return err
			}
			return a.printJSON(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Path, "path", "", "XPath expression")
	f.StringVar(&file, "file", "", "Read markup from a file")
	f.StringVar(&in.Format, "format", "", "Markup format: html, xml or markdown")
	f.StringVar(&in.DocumentID, "document-id", "", "Fetch structured renditions for this document")
	f.StringVar(&in.Document, "document", "", "Preferred sub-document name or path")
	f.BoolVar(&in.IncludeMarkup, "include-markup", false, "Include highlighted markup in the JSON output")
	f.BoolVar(&markupOnly, "markup", false, "Print only the highlighted markup")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
