// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/finlens/evidence-mcp/internal/tool"
)

type diffOptions struct {
	output string
}

func (a *App) newDiffCmd() *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff PREVIOUS CURRENT",
		Short: "Classify evidence changes between two snapshots",
		Long: `Compare two evidence snapshot files (JSON or YAML).

Examples:
  evidence-mcp diff turn1.yaml turn2.yaml
  evidence-mcp diff turn1.json turn2.json -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiff(cmd, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")
	return cmd
}

func (a *App) runDiff(cmd *cobra.Command, prevPath, currPath string, opts *diffOptions) error {
	previous, err := os.ReadFile(prevPath)
	if err != nil {
		return err
	}
	current, err := os.ReadFile(currPath)
	if err != nil {
		return err
	}

	tools, err := a.tools()
	if err != nil {
		return err
	}
	_, out, err := tools.DiffEvidenceSnapshots(cmd.Context(), &mcp.CallToolRequest{}, tool.InputDiffEvidenceSnapshots{
		Previous:       string(previous),
		Current:        string(current),
		PreviousFormat: formatFromPath(prevPath),
		CurrentFormat:  formatFromPath(currPath),
	})
	if err != nil {
		return err
	}

	if opts.output == "json" {
		return a.printJSON(out)
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tURN\tQUOTE")
	for _, item := range out.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.DiffType, item.URN, truncate(item.Quote, 60))
	}
	for _, item := range out.Removed {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.DiffType, item.URN, truncate(item.Quote, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	s := out.Summary
	fmt.Fprintf(a.stdout, "\n%d created, %d updated, %d unchanged, %d removed\n", s.Created, s.Updated, s.Unchanged, s.Removed)
	return nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
