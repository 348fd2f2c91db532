// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/finlens/evidence-mcp/internal/logging"
)

func (a *App) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the evidence tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := a.tools()
			if err != nil {
				return err
			}
			server := mcp.NewServer(&mcp.Implementation{Name: "evidence-mcp", Version: Version}, nil)
			tools.Register(server)

			logging.Info().
				Add(logging.Component("serve")).
				Add(logging.Source(a.cfg.API.BaseURL)).
				Msg("mcp server starting on stdio")
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
