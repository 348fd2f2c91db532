// SPDX-License-Identifier: Apache-2.0

// Package cli provides the evidence-mcp command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/finlens/evidence-mcp/internal/config"
	"github.com/finlens/evidence-mcp/internal/fetch"
	"github.com/finlens/evidence-mcp/internal/logging"
	"github.com/finlens/evidence-mcp/internal/pageimage"
	"github.com/finlens/evidence-mcp/internal/structured"
	"github.com/finlens/evidence-mcp/internal/tool"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// App is the CLI application.
type App struct {
	root       *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	cfg        config.Config
}

// New creates the CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "evidence-mcp",
		Short: "Evidence anchoring and diffing for grounded answers",
		Long: `evidence-mcp places quoted evidence on its source document and tracks how
the evidence set changes between answer turns.

Run "evidence-mcp serve" to expose the tools over MCP stdio, or use the
diff and anchor commands directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadConfig()
		},
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", os.Getenv("EVIDENCE_CONFIG"), "Path to configuration file")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newServeCmd(),
		app.newDiffCmd(),
		app.newAnchorCmd(),
		app.newConfigCmd(),
	)
	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Logging()
	logCfg.Output = a.stderr
	logging.Init(logCfg)
	return nil
}

// tools builds the tool set from the loaded configuration.
func (a *App) tools() (*tool.Tools, error) {
	client := fetch.New(a.cfg.Fetch(), nil)
	return tool.New(
		tool.WithPageLoader(pageimage.NewPDFLoader(client)),
		tool.WithStructuredFetcher(structured.NewClient(a.cfg.API.BaseURL, client)),
		tool.WithHighlightClass(a.cfg.Render.HighlightClass),
	)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "evidence-mcp version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
		},
	}
}

func (a *App) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
