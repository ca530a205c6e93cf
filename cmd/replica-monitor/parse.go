package main

import (
	"fmt"
	"io"
	"os"

	"github.com/runningman84/replica-monitor/pkg/parser"
	"github.com/runningman84/replica-monitor/pkg/render"
	"github.com/spf13/cobra"
)

func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file|->",
		Short: "Parse a saved dashboard page",
		Long: `Parses a dashboard page saved to disk, or read from stdin when the
argument is "-", and prints the snapshot once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg

			renderer, err := render.NewRenderer(cfg.OutputFormat, render.Options{WebserverPort: cfg.WebserverPort})
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			name := "stdin"
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open dashboard: %w", err)
				}
				defer f.Close()
				in = f
				name = args[0]
			}

			snapshot, err := parser.ParseDashboardReader(in)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", name, err)
			}

			return renderer.Render(cmd.OutOrStdout(), name, snapshot)
		},
	}
}
