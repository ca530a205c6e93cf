package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/runningman84/replica-monitor/pkg/operator"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		urls []string
		once bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll replica dashboards and print every refresh",
		Long: `Fetches each dashboard on the refresh interval and prints the parsed snapshot.

A dashboard that cannot be fetched is reported and retried on the next tick.
Set MAX_CONSECUTIVE_FAILURES to stop after repeated failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if len(urls) > 0 {
				cfg.DashboardURLs = urls
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			klog.Infof("Starting replica-monitor version %s watching %d dashboard(s) with %s log level",
				Version, len(cfg.DashboardURLs), cfg.LogLevel)

			op, err := operator.NewOperator(cfg, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to create operator: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if once {
				return op.RunOnce(ctx)
			}
			if err := op.Run(ctx); err != nil {
				return fmt.Errorf("operator failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "Dashboard URL to watch, repeatable (default from DASHBOARD_URLS)")
	cmd.Flags().BoolVar(&once, "once", false, "Refresh every dashboard once and exit")
	return cmd
}

