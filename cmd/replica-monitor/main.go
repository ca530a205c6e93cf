package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/runningman84/replica-monitor/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/klog/v2"
)

// Version can be set at build time using -ldflags
// Example: go build -ldflags="-X main.Version=1.0.0"
var Version = "dev"

// options holds the flags shared by all commands
type options struct {
	logLevel   string
	logFormat  string
	configFile string
	output     string

	klogFlags *goflag.FlagSet
	zapLog    *zap.Logger

	// cfg is resolved once per run, before logging is set up
	cfg *config.Config
}

func main() {
	err := newRootCmd().Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{klogFlags: goflag.NewFlagSet("klog", goflag.ContinueOnError)}
	klog.InitFlags(opts.klogFlags)

	cmd := &cobra.Command{
		Use:   "replica-monitor",
		Short: "Watch the dashboard of local replicas",
		Long: `replica-monitor polls the HTML dashboard of one or more replicas
and prints the replica settings together with every installed canister.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return opts.setupLogging(cfg.LogLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.zapLog != nil {
				_ = opts.zapLog.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: info or debug")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	flags.StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	flags.StringVarP(&opts.output, "output", "o", "", "Output format: text, json or yaml (default from OUTPUT_FORMAT or text)")
	flags.AddGoFlagSet(opts.klogFlags)

	cmd.AddCommand(newWatchCmd(opts), newParseCmd(opts), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "replica-monitor version %s\n", Version)
		},
	}
}

// setupLogging validates the resolved log level and routes klog to zap when JSON output is requested
func (o *options) setupLogging(logLevel string) error {
	if logLevel != "info" && logLevel != "debug" {
		return fmt.Errorf("invalid log level: %s. Must be one of: info, debug", logLevel)
	}
	if o.logFormat != "text" && o.logFormat != "json" {
		return fmt.Errorf("invalid log format: %s. Must be one of: text, json", o.logFormat)
	}

	if o.logFormat == "json" {
		var err error
		if logLevel == "debug" {
			o.zapLog, err = zap.NewDevelopment()
		} else {
			o.zapLog, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to initialize JSON logger: %w", err)
		}

		// Set klog to use zap backend for JSON output
		klog.SetLogger(zapr.NewLogger(o.zapLog))
	}

	// Set klog verbosity based on log level
	if logLevel == "debug" {
		if err := o.klogFlags.Set("v", "1"); err != nil {
			return fmt.Errorf("failed to set verbosity: %w", err)
		}
	}

	return nil
}

// loadConfig builds the configuration from the environment, the optional config file and the flags, in that order
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if o.configFile != "" {
		if err := cfg.LoadFile(o.configFile); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("log-level") || o.configFile == "" {
		cfg.LogLevel = o.logLevel
	}
	if o.output != "" {
		cfg.OutputFormat = o.output
	}

	return cfg, nil
}
