// Package commands implements the CLI command handlers for cachesim.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/datatier/cachesim/internal/config"
	"github.com/datatier/cachesim/internal/observability"
)

// RootOptions carries the persistent flags and loaded configuration shared
// by all commands.
type RootOptions struct {
	configFile  string
	verbose     bool
	metricsAddr string

	cfg     config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRootCommand creates the cachesim root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:           "cachesim",
		Short:         "Simulate an HTC data-tier cache",
		Long:          "cachesim records synthetic access traces and replays them against cache replacement policies.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file (default: cachesim.yaml in cwd or ~/.config/cachesim)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	root.AddCommand(
		NewRecordCommand(opts),
		NewReplayCommand(opts),
		NewWorkloadStatsCommand(opts),
		NewVersionCommand(),
	)

	return root
}

// Execute runs the CLI and reports the error once.
func Execute() error {
	err := NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cachesim:", err)
	}

	return err
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}

	o.cfg = cfg

	level := slog.LevelInfo

	if o.verbose {
		level = slog.LevelDebug
	} else if parsed, ok := parseLogLevel(cfg.LogLevel); ok {
		level = parsed
	}

	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	addr := o.metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}

	if addr != "" {
		metrics, err := observability.New()
		if err != nil {
			return err
		}

		o.metrics = metrics

		go func() {
			if err := metrics.Serve(addr); err != nil {
				o.logger.Warn("metrics endpoint failed", slog.String("addr", addr), slog.Any("error", err))
			}
		}()

		o.logger.Debug("serving metrics", slog.String("addr", addr))
	}

	return nil
}

func parseLogLevel(name string) (slog.Level, bool) {
	switch name {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
