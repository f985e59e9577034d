// ABOUTME: Root cobra command and shared command setup
// ABOUTME: Loads config once, installs the slog logger and hands commands a Runtime
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/harperreed/engage/config"
	"github.com/spf13/cobra"
)

// app carries state resolved in PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	logger     *slog.Logger
}

func Execute(version string) error {
	return NewRoot(version).Execute()
}

func NewRoot(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "engage",
		Short:         "Change-aware caching, diffing and action validation for sales recommendations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/engage/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		diffCmd(a),
		parseCmd(a),
		cacheCmd(a),
		feedbackCmd(a),
		contextCmd(a),
		summarizeCmd(a),
		recommendCmd(a),
		dashboardCmd(a),
		serveCmd(a),
		mcpCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	// Logs go to stderr so stdout stays clean for output and MCP stdio.
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(a.logger)
	return nil
}

// withRuntime opens a Runtime for the duration of fn.
func (a *app) withRuntime(ctx context.Context, fn func(rt *Runtime) error) error {
	if a.cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	rt, err := OpenRuntime(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
