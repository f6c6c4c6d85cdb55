package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/philcali/pandemic/internal/config"
	"github.com/philcali/pandemic/internal/daemonutil"
	"github.com/philcali/pandemic/internal/helper"
	"github.com/philcali/pandemic/internal/logging"
	"github.com/philcali/pandemic/internal/rpcserver"
)

// Build info (set via ldflags).
var (
	Version = "dev"
	Build   = "unknown"
)

var flagConfig string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pandemic-helper",
		Short: "The privileged systemd helper daemon",
		Long: `pandemic-helper is the only process in the pandemic stack permitted to
write unit files and talk to systemd. It runs as root, listens on a
root-owned socket, and validates every request before acting on it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHelper(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "/etc/pandemic/helper.yaml", "Path to the daemon config file")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pandemic-helper v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runHelper(ctx context.Context) error {
	if err := helper.RequireRoot(); err != nil {
		return err
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(cfg.LogLevel, cfg.StructuredLogging)

	if watcher, err := config.WatchForChanges(flagConfig); err != nil {
		fmt.Fprintf(os.Stderr, "warning: config watch disabled: %v\n", err)
	} else {
		defer func() { _ = watcher.Close() }()
	}

	socket := rpcserver.SocketConfig{
		Path: cfg.HelperSocketPath,
		Mode: 0600,
	}
	d := helper.New(socket, cfg.UnitDir)

	lifecycle := daemonutil.NewLifecycle(
		d.Server(),
		filepath.Join(cfg.StateDir, "pandemic-helper.pid"),
		filepath.Join(cfg.StateDir, "pandemic-helper.lock"),
	)
	return lifecycle.Run(ctx)
}
