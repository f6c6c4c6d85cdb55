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
	"github.com/philcali/pandemic/internal/eventbus"
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
		Use:   "pandemic-eventbus",
		Short: "The pandemic event bus daemon",
		Long: `pandemic-eventbus fans events out to subscribers over per-source Unix
sockets, rate-limiting publishers and exposing a control socket for
publish/createSource/removeSource/getStats.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventBus(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "/etc/pandemic/eventbus.yaml", "Path to the daemon config file")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pandemic-eventbus v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runEventBus(ctx context.Context) error {
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
		Path:  cfg.EventBusSocketPath,
		Mode:  os.FileMode(cfg.SocketMode),
		Owner: cfg.SocketOwner,
		Group: cfg.SocketGroup,
	}
	d := eventbus.New(socket, cfg.EventsDir, cfg.EventRateLimit, cfg.EventBurstSize)
	d.Server().OnShutdown(func(ctx context.Context) error {
		return d.Shutdown(ctx)
	})

	lifecycle := daemonutil.NewLifecycle(
		d.Server(),
		filepath.Join(cfg.StateDir, "pandemic-eventbus.pid"),
		filepath.Join(cfg.StateDir, "pandemic-eventbus.lock"),
	)
	return lifecycle.Run(ctx)
}
