package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/philcali/pandemic/internal/config"
	"github.com/philcali/pandemic/internal/daemonutil"
	"github.com/philcali/pandemic/internal/eventclient"
	"github.com/philcali/pandemic/internal/installer"
	"github.com/philcali/pandemic/internal/logging"
	"github.com/philcali/pandemic/internal/rpcserver"
	"github.com/philcali/pandemic/internal/store"
	"github.com/philcali/pandemic/internal/supervisor"
)

// Build info (set via ldflags).
var (
	Version = "dev"
	Build   = "unknown"
)

var flagConfig string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pandemic-supervisor",
		Short: "The pandemic workload supervisor daemon",
		Long: `pandemic-supervisor is the user-facing control plane: it installs,
starts, stops, and removes workloads, delegating the privileged systemd
actions to pandemic-helper and publishing lifecycle events through
pandemic-eventbus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "/etc/pandemic/supervisor.yaml", "Path to the daemon config file")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pandemic-supervisor v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSupervisor(ctx context.Context) error {
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

	st, err := store.Open(filepath.Join(cfg.StateDir, "state.json"))
	if err != nil {
		return fmt.Errorf("open workload store: %w", err)
	}

	inst := installer.New(cfg.WorkloadsDir, cfg.AllowedSources)
	inst.Register(installer.NewRepoArchiveFetcher())
	inst.Register(installer.NewHTTPFetcher())
	inst.Register(installer.NewLocalFetcher(afero.NewOsFs()))

	events := eventclient.New(cfg.EventBusSocketPath, cfg.EventsDir)

	socket := rpcserver.SocketConfig{
		Path:  cfg.SocketPath,
		Mode:  os.FileMode(cfg.SocketMode),
		Owner: cfg.SocketOwner,
		Group: cfg.SocketGroup,
	}
	d := supervisor.New(socket, cfg, st, inst, events)

	lifecycle := daemonutil.NewLifecycle(
		d.Server(),
		filepath.Join(cfg.StateDir, "pandemic-supervisor.pid"),
		filepath.Join(cfg.StateDir, "pandemic-supervisor.lock"),
	)
	return lifecycle.Run(ctx)
}
