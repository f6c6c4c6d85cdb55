package daemonutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/philcali/pandemic/internal/rpcserver"
)

// Lifecycle owns the single-instance lock, the PID file, and the
// signal-driven graceful shutdown sequence around one rpcserver.Server.
//
// Signal delivery only hops a value onto shutdownCh; the actual shutdown
// work runs on the normal goroutine that called Run, never on the signal
// handler itself.
type Lifecycle struct {
	server  *rpcserver.Server
	pidFile string
	lockFile string

	lock *FileLock

	shutdownCh   chan os.Signal
	shutdownOnce sync.Once
}

// NewLifecycle creates a lifecycle manager for server. pidFile and
// lockFile may be empty to skip that piece of bookkeeping (useful in
// tests).
func NewLifecycle(server *rpcserver.Server, pidFile, lockFile string) *Lifecycle {
	return &Lifecycle{
		server:     server,
		pidFile:    pidFile,
		lockFile:   lockFile,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Run acquires the lock, writes the PID file, starts the server, notifies
// systemd (if running under it) that the daemon is ready, then blocks
// until SIGTERM/SIGINT arrives or ctx is canceled, at which point it runs
// the graceful shutdown sequence.
func (l *Lifecycle) Run(ctx context.Context) error {
	if l.lockFile != "" {
		lock, err := AcquireLock(l.lockFile)
		if err != nil {
			return fmt.Errorf("acquire daemon lock: %w", err)
		}
		l.lock = lock
		defer func() {
			if l.lock != nil {
				if err := l.lock.Release(); err != nil {
					slog.Warn("failed to release daemon lock", "error", err)
				}
			}
		}()
	}

	if l.pidFile != "" {
		running, info, err := CheckPIDFile(l.pidFile)
		if err != nil {
			slog.Warn("failed to read existing PID file", "error", err)
		} else if running {
			return fmt.Errorf("daemon already running (pid %d)", info.PID)
		}

		if err := WritePIDFile(l.pidFile, PIDInfo{
			PID:        os.Getpid(),
			SocketPath: l.server.SocketPath(),
			StartedAt:  time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("write PID file: %w", err)
		}
		defer func() {
			if err := RemovePIDFile(l.pidFile); err != nil {
				slog.Warn("failed to remove PID file", "error", err)
			}
		}()
	}

	if err := l.server.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Debug("sd_notify ready failed (not running under systemd?)", "error", err)
	}

	signal.Notify(l.shutdownCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-l.shutdownCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		slog.Info("context canceled, shutting down")
	}

	return l.shutdown(ctx)
}

func (l *Lifecycle) shutdown(ctx context.Context) error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		slog.Debug("sd_notify stopping failed", "error", err)
	}

	if err := l.server.Stop(ctx); err != nil {
		slog.Error("error stopping server", "error", err)
		return err
	}

	return nil
}

// Shutdown triggers the same shutdown path as an incoming signal; safe to
// call from tests or from a programmatic supervisor.
func (l *Lifecycle) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.shutdownCh <- syscall.SIGTERM
	})
}
