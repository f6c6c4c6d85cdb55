// Package supervisor implements the supervisor daemon (C8): a C1 instance
// wiring the persistent store (C2), the source installer (C3), the
// privileged helper client (C5), and event emission (C7) behind one
// command table.
package supervisor

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/philcali/pandemic/internal/config"
	"github.com/philcali/pandemic/internal/eventclient"
	"github.com/philcali/pandemic/internal/helperclient"
	"github.com/philcali/pandemic/internal/installer"
	"github.com/philcali/pandemic/internal/rpcserver"
	"github.com/philcali/pandemic/internal/store"
)

// Daemon is the supervisor's C1 instance plus its wiring to C2/C3/C5/C7.
type Daemon struct {
	server *rpcserver.Server
	cfg    config.DaemonConfig

	store     *store.Store
	installer *installer.Installer
	events    *eventclient.Client

	subMu         sync.Mutex
	subscriptions map[string]map[string]string // workloadId -> source -> pattern
}

// New builds the supervisor daemon and registers its command table.
func New(socket rpcserver.SocketConfig, cfg config.DaemonConfig, st *store.Store, inst *installer.Installer, events *eventclient.Client) *Daemon {
	d := &Daemon{
		server:        rpcserver.NewServer("pandemic-supervisor", socket),
		cfg:           cfg,
		store:         st,
		installer:     inst,
		events:        events,
		subscriptions: make(map[string]map[string]string),
	}
	d.registerHandlers()
	return d
}

// Server exposes the underlying rpcserver.Server for lifecycle wiring.
func (d *Daemon) Server() *rpcserver.Server { return d.server }

func (d *Daemon) registerHandlers() {
	d.server.RegisterHandler("health", d.handleHealth)
	d.server.RegisterHandler("status", d.handleStatus)
	d.server.RegisterHandler("list", d.handleList)
	d.server.RegisterHandler("install", d.handleInstall)
	d.server.RegisterHandler("remove", d.handleRemove)
	d.server.RegisterHandler("start", d.handleStart)
	d.server.RegisterHandler("stop", d.handleStop)
	d.server.RegisterHandler("restart", d.handleRestart)
	d.server.RegisterHandler("logs", d.handleLogs)
	d.server.RegisterHandler("metrics", d.handleMetrics)
	d.server.RegisterHandler("subscribeEvents", d.handleSubscribeEvents)
	d.server.RegisterHandler("unsubscribeEvents", d.handleUnsubscribeEvents)
	d.server.RegisterHandler("getConfig", d.handleGetConfig)
	d.server.RegisterHandler("setConfig", d.handleSetConfig)
}

// withHelper dials the privileged helper for the duration of fn and
// always disconnects afterward; the connection is deliberately
// short-lived, matching the C5 contract.
func (d *Daemon) withHelper(fn func(*helperclient.Client) error) error {
	client, err := helperclient.Connect(d.cfg.HelperSocketPath)
	if err != nil {
		return fmt.Errorf("connect to helper: %w", err)
	}
	defer client.Disconnect()
	return fn(client)
}

// publish is a best-effort event emission: failures are logged at debug
// level here and never block the handler that triggered them. It is
// exposed here so individual command files can emit without importing
// eventclient directly.
func (d *Daemon) publish(source, eventType string, payload any) (eventclient.PublishResult, error) {
	result, err := d.events.Publish(source, eventType, payload)
	if err != nil {
		slog.Debug("event publish failed", "source", source, "type", eventType, "error", err)
	}
	return result, err
}

// deriveName extracts a workload name from a source URL when the caller
// doesn't supply one: the last path segment, stripped of a version
// reference and common archive extensions.
func deriveName(source string) string {
	trimmed := strings.TrimSuffix(source, "/")

	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	if idx := strings.Index(trimmed, "@"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	name := path.Base(trimmed)
	for _, ext := range []string{".tar.gz", ".tgz", ".git"} {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." || name == "/" {
		name = "workload"
	}
	return name
}
