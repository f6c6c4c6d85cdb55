package helper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/philcali/pandemic/internal/rpcserver"
)

// Daemon is the privileged systemd helper: a root-owned rpcserver.Server
// whose every handler runs its payload through Validator first.
type Daemon struct {
	server    *rpcserver.Server
	validator *Validator
	services  *ServiceManager
}

// New builds the helper daemon and registers its command handlers. It
// does not bind the socket; call Server().Start to do that.
func New(socket rpcserver.SocketConfig, unitDir string) *Daemon {
	d := &Daemon{
		server:    rpcserver.NewServer("pandemic-helper", socket),
		validator: NewValidator(),
		services:  NewServiceManager(unitDir),
	}
	d.registerHandlers()
	return d
}

// Server exposes the underlying rpcserver.Server for lifecycle wiring.
func (d *Daemon) Server() *rpcserver.Server { return d.server }

// RequireRoot fails fast if the process is not running as root: every
// privileged action this daemon performs assumes it.
func RequireRoot() error {
	if os.Getuid() != 0 {
		return fmt.Errorf("pandemic-helper must run as root")
	}
	return nil
}

func (d *Daemon) registerHandlers() {
	d.server.RegisterHandler("createService", d.handleCreateService)
	d.server.RegisterHandler("removeService", d.handleRemoveService)
	d.server.RegisterHandler("startService", d.handleStartService)
	d.server.RegisterHandler("stopService", d.handleStopService)
	d.server.RegisterHandler("restartService", d.handleRestartService)
	d.server.RegisterHandler("enableService", d.handleEnableService)
	d.server.RegisterHandler("disableService", d.handleDisableService)
	d.server.RegisterHandler("getStatus", d.handleGetStatus)
	d.server.RegisterHandler("getLogs", d.handleGetLogs)
}

type createServiceParams struct {
	ServiceName     string `json:"serviceName"`
	TemplateContent string `json:"templateContent"`
	OverrideConfig  string `json:"overrideConfig"`
}

func (d *Daemon) handleCreateService(ctx context.Context, payload json.RawMessage) (any, error) {
	var params createServiceParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := d.validator.ValidateServiceName(params.ServiceName); err != nil {
		return nil, err
	}
	if err := d.validator.ValidateContent("templateContent", params.TemplateContent); err != nil {
		return nil, err
	}
	if err := d.validator.ValidateContent("overrideConfig", params.OverrideConfig); err != nil {
		return nil, err
	}

	if err := d.services.CreateService(ctx, params.ServiceName, params.TemplateContent, params.OverrideConfig); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": params.ServiceName, "created": true}, nil
}

type serviceNameParams struct {
	ServiceName string `json:"serviceName"`
}

func (d *Daemon) decodeServiceName(payload json.RawMessage) (string, error) {
	var params serviceNameParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if err := d.validator.ValidateServiceName(params.ServiceName); err != nil {
		return "", err
	}
	return params.ServiceName, nil
}

func (d *Daemon) handleRemoveService(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	if err := d.services.RemoveService(ctx, name); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": name, "removed": true}, nil
}

func (d *Daemon) handleStartService(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	if err := d.services.StartService(ctx, name); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": name, "started": true}, nil
}

func (d *Daemon) handleStopService(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	if err := d.services.StopService(ctx, name); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": name, "stopped": true}, nil
}

func (d *Daemon) handleRestartService(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	if err := d.services.RestartService(ctx, name); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": name, "restarted": true}, nil
}

func (d *Daemon) handleEnableService(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	if err := d.services.EnableService(ctx, name); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": name, "enabled": true}, nil
}

func (d *Daemon) handleDisableService(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	if err := d.services.DisableService(ctx, name); err != nil {
		return nil, err
	}
	return map[string]any{"serviceName": name, "disabled": true}, nil
}

func (d *Daemon) handleGetStatus(ctx context.Context, payload json.RawMessage) (any, error) {
	name, err := d.decodeServiceName(payload)
	if err != nil {
		return nil, err
	}
	return d.services.GetStatus(ctx, name)
}

type getLogsParams struct {
	ServiceName string `json:"serviceName"`
	Lines       int    `json:"lines"`
}

func (d *Daemon) handleGetLogs(ctx context.Context, payload json.RawMessage) (any, error) {
	var params getLogsParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := d.validator.ValidateServiceName(params.ServiceName); err != nil {
		return nil, err
	}
	entries, err := d.services.GetLogs(ctx, params.ServiceName, params.Lines)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entries": entries}, nil
}
