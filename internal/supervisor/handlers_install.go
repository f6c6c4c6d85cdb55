package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/philcali/pandemic/internal/helperclient"
	"github.com/philcali/pandemic/internal/systemdtmpl"
	"github.com/philcali/pandemic/internal/workload"
)

type installParams struct {
	Source          string             `json:"source"`
	Name            string             `json:"name"`
	ConfigOverrides map[string]any     `json:"configOverrides"`
	Environment     map[string]string  `json:"environment"`
	Resources       workload.Resources `json:"resources"`
}

// installOverrides is the typed shape of the free-form configOverrides
// payload, decoded with mapstructure since clients send it as loose JSON.
type installOverrides struct {
	Environment map[string]string  `mapstructure:"environment"`
	Resources   workload.Resources `mapstructure:"resources"`
}

func (d *Daemon) handleInstall(ctx context.Context, payload json.RawMessage) (any, error) {
	var params installParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.Source == "" {
		return nil, fmt.Errorf("source is required")
	}

	name := params.Name
	if name == "" {
		name = deriveName(params.Source)
	}

	var overrides installOverrides
	if len(params.ConfigOverrides) > 0 {
		if err := mapstructure.Decode(params.ConfigOverrides, &overrides); err != nil {
			return nil, fmt.Errorf("decode configOverrides: %w", err)
		}
	}

	env := params.Environment
	if env == nil {
		env = overrides.Environment
	}
	resources := params.Resources
	if resources == (workload.Resources{}) {
		resources = overrides.Resources
	}

	id := workload.NewID()
	rec := workload.Record{
		ID:          id,
		Name:        name,
		Source:      params.Source,
		State:       workload.Installing,
		Environment: env,
		Resources:   resources,
	}

	if err := d.store.Add(rec); err != nil {
		return nil, fmt.Errorf("persist installing record: %w", err)
	}
	d.publish("core", "workload.installing", map[string]any{"id": id, "name": name, "source": params.Source})

	fail := func(cause error) (any, error) {
		rec.State = workload.Failed
		rec.Error = cause.Error()
		_ = d.store.Add(rec)
		d.publish("core", "workload.failed", map[string]any{"id": id, "name": name, "error": cause.Error()})
		return nil, cause
	}

	result, err := d.installer.Install(ctx, params.Source, name)
	if err != nil {
		return fail(fmt.Errorf("install %s: %w", params.Source, err))
	}
	rec.InstallPath = result.InstallPath
	rec.DownloadInfo = result.DownloadInfo
	rec.ConfigInfo = result.ConfigInfo

	serviceName := systemdtmpl.ServiceName(name)
	execStart := resolveExecStart(result.InstallPath, result.ConfigInfo)

	err = d.withHelper(func(c *helperclient.Client) error {
		unit := systemdtmpl.UnitTemplate(result.InstallPath, execStart)
		override := systemdtmpl.RenderOverride(rec.Environment, rec.Resources, d.cfg.SocketPath)
		return c.CreateService(serviceName, unit, override)
	})
	if err != nil {
		return fail(fmt.Errorf("create service %s: %w", serviceName, err))
	}
	rec.ServiceName = serviceName

	rec.State = workload.Installed
	if err := d.store.Add(rec); err != nil {
		return fail(fmt.Errorf("persist installed record: %w", err))
	}

	if _, err := d.events.EnsureSource(id); err != nil {
		// Event-source creation failing doesn't roll back a successful
		// install; the workload is usable without its own event source.
		d.publish("core", "workload.event_source_failed", map[string]any{"id": id, "error": err.Error()})
	}

	d.publish("core", "workload.installed", map[string]any{"id": id, "name": name, "serviceName": serviceName})

	return rec, nil
}

// resolveExecStart turns the manifest's command (often "./bin/<name>")
// into an absolute path rooted at the install directory, unless it's
// already absolute or looks like a bare command on PATH.
func resolveExecStart(installPath string, configInfo map[string]any) string {
	command, _ := configInfo["command"].(string)
	if command == "" {
		return filepath.Join(installPath, "bin", "start")
	}
	if strings.HasPrefix(command, "/") {
		return command
	}
	if strings.HasPrefix(command, "./") || strings.HasPrefix(command, "../") {
		return filepath.Join(installPath, command)
	}
	return command
}
