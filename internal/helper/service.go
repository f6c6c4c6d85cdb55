package helper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	sysdbus "github.com/coreos/go-systemd/v22/dbus"

	"github.com/philcali/pandemic/internal/systemdtmpl"
)

// ServiceManager drives the host's systemd instance: writing unit files
// and drop-ins directly, then using the dbus API to reload rather than
// shelling out to "systemctl daemon-reload".
type ServiceManager struct {
	unitDir   string // e.g. /etc/systemd/system
	dropInDir string // e.g. /etc/systemd/system (the "<unit>.d" subdir is derived per-service)
}

// NewServiceManager builds a manager rooted at the host's systemd unit
// directory.
func NewServiceManager(unitDir string) *ServiceManager {
	return &ServiceManager{unitDir: unitDir, dropInDir: unitDir}
}

func (m *ServiceManager) ensureUnitTemplate(workingDir, execStart string) error {
	path := filepath.Join(m.unitDir, systemdtmpl.UnitTemplateName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	content := systemdtmpl.UnitTemplate(workingDir, execStart)
	return os.WriteFile(path, []byte(content), 0644)
}

// CreateService writes templateContent (when non-empty) as the unit file
// named serviceName, writes the workload's drop-in override, and reloads
// systemd.
func (m *ServiceManager) CreateService(ctx context.Context, serviceName, templateContent, overrideConfig string) error {
	unitName := serviceName
	unitPath := filepath.Join(m.unitDir, unitName)
	if templateContent != "" {
		if err := os.WriteFile(unitPath, []byte(templateContent), 0644); err != nil {
			return fmt.Errorf("write unit file %s: %w", unitPath, err)
		}
	}

	dropInDir := filepath.Join(m.dropInDir, unitName+".d")
	if err := os.MkdirAll(dropInDir, 0755); err != nil {
		return fmt.Errorf("create drop-in directory %s: %w", dropInDir, err)
	}
	overridePath := filepath.Join(dropInDir, systemdtmpl.OverrideDropInFile)
	if err := os.WriteFile(overridePath, []byte(overrideConfig), 0644); err != nil {
		return fmt.Errorf("write override %s: %w", overridePath, err)
	}

	return m.reload(ctx)
}

// RemoveService stops and disables the unit, deletes its unit file and
// drop-in directory, then reloads.
func (m *ServiceManager) RemoveService(ctx context.Context, serviceName string) error {
	_ = m.StopService(ctx, serviceName)
	_ = m.DisableService(ctx, serviceName)

	unitPath := filepath.Join(m.unitDir, serviceName)
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file %s: %w", unitPath, err)
	}

	dropInDir := filepath.Join(m.dropInDir, serviceName+".d")
	if err := os.RemoveAll(dropInDir); err != nil {
		return fmt.Errorf("remove drop-in directory %s: %w", dropInDir, err)
	}

	return m.reload(ctx)
}

// StartService starts serviceName.
func (m *ServiceManager) StartService(ctx context.Context, serviceName string) error {
	return m.systemctl(ctx, "start", serviceName)
}

// StopService stops serviceName.
func (m *ServiceManager) StopService(ctx context.Context, serviceName string) error {
	return m.systemctl(ctx, "stop", serviceName)
}

// RestartService restarts serviceName directly, rather than a
// stop-then-start pair, per the resolved Open Question.
func (m *ServiceManager) RestartService(ctx context.Context, serviceName string) error {
	return m.systemctl(ctx, "restart", serviceName)
}

// EnableService enables serviceName to start on boot.
func (m *ServiceManager) EnableService(ctx context.Context, serviceName string) error {
	return m.systemctl(ctx, "enable", serviceName)
}

// DisableService disables serviceName from starting on boot.
func (m *ServiceManager) DisableService(ctx context.Context, serviceName string) error {
	return m.systemctl(ctx, "disable", serviceName)
}

func (m *ServiceManager) systemctl(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "systemctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %v: %w: %s", args, err, out)
	}
	return nil
}

// reload notifies systemd that unit files on disk changed, via the dbus
// API rather than shelling out to "systemctl daemon-reload".
func (m *ServiceManager) reload(ctx context.Context) error {
	conn, err := sysdbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd over dbus: %w", err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("reload systemd daemon: %w", err)
	}
	return nil
}
