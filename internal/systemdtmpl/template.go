// Package systemdtmpl renders the systemd unit template and per-workload
// drop-in override that the privileged helper writes to disk.
package systemdtmpl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/philcali/pandemic/internal/workload"
)

// UnitTemplateName is the parameterized unit file every workload
// instantiates via systemd's "@" template mechanism.
const UnitTemplateName = "workload@.service"

// UnitTemplate renders a unit file for one workload from its workingDir
// and execStart; %i substitutes the instance name (the workload's
// service-name suffix) at systemd expansion time.
func UnitTemplate(workingDir, execStart string) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=Pandemic workload %%i\n")
	b.WriteString("After=network.target\n\n")
	b.WriteString("[Service]\n")
	b.WriteString("Type=simple\n")
	fmt.Fprintf(&b, "WorkingDirectory=%s\n", workingDir)
	fmt.Fprintf(&b, "ExecStart=%s\n", execStart)
	b.WriteString("Restart=on-failure\n")
	b.WriteString("RestartSec=5\n\n")
	b.WriteString("[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}

// OverrideDropInFile is the file name of the per-workload override inside
// the unit's "<unit>.d" drop-in directory.
const OverrideDropInFile = "pandemic.conf"

// RenderOverride builds the [Service] drop-in content for one workload:
// environment variables (always including PANDEMIC_SOCKET so the
// workload can reach the supervisor) and resource limit lines.
func RenderOverride(env map[string]string, resources workload.Resources, supervisorSocket string) string {
	merged := make(map[string]string, len(env)+1)
	for k, v := range env {
		merged[k] = v
	}
	merged["PANDEMIC_SOCKET"] = supervisorSocket

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("[Service]\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "Environment=%s=%s\n", k, merged[k])
	}
	if resources.MemoryLimit != "" {
		fmt.Fprintf(&b, "MemoryLimit=%s\n", resources.MemoryLimit)
	}
	if resources.CPUQuota != "" {
		fmt.Fprintf(&b, "CPUQuota=%s\n", resources.CPUQuota)
	}
	return b.String()
}

// ServiceName builds the service_name field for a workload, per the
// §3 data model: "workload@<name>.service".
func ServiceName(name string) string {
	return fmt.Sprintf("workload@%s.service", name)
}
