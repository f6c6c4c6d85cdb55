package helper

import (
	"context"
	"fmt"
	"strconv"

	sysdbus "github.com/coreos/go-systemd/v22/dbus"
)

// Status is the parsed result of a "getStatus" request.
type Status struct {
	ActiveState string `json:"activeState"`
	SubState    string `json:"subState"`
	MainPID     int    `json:"mainPid"`
	Memory      string `json:"memory"`
	CPU         string `json:"cpu"`
}

// GetStatus reads ActiveState, SubState, MainPID, and MemoryCurrent from
// systemd's unit properties, the dbus equivalent of
// "systemctl show <unit>".
func (m *ServiceManager) GetStatus(ctx context.Context, serviceName string) (Status, error) {
	conn, err := sysdbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("connect to systemd over dbus: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, serviceName)
	if err != nil {
		return Status{}, fmt.Errorf("get unit properties for %s: %w", serviceName, err)
	}

	status := Status{
		ActiveState: stringProp(props, "ActiveState"),
		SubState:    stringProp(props, "SubState"),
		MainPID:     int(uint32Prop(props, "MainPID")),
		CPU:         formatCPU(0),
	}
	status.Memory = formatMemory(uint64Prop(props, "MemoryCurrent"))

	return status, nil
}

func stringProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func uint32Prop(props map[string]any, key string) uint32 {
	v, ok := props[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case uint32:
		return n
	case int64:
		return uint32(n)
	default:
		return 0
	}
}

func uint64Prop(props map[string]any, key string) uint64 {
	v, ok := props[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	default:
		return 0
	}
}

// formatMemory renders a byte count as a human B/KB/MB/GB string, a
// direct port of the original helper's _format_memory.
func formatMemory(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	const unit = 1024
	if bytes < unit {
		return strconv.FormatUint(bytes, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(bytes) / float64(div)
	return fmt.Sprintf("%.1f%s", value, units[exp])
}

// formatCPU is a documented stub: the original leaves CPU usage
// unimplemented, and this spec does not invent semantics for it.
func formatCPU(_ uint64) string {
	return "0%"
}
