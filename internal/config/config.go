// Package config loads and watches the daemon configuration shared by the
// supervisor, the event bus, and (for the socket basics) the privileged
// helper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DaemonConfig is the full set of recognized configuration keys. Every
// field has a default so a daemon can run with no config file at all.
type DaemonConfig struct {
	SocketPath  string `yaml:"socket_path"`
	SocketMode  uint32 `yaml:"socket_mode"`
	SocketGroup string `yaml:"socket_group"`
	SocketOwner string `yaml:"socket_owner"`

	WorkloadsDir string `yaml:"workloads_dir"`
	ConfigDir    string `yaml:"config_dir"`
	StateDir     string `yaml:"state_dir"`

	ValidateSignatures bool     `yaml:"validate_signatures"`
	AllowedSources     []string `yaml:"allowed_sources"`

	LogLevel          string `yaml:"log_level"`
	StructuredLogging bool   `yaml:"structured_logging"`

	EventBusEnabled    bool    `yaml:"event_bus_enabled"`
	EventBusSocketPath string  `yaml:"event_bus_socket_path"`
	EventsDir          string  `yaml:"events_dir"`
	EventRateLimit     float64 `yaml:"event_rate_limit"`
	EventBurstSize     int     `yaml:"event_burst_size"`

	HelperSocketPath string `yaml:"helper_socket_path"`
	UnitDir          string `yaml:"unit_dir"`
}

// Default returns the baseline configuration used when no file and no
// environment overrides are present.
func Default() DaemonConfig {
	return DaemonConfig{
		SocketPath:         "/var/run/pandemic.sock",
		SocketMode:         0660,
		WorkloadsDir:       "/var/lib/pandemic/workloads",
		ConfigDir:          "/etc/pandemic",
		StateDir:           "/var/lib/pandemic",
		ValidateSignatures: false,
		LogLevel:           "info",
		StructuredLogging:  false,
		EventBusEnabled:    true,
		EventBusSocketPath: "/var/run/pandemic/event-bus.sock",
		EventsDir:          "/var/run/pandemic/events",
		EventRateLimit:     100,
		EventBurstSize:     200,
		HelperSocketPath:   "/var/run/pandemic/systemd-helper.sock",
		UnitDir:            "/etc/systemd/system",
	}
}

// Load reads path (if it exists) over the defaults, then applies
// PANDEMIC_* environment variable overrides. A missing file is not an
// error — callers get the defaults plus any environment overrides.
func Load(path string) (DaemonConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

// applyEnv overlays PANDEMIC_<UPPER_SNAKE_KEY> environment variables onto
// cfg, matching pandemic_core's DaemonConfig.from_env.
func applyEnv(cfg *DaemonConfig) {
	if v, ok := os.LookupEnv("PANDEMIC_SOCKET_PATH"); ok {
		cfg.SocketPath = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_SOCKET_MODE"); ok {
		if mode, err := strconv.ParseUint(v, 8, 32); err == nil {
			cfg.SocketMode = uint32(mode)
		}
	}
	if v, ok := os.LookupEnv("PANDEMIC_SOCKET_GROUP"); ok {
		cfg.SocketGroup = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_SOCKET_OWNER"); ok {
		cfg.SocketOwner = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_WORKLOADS_DIR"); ok {
		cfg.WorkloadsDir = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_CONFIG_DIR"); ok {
		cfg.ConfigDir = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_STATE_DIR"); ok {
		cfg.StateDir = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_VALIDATE_SIGNATURES"); ok {
		cfg.ValidateSignatures = parseBool(v)
	}
	if v, ok := os.LookupEnv("PANDEMIC_ALLOWED_SOURCES"); ok {
		cfg.AllowedSources = splitList(v)
	}
	if v, ok := os.LookupEnv("PANDEMIC_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_STRUCTURED_LOGGING"); ok {
		cfg.StructuredLogging = parseBool(v)
	}
	if v, ok := os.LookupEnv("PANDEMIC_EVENT_BUS_ENABLED"); ok {
		cfg.EventBusEnabled = parseBool(v)
	}
	if v, ok := os.LookupEnv("PANDEMIC_EVENT_BUS_SOCKET_PATH"); ok {
		cfg.EventBusSocketPath = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_EVENTS_DIR"); ok {
		cfg.EventsDir = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_EVENT_RATE_LIMIT"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EventRateLimit = f
		}
	}
	if v, ok := os.LookupEnv("PANDEMIC_EVENT_BURST_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventBurstSize = n
		}
	}
	if v, ok := os.LookupEnv("PANDEMIC_HELPER_SOCKET_PATH"); ok {
		cfg.HelperSocketPath = v
	}
	if v, ok := os.LookupEnv("PANDEMIC_UNIT_DIR"); ok {
		cfg.UnitDir = v
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
