package workload

import "fmt"

// State is a workload's lifecycle stage.
type State string

const (
	Installing State = "Installing"
	Installed  State = "Installed"
	Starting   State = "Starting"
	Running    State = "Running"
	Stopping   State = "Stopping"
	Stopped    State = "Stopped"
	Failed     State = "Failed"
	Removing   State = "Removing"
)

// Resources caps a workload's host resource usage.
type Resources struct {
	MemoryLimit string `json:"memory_limit,omitempty" mapstructure:"memory_limit"`
	CPUQuota    string `json:"cpu_quota,omitempty" mapstructure:"cpu_quota"`
}

// Record is the persisted representation of one workload, the central
// entity owned by the state store.
type Record struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Source       string            `json:"source"`
	State        State             `json:"state"`
	ServiceName  string            `json:"service_name,omitempty"`
	InstallPath  string            `json:"install_path,omitempty"`
	DownloadInfo map[string]any    `json:"download_info,omitempty"`
	ConfigInfo   map[string]any    `json:"config_info,omitempty"`
	Environment  map[string]string `json:"environment,omitempty"`
	Resources    Resources         `json:"resources,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// validTransitions enumerates the monotone state graph. A transition not
// listed here is rejected — in particular nothing leaves Removing except
// back through a fresh Installing record.
var validTransitions = map[State]map[State]bool{
	Installing: {Installed: true, Failed: true, Removing: true},
	Installed:  {Starting: true, Running: true, Failed: true, Removing: true},
	Starting:   {Running: true, Failed: true, Stopping: true, Removing: true},
	Running:    {Stopping: true, Failed: true, Removing: true},
	Stopping:   {Stopped: true, Failed: true, Removing: true},
	Stopped:    {Starting: true, Running: true, Failed: true, Removing: true},
	Failed:     {Installing: true, Starting: true, Removing: true},
	Removing:   {},
}

// CanTransition reports whether moving from 'from' to 'to' is allowed.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// ErrInvalidTransition is returned when a caller attempts an illegal state
// transition, e.g. out of Removing into a running state.
type ErrInvalidTransition struct {
	From, To State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// MapActiveState maps an init-manager ActiveState string onto a workload
// State, per the supervisor's state-mapping rule.
func MapActiveState(activeState string) State {
	switch activeState {
	case "active":
		return Running
	case "inactive":
		return Stopped
	case "failed":
		return Failed
	case "activating":
		return Starting
	case "deactivating":
		return Stopping
	default:
		return State("Unknown")
	}
}
