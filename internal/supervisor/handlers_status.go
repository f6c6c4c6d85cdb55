package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/philcali/pandemic/internal/helperclient"
	"github.com/philcali/pandemic/internal/workload"
)

func (d *Daemon) handleStatus(ctx context.Context, payload json.RawMessage) (any, error) {
	var params workloadIDParams
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}

	if params.WorkloadID == "" {
		return map[string]any{
			"totalCount":   d.store.Total(),
			"runningCount": d.store.Running(),
			"workloads":    d.store.List(""),
		}, nil
	}

	rec, ok := d.store.Get(params.WorkloadID)
	if !ok {
		return nil, fmt.Errorf("workload not found: %s", params.WorkloadID)
	}

	if rec.ServiceName == "" {
		return rec, nil
	}

	var liveStatus *struct {
		ActiveState string `json:"activeState"`
		SubState    string `json:"subState"`
		MainPID     int    `json:"mainPid"`
		Memory      string `json:"memory"`
		CPU         string `json:"cpu"`
	}
	err := d.withHelper(func(c *helperclient.Client) error {
		status, err := c.GetStatus(rec.ServiceName)
		if err != nil {
			return err
		}
		liveStatus = &struct {
			ActiveState string `json:"activeState"`
			SubState    string `json:"subState"`
			MainPID     int    `json:"mainPid"`
			Memory      string `json:"memory"`
			CPU         string `json:"cpu"`
		}{status.ActiveState, status.SubState, status.MainPID, status.Memory, status.CPU}

		mapped := workload.MapActiveState(status.ActiveState)
		if mapped != "Unknown" && workload.CanTransition(rec.State, mapped) && rec.State != mapped {
			_ = d.store.UpdateState(rec.ID, mapped)
			rec.State = mapped
		}
		return nil
	})
	if err != nil {
		// The helper being unreachable doesn't invalidate the record; the
		// caller still gets the last persisted state.
		return map[string]any{"workload": rec, "liveStatusError": err.Error()}, nil
	}

	return map[string]any{"workload": rec, "liveStatus": liveStatus}, nil
}
