package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/philcali/pandemic/internal/helperclient"
)

func (d *Daemon) handleMetrics(ctx context.Context, payload json.RawMessage) (any, error) {
	var params workloadIDParams
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}

	if params.WorkloadID != "" {
		return d.metricsFor(params.WorkloadID)
	}

	all := make(map[string]any)
	for _, rec := range d.store.List("") {
		if rec.ServiceName == "" {
			continue
		}
		m, err := d.metricsFor(rec.ID)
		if err != nil {
			continue
		}
		all[rec.ID] = m
	}
	return map[string]any{"workloads": all}, nil
}

func (d *Daemon) metricsFor(workloadID string) (any, error) {
	rec, ok := d.store.Get(workloadID)
	if !ok {
		return nil, fmt.Errorf("workload not found: %s", workloadID)
	}
	if rec.ServiceName == "" {
		return nil, fmt.Errorf("workload %s has no service yet", workloadID)
	}

	var memory, cpu, activeState string
	err := d.withHelper(func(c *helperclient.Client) error {
		status, err := c.GetStatus(rec.ServiceName)
		if err != nil {
			return err
		}
		memory = status.Memory
		cpu = status.CPU
		activeState = status.ActiveState
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get status for %s: %w", rec.ServiceName, err)
	}

	return map[string]any{
		"workloadId":  workloadID,
		"memory":      memory,
		"cpu":         cpu,
		"activeState": activeState,
	}, nil
}
