package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
)

type workloadIDParams struct {
	WorkloadID string `json:"workloadId"`
}

func (d *Daemon) handleHealth(ctx context.Context, payload json.RawMessage) (any, error) {
	var params workloadIDParams
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}

	if params.WorkloadID != "" {
		if _, ok := d.store.Get(params.WorkloadID); !ok {
			return nil, fmt.Errorf("workload not found: %s", params.WorkloadID)
		}
	}

	result := map[string]any{
		"status":       "healthy",
		"totalCount":   d.store.Total(),
		"runningCount": d.store.Running(),
	}

	if stats, err := d.events.GetStats(); err == nil {
		result["eventBus"] = stats
	}

	return result, nil
}
