package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/philcali/pandemic/internal/workload"
)

type listParams struct {
	Filter struct {
		State string `json:"state"`
	} `json:"filter"`
}

func (d *Daemon) handleList(ctx context.Context, payload json.RawMessage) (any, error) {
	var params listParams
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}

	records := d.store.List(workload.State(params.Filter.State))

	return map[string]any{
		"workloads":    records,
		"totalCount":   d.store.Total(),
		"runningCount": d.store.Running(),
	}, nil
}
