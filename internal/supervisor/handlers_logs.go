package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/philcali/pandemic/internal/helper"
	"github.com/philcali/pandemic/internal/helperclient"
)

type logsParams struct {
	WorkloadID string `json:"workloadId"`
	Lines      int    `json:"lines"`
}

func (d *Daemon) handleLogs(ctx context.Context, payload json.RawMessage) (any, error) {
	var params logsParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.WorkloadID == "" {
		return nil, fmt.Errorf("workloadId is required")
	}

	rec, ok := d.store.Get(params.WorkloadID)
	if !ok {
		return nil, fmt.Errorf("workload not found: %s", params.WorkloadID)
	}
	if rec.ServiceName == "" {
		return map[string]any{"entries": []helper.LogEntry{}}, nil
	}

	var entries []helper.LogEntry
	err := d.withHelper(func(c *helperclient.Client) error {
		var err error
		entries, err = c.GetLogs(rec.ServiceName, params.Lines)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get logs for %s: %w", rec.ServiceName, err)
	}

	return map[string]any{"entries": entries}, nil
}
