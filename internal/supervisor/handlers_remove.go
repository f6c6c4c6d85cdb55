package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/philcali/pandemic/internal/helperclient"
)

type removeParams struct {
	WorkloadID string `json:"workloadId"`
	Cleanup    bool   `json:"cleanup"`
}

func (d *Daemon) handleRemove(ctx context.Context, payload json.RawMessage) (any, error) {
	var params removeParams
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

	removedServices := []string{}
	removedFiles := []string{}

	if rec.ServiceName != "" {
		if err := d.withHelper(func(c *helperclient.Client) error {
			return c.RemoveService(rec.ServiceName)
		}); err != nil {
			return nil, fmt.Errorf("remove service %s: %w", rec.ServiceName, err)
		}
		removedServices = append(removedServices, rec.ServiceName)
	}

	if err := d.events.RemoveSource(rec.ID); err != nil {
		// Best-effort: a missing or already-torn-down source shouldn't
		// block removing the workload record itself.
		d.publish("core", "workload.event_source_remove_failed", map[string]any{"id": rec.ID, "error": err.Error()})
	}

	d.subMu.Lock()
	delete(d.subscriptions, rec.ID)
	d.subMu.Unlock()

	if params.Cleanup && rec.InstallPath != "" {
		if err := os.RemoveAll(rec.InstallPath); err != nil {
			return nil, fmt.Errorf("clean up install path %s: %w", rec.InstallPath, err)
		}
		removedFiles = append(removedFiles, rec.InstallPath)
	}

	if _, err := d.store.Remove(rec.ID); err != nil {
		return nil, fmt.Errorf("remove record: %w", err)
	}

	d.publish("core", "workload.removed", map[string]any{"id": rec.ID, "name": rec.Name})

	return map[string]any{"removedFiles": removedFiles, "removedServices": removedServices}, nil
}
