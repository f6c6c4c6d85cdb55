package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
)

type subscriptionEntry struct {
	Source  string `json:"source"`
	Pattern string `json:"pattern"`
}

type subscriptionParams struct {
	WorkloadID    string              `json:"workloadId"`
	Subscriptions []subscriptionEntry `json:"subscriptions"`
}

func (d *Daemon) handleSubscribeEvents(ctx context.Context, payload json.RawMessage) (any, error) {
	var params subscriptionParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.WorkloadID == "" {
		return nil, fmt.Errorf("workloadId is required")
	}
	if _, ok := d.store.Get(params.WorkloadID); !ok {
		return nil, fmt.Errorf("workload not found: %s", params.WorkloadID)
	}

	d.subMu.Lock()
	bySource, ok := d.subscriptions[params.WorkloadID]
	if !ok {
		bySource = make(map[string]string)
		d.subscriptions[params.WorkloadID] = bySource
	}
	for _, entry := range params.Subscriptions {
		bySource[entry.Source] = entry.Pattern
	}
	count := len(bySource)
	d.subMu.Unlock()

	d.publish("core", "system.subscription", map[string]any{
		"workloadId": params.WorkloadID,
		"action":     "subscribe",
		"count":      count,
	})

	return map[string]any{"workloadId": params.WorkloadID, "subscriptionCount": count}, nil
}

func (d *Daemon) handleUnsubscribeEvents(ctx context.Context, payload json.RawMessage) (any, error) {
	var params subscriptionParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.WorkloadID == "" {
		return nil, fmt.Errorf("workloadId is required")
	}

	d.subMu.Lock()
	bySource, ok := d.subscriptions[params.WorkloadID]
	if ok {
		if len(params.Subscriptions) == 0 {
			delete(d.subscriptions, params.WorkloadID)
			bySource = nil
		} else {
			for _, entry := range params.Subscriptions {
				delete(bySource, entry.Source)
			}
			if len(bySource) == 0 {
				delete(d.subscriptions, params.WorkloadID)
			}
		}
	}
	count := len(bySource)
	d.subMu.Unlock()

	d.publish("core", "system.subscription", map[string]any{
		"workloadId": params.WorkloadID,
		"action":     "unsubscribe",
		"count":      count,
	})

	return map[string]any{"workloadId": params.WorkloadID, "subscriptionCount": count}, nil
}
