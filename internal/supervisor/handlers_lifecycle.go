package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/philcali/pandemic/internal/helperclient"
	"github.com/philcali/pandemic/internal/workload"
)

func (d *Daemon) handleStart(ctx context.Context, payload json.RawMessage) (any, error) {
	return d.transitionViaHelper(payload, workload.Starting, workload.Running, "started", "workload.started",
		func(c *helperclient.Client, serviceName string) error { return c.StartService(serviceName) })
}

func (d *Daemon) handleStop(ctx context.Context, payload json.RawMessage) (any, error) {
	return d.transitionViaHelper(payload, workload.Stopping, workload.Stopped, "stopped", "workload.stopped",
		func(c *helperclient.Client, serviceName string) error { return c.StopService(serviceName) })
}

// handleRestart doesn't fit the shared start/stop shape: a restart from
// Running can't pass through Starting directly (Running->Starting isn't a
// valid transition), so it settles into Running in one or two hops
// depending on where the record currently sits.
func (d *Daemon) handleRestart(ctx context.Context, payload json.RawMessage) (any, error) {
	var params workloadIDParams
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
		return nil, fmt.Errorf("workload %s has no service yet", params.WorkloadID)
	}

	if err := d.withHelper(func(c *helperclient.Client) error {
		return c.RestartService(rec.ServiceName)
	}); err != nil {
		_ = d.store.UpdateState(rec.ID, workload.Failed)
		rec.State = workload.Failed
		rec.Error = err.Error()
		_ = d.store.Add(rec)
		d.publish("core", "workload.failed", map[string]any{"id": rec.ID, "error": err.Error()})
		return nil, err
	}

	if err := d.settleToRunning(rec.ID, rec.State); err != nil {
		return nil, err
	}
	d.publish("core", "workload.restarted", map[string]any{"id": rec.ID, "serviceName": rec.ServiceName})

	return map[string]any{"status": "restarted", "workloadId": rec.ID}, nil
}

// settleToRunning moves a record into Running, hopping through Starting
// first when a direct transition from 'from' isn't legal.
func (d *Daemon) settleToRunning(id string, from workload.State) error {
	if workload.CanTransition(from, workload.Running) {
		return d.store.UpdateState(id, workload.Running)
	}
	if err := d.store.UpdateState(id, workload.Starting); err != nil {
		return err
	}
	return d.store.UpdateState(id, workload.Running)
}

// transitionViaHelper runs the common start/stop shape: move the record
// to an in-flight state, delegate to the helper, then move to the
// settled state on success or Failed on error, emitting one event either
// way. status is the literal response status string ("started"/"stopped").
func (d *Daemon) transitionViaHelper(payload json.RawMessage, inFlight, settled workload.State, status, eventType string, call func(*helperclient.Client, string) error) (any, error) {
	var params workloadIDParams
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
		return nil, fmt.Errorf("workload %s has no service yet", params.WorkloadID)
	}

	if err := d.store.UpdateState(rec.ID, inFlight); err != nil {
		return nil, err
	}

	if err := d.withHelper(func(c *helperclient.Client) error {
		return call(c, rec.ServiceName)
	}); err != nil {
		_ = d.store.UpdateState(rec.ID, workload.Failed)
		rec.State = workload.Failed
		rec.Error = err.Error()
		_ = d.store.Add(rec)
		d.publish("core", "workload.failed", map[string]any{"id": rec.ID, "error": err.Error()})
		return nil, err
	}

	if err := d.store.UpdateState(rec.ID, settled); err != nil {
		return nil, err
	}
	d.publish("core", eventType, map[string]any{"id": rec.ID, "serviceName": rec.ServiceName})

	return map[string]any{"status": status, "workloadId": rec.ID}, nil
}
