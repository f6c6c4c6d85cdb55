package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/philcali/pandemic/internal/rpcserver"
)

// Daemon is the event bus control plane: a rpcserver.Server exposing
// publish/createSource/getStats, backed by one Source per source id.
type Daemon struct {
	server    *rpcserver.Server
	eventsDir string

	limiter *SourceRateLimiter

	mu      sync.Mutex
	sources map[string]*Source
}

// New builds the event bus daemon. rateVal/burst parameterize the
// per-source token bucket (see section 4.5's rate limiting rule); zero
// values fall back to the spec defaults.
func New(socket rpcserver.SocketConfig, eventsDir string, rateVal float64, burst int) *Daemon {
	d := &Daemon{
		server:    rpcserver.NewServer("pandemic-eventbus", socket),
		eventsDir: eventsDir,
		limiter:   NewSourceRateLimiter(rateVal, burst),
		sources:   make(map[string]*Source),
	}
	d.registerHandlers()
	return d
}

// Server exposes the underlying rpcserver.Server for lifecycle wiring.
func (d *Daemon) Server() *rpcserver.Server { return d.server }

func (d *Daemon) registerHandlers() {
	d.server.RegisterHandler("publish", d.handlePublish)
	d.server.RegisterHandler("createSource", d.handleCreateSource)
	d.server.RegisterHandler("removeSource", d.handleRemoveSource)
	d.server.RegisterHandler("getStats", d.handleGetStats)
}

// EnsureSource creates sourceID's fan-out socket if it doesn't already
// exist, returning whether it was newly created.
func (d *Daemon) EnsureSource(sourceID string) (*Source, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if src, ok := d.sources[sourceID]; ok {
		return src, false, nil
	}

	src, err := NewSource(d.eventsDir, sourceID)
	if err != nil {
		return nil, false, fmt.Errorf("create source %s: %w", sourceID, err)
	}
	d.sources[sourceID] = src
	return src, true, nil
}

type publishParams struct {
	SourceID  string `json:"sourceId"`
	EventType string `json:"eventType"`
	Payload   any    `json:"payload"`
}

func (d *Daemon) handlePublish(ctx context.Context, payload json.RawMessage) (any, error) {
	var params publishParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.SourceID == "" {
		return nil, fmt.Errorf("sourceId is required")
	}
	if params.EventType == "" {
		return nil, fmt.Errorf("eventType is required")
	}

	src, _, err := d.EnsureSource(params.SourceID)
	if err != nil {
		return nil, err
	}

	event := NewEvent(params.SourceID, params.EventType, params.Payload)

	if !d.limiter.Allow(params.SourceID) {
		slog.Warn("event dropped by rate limiter", "source", params.SourceID, "type", params.EventType)
		return map[string]any{
			"eventId":         event.EventID,
			"published":       false,
			"sourceId":        params.SourceID,
			"subscriberCount": src.SubscriberCount(),
		}, nil
	}

	delivered := src.Publish(event)

	return map[string]any{
		"eventId":         event.EventID,
		"published":       true,
		"sourceId":        params.SourceID,
		"subscriberCount": delivered,
	}, nil
}

type createSourceParams struct {
	SourceID string `json:"sourceId"`
}

func (d *Daemon) handleCreateSource(ctx context.Context, payload json.RawMessage) (any, error) {
	var params createSourceParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.SourceID == "" {
		return nil, fmt.Errorf("sourceId is required")
	}

	src, created, err := d.EnsureSource(params.SourceID)
	if err != nil {
		return nil, err
	}

	status := "exists"
	if created {
		status = "created"
	}

	return map[string]any{
		"sourceId":   params.SourceID,
		"socketPath": src.SocketPath(),
		"status":     status,
	}, nil
}

func (d *Daemon) handleRemoveSource(ctx context.Context, payload json.RawMessage) (any, error) {
	var params createSourceParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if params.SourceID == "" {
		return nil, fmt.Errorf("sourceId is required")
	}

	d.mu.Lock()
	src, ok := d.sources[params.SourceID]
	if ok {
		delete(d.sources, params.SourceID)
	}
	d.mu.Unlock()

	if !ok {
		return map[string]any{"sourceId": params.SourceID, "status": "not_found"}, nil
	}

	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("close source %s: %w", params.SourceID, err)
	}
	d.limiter.Forget(params.SourceID)

	return map[string]any{"sourceId": params.SourceID, "status": "removed"}, nil
}

func (d *Daemon) handleGetStats(ctx context.Context, payload json.RawMessage) (any, error) {
	d.mu.Lock()
	sources := make(map[string]any, len(d.sources))
	for id, src := range d.sources {
		sources[id] = map[string]any{
			"subscriberCount": src.SubscriberCount(),
			"socketPath":      src.SocketPath(),
		}
	}
	total := len(d.sources)
	d.mu.Unlock()

	return map[string]any{
		"totalSources": total,
		"sources":      sources,
		"eventsDir":    d.eventsDir,
		"rateLimit":    d.limiter.rateVal,
		"burstSize":    d.limiter.burst,
	}, nil
}

// Shutdown closes every source socket, in addition to whatever the
// caller does with Server().Stop for the control socket.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, src := range d.sources {
		if err := src.Close(); err != nil {
			slog.Warn("failed to close event source", "source", id, "error", err)
		}
	}
	return nil
}
