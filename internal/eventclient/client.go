// Package eventclient implements C7: the thin publish/subscribe wrapper
// around C6's sockets used by the supervisor and by workloads themselves.
package eventclient

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/philcali/pandemic/internal/eventbus"
	"github.com/philcali/pandemic/internal/rpcserver"
)

// reconnectDelay is how long Subscribe sleeps between a dropped connection
// and its next reconnect attempt.
const reconnectDelay = 2 * time.Second

// Client publishes through the event bus control socket and subscribes
// directly to per-source fan-out sockets under eventsDir.
type Client struct {
	controlSocket string
	eventsDir     string
}

// New builds a Client. controlSocket is the event bus control socket
// (publish/createSource/getStats); eventsDir is the directory holding
// per-source fan-out sockets.
func New(controlSocket, eventsDir string) *Client {
	return &Client{controlSocket: controlSocket, eventsDir: eventsDir}
}

// PublishResult mirrors the control socket's publish response.
type PublishResult struct {
	EventID         string `json:"eventId"`
	Published       bool   `json:"published"`
	SourceID        string `json:"sourceId"`
	SubscriberCount int    `json:"subscriberCount"`
}

// SourceInfo mirrors the control socket's createSource response.
type SourceInfo struct {
	SourceID   string `json:"sourceId"`
	SocketPath string `json:"socketPath"`
	Status     string `json:"status"`
}

// EnsureSource asks the control socket to create sourceID's fan-out socket
// if it doesn't already exist.
func (c *Client) EnsureSource(sourceID string) (SourceInfo, error) {
	client, err := rpcserver.Dial(c.controlSocket)
	if err != nil {
		return SourceInfo{}, err
	}
	defer client.Close()

	var info SourceInfo
	err = client.Call("createSource", map[string]string{"sourceId": sourceID}, &info)
	return info, err
}

// RemoveSource asks the control socket to tear down sourceID's fan-out
// socket, disconnecting any live subscribers.
func (c *Client) RemoveSource(sourceID string) error {
	client, err := rpcserver.Dial(c.controlSocket)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Call("removeSource", map[string]string{"sourceId": sourceID}, nil)
}

// Stats mirrors the control socket's getStats response.
type Stats struct {
	TotalSources int            `json:"totalSources"`
	Sources      map[string]any `json:"sources"`
	EventsDir    string         `json:"eventsDir"`
	RateLimit    float64        `json:"rateLimit"`
	BurstSize    int            `json:"burstSize"`
}

// GetStats fetches event-bus-wide introspection stats. Callers that want
// to embed this best-effort (e.g. a health check) should treat a
// connection failure as "event bus unavailable" rather than a hard error.
func (c *Client) GetStats() (Stats, error) {
	client, err := rpcserver.Dial(c.controlSocket)
	if err != nil {
		return Stats{}, err
	}
	defer client.Close()

	var stats Stats
	err = client.Call("getStats", map[string]any{}, &stats)
	return stats, err
}

// Publish dials the event bus control socket, issues one publish call, and
// closes the connection. Rate limiting and fan-out both happen inside C6;
// this is a thin RPC wrapper, matching the control-plane split the rest of
// the system uses for every other mutation.
func (c *Client) Publish(sourceID, eventType string, payload any) (PublishResult, error) {
	client, err := rpcserver.Dial(c.controlSocket)
	if err != nil {
		return PublishResult{}, err
	}
	defer client.Close()

	var result PublishResult
	err = client.Call("publish", map[string]any{
		"sourceId":  sourceID,
		"eventType": eventType,
		"payload":   payload,
	}, &result)
	return result, err
}

// Handler is invoked for each event whose type matches a subscription's
// glob pattern.
type Handler func(event eventbus.Event)

// Subscribe opens a persistent connection to the source's fan-out socket
// and invokes handler for every event whose type matches pattern. It
// reconnects with a fixed backoff on disconnect and returns only when ctx
// is cancelled.
func (c *Client) Subscribe(ctx context.Context, sourceID, pattern string, handler Handler) error {
	socketPath := c.eventsDir + "/" + sourceID + ".sock"

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.subscribeOnce(ctx, socketPath, pattern, handler); err != nil {
			slog.Warn("event subscription dropped", "source", sourceID, "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) subscribeOnce(ctx context.Context, socketPath, pattern string, handler Handler) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var event eventbus.Event
		if err := rpcserver.ReadFrame(conn, &event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if MatchesPattern(pattern, event.Type) {
			handler(event)
		}
	}
}
