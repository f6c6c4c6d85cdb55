package eventbus

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/philcali/pandemic/internal/rpcserver"
)

func TestPublishCreatesSourceAndDelivers(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 1000, 1000)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	client, err := rpcserver.Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var createResult struct {
		SourceID   string `json:"sourceId"`
		SocketPath string `json:"socketPath"`
		Status     string `json:"status"`
	}
	if err := client.Call("createSource", map[string]string{"sourceId": "demo"}, &createResult); err != nil {
		t.Fatalf("createSource: %v", err)
	}
	if createResult.Status != "created" {
		t.Fatalf("expected created, got %s", createResult.Status)
	}

	sub, err := net.Dial("unix", createResult.SocketPath)
	if err != nil {
		t.Fatalf("subscribe dial: %v", err)
	}
	defer sub.Close()

	// give the accept loop a moment to register the subscriber
	time.Sleep(20 * time.Millisecond)

	var publishResult struct {
		EventID         string `json:"eventId"`
		Published       bool   `json:"published"`
		SubscriberCount int    `json:"subscriberCount"`
	}
	if err := client.Call("publish", map[string]any{
		"sourceId":  "demo",
		"eventType": "workload.started",
		"payload":   map[string]any{"id": "workload-aaaa0001"},
	}, &publishResult); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !publishResult.Published {
		t.Fatal("expected event to be published")
	}
	if publishResult.SubscriberCount != 1 {
		t.Fatalf("expected 1 subscriber delivered to, got %d", publishResult.SubscriberCount)
	}

	var event Event
	if err := rpcserver.ReadFrame(sub, &event); err != nil {
		t.Fatalf("ReadFrame on subscriber socket: %v", err)
	}
	if event.Type != "workload.started" {
		t.Fatalf("unexpected event type: %s", event.Type)
	}
}

func TestRateLimitDropsExcessPublishes(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 1, 1)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	client, err := rpcserver.Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var first, second struct {
		Published bool `json:"published"`
	}
	if err := client.Call("publish", map[string]any{"sourceId": "limited", "eventType": "a"}, &first); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := client.Call("publish", map[string]any{"sourceId": "limited", "eventType": "a"}, &second); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	if !first.Published {
		t.Fatal("expected first publish to succeed")
	}
	if second.Published {
		t.Fatal("expected second publish to be rate-limited")
	}
}

func TestCoreSourceExemptFromRateLimit(t *testing.T) {
	limiter := NewSourceRateLimiter(1, 1)
	for i := 0; i < 10; i++ {
		if !limiter.Allow(CoreSource) {
			t.Fatal("expected core source to never be rate limited")
		}
	}
}

func TestRemoveSourceDisconnectsSubscribers(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 1000, 1000)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	client, err := rpcserver.Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var created struct {
		SocketPath string `json:"socketPath"`
	}
	if err := client.Call("createSource", map[string]string{"sourceId": "demo"}, &created); err != nil {
		t.Fatalf("createSource: %v", err)
	}

	sub, err := net.Dial("unix", created.SocketPath)
	if err != nil {
		t.Fatalf("subscribe dial: %v", err)
	}
	defer sub.Close()

	var removed struct {
		Status string `json:"status"`
	}
	if err := client.Call("removeSource", map[string]string{"sourceId": "demo"}, &removed); err != nil {
		t.Fatalf("removeSource: %v", err)
	}
	if removed.Status != "removed" {
		t.Fatalf("expected removed, got %s", removed.Status)
	}

	buf := make([]byte, 1)
	sub.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := sub.Read(buf); err == nil {
		t.Fatal("expected subscriber connection to be closed")
	}
}

func TestGetStats(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 50, 100)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	client, err := rpcserver.Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if _, _, err := d.EnsureSource("core"); err != nil {
		t.Fatalf("EnsureSource: %v", err)
	}

	var stats struct {
		TotalSources int            `json:"totalSources"`
		Sources      map[string]any `json:"sources"`
		EventsDir    string         `json:"eventsDir"`
	}
	if err := client.Call("getStats", map[string]any{}, &stats); err != nil {
		t.Fatalf("getStats: %v", err)
	}
	if stats.TotalSources != 1 {
		t.Fatalf("expected 1 source, got %d", stats.TotalSources)
	}
	if stats.EventsDir != eventsDir {
		t.Fatalf("unexpected events dir: %s", stats.EventsDir)
	}
}
