package eventclient

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/philcali/pandemic/internal/eventbus"
	"github.com/philcali/pandemic/internal/rpcserver"
)

func TestPublishRoundTrip(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := eventbus.New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 1000, 1000)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	client := New(socketPath, eventsDir)
	result, err := client.Publish("demo", "workload.started", map[string]string{"id": "workload-aaaa0001"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Published {
		t.Fatal("expected published true")
	}
}

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := eventbus.New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 1000, 1000)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	if _, _, err := d.EnsureSource("demo"); err != nil {
		t.Fatalf("EnsureSource: %v", err)
	}

	client := New(socketPath, eventsDir)
	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan eventbus.Event, 1)
	go func() {
		_ = client.Subscribe(subCtx, "demo", "workload.*", func(event eventbus.Event) {
			received <- event
		})
	}()

	// give the subscriber time to connect before publishing
	time.Sleep(50 * time.Millisecond)

	if _, err := client.Publish("demo", "workload.started", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case event := <-received:
		if event.Type != "workload.started" {
			t.Fatalf("unexpected event type: %s", event.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestSubscribeFiltersNonMatchingEvents(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "control.sock")
	eventsDir := filepath.Join(dir, "events")

	d := eventbus.New(rpcserver.SocketConfig{Path: socketPath, Mode: 0600}, eventsDir, 1000, 1000)
	ctx := context.Background()
	if err := d.Server().Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Server().Stop(ctx)

	if _, _, err := d.EnsureSource("demo"); err != nil {
		t.Fatalf("EnsureSource: %v", err)
	}

	client := New(socketPath, eventsDir)
	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan eventbus.Event, 1)
	go func() {
		_ = client.Subscribe(subCtx, "demo", "system.*", func(event eventbus.Event) {
			received <- event
		})
	}()

	time.Sleep(50 * time.Millisecond)

	if _, err := client.Publish("demo", "workload.started", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case event := <-received:
		t.Fatalf("expected no matching event, got %v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
