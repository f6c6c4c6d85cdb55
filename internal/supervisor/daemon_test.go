package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/philcali/pandemic/internal/config"
	"github.com/philcali/pandemic/internal/eventbus"
	"github.com/philcali/pandemic/internal/eventclient"
	"github.com/philcali/pandemic/internal/installer"
	"github.com/philcali/pandemic/internal/rpcserver"
	"github.com/philcali/pandemic/internal/store"
)

// fakeFetcher materializes an empty directory and never touches the
// network, standing in for a real installer.Fetcher in these tests.
type fakeFetcher struct{}

func (fakeFetcher) Matches(url string) bool { return true }

func (fakeFetcher) Fetch(ctx context.Context, url, targetDir string) (map[string]any, error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, err
	}
	return map[string]any{"fetched": url}, nil
}

// testHarness wires a supervisor daemon against a fake helper server and a
// real event bus daemon, all over temp-dir sockets.
type testHarness struct {
	t           *testing.T
	dir         string
	daemon      *Daemon
	client      *rpcserver.Client
	helper      *rpcserver.Server
	helperCalls map[string]int
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	dir := t.TempDir()

	helperSocket := filepath.Join(dir, "helper.sock")
	helperCalls := make(map[string]int)
	helperServer := rpcserver.NewServer("test-helper", rpcserver.SocketConfig{Path: helperSocket, Mode: 0600})
	registerFakeHelper(helperServer, helperCalls)
	if err := helperServer.Start(context.Background()); err != nil {
		t.Fatalf("start fake helper: %v", err)
	}

	eventControlSocket := filepath.Join(dir, "events-control.sock")
	eventsDir := filepath.Join(dir, "events")
	eb := eventbus.New(rpcserver.SocketConfig{Path: eventControlSocket, Mode: 0600}, eventsDir, 1000, 1000)
	if err := eb.Server().Start(context.Background()); err != nil {
		t.Fatalf("start event bus: %v", err)
	}

	cfg := config.Default()
	cfg.HelperSocketPath = helperSocket
	cfg.WorkloadsDir = filepath.Join(dir, "workloads")

	st, err := store.Open(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	inst := installer.New(cfg.WorkloadsDir, nil)
	inst.Register(fakeFetcher{})

	events := eventclient.New(eventControlSocket, eventsDir)

	supervisorSocket := filepath.Join(dir, "supervisor.sock")
	cfg.SocketPath = supervisorSocket
	d := New(rpcserver.SocketConfig{Path: supervisorSocket, Mode: 0600}, cfg, st, inst, events)
	if err := d.Server().Start(context.Background()); err != nil {
		t.Fatalf("start supervisor: %v", err)
	}

	client, err := rpcserver.Dial(supervisorSocket)
	if err != nil {
		t.Fatalf("dial supervisor: %v", err)
	}

	h := &testHarness{t: t, dir: dir, daemon: d, client: client, helper: helperServer, helperCalls: helperCalls}
	t.Cleanup(func() {
		client.Close()
		d.Server().Stop(context.Background())
		eb.Server().Stop(context.Background())
		helperServer.Stop(context.Background())
	})
	return h
}

func registerFakeHelper(s *rpcserver.Server, calls map[string]int) {
	record := func(name string) {
		calls[name]++
	}
	decodeServiceName := func(payload json.RawMessage) string {
		var params struct {
			ServiceName string `json:"serviceName"`
		}
		_ = json.Unmarshal(payload, &params)
		return params.ServiceName
	}

	s.RegisterHandler("createService", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("createService")
		return map[string]any{"created": true}, nil
	})
	s.RegisterHandler("removeService", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("removeService")
		return map[string]any{"removed": true}, nil
	})
	s.RegisterHandler("startService", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("startService")
		return map[string]any{"started": true}, nil
	})
	s.RegisterHandler("stopService", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("stopService")
		return map[string]any{"stopped": true}, nil
	})
	s.RegisterHandler("restartService", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("restartService")
		return map[string]any{"restarted": true}, nil
	})
	s.RegisterHandler("getStatus", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("getStatus")
		_ = decodeServiceName(payload)
		return map[string]any{
			"activeState": "active",
			"subState":    "running",
			"mainPid":     1234,
			"memory":      "10.0MB",
			"cpu":         "0%",
		}, nil
	})
	s.RegisterHandler("getLogs", func(ctx context.Context, payload json.RawMessage) (any, error) {
		record("getLogs")
		return map[string]any{"entries": []any{}}, nil
	})
}

func TestInstallPipelineEndToEnd(t *testing.T) {
	h := newTestHarness(t)

	var rec map[string]any
	if err := h.client.Call("install", map[string]any{"source": "file:///tmp/demo-app"}, &rec); err != nil {
		t.Fatalf("install: %v", err)
	}
	if rec["state"] != "Installed" {
		t.Fatalf("expected Installed, got %v", rec["state"])
	}
	if rec["service_name"] != "workload@demo-app.service" {
		t.Fatalf("unexpected service name: %v", rec["service_name"])
	}
	if h.helperCalls["createService"] != 1 {
		t.Fatalf("expected helper createService to be called once, got %d", h.helperCalls["createService"])
	}
}

func TestInstallThenStartStopRemove(t *testing.T) {
	h := newTestHarness(t)

	var rec map[string]any
	if err := h.client.Call("install", map[string]any{"source": "file:///tmp/demo-app", "name": "demo"}, &rec); err != nil {
		t.Fatalf("install: %v", err)
	}
	id, _ := rec["id"].(string)
	if id == "" {
		t.Fatal("expected an assigned workload id")
	}

	var started map[string]any
	if err := h.client.Call("start", map[string]string{"workloadId": id}, &started); err != nil {
		t.Fatalf("start: %v", err)
	}
	if started["status"] != "started" {
		t.Fatalf("expected status started, got %v", started["status"])
	}

	var stopped map[string]any
	if err := h.client.Call("stop", map[string]string{"workloadId": id}, &stopped); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped["status"] != "stopped" {
		t.Fatalf("expected status stopped, got %v", stopped["status"])
	}

	var removed map[string]any
	if err := h.client.Call("remove", map[string]any{"workloadId": id}, &removed); err != nil {
		t.Fatalf("remove: %v", err)
	}
	removedServices, _ := removed["removedServices"].([]any)
	if len(removedServices) != 1 || removedServices[0] != "workload@demo.service" {
		t.Fatalf("expected removedServices [workload@demo.service], got %v", removed["removedServices"])
	}

	var healthAfter map[string]any
	if err := h.client.Call("health", map[string]any{"workloadId": id}, &healthAfter); err == nil {
		t.Fatal("expected health to error for a removed workload")
	}
}

func TestListFiltersByState(t *testing.T) {
	h := newTestHarness(t)

	if err := h.client.Call("install", map[string]any{"source": "file:///tmp/a"}, nil); err != nil {
		t.Fatalf("install a: %v", err)
	}
	if err := h.client.Call("install", map[string]any{"source": "file:///tmp/b"}, nil); err != nil {
		t.Fatalf("install b: %v", err)
	}

	var result map[string]any
	if err := h.client.Call("list", map[string]any{"filter": map[string]string{"state": "Installed"}}, &result); err != nil {
		t.Fatalf("list: %v", err)
	}
	if int(result["totalCount"].(float64)) != 2 {
		t.Fatalf("expected totalCount 2, got %v", result["totalCount"])
	}
	if workloads, _ := result["workloads"].([]any); len(workloads) != 2 {
		t.Fatalf("expected 2 Installed workloads, got %v", result["workloads"])
	}

	var running map[string]any
	if err := h.client.Call("list", map[string]any{"filter": map[string]string{"state": "Running"}}, &running); err != nil {
		t.Fatalf("list running: %v", err)
	}
	if workloads, _ := running["workloads"].([]any); len(workloads) != 0 {
		t.Fatalf("expected no Running workloads, got %v", running["workloads"])
	}
}

func TestHealthIncludesEventBusStats(t *testing.T) {
	h := newTestHarness(t)

	var result map[string]any
	if err := h.client.Call("health", map[string]any{}, &result); err != nil {
		t.Fatalf("health: %v", err)
	}
	if result["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", result["status"])
	}
	if _, ok := result["eventBus"]; !ok {
		t.Fatal("expected eventBus stats to be embedded")
	}
}

func TestSubscribeAndUnsubscribeEvents(t *testing.T) {
	h := newTestHarness(t)

	var rec map[string]any
	if err := h.client.Call("install", map[string]any{"source": "file:///tmp/sub-demo"}, &rec); err != nil {
		t.Fatalf("install: %v", err)
	}
	id, _ := rec["id"].(string)
	if id == "" {
		t.Fatal("expected an assigned workload id")
	}

	var sub map[string]any
	if err := h.client.Call("subscribeEvents", map[string]any{
		"workloadId":    id,
		"subscriptions": []map[string]string{{"source": "core", "pattern": "workload.*"}},
	}, &sub); err != nil {
		t.Fatalf("subscribeEvents: %v", err)
	}
	if int(sub["subscriptionCount"].(float64)) != 1 {
		t.Fatalf("expected 1 subscription, got %v", sub["subscriptionCount"])
	}

	var unsub map[string]any
	if err := h.client.Call("unsubscribeEvents", map[string]any{
		"workloadId":    id,
		"subscriptions": []map[string]string{{"source": "core"}},
	}, &unsub); err != nil {
		t.Fatalf("unsubscribeEvents: %v", err)
	}
	if int(unsub["subscriptionCount"].(float64)) != 0 {
		t.Fatalf("expected 0 subscriptions after unsubscribe, got %v", unsub["subscriptionCount"])
	}
}

func TestSubscribeEventsRejectsUnknownWorkload(t *testing.T) {
	h := newTestHarness(t)

	var sub map[string]any
	err := h.client.Call("subscribeEvents", map[string]any{
		"workloadId":    "workload-doesnotexist",
		"subscriptions": []map[string]string{{"source": "core", "pattern": "workload.*"}},
	}, &sub)
	if err == nil {
		t.Fatal("expected subscribeEvents to reject an unknown workload id")
	}
}

func TestGetConfigReturnsLoadedConfig(t *testing.T) {
	h := newTestHarness(t)

	var cfg map[string]any
	if err := h.client.Call("getConfig", map[string]any{}, &cfg); err != nil {
		t.Fatalf("getConfig: %v", err)
	}
	if cfg["HelperSocketPath"] == nil {
		t.Fatalf("expected helper socket path in config, got %v", cfg)
	}
}
