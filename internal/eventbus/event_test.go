package eventbus

import "testing"

func TestNewEventStampsFields(t *testing.T) {
	event := NewEvent("demo", "workload.started", map[string]string{"id": "workload-aaaa0001"})

	if event.EventID == "" {
		t.Fatal("expected a generated event id")
	}
	if event.Version != DefaultVersion {
		t.Fatalf("expected default version, got %s", event.Version)
	}
	if event.Source != "demo" {
		t.Fatalf("unexpected source: %s", event.Source)
	}
	if event.Type != "workload.started" {
		t.Fatalf("unexpected type: %s", event.Type)
	}
	if event.Timestamp == "" {
		t.Fatal("expected a timestamp")
	}
}

func TestNewEventUniqueIDs(t *testing.T) {
	a := NewEvent("demo", "x", nil)
	b := NewEvent("demo", "x", nil)
	if a.EventID == b.EventID {
		t.Fatal("expected distinct event ids")
	}
}
