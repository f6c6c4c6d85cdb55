package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/philcali/pandemic/internal/workload"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Total() != 0 {
		t.Fatalf("expected empty store, got %d", s.Total())
	}
}

func TestOpenCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Total() != 0 {
		t.Fatalf("expected empty store for corrupt file, got %d", s.Total())
	}
}

func TestAddGetListPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := workload.Record{ID: "workload-aaaa0001", Name: "demo", State: workload.Installing}
	if err := s.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := s.Get(rec.ID)
	if !ok {
		t.Fatal("expected record to exist")
	}
	if got.Name != "demo" {
		t.Fatalf("unexpected name: %s", got.Name)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file to be written: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Total() != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", reopened.Total())
	}
}

func TestUpdateStateValidatesTransition(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := workload.Record{ID: "workload-aaaa0002", State: workload.Removing}
	if err := s.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.UpdateState(rec.ID, workload.Running); err == nil {
		t.Fatal("expected invalid transition error")
	}

	if err := s.UpdateState("missing-id", workload.Running); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestRemove(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := workload.Record{ID: "workload-aaaa0003", State: workload.Installed}
	if err := s.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	removed, err := s.Remove(rec.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected record to be removed")
	}

	removed, err = s.Remove(rec.ID)
	if err != nil {
		t.Fatalf("Remove again: %v", err)
	}
	if removed {
		t.Fatal("expected second remove to report false")
	}
}

func TestTotalAndRunning(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Add(workload.Record{ID: "workload-1", State: workload.Running})
	_ = s.Add(workload.Record{ID: "workload-2", State: workload.Stopped})
	_ = s.Add(workload.Record{ID: "workload-3", State: workload.Running})

	if s.Total() != 3 {
		t.Fatalf("expected total 3, got %d", s.Total())
	}
	if s.Running() != 2 {
		t.Fatalf("expected running 2, got %d", s.Running())
	}
}
