// Package store implements the persistent workload record map (C2):
// a single JSON document on disk, mutated through atomic
// write-temp-then-rename so a crash mid-write never corrupts it.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/philcali/pandemic/internal/workload"
)

// document is the on-disk shape: { "workloads": { id: record, ... } }.
type document struct {
	Workloads map[string]workload.Record `json:"workloads"`
}

// Store is a concurrency-safe, disk-backed map of workload id to record.
type Store struct {
	path string

	mu      sync.RWMutex
	records map[string]workload.Record
}

// Open loads path if it exists. A missing file starts empty. A file that
// fails to parse is logged, its contents are copied to <path>.corrupt (a
// failed copy is logged too), and the store starts empty — state.json is
// an operator-owned artifact this process never overwrites blind, but a
// corrupt file must not block startup either.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		records: make(map[string]workload.Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Error("state file failed to parse, starting with empty state", "path", path, "error", err)
		backup := path + ".corrupt"
		if err := os.WriteFile(backup, data, 0600); err != nil {
			slog.Error("failed to save unparseable state file", "path", backup, "error", err)
		}
		return s, nil
	}

	if doc.Workloads != nil {
		s.records = doc.Workloads
	}
	return s, nil
}

// Add inserts or replaces the record for id and persists the change.
func (s *Store) Add(rec workload.Record) error {
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return s.flush()
}

// Update is an alias for Add: the store has no separate partial-update
// path, callers mutate a copy of Get's result and Add it back.
func (s *Store) Update(rec workload.Record) error {
	return s.Add(rec)
}

// UpdateState transitions id to state, validating the transition, and
// persists the change. Returns an error if id is unknown or the
// transition is illegal.
func (s *Store) UpdateState(id string, state workload.State) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("workload not found: %s", id)
	}
	if !workload.CanTransition(rec.State, state) {
		s.mu.Unlock()
		return workload.ErrInvalidTransition{From: rec.State, To: state}
	}
	rec.State = state
	s.records[id] = rec
	s.mu.Unlock()
	return s.flush()
}

// Remove deletes id from the store, reporting whether it was present.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	_, ok := s.records[id]
	if ok {
		delete(s.records, id)
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, s.flush()
}

// Get returns the record for id and whether it exists.
func (s *Store) Get(id string) (workload.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// List returns every record, optionally filtered by state. An empty
// filter returns everything.
func (s *Store) List(stateFilter workload.State) []workload.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]workload.Record, 0, len(s.records))
	for _, rec := range s.records {
		if stateFilter != "" && rec.State != stateFilter {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Total returns the number of records in the store.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Running returns the number of records currently in the Running state.
func (s *Store) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.State == workload.Running {
			n++
		}
	}
	return n
}

// flush serializes the current record set to a sibling temp file and
// renames it over the target path, so a reader never observes a
// partially written document.
func (s *Store) flush() error {
	s.mu.RLock()
	doc := document{Workloads: make(map[string]workload.Record, len(s.records))}
	for id, rec := range s.records {
		doc.Workloads[id] = rec
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file into place: %w", err)
	}

	return nil
}
