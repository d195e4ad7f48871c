package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenAndMigrate(t *testing.T) {
	store := openTestStore(t)

	version, err := store.Version()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("expected schema version %d, got %d", len(migrations), version)
	}

	tables := []string{"runs", "run_items", "run_counters", "schema_version"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestStoreReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	run, err := store.BeginRun("check", []string{"/data/a"}, false)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.Command != "check" {
		t.Errorf("expected run to survive reopen, got %+v", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	run, err := store.BeginRun("delete", []string{"/data/a", "/data/b"}, true)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run ID to be set")
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, got.Status)
	}
	if !got.DryRun {
		t.Error("expected dry run to be recorded")
	}
	if len(got.Archives) != 2 || got.Archives[1] != "/data/b" {
		t.Errorf("expected archives [/data/a /data/b], got %v", got.Archives)
	}
	if got.Duration() != 0 {
		t.Errorf("expected zero duration while running, got %v", got.Duration())
	}

	if err := store.FinishRun(run, errors.New("disk full")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err = store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, got.Status)
	}
	if got.Error != "disk full" {
		t.Errorf("expected error 'disk full', got '%s'", got.Error)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected finished time to be set")
	}
}

func TestGetRunByPrefix(t *testing.T) {
	store := openTestStore(t)

	run, err := store.BeginRun("merge", nil, false)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	got, err := store.GetRun(run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.ID != run.ID {
		t.Errorf("expected run %s by prefix, got %+v", run.ID, got)
	}

	missing, err := store.GetRun("zzzz")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown run, got %+v", missing)
	}
}

func TestListRuns(t *testing.T) {
	store := openTestStore(t)

	for _, cmd := range []string{"check", "delete", "merge"} {
		if _, err := store.BeginRun(cmd, nil, false); err != nil {
			t.Fatalf("BeginRun failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Command != "merge" {
		t.Errorf("expected newest run first, got %s", runs[0].Command)
	}

	limited, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}
}

func TestRunItems(t *testing.T) {
	store := openTestStore(t)

	run, err := store.BeginRun("delete", []string{"/data/a"}, false)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	items := []*RunItem{
		{Action: ActionStrike, Archive: "/data/a", Stage: "original", Name: "a.html"},
		{Action: ActionDelete, Archive: "/data/a", Stage: "tokens", Name: "a.txt"},
		{Action: ActionDelete, Archive: "/data/a", Stage: "original", Name: "a.html"},
		{Action: ActionNotFound, Name: "zz.html", Detail: "listed but not in files.txt"},
	}
	if err := store.AddItems(run.ID, items); err != nil {
		t.Fatalf("AddItems failed: %v", err)
	}
	if items[0].ID == 0 {
		t.Error("expected item ID to be set after insert")
	}

	all, err := store.GetRunItems(run.ID, "")
	if err != nil {
		t.Fatalf("GetRunItems failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 items, got %d", len(all))
	}
	if all[3].Detail != "listed but not in files.txt" {
		t.Errorf("expected detail to round-trip, got '%s'", all[3].Detail)
	}

	deletes, err := store.GetRunItems(run.ID, ActionDelete)
	if err != nil {
		t.Fatalf("GetRunItems failed: %v", err)
	}
	if len(deletes) != 2 {
		t.Errorf("expected 2 delete items, got %d", len(deletes))
	}

	counts, err := store.CountItemsByAction(run.ID)
	if err != nil {
		t.Fatalf("CountItemsByAction failed: %v", err)
	}
	if counts[ActionDelete] != 2 || counts[ActionStrike] != 1 || counts[ActionNotFound] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestCountersAndDeleteRun(t *testing.T) {
	store := openTestStore(t)

	run, err := store.BeginRun("merge", nil, false)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	err = store.SetCounters(run.ID, []Counter{
		{Name: "groups", Value: 10},
		{Name: "bytes_copied", Value: 4096},
	})
	if err != nil {
		t.Fatalf("SetCounters failed: %v", err)
	}
	if err := store.SetCounters(run.ID, []Counter{{Name: "groups", Value: 12}}); err != nil {
		t.Fatalf("SetCounters failed: %v", err)
	}

	counters, err := store.GetCounters(run.ID)
	if err != nil {
		t.Fatalf("GetCounters failed: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(counters))
	}
	if counters[0].Name != "groups" || counters[0].Value != 12 {
		t.Errorf("expected groups=12 first, got %+v", counters[0])
	}

	if err := store.AddItems(run.ID, []*RunItem{{Action: ActionRetain, Name: "a.html"}}); err != nil {
		t.Fatalf("AddItems failed: %v", err)
	}
	if err := store.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	items, err := store.GetRunItems(run.ID, "")
	if err != nil {
		t.Fatalf("GetRunItems failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected items to be removed with run, got %d", len(items))
	}
}
