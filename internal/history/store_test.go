// # internal/history/store_test.go
package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RejectsEmptyAndDirectoryPaths(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("empty path must fail")
	}
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("directory path must fail")
	}
}

func TestRecordAndRecentRuns(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runs := []Run{
		{Entry: "app.main", Succeeded: true, Modules: 4, IncludedItems: 30, Timestamp: base},
		{Entry: "app.main", Succeeded: false, Warnings: 2, Timestamp: base.Add(time.Minute)},
		{Entry: "tool.cli", Succeeded: true, Modules: 2, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, run := range runs {
		id, err := store.RecordRun(run)
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
		if id == "" {
			t.Fatal("RecordRun returned an empty id")
		}
	}

	got, err := store.RecentRuns("app.main", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("runs = %d, want 2 for app.main", len(got))
	}
	// Newest first.
	if got[0].Succeeded || got[0].Warnings != 2 {
		t.Errorf("newest run = %+v", got[0])
	}
	if !got[1].Succeeded || got[1].Modules != 4 || got[1].IncludedItems != 30 {
		t.Errorf("older run = %+v", got[1])
	}
	if !got[1].Timestamp.Equal(base) {
		t.Errorf("timestamp round-trip = %v, want %v", got[1].Timestamp, base)
	}

	all, err := store.RecentRuns("", 10)
	if err != nil {
		t.Fatalf("RecentRuns(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all runs = %d, want 3", len(all))
	}
}

func TestRecentRuns_Limit(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := store.RecordRun(Run{Entry: "e", Timestamp: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.RecentRuns("e", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("runs = %d, want 3", len(got))
	}
}

func TestOpen_IsIdempotentOnSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
}
