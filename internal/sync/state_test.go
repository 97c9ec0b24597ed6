package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*StateStore, string) {
	t.Helper()

	path := StateFilePath(t.TempDir())
	store, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	return store, path
}

func TestStateStore_NeedsSync(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	if !store.NeedsSync("1", 1) {
		t.Error("unknown page must need sync")
	}

	if err := store.ApplyBatch([]Record{{PageID: "1", LocalPath: "a.md", Version: 3}}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	tests := []struct {
		name          string
		remoteVersion int
		want          bool
	}{
		{name: "older remote", remoteVersion: 2, want: false},
		{name: "same version", remoteVersion: 3, want: false},
		{name: "newer remote", remoteVersion: 4, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := store.NeedsSync("1", tt.remoteVersion); got != tt.want {
				t.Errorf("NeedsSync(1, %d) = %v, want %v", tt.remoteVersion, got, tt.want)
			}
		})
	}
}

func TestStateStore_PersistAndReload(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)

	records := []Record{
		{PageID: "1", LocalPath: "Base/A.md", Version: 2, LastUpdated: 1700000000000},
		{PageID: "2", LocalPath: "Base/B.md", Version: 5, LastUpdated: 1700000001000},
	}
	if err := store.ApplyBatch(records); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if err := store.RecordRootSynced([]string{"100"}); err != nil {
		t.Fatalf("RecordRootSynced: %v", err)
	}
	watermark := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	if err := store.SetWatermark(watermark); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}

	// A fresh store over the same file must see everything.
	reloaded, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if reloaded.RecordCount() != 2 {
		t.Errorf("RecordCount = %d, want 2", reloaded.RecordCount())
	}
	rec, ok := reloaded.GetRecord("2")
	if !ok || rec.LocalPath != "Base/B.md" || rec.Version != 5 {
		t.Errorf("GetRecord(2) = %+v, %v", rec, ok)
	}
	if !reloaded.IsRootSynced("100") {
		t.Error("root 100 must be synced after reload")
	}
	if !reloaded.Watermark().Equal(watermark) {
		t.Errorf("Watermark = %v, want %v", reloaded.Watermark(), watermark)
	}
}

func TestStateStore_ApplyBatchMerges(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	if err := store.ApplyBatch([]Record{{PageID: "1", Version: 1}}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if err := store.ApplyBatch([]Record{
		{PageID: "1", Version: 2},
		{PageID: "2", Version: 1},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if store.RecordCount() != 2 {
		t.Errorf("RecordCount = %d, want 2", store.RecordCount())
	}
	rec, _ := store.GetRecord("1")
	if rec.Version != 2 {
		t.Errorf("record 1 version = %d, want 2", rec.Version)
	}
}

func TestStateStore_RootSyncedIdempotent(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	if err := store.RecordRootSynced([]string{"100", "200"}); err != nil {
		t.Fatalf("RecordRootSynced: %v", err)
	}
	if err := store.RecordRootSynced([]string{"100"}); err != nil {
		t.Fatalf("RecordRootSynced: %v", err)
	}

	if got := store.SyncedRoots(); len(got) != 2 {
		t.Errorf("SyncedRoots = %v, want 2 entries", got)
	}
	if store.IsRootSynced("300") {
		t.Error("unknown root must not be synced")
	}
}

func TestStateStore_WatermarkZeroWhenUnset(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	if !store.Watermark().IsZero() {
		t.Errorf("Watermark = %v, want zero", store.Watermark())
	}
}

func TestStateStore_ClearAll(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)

	if err := store.ApplyBatch([]Record{{PageID: "1", Version: 1}}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if err := store.RecordRootSynced([]string{"100"}); err != nil {
		t.Fatalf("RecordRootSynced: %v", err)
	}
	if err := store.SetWatermark(time.Now()); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	if store.RecordCount() != 0 {
		t.Errorf("RecordCount = %d, want 0", store.RecordCount())
	}
	if store.IsRootSynced("100") {
		t.Error("synced roots must be cleared")
	}
	if !store.Watermark().IsZero() {
		t.Error("watermark must be cleared")
	}

	// The cleared state must be durable.
	reloaded, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RecordCount() != 0 {
		t.Errorf("reloaded RecordCount = %d, want 0", reloaded.RecordCount())
	}
}

func TestStateStore_MissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope", "state.json")
	store, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	if store.RecordCount() != 0 {
		t.Errorf("RecordCount = %d, want 0", store.RecordCount())
	}
}

func TestStateStore_CorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewStateStore(path); err == nil {
		t.Error("corrupt state file must fail to load")
	}
}
