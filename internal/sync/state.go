// Package sync provides the synchronization engine between a Confluence
// instance and the local vault.
package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const stateFilePerm = 0600

const (
	// StateDir is the metadata directory inside the vault.
	StateDir = ".confluence-flow"
	// StateFileName is the persisted state file name.
	StateFileName = "state.json"
)

// StateFilePath returns the state file location for a vault root.
func StateFilePath(vaultRoot string) string {
	return filepath.Join(vaultRoot, StateDir, StateFileName)
}

// Record is the durable per-page sync state. A record exists for a page
// iff that page has been successfully written locally at least once.
type Record struct {
	PageID      string `json:"pageId"`
	LocalPath   string `json:"localPath"`
	Version     int    `json:"version"`
	LastUpdated int64  `json:"lastUpdated"` // Unix milliseconds
}

// stateFile is the persisted JSON layout.
type stateFile struct {
	SyncState          map[string]Record `json:"syncState"`
	LastGlobalSyncTime int64             `json:"lastGlobalSyncTime"`
	SyncedRootIDs      []string          `json:"syncedRootIds"`
}

// StateStore persists per-page sync records, the global watermark and
// the set of fully-synced root identifiers. Every mutating operation
// persists before returning, so the durable copy is never behind the
// in-memory one.
type StateStore struct {
	path   string
	mu     sync.RWMutex
	data   stateFile
	logger *slog.Logger
}

// StateStoreOption configures the state store.
type StateStoreOption func(*StateStore)

// WithStateLogger sets a custom logger.
func WithStateLogger(l *slog.Logger) StateStoreOption {
	return func(s *StateStore) {
		s.logger = l
	}
}

// NewStateStore opens the state file at path, starting empty when the
// file does not exist yet.
func NewStateStore(path string, opts ...StateStoreOption) (*StateStore, error) {
	store := &StateStore{
		path:   path,
		logger: slog.Default(),
		data:   stateFile{SyncState: map[string]Record{}},
	}

	for _, opt := range opts {
		opt(store)
	}

	raw, err := os.ReadFile(path) //nolint:gosec // path is application controlled
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(raw, &store.data); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if store.data.SyncState == nil {
		store.data.SyncState = map[string]Record{}
	}

	return store, nil
}

// GetRecord returns the record for a page, if any.
func (s *StateStore) GetRecord(pageID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data.SyncState[pageID]
	return rec, ok
}

// NeedsSync reports whether a page must be synced: true when no record
// exists or the remote version is strictly greater than the recorded
// one. The version number is authoritative; timestamps are never
// compared here.
func (s *StateStore) NeedsSync(pageID string, remoteVersion int) bool {
	rec, ok := s.GetRecord(pageID)
	if !ok {
		return true
	}
	return remoteVersion > rec.Version
}

// RecordRootSynced adds root identifiers to the fully-synced set.
func (s *StateStore) RecordRootSynced(rootIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range rootIDs {
		if !slices.Contains(s.data.SyncedRootIDs, id) {
			s.data.SyncedRootIDs = append(s.data.SyncedRootIDs, id)
		}
	}
	return s.persistLocked()
}

// IsRootSynced reports whether a root has completed at least one full pass.
func (s *StateStore) IsRootSynced(rootID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Contains(s.data.SyncedRootIDs, rootID)
}

// SyncedRoots returns the fully-synced root identifiers.
func (s *StateStore) SyncedRoots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.data.SyncedRootIDs)
}

// Watermark returns the last successful global pass start time, or the
// zero time when no pass has completed.
func (s *StateStore) Watermark() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.LastGlobalSyncTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.data.LastGlobalSyncTime)
}

// SetWatermark persists the global watermark.
func (s *StateStore) SetWatermark(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.LastGlobalSyncTime = t.UnixMilli()
	return s.persistLocked()
}

// ApplyBatch merges a batch of new or updated records and persists once.
// Batching avoids one durable write per document under concurrency.
func (s *StateStore) ApplyBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.data.SyncState[rec.PageID] = rec
	}
	return s.persistLocked()
}

// RecordCount returns the number of tracked pages.
func (s *StateStore) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data.SyncState)
}

// Records returns a copy of all tracked records.
func (s *StateStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.data.SyncState))
	for _, rec := range s.data.SyncState {
		records = append(records, rec)
	}
	return records
}

// ClearAll resets all records, the synced-root set and the watermark.
// Used for full resync.
func (s *StateStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = stateFile{SyncState: map[string]Record{}}
	return s.persistLocked()
}

// persistLocked writes the state file atomically (temp file + rename).
// Callers hold the write lock.
func (s *StateStore) persistLocked() error {
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, stateFilePerm); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
