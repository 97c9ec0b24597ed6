package sync

import (
	"context"
	"fmt"
	"path"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
)

// SyncOne refreshes a single already-tracked page outside the batch
// pass. knownPath overrides the recorded local path when non-empty;
// force bypasses the version check.
func (s *Syncer) SyncOne(ctx context.Context, pageID, knownPath string, force bool) error {
	if pageID == "" {
		return apperrors.ErrPageIDRequired
	}

	localPath := knownPath
	if localPath == "" {
		rec, ok := s.state.GetRecord(pageID)
		if !ok {
			return apperrors.ErrPageNotTracked
		}
		localPath = rec.LocalPath
	}

	page, err := s.client.FetchPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}

	info := PathInfo{
		FolderPath: path.Dir(localPath),
		FilePath:   localPath,
	}
	if info.FolderPath == "." {
		info.FolderPath = ""
	}

	var outcome syncOutcome
	var rec Record
	if force {
		outcome, rec, err = s.writeDocument(ctx, page, info)
	} else {
		outcome, rec, err = s.syncDocument(ctx, page, info)
	}
	if err != nil {
		return &DocumentError{ID: page.ID, Title: page.Title, Err: err}
	}
	if outcome == outcomeSkipped {
		s.logger.InfoContext(ctx, "page unchanged, skipping",
			"page_id", page.ID,
			"version", page.Version.Number)
		return nil
	}

	if err := s.state.ApplyBatch([]Record{rec}); err != nil {
		return fmt.Errorf("persist sync state: %w", err)
	}

	s.logger.InfoContext(ctx, "page resynced",
		"page_id", page.ID,
		"path", info.FilePath,
		"forced", force)
	return nil
}
