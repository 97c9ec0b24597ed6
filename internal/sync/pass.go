package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
	"github.com/Inna0915/obsidian-confluence-flow/internal/confluence"
	"github.com/Inna0915/obsidian-confluence-flow/internal/converter"
)

// DocumentError records one page's failure without aborting the pass.
type DocumentError struct {
	ID    string
	Title string
	Err   error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return fmt.Sprintf("page %s (%q): %v", e.ID, e.Title, e.Err)
}

// Unwrap returns the underlying error.
func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Result aggregates one sync pass. Success is true iff the error list
// is empty; partial success still reports the counts of the pages that
// made it through.
type Result struct {
	Created  int
	Updated  int
	Skipped  int
	Errors   []*DocumentError
	Success  bool
	Duration time.Duration
}

// Failed returns the number of failed pages.
func (r *Result) Failed() int {
	return len(r.Errors)
}

// RunPass executes one full sync pass:
// root partitioning, listing, path planning, bounded-concurrency
// syncing, then batched state persistence.
func (s *Syncer) RunPass(ctx context.Context) (*Result, error) {
	passStart := time.Now()

	// ResolvingRoots: partition configured roots into new and existing.
	if len(s.config.RootPages) == 0 {
		return nil, apperrors.ErrNoRootPages
	}

	var newRoots, existingRoots []string
	for _, id := range s.config.RootPages {
		if s.state.IsRootSynced(id) {
			existingRoots = append(existingRoots, id)
		} else {
			newRoots = append(newRoots, id)
		}
	}

	s.logger.InfoContext(ctx, "starting sync pass",
		"new_roots", len(newRoots),
		"existing_roots", len(existingRoots),
		"watermark", s.state.Watermark())

	// Listing: incremental for existing roots, full for new roots.
	pages, err := s.listPages(ctx, newRoots, existingRoots)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	// PathPlanning: one resolver call over the deduplicated batch.
	paths := ResolvePaths(pages, s.config.RootPages, s.config.BasePath)
	s.warnOnPathCollisions(ctx, paths)

	// Syncing: bounded worker pool with per-page failure isolation.
	result := &Result{}
	var mu sync.Mutex
	var pending []Record

	pool, poolCtx := errgroup.WithContext(ctx)
	pool.SetLimit(s.config.Concurrency)

	for i := range pages {
		page := &pages[i]
		pool.Go(func() error {
			outcome, rec, err := s.syncDocument(poolCtx, page, paths[page.ID])

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors = append(result.Errors, &DocumentError{ID: page.ID, Title: page.Title, Err: err})
			case outcome == outcomeSkipped:
				result.Skipped++
			case outcome == outcomeCreated:
				result.Created++
				pending = append(pending, rec)
			case outcome == outcomeUpdated:
				result.Updated++
				pending = append(pending, rec)
			}
			// Failures stay isolated per page; never abort the pool.
			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}

	// Persisting: one durable write for the whole batch, then the root
	// set and watermark. Persistence failures must surface loudly.
	if err := s.state.ApplyBatch(pending); err != nil {
		return nil, fmt.Errorf("persist sync state: %w", err)
	}
	if len(newRoots) > 0 {
		if err := s.state.RecordRootSynced(newRoots); err != nil {
			return nil, fmt.Errorf("record synced roots: %w", err)
		}
	}
	if err := s.state.SetWatermark(passStart); err != nil {
		return nil, fmt.Errorf("set watermark: %w", err)
	}

	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(passStart)

	s.logger.InfoContext(ctx, "sync pass complete",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed(),
		"duration", result.Duration)

	return result, nil
}

// listPages issues the time-filtered listing for existing roots and the
// unfiltered listing for new roots, then deduplicates by identifier. A
// page reachable from two roots is processed once.
func (s *Syncer) listPages(ctx context.Context, newRoots, existingRoots []string) ([]confluence.Page, error) {
	var pages []confluence.Page

	if len(existingRoots) > 0 {
		since := s.state.Watermark()
		listed, err := s.client.FetchAllByRoots(ctx, existingRoots, since)
		if err != nil {
			return nil, err
		}
		pages = append(pages, listed...)
	}

	if len(newRoots) > 0 {
		listed, err := s.client.FetchAllByRoots(ctx, newRoots, time.Time{})
		if err != nil {
			return nil, err
		}
		pages = append(pages, listed...)
	}

	seen := make(map[string]bool, len(pages))
	deduped := pages[:0]
	for i := range pages {
		if seen[pages[i].ID] {
			continue
		}
		seen[pages[i].ID] = true
		deduped = append(deduped, pages[i])
	}

	s.logger.InfoContext(ctx, "listed pages", "count", len(deduped))
	return deduped, nil
}

// warnOnPathCollisions reports sibling pages whose sanitized titles
// land on the same file. The later write wins; this is a known
// limitation, not silent behavior.
func (s *Syncer) warnOnPathCollisions(ctx context.Context, paths map[string]PathInfo) {
	byFile := make(map[string]string, len(paths))
	for id, info := range paths {
		if other, ok := byFile[info.FilePath]; ok {
			s.logger.WarnContext(ctx, "sibling pages collide on the same path",
				"path", info.FilePath,
				"page_id", id,
				"other_page_id", other)
			continue
		}
		byFile[info.FilePath] = id
	}
}

type syncOutcome int

const (
	outcomeSkipped syncOutcome = iota
	outcomeCreated
	outcomeUpdated
)

// syncDocument processes one page inside a worker: change check, folder
// creation, attachment loop, markup conversion and the file write. The
// returned record is staged for batched persistence by the caller.
func (s *Syncer) syncDocument(
	ctx context.Context, page *confluence.Page, info PathInfo,
) (syncOutcome, Record, error) {
	if !s.state.NeedsSync(page.ID, page.Version.Number) {
		s.logger.DebugContext(ctx, "page unchanged, skipping",
			"page_id", page.ID,
			"version", page.Version.Number)
		return outcomeSkipped, Record{}, nil
	}

	return s.writeDocument(ctx, page, info)
}

// writeDocument performs the folder/attachment/convert/write sequence
// without the change check. Used directly by forced single-page resync.
func (s *Syncer) writeDocument(
	ctx context.Context, page *confluence.Page, info PathInfo,
) (syncOutcome, Record, error) {
	startTime := time.Now()

	if err := s.ensureFolderPath(ctx, info.FolderPath); err != nil {
		return 0, Record{}, fmt.Errorf("ensure folder: %w", err)
	}

	// The zero hint skips the listing call entirely. The hint is
	// advisory: absent or unknown always lists.
	if hint, known := page.AttachmentHint(); !known || hint > 0 {
		s.syncAttachments(ctx, page, info.FolderPath)
	}

	content := s.converter.Convert(page, &converter.ConvertOptions{
		PageURL:  s.client.PageURL(page),
		SyncedAt: time.Now(),
	})

	outcome := outcomeCreated
	if handle, ok := s.storage.ResolvePath(ctx, info.FilePath); ok {
		if err := s.storage.ModifyFile(ctx, handle, string(content)); err != nil {
			return 0, Record{}, fmt.Errorf("modify file: %w", err)
		}
		outcome = outcomeUpdated
	} else {
		if err := s.storage.CreateFile(ctx, info.FilePath, string(content)); err != nil {
			return 0, Record{}, fmt.Errorf("create file: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "synced page",
		"page_id", page.ID,
		"title", page.Title,
		"path", info.FilePath,
		"version", page.Version.Number,
		"duration_ms", time.Since(startTime).Milliseconds())

	return outcome, Record{
		PageID:      page.ID,
		LocalPath:   info.FilePath,
		Version:     page.Version.Number,
		LastUpdated: time.Now().UnixMilli(),
	}, nil
}

// syncAttachments downloads a page's attachments sequentially within
// the current worker, bounding total outbound fan-out to the pool size.
// Attachment failures degrade the page, they do not fail it.
func (s *Syncer) syncAttachments(ctx context.Context, page *confluence.Page, folder string) {
	attachments, err := s.client.ListAttachments(ctx, page.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list attachments",
			"page_id", page.ID,
			"error", err)
		return
	}

	for i := range attachments {
		att := &attachments[i]
		data, err := s.client.DownloadAttachment(ctx, att)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to download attachment",
				"page_id", page.ID,
				"attachment", att.Title,
				"error", err)
			continue
		}

		name := converter.AttachmentFilename(page.Title, att.Title)
		attPath := folder + "/" + name

		var writeErr error
		if handle, ok := s.storage.ResolvePath(ctx, attPath); ok {
			writeErr = s.storage.ModifyBinaryFile(ctx, handle, data)
		} else {
			writeErr = s.storage.CreateBinaryFile(ctx, attPath, data)
		}
		if writeErr != nil {
			s.logger.WarnContext(ctx, "failed to write attachment",
				"page_id", page.ID,
				"attachment", att.Title,
				"error", writeErr)
			continue
		}

		s.logger.DebugContext(ctx, "synced attachment",
			"page_id", page.ID,
			"attachment", att.Title,
			"size", len(data))
	}
}
