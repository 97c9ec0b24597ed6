package sync

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Inna0915/obsidian-confluence-flow/internal/confluence"
	"github.com/Inna0915/obsidian-confluence-flow/internal/converter"
	"github.com/Inna0915/obsidian-confluence-flow/internal/store"
)

// ContentClient is the remote corpus surface the syncer depends on.
// *confluence.Client satisfies it.
type ContentClient interface {
	FetchPage(ctx context.Context, pageID string) (*confluence.Page, error)
	FetchAllByRoots(ctx context.Context, rootIDs []string, since time.Time) ([]confluence.Page, error)
	ListAttachments(ctx context.Context, pageID string) ([]confluence.Attachment, error)
	DownloadAttachment(ctx context.Context, att *confluence.Attachment) ([]byte, error)
	PageURL(page *confluence.Page) string
}

// Syncer is the top-level sync controller. It owns all derived
// structures for the duration of one pass; the StateStore owns the
// durable records across passes. Concurrent passes are not supported
// and must be serialized by the caller.
type Syncer struct {
	client    ContentClient
	storage   store.Storage
	state     *StateStore
	converter *converter.Converter
	config    Config
	logger    *slog.Logger
}

// SyncerOption configures the syncer.
type SyncerOption func(*Syncer)

// WithSyncerLogger sets a custom logger.
func WithSyncerLogger(l *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		s.logger = l
	}
}

// NewSyncer creates a syncer from an immutable configuration snapshot.
func NewSyncer(
	client ContentClient, storage store.Storage, state *StateStore, cfg Config, opts ...SyncerOption,
) *Syncer {
	cfg = cfg.WithDefaults()

	syncer := &Syncer{
		client:    client,
		storage:   storage,
		state:     state,
		converter: converter.NewConverter(cfg.IssueBaseURL),
		config:    cfg,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(syncer)
	}

	return syncer
}

// ensureFolderPath creates a folder path segment by segment. Folder
// creation is idempotent: already-existing segments are success.
func (s *Syncer) ensureFolderPath(ctx context.Context, folder string) error {
	if folder == "" {
		return nil
	}

	current := ""
	for _, segment := range strings.Split(folder, "/") {
		if current == "" {
			current = segment
		} else {
			current += "/" + segment
		}

		exists, err := s.storage.PathExists(ctx, current)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.storage.CreateFolder(ctx, current); err != nil {
			return err
		}
	}
	return nil
}
