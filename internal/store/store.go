// Package store provides the vault storage boundary: folder and file
// existence checks plus create/modify operations for text and binary
// content.
package store

import "context"

// File is an opaque handle to an existing file, obtained from
// ResolvePath and accepted by the modify operations.
type File struct {
	Path string
	Size int64
}

// Storage abstracts the local vault the sync writes into. CreateFolder
// is idempotent: an already-existing folder is success.
type Storage interface {
	PathExists(ctx context.Context, path string) (bool, error)
	CreateFolder(ctx context.Context, path string) error
	CreateFile(ctx context.Context, path, text string) error
	ModifyFile(ctx context.Context, handle *File, text string) error
	CreateBinaryFile(ctx context.Context, path string, data []byte) error
	ModifyBinaryFile(ctx context.Context, handle *File, data []byte) error
	// ResolvePath returns a handle to an existing file, or ok=false when
	// the path does not resolve.
	ResolvePath(ctx context.Context, path string) (*File, bool)
}
