package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	// File and directory permissions.
	dirPerm  = 0750 // Directory permissions: rwxr-x---
	filePerm = 0600 // File permissions: rw-------
)

// LocalVault implements Storage on the local filesystem, rooted at a
// base directory.
type LocalVault struct {
	rootPath string
	mu       sync.RWMutex
	logger   *slog.Logger
}

// LocalVaultOption configures LocalVault.
type LocalVaultOption func(*LocalVault)

// WithLogger sets a custom logger for the vault.
func WithLogger(l *slog.Logger) LocalVaultOption {
	return func(v *LocalVault) {
		v.logger = l
	}
}

// NewLocalVault creates a vault rooted at the given path, creating the
// root directory when absent.
func NewLocalVault(path string, opts ...LocalVaultOption) (*LocalVault, error) {
	vault := &LocalVault{
		rootPath: path,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(vault)
	}

	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, fmt.Errorf("create vault root: %w", err)
	}

	return vault, nil
}

// RootPath returns the vault root directory.
func (v *LocalVault) RootPath() string {
	return v.rootPath
}

// PathExists checks whether a path exists inside the vault.
func (v *LocalVault) PathExists(ctx context.Context, path string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, err := os.Stat(v.fullPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	v.logger.DebugContext(ctx, "exists check failed", "path", path, "error", err)
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// CreateFolder creates one folder. An already-existing folder is
// treated as success.
func (v *LocalVault) CreateFolder(ctx context.Context, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.logger.DebugContext(ctx, "creating folder", "path", path)

	if err := os.MkdirAll(v.fullPath(path), dirPerm); err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}

// CreateFile writes a new text file.
func (v *LocalVault) CreateFile(ctx context.Context, path, text string) error {
	return v.write(ctx, path, []byte(text))
}

// ModifyFile replaces the content of an existing file.
func (v *LocalVault) ModifyFile(ctx context.Context, handle *File, text string) error {
	return v.write(ctx, handle.Path, []byte(text))
}

// CreateBinaryFile writes a new binary file.
func (v *LocalVault) CreateBinaryFile(ctx context.Context, path string, data []byte) error {
	return v.write(ctx, path, data)
}

// ModifyBinaryFile replaces the content of an existing binary file.
func (v *LocalVault) ModifyBinaryFile(ctx context.Context, handle *File, data []byte) error {
	return v.write(ctx, handle.Path, data)
}

// ResolvePath returns a handle to an existing file.
func (v *LocalVault) ResolvePath(_ context.Context, path string) (*File, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, err := os.Stat(v.fullPath(path))
	if err != nil || info.IsDir() {
		return nil, false
	}
	return &File{Path: path, Size: info.Size()}, true
}

func (v *LocalVault) write(ctx context.Context, path string, content []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.logger.DebugContext(ctx, "writing file", "path", path, "size", len(content))

	fullPath := v.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), dirPerm); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	if err := os.WriteFile(fullPath, content, filePerm); err != nil {
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return nil
}

func (v *LocalVault) fullPath(path string) string {
	return filepath.Join(v.rootPath, path)
}
