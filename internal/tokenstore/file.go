package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the refresh token in a single file, either on the local
// filesystem or on a bind-mounted volume inside a container.
//
// Saves are atomic: the token is written to a temp file in the same directory
// and renamed into place, so a crash mid-write never truncates or corrupts the
// previously stored credential.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore at path, creating missing parent directories
// with 0700 permissions. An unwritable location is a configuration error and is
// reported here rather than on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}

	return &FileStore{path: path}, nil
}

// Path returns the backing file location, for operator-facing output.
func (f *FileStore) Path() string {
	return f.path
}

// Load returns the stored refresh token. A missing file, empty file, or
// unparseable content maps to ErrNotFound. A token file readable by group or
// world is refused outright; the credential should be rotated, not used.
func (f *FileStore) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected owner-only)", f.path, perm)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}

	token, err := sanitize(string(data))
	if err != nil {
		return "", fmt.Errorf("%w (garbled content in %s)", ErrNotFound, f.path)
	}
	return token, nil
}

// Save atomically replaces the stored token. The temp file is created with
// 0600 before any token bytes touch disk, so the credential is never visible
// to other users even transiently.
func (f *FileStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token, err := sanitize(token)
	if err != nil {
		return fmt.Errorf("refusing to save unparseable token: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".refresh_token-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	defer func() { _ = tmp.Close() }()

	if err := tmp.Chmod(0600); err != nil {
		return fmt.Errorf("securing temp token file: %w", err)
	}
	if _, err := tmp.Write([]byte(token + "\n")); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flushing token: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}
