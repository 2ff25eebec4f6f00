// Package local implements the blob store on the local file system.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recflow/recflow/pkg/blobstore"
)

const (
	blobFilePerm    = 0o600
	blobDirPerm     = 0o750
	sessionLifetime = time.Hour
)

// Store keeps blobs as files under a root directory. Keys are slash-separated
// relative paths; path escapes are rejected.
type Store struct {
	root string
}

// NewStore creates a local blob store rooted at the given directory.
func NewStore(root string) (*Store, error) {
	err := os.MkdirAll(root, blobDirPerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}

	return &Store{root: root}, nil
}

func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}

	return filepath.Join(s.root, clean), nil
}

// CreateUploadSession reserves a destination for a direct upload. The local
// implementation hands back a file path; the client (or test) writes bytes
// there via Put.
func (s *Store) CreateUploadSession(_ context.Context, filename string) (*blobstore.UploadSession, error) {
	id := uuid.New().String()
	key := "uploads/" + id + "/" + filepath.Base(filename)

	destination, err := s.path(key)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(filepath.Dir(destination), blobDirPerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &blobstore.UploadSession{
		ID:          id,
		Key:         key,
		Destination: destination,
		ExpiresAt:   time.Now().UTC().Add(sessionLifetime),
	}, nil
}

func (s *Store) Put(_ context.Context, key string, r io.Reader) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(target), blobDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, blobFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open blob for writing: %w", err)
	}

	_, err = io.Copy(f, r)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("failed to write blob: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}

	return nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blobstore.ErrBlobNotFound
		}

		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}

	err = os.Remove(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blobstore.ErrBlobNotFound
		}

		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}
