package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxsplit/voxsplit/internal/domain"
)

// FSStore keeps every job in its own directory under a single output root.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("output directory is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &FSStore{root: abs}, nil
}

func (s *FSStore) WriteInput(_ context.Context, jobID, filename string, data []byte) error {
	jobDir := filepath.Join(s.root, sanitizePathToken(jobID))
	if err := os.Mkdir(jobDir, 0o755); err != nil {
		if os.IsExist(err) {
			return &domain.StorageError{Op: "create job dir", Err: fmt.Errorf("job id collision: %s", jobID)}
		}
		return &domain.StorageError{Op: "create job dir", Err: err}
	}

	path := filepath.Join(jobDir, sanitizePathToken(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.StorageError{Op: "write input", Err: err}
	}
	return nil
}

func (s *FSStore) WriteArtifact(_ context.Context, jobID, filename string, data []byte) error {
	jobDir := filepath.Join(s.root, sanitizePathToken(jobID))
	if _, err := os.Stat(jobDir); err != nil {
		return &domain.StorageError{Op: "locate job dir", Err: err}
	}

	path := filepath.Join(jobDir, sanitizePathToken(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.StorageError{Op: "write artifact", Err: err}
	}
	return nil
}

func (s *FSStore) Open(_ context.Context, jobID, filename string) (io.ReadCloser, error) {
	path, err := s.resolve(jobID, filename)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.StorageError{Op: "open file", Err: err}
	}
	return f, nil
}

func (s *FSStore) InputPath(_ context.Context, jobID, filename string) (string, func(), error) {
	path, err := s.resolve(jobID, filename)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil, domain.ErrNotFound
		}
		return "", nil, &domain.StorageError{Op: "stat input", Err: err}
	}
	return path, func() {}, nil
}

func (s *FSStore) Delete(_ context.Context, jobID string) error {
	jobDir := filepath.Join(s.root, sanitizePathToken(jobID))
	if _, err := os.Stat(jobDir); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return &domain.StorageError{Op: "locate job dir", Err: err}
	}

	if err := os.RemoveAll(jobDir); err != nil {
		return &domain.StorageError{Op: "delete job dir", Err: err}
	}
	return nil
}

func (s *FSStore) JobExists(_ context.Context, jobID string) (bool, error) {
	jobDir := filepath.Join(s.root, sanitizePathToken(jobID))
	if _, err := os.Stat(jobDir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &domain.StorageError{Op: "locate job dir", Err: err}
	}
	return true, nil
}

// resolve applies the same token sanitization writes use, then confines the
// result to the output root. Anything that escapes the root is reported as
// not found rather than served.
func (s *FSStore) resolve(jobID, filename string) (string, error) {
	path := filepath.Clean(filepath.Join(s.root, sanitizePathToken(jobID), sanitizePathToken(filename)))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrNotFound
	}
	return path, nil
}
