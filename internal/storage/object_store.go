package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/voxsplit/voxsplit/internal/domain"
)

type ObjectStoreConfig struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	Prefix   string
	UseSSL   bool
}

// ObjectStore mirrors the filesystem layout as object keys:
// <prefix>/<job_id>/<filename>.
type ObjectStore struct {
	minio  *minio.Client
	bucket string
	prefix string
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "output"
	}

	return &ObjectStore{
		minio:  mc,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.minio.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.minio.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := s.minio.BucketExists(ctx, s.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}

	return nil
}

func (s *ObjectStore) WriteInput(ctx context.Context, jobID, filename string, data []byte) error {
	exists, err := s.JobExists(ctx, jobID)
	if err != nil {
		return err
	}
	if exists {
		return &domain.StorageError{Op: "create job", Err: fmt.Errorf("job id collision: %s", jobID)}
	}
	return s.put(ctx, jobID, filename, data)
}

func (s *ObjectStore) WriteArtifact(ctx context.Context, jobID, filename string, data []byte) error {
	return s.put(ctx, jobID, filename, data)
}

func (s *ObjectStore) Open(ctx context.Context, jobID, filename string) (io.ReadCloser, error) {
	key, err := s.key(jobID, filename)
	if err != nil {
		return nil, err
	}

	obj, err := s.minio.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &domain.StorageError{Op: "get object", Err: err}
	}

	// GetObject is lazy; a missing key only surfaces on first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isMissingObject(err) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.StorageError{Op: "stat object", Err: err}
	}

	return obj, nil
}

// InputPath stages the input object into a temp file so the separation
// engine can read it from the local filesystem.
func (s *ObjectStore) InputPath(ctx context.Context, jobID, filename string) (string, func(), error) {
	reader, err := s.Open(ctx, jobID, filename)
	if err != nil {
		return "", nil, err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "voxsplit-input-*")
	if err != nil {
		return "", nil, &domain.StorageError{Op: "stage input", Err: err}
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, &domain.StorageError{Op: "stage input", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, &domain.StorageError{Op: "stage input", Err: err}
	}

	name := tmp.Name()
	return name, func() { _ = os.Remove(name) }, nil
}

func (s *ObjectStore) Delete(ctx context.Context, jobID string) error {
	jobPrefix := path.Join(s.prefix, sanitizePathToken(jobID)) + "/"

	found := false
	for obj := range s.minio.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: jobPrefix, Recursive: true}) {
		if obj.Err != nil {
			return &domain.StorageError{Op: "list job objects", Err: obj.Err}
		}
		found = true
		if err := s.minio.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return &domain.StorageError{Op: "remove object", Err: err}
		}
	}

	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ObjectStore) JobExists(ctx context.Context, jobID string) (bool, error) {
	jobPrefix := path.Join(s.prefix, sanitizePathToken(jobID)) + "/"

	for obj := range s.minio.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: jobPrefix, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, &domain.StorageError{Op: "list job objects", Err: obj.Err}
		}
		return true, nil
	}
	return false, nil
}

func (s *ObjectStore) put(ctx context.Context, jobID, filename string, data []byte) error {
	key, err := s.key(jobID, filename)
	if err != nil {
		return err
	}

	_, err = s.minio.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return &domain.StorageError{Op: "put object", Err: err}
	}
	return nil
}

func (s *ObjectStore) key(jobID, filename string) (string, error) {
	if strings.Contains(jobID, "/") || strings.Contains(filename, "/") ||
		strings.Contains(jobID, "..") || strings.Contains(filename, "..") {
		return "", domain.ErrNotFound
	}
	return path.Join(s.prefix, jobID, filename), nil
}

func isMissingObject(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject"
}
