package store

import (
	"context"
	"errors"

	"github.com/voxsplit/voxsplit/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// JobStore is the registry of job metadata. Artifact bytes live in the
// storage layer; this tracks lifecycle status so the API can refuse to
// delete a job that is still separating.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Job, error)
	Delete(ctx context.Context, id string) error
}
