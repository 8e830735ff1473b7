package store

import (
	"context"
	"testing"
	"time"

	"github.com/voxsplit/voxsplit/internal/domain"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	job := domain.Job{
		ID:          "abc123def456",
		Status:      domain.JobStatusCreated,
		InputName:   "clip.mp4",
		ContentType: "video/mp4",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected job to exist")
	}
	if got.InputName != "clip.mp4" {
		t.Fatalf("expected input name preserved, got %s", got.InputName)
	}

	updated, err := s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.JobStatusProcessing {
		t.Fatalf("expected processing status, got %s", updated.Status)
	}

	if err := s.Delete(ctx, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, job.ID); err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound on second delete, got %v", err)
	}

	if _, ok, _ := s.Get(ctx, job.ID); ok {
		t.Fatal("expected job to be gone after delete")
	}
}

func TestMemoryJobStoreUpdateUnknownJob(t *testing.T) {
	s := NewMemoryJobStore()
	if _, err := s.UpdateStatus(context.Background(), "missing", domain.JobStatusFailed); err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
