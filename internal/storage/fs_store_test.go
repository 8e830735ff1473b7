package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxsplit/voxsplit/internal/domain"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	input := []byte("fake media bytes")
	speech := []byte("RIFF speech")
	background := []byte("RIFF background")

	require.NoError(t, s.WriteInput(ctx, "job1", "clip.mp4", input))
	require.NoError(t, s.WriteArtifact(ctx, "job1", domain.SpeechArtifact, speech))
	require.NoError(t, s.WriteArtifact(ctx, "job1", domain.BackgroundArtifact, background))

	reader, err := s.Open(ctx, "job1", domain.SpeechArtifact)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, speech, got, "artifact bytes must round-trip unchanged")

	path, cleanup, err := s.InputPath(ctx, "job1", "clip.mp4")
	require.NoError(t, err)
	defer cleanup()
	require.FileExists(t, path)
}

func TestFSStoreRejectsDuplicateJob(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteInput(ctx, "job1", "clip.mp4", []byte("a")))

	err = s.WriteInput(ctx, "job1", "clip.mp4", []byte("b"))
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestFSStoreOpenMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(ctx, "nojob", "speech.wav")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.WriteInput(ctx, "job1", "clip.mp4", []byte("a")))
	_, err = s.Open(ctx, "job1", "missing.wav")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFSStoreConfinesTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(ctx, "..", "fs_store.go")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Open(ctx, "job1", "../../etc/passwd")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFSStoreDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteInput(ctx, "job1", "clip.mp4", []byte("a")))

	exists, err := s.JobExists(ctx, "job1")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, s.Delete(ctx, "job1"))

	err = s.Delete(ctx, "job1")
	require.True(t, errors.Is(err, domain.ErrNotFound), "second delete should report not found, got %v", err)

	exists, err = s.JobExists(ctx, "job1")
	require.NoError(t, err)
	require.False(t, exists)
}
