// Package storage persists job inputs and separation artifacts. The
// filesystem backend is canonical (output/<job_id>/...); an object-store
// backend mirrors the same layout as object keys.
package storage

import (
	"context"
	"io"
	"strings"
)

type Store interface {
	// WriteInput creates the job's directory and persists the uploaded
	// bytes verbatim. An already-existing job id is treated as a fatal
	// collision for the request.
	WriteInput(ctx context.Context, jobID, filename string, data []byte) error

	// WriteArtifact persists one output file inside an existing job.
	WriteArtifact(ctx context.Context, jobID, filename string, data []byte) error

	// Open returns a reader over a stored file, or domain.ErrNotFound.
	Open(ctx context.Context, jobID, filename string) (io.ReadCloser, error)

	// InputPath makes the job's input available as a local file for the
	// separation engine. The cleanup func removes any staging copy.
	InputPath(ctx context.Context, jobID, filename string) (string, func(), error)

	// Delete removes the whole job, or returns domain.ErrNotFound.
	Delete(ctx context.Context, jobID string) error

	JobExists(ctx context.Context, jobID string) (bool, error)
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
