package domain

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	// Fixed artifact names inside a job directory.
	SpeechArtifact     = "speech.wav"
	BackgroundArtifact = "background.wav"

	// DefaultInputName is used when an upload carries no filename.
	DefaultInputName = "input"

	// DefaultContentType is the last-resort MIME type for uploads that
	// declare nothing useful and have no recognizable extension.
	DefaultContentType = "video/mp4"
)

// ErrNotFound marks a missing job or artifact; the API layer maps it to 404.
var ErrNotFound = errors.New("not found")

// StorageError wraps job-directory and artifact I/O failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ProviderError wraps description-provider failures, including an empty or
// malformed response.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("description provider: %v", e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// EngineError wraps separation-engine failures.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string { return fmt.Sprintf("separation engine: %v", e.Err) }
func (e *EngineError) Unwrap() error { return e.Err }

// Job is the registry record for one upload-to-separation unit of work. The
// artifact bytes live in storage, not here.
type Job struct {
	ID          string
	Status      string
	InputName   string
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ResolveContentType picks the MIME type handed to the description provider.
// A declared type wins unless it is empty or the generic binary placeholder;
// otherwise the filename extension decides, and video/mp4 is the fallback.
func ResolveContentType(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	if ext := filepath.Ext(filename); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	return DefaultContentType
}

// SanitizeInputName strips any path components from an uploaded filename and
// falls back to DefaultInputName when nothing usable remains.
func SanitizeInputName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return DefaultInputName
	}
	return name
}
