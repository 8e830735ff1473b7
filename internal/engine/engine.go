// Package engine talks to the pretrained source-separation model, served as
// a sidecar HTTP model server that shares the job filesystem.
package engine

import "context"

// Result carries the two separated stems exactly as the model produced them.
// Callers persist the bytes verbatim, with no re-encoding.
type Result struct {
	Speech     []byte
	Background []byte
}

type Engine interface {
	// Separate runs the model on the input file, steered by a short
	// natural-language description of the voice to isolate. Blocks until
	// the model finishes, which can take minutes.
	Separate(ctx context.Context, inputPath, description string) (Result, error)
}
