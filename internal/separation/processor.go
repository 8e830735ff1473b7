// Package separation runs one upload end to end: persist the input, ask the
// description provider about the speaker, run the separation engine, persist
// the two stems. All-or-nothing; on failure the job directory keeps only the
// input file.
package separation

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxsplit/voxsplit/internal/domain"
	"github.com/voxsplit/voxsplit/internal/engine"
	"github.com/voxsplit/voxsplit/internal/id"
	"github.com/voxsplit/voxsplit/internal/storage"
	"github.com/voxsplit/voxsplit/internal/store"
)

type SpeakerDescriber interface {
	DescribeSpeaker(ctx context.Context, media []byte, mimeType string) (string, error)
}

type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

type Outcome struct {
	JobID      string
	InputName  string
	Speech     string
	Background string
}

type Processor struct {
	logger    *log.Logger
	artifacts storage.Store
	jobs      store.JobStore
	describer SpeakerDescriber
	engine    engine.Engine
	sem       chan struct{}
	tracer    trace.Tracer
}

func NewProcessor(
	logger *log.Logger,
	artifacts storage.Store,
	jobs store.JobStore,
	describer SpeakerDescriber,
	eng engine.Engine,
	maxActive int,
) (*Processor, error) {
	if artifacts == nil {
		return nil, fmt.Errorf("artifact storage is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if describer == nil {
		return nil, fmt.Errorf("describer is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}

	if maxActive < 1 {
		maxActive = 1
	}

	return &Processor{
		logger:    logger,
		artifacts: artifacts,
		jobs:      jobs,
		describer: describer,
		engine:    eng,
		sem:       make(chan struct{}, maxActive),
		tracer:    otel.Tracer("voxsplit/separation"),
	}, nil
}

func (p *Processor) Process(ctx context.Context, upload Upload) (Outcome, error) {
	jobID := id.New()
	inputName := domain.SanitizeInputName(upload.Filename)
	contentType := domain.ResolveContentType(upload.ContentType, inputName)

	ctx, span := p.tracer.Start(ctx, "separation.process")
	span.SetAttributes(
		attribute.String("job.id", jobID),
		attribute.String("job.content_type", contentType),
		attribute.Int("job.input_bytes", len(upload.Data)),
	)
	defer span.End()

	now := time.Now().UTC()
	if err := p.jobs.Create(ctx, domain.Job{
		ID:          jobID,
		Status:      domain.JobStatusCreated,
		InputName:   inputName,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return Outcome{}, &domain.StorageError{Op: "register job", Err: err}
	}

	if err := p.artifacts.WriteInput(ctx, jobID, inputName, upload.Data); err != nil {
		p.markFailed(ctx, jobID, span, err)
		return Outcome{}, err
	}

	// One loaded model instance serves all requests; admission beyond its
	// capacity waits here instead of piling onto the sidecar.
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.markFailed(ctx, jobID, span, ctx.Err())
		return Outcome{}, ctx.Err()
	}
	defer func() { <-p.sem }()

	p.setStatus(ctx, jobID, domain.JobStatusProcessing)

	description, err := p.describer.DescribeSpeaker(ctx, upload.Data, contentType)
	if err != nil {
		p.markFailed(ctx, jobID, span, err)
		return Outcome{}, err
	}
	p.logger.Printf("job_id=%s speaker description: %s", jobID, description)

	inputPath, cleanup, err := p.artifacts.InputPath(ctx, jobID, inputName)
	if err != nil {
		p.markFailed(ctx, jobID, span, err)
		return Outcome{}, err
	}
	defer cleanup()

	result, err := p.engine.Separate(ctx, inputPath, description)
	if err != nil {
		p.markFailed(ctx, jobID, span, err)
		return Outcome{}, err
	}

	if err := p.artifacts.WriteArtifact(ctx, jobID, domain.SpeechArtifact, result.Speech); err != nil {
		p.markFailed(ctx, jobID, span, err)
		return Outcome{}, err
	}
	if err := p.artifacts.WriteArtifact(ctx, jobID, domain.BackgroundArtifact, result.Background); err != nil {
		p.markFailed(ctx, jobID, span, err)
		return Outcome{}, err
	}

	p.setStatus(ctx, jobID, domain.JobStatusSucceeded)
	span.SetStatus(codes.Ok, "separated")

	return Outcome{
		JobID:      jobID,
		InputName:  inputName,
		Speech:     domain.SpeechArtifact,
		Background: domain.BackgroundArtifact,
	}, nil
}

func (p *Processor) setStatus(ctx context.Context, jobID, status string) {
	if _, err := p.jobs.UpdateStatus(ctx, jobID, status); err != nil {
		p.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (p *Processor) markFailed(ctx context.Context, jobID string, span trace.Span, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "separation failed")
	p.setStatus(ctx, jobID, domain.JobStatusFailed)
}
