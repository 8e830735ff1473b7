package separation

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/voxsplit/voxsplit/internal/domain"
	"github.com/voxsplit/voxsplit/internal/engine"
	"github.com/voxsplit/voxsplit/internal/storage"
	"github.com/voxsplit/voxsplit/internal/store"
)

type stubDescriber struct {
	description string
	err         error
	gotMIME     string
}

func (d *stubDescriber) DescribeSpeaker(_ context.Context, _ []byte, mimeType string) (string, error) {
	d.gotMIME = mimeType
	if d.err != nil {
		return "", d.err
	}
	return d.description, nil
}

type stubEngine struct {
	result  engine.Result
	err     error
	gotDesc string
}

func (e *stubEngine) Separate(_ context.Context, _ string, description string) (engine.Result, error) {
	e.gotDesc = description
	if e.err != nil {
		return engine.Result{}, e.err
	}
	return e.result, nil
}

func newTestProcessor(t *testing.T, d SpeakerDescriber, e engine.Engine) (*Processor, storage.Store, store.JobStore) {
	t.Helper()

	artifacts, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	jobs := store.NewMemoryJobStore()

	p, err := NewProcessor(log.New(io.Discard, "", 0), artifacts, jobs, d, e, 1)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p, artifacts, jobs
}

func TestProcessHappyPath(t *testing.T) {
	ctx := context.Background()
	d := &stubDescriber{description: "Deep male voice speaking"}
	e := &stubEngine{result: engine.Result{Speech: []byte("speech!"), Background: []byte("background!")}}
	p, artifacts, jobs := newTestProcessor(t, d, e)

	outcome, err := p.Process(ctx, Upload{
		Data:        []byte("media"),
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if outcome.JobID == "" {
		t.Fatal("expected a job id")
	}
	if outcome.Speech != domain.SpeechArtifact || outcome.Background != domain.BackgroundArtifact {
		t.Fatalf("unexpected artifact names: %+v", outcome)
	}
	if e.gotDesc != "Deep male voice speaking" {
		t.Fatalf("expected description forwarded to engine, got %q", e.gotDesc)
	}

	for name, want := range map[string][]byte{
		domain.SpeechArtifact:     []byte("speech!"),
		domain.BackgroundArtifact: []byte("background!"),
	} {
		reader, err := artifacts.Open(ctx, outcome.JobID, name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		got, _ := io.ReadAll(reader)
		reader.Close()
		if string(got) != string(want) {
			t.Fatalf("artifact %s mismatch: got %q want %q", name, got, want)
		}
	}

	job, ok, _ := jobs.Get(ctx, outcome.JobID)
	if !ok || job.Status != domain.JobStatusSucceeded {
		t.Fatalf("expected succeeded job in registry, got ok=%v status=%s", ok, job.Status)
	}
}

func TestProcessDefaultsInputNameAndMIME(t *testing.T) {
	d := &stubDescriber{description: "Woman speaking"}
	e := &stubEngine{result: engine.Result{Speech: []byte("s"), Background: []byte("b")}}
	p, _, _ := newTestProcessor(t, d, e)

	outcome, err := p.Process(context.Background(), Upload{Data: []byte("media")})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if outcome.InputName != domain.DefaultInputName {
		t.Fatalf("expected default input name, got %s", outcome.InputName)
	}
	if d.gotMIME != domain.DefaultContentType {
		t.Fatalf("expected %s fallback MIME, got %s", domain.DefaultContentType, d.gotMIME)
	}
}

func TestProcessProviderFailureLeavesNoArtifacts(t *testing.T) {
	ctx := context.Background()
	d := &stubDescriber{err: &domain.ProviderError{Err: errors.New("timeout")}}
	e := &stubEngine{result: engine.Result{Speech: []byte("s"), Background: []byte("b")}}
	p, _, jobs := newTestProcessor(t, d, e)

	_, err := p.Process(ctx, Upload{Data: []byte("media"), Filename: "clip.mp4"})
	var providerErr *domain.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}

	// Registry must report the failure; the engine was never reached.
	var failed bool
	for _, jobID := range registryIDs(ctx, t, jobs) {
		job, _, _ := jobs.Get(ctx, jobID)
		if job.Status == domain.JobStatusFailed {
			failed = true
		}
	}
	if !failed {
		t.Fatal("expected a failed job in the registry")
	}
}

func TestProcessEngineFailureKeepsInputOnly(t *testing.T) {
	ctx := context.Background()
	d := &stubDescriber{description: "Man speaking"}
	e := &stubEngine{err: &domain.EngineError{Err: errors.New("unreadable media")}}
	p, artifacts, jobs := newTestProcessor(t, d, e)

	_, err := p.Process(ctx, Upload{Data: []byte("media"), Filename: "clip.mp4"})
	var engineErr *domain.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected engine error, got %v", err)
	}

	for _, jobID := range registryIDs(ctx, t, jobs) {
		if _, err := artifacts.Open(ctx, jobID, domain.SpeechArtifact); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected no speech artifact after engine failure, got %v", err)
		}
		if _, err := artifacts.Open(ctx, jobID, "clip.mp4"); err != nil {
			t.Fatalf("expected orphan input file to remain, got %v", err)
		}
	}
}

func TestProcessAssignsUniqueJobIDs(t *testing.T) {
	d := &stubDescriber{description: "Man speaking"}
	e := &stubEngine{result: engine.Result{Speech: []byte("s"), Background: []byte("b")}}
	p, _, _ := newTestProcessor(t, d, e)

	const n = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := p.Process(context.Background(), Upload{Data: []byte("media"), Filename: "clip.mp4"})
			if err != nil {
				t.Errorf("process: %v", err)
				return
			}
			mu.Lock()
			ids[outcome.JobID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != n {
		t.Fatalf("expected %d unique job ids, got %d", n, len(ids))
	}
}

// registryIDs walks the memory store via its map; good enough for tests that
// only created a single job.
func registryIDs(ctx context.Context, t *testing.T, jobs store.JobStore) []string {
	t.Helper()

	mem, ok := jobs.(*store.MemoryJobStore)
	if !ok {
		t.Fatal("expected memory job store")
	}
	return mem.IDs(ctx)
}
