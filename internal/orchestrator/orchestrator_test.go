package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SkelleTu/UltraPix/internal/adapter/repo"
	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/providers/video"
)

type recorded struct {
	kind     string
	progress domain.ProgressEvent
	complete domain.CompletionEvent
	failure  domain.FailureEvent
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []recorded
	terminal chan string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{terminal: make(chan string, 16)}
}

func (p *recordingPublisher) PublishProgress(ctx context.Context, ev domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recorded{kind: "progress", progress: ev})
}

func (p *recordingPublisher) PublishCompletion(ctx context.Context, ev domain.CompletionEvent) {
	p.mu.Lock()
	p.events = append(p.events, recorded{kind: "completed", complete: ev})
	p.mu.Unlock()
	p.terminal <- ev.JobID
}

func (p *recordingPublisher) PublishError(ctx context.Context, ev domain.FailureEvent) {
	p.mu.Lock()
	p.events = append(p.events, recorded{kind: "error", failure: ev})
	p.mu.Unlock()
	p.terminal <- ev.JobID
}

func (p *recordingPublisher) snapshot() []recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recorded(nil), p.events...)
}

func (p *recordingPublisher) percents(jobID string) []int {
	var out []int
	for _, ev := range p.snapshot() {
		if ev.kind == "progress" && ev.progress.JobID == jobID {
			out = append(out, ev.progress.Progress)
		}
	}
	return out
}

func (p *recordingPublisher) waitTerminal(t *testing.T) string {
	t.Helper()
	select {
	case id := <-p.terminal:
		return id
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a terminal event")
		return ""
	}
}

// countingRepo counts terminal writes that the store accepted.
type countingRepo struct {
	domain.JobRepository
	mu       sync.Mutex
	finishes int
	failWith error
}

func (c *countingRepo) Finish(ctx context.Context, jobID string, result domain.JobResult) (*domain.Job, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	job, err := c.JobRepository.Finish(ctx, jobID, result)
	if err == nil {
		c.mu.Lock()
		c.finishes++
		c.mu.Unlock()
	}
	return job, err
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Enhance(ctx context.Context, prompt, style string) (string, error) {
	args := m.Called(ctx, prompt, style)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) GenerateFromText(ctx context.Context, params video.GenerateParams) (*video.Result, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*video.Result)
	return res, args.Error(1)
}

func (m *mockProvider) GenerateFromImage(ctx context.Context, params video.ImageParams) (*video.Result, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*video.Result)
	return res, args.Error(1)
}

func (m *mockProvider) GenerateThumbnail(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func newTestOrchestrator(r domain.JobRepository, p video.Provider, pub Publisher) *Orchestrator {
	o := New(Options{Repo: r, Provider: p, Publisher: pub, Logger: zerolog.Nop()})
	o.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return o
}

func textRequest() domain.GenerateRequest {
	return domain.GenerateRequest{Kind: domain.JobKindTextToVideo, Prompt: "A cat dancing in a neon city at night"}
}

func TestStartJobRunsStagesInOrder(t *testing.T) {
	store := &countingRepo{JobRepository: repo.NewMemoryJobRepository()}
	pub := newRecordingPublisher()
	o := newTestOrchestrator(store, video.NewSynthetic("https://cdn.test"), pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	assert.Equal(t, job.ID, pub.waitTerminal(t))

	assert.Equal(t, []int{25, 50, 75, 95, 100}, pub.percents(job.ID))
	events := pub.snapshot()
	last := events[len(events)-1]
	require.Equal(t, "completed", last.kind)
	assert.Equal(t, domain.StageCompleted, events[len(events)-2].progress.Stage)

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, last.complete.VideoRef, stored.VideoRef)
	assert.Equal(t, "Video 5/1/2024", stored.Title)
	assert.Equal(t, "A cat dancing in a neon city at night", stored.Description)
}

func TestStartJobReturnsBeforeGeneration(t *testing.T) {
	release := make(chan struct{})
	p := &mockProvider{}
	p.On("Enhance", mock.Anything, mock.Anything, mock.Anything).Return("A cat dancing, neon-lit, cinematic", nil)
	p.On("GenerateFromText", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&video.Result{VideoURL: "https://cdn.test/v.mp4", Metadata: map[string]any{"scenes": 2}}, nil)
	p.On("GenerateThumbnail", mock.Anything, mock.Anything).Return("https://cdn.test/t.jpg", nil)

	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	o := newTestOrchestrator(memory, p, pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, "A cat dancing, neon-lit, cinematic", job.Prompt)

	for _, pct := range pub.percents(job.ID) {
		assert.LessOrEqual(t, pct, 50, "no stage past generating before the provider returns")
	}
	stored, err := memory.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)

	close(release)
	pub.waitTerminal(t)
	stored, err = memory.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, "https://cdn.test/t.jpg", stored.ThumbnailRef)
	p.AssertExpectations(t)
}

func TestStartJobRejectsShortPromptWithoutRecord(t *testing.T) {
	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	p := &mockProvider{}
	o := newTestOrchestrator(memory, p, pub)

	_, err := o.StartJob(context.Background(), domain.GenerateRequest{Kind: domain.JobKindTextToVideo, Prompt: "short"}, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	jobs, err := memory.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, pub.snapshot())
	p.AssertNotCalled(t, "Enhance", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartJobWithUnconfiguredProviderCompletesWithPlaceholders(t *testing.T) {
	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	o := newTestOrchestrator(memory, video.NewSynthetic(""), pub)

	req := domain.GenerateRequest{Kind: domain.JobKindImageToVideo, Prompt: "Make the clouds drift slowly"}
	job, err := o.StartJob(context.Background(), req, "alice")
	require.NoError(t, err)
	pub.waitTerminal(t)

	stored, err := memory.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.NotEmpty(t, stored.VideoRef)
	assert.Equal(t, "https://example.com/thumbnails/"+job.ID+".jpg", stored.ThumbnailRef)
	assert.Equal(t, true, stored.Metadata["mockGeneration"])
	assert.Empty(t, stored.ErrorMessage())
}

func TestProviderWithoutVideoURLUsesFallback(t *testing.T) {
	p := &mockProvider{}
	p.On("Enhance", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("rate limited"))
	p.On("GenerateFromText", mock.Anything, mock.Anything).
		Return(&video.Result{Metadata: map[string]any{"error": "stale", "scenes": 1}}, nil)
	p.On("GenerateThumbnail", mock.Anything, mock.Anything).Return("", nil)

	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	o := newTestOrchestrator(memory, p, pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "A cat dancing in a neon city at night", job.Prompt, "enhancement failure keeps the original prompt")
	pub.waitTerminal(t)

	stored, err := memory.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/videos/"+job.ID+".mp4", stored.VideoRef)
	_, hasErr := stored.Metadata[domain.MetadataErrorKey]
	assert.False(t, hasErr)
	assert.Equal(t, 1, stored.Metadata["scenes"])
}

func TestProviderFailureMarksJobFailed(t *testing.T) {
	p := &mockProvider{}
	p.On("Enhance", mock.Anything, mock.Anything, mock.Anything).Return("enhanced prompt text", nil)
	p.On("GenerateFromText", mock.Anything, mock.Anything).
		Return(nil, errors.New("provider failure: upstream 503"))

	store := &countingRepo{JobRepository: repo.NewMemoryJobRepository()}
	pub := newRecordingPublisher()
	o := newTestOrchestrator(store, p, pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	pub.waitTerminal(t)

	assert.Equal(t, []int{25, 50, 0}, pub.percents(job.ID))
	events := pub.snapshot()
	last := events[len(events)-1]
	require.Equal(t, "error", last.kind)
	assert.Equal(t, "provider failure: upstream 503", last.failure.Error)

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Empty(t, stored.VideoRef)
	assert.Empty(t, stored.ThumbnailRef)
	assert.Equal(t, "provider failure: upstream 503", stored.ErrorMessage())
	p.AssertNotCalled(t, "GenerateThumbnail", mock.Anything, mock.Anything)
}

func TestTerminalStateIsWrittenOnce(t *testing.T) {
	store := &countingRepo{JobRepository: repo.NewMemoryJobRepository()}
	pub := newRecordingPublisher()
	o := newTestOrchestrator(store, video.NewSynthetic(""), pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	pub.waitTerminal(t)
	require.NoError(t, o.Shutdown(context.Background()))

	// a late failure for the same job is rejected and emits nothing
	before := len(pub.snapshot())
	snapshot, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	o.fail(context.Background(), snapshot, "late failure")

	assert.Equal(t, 1, store.finishes)
	assert.Len(t, pub.snapshot(), before)
	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
}

func TestPersistenceFailureEmitsNoTerminalEvent(t *testing.T) {
	store := &countingRepo{JobRepository: repo.NewMemoryJobRepository(), failWith: errors.New("connection lost")}
	pub := newRecordingPublisher()
	o := newTestOrchestrator(store, video.NewSynthetic(""), pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	require.NoError(t, o.Shutdown(context.Background()))

	assert.Equal(t, []int{25, 50, 75, 95}, pub.percents(job.ID))
	for _, ev := range pub.snapshot() {
		assert.Equal(t, "progress", ev.kind)
	}
	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
}

func TestPanickingProviderFailsJob(t *testing.T) {
	p := &mockProvider{}
	p.On("Enhance", mock.Anything, mock.Anything, mock.Anything).Return("enhanced prompt text", nil)
	p.On("GenerateFromText", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("nil plan") })

	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	o := newTestOrchestrator(memory, p, pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	pub.waitTerminal(t)

	stored, err := memory.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage(), "nil plan")
}

func TestStartJobRequiresOwner(t *testing.T) {
	o := newTestOrchestrator(repo.NewMemoryJobRepository(), video.NewSynthetic(""), newRecordingPublisher())
	_, err := o.StartJob(context.Background(), textRequest(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStartJobAfterShutdown(t *testing.T) {
	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	o := newTestOrchestrator(memory, video.NewSynthetic(""), pub)
	require.NoError(t, o.Shutdown(context.Background()))

	_, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.ErrorIs(t, err, ErrShuttingDown)

	jobs, err := memory.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
}

func TestImageJobDispatchesToImageGeneration(t *testing.T) {
	p := &mockProvider{}
	p.On("Enhance", mock.Anything, "Make the clouds drift slowly", "").Return("Clouds drift slowly over hills", nil)
	p.On("GenerateFromImage", mock.Anything, mock.MatchedBy(func(params video.ImageParams) bool {
		return params.SourceImageRef == "https://img.test/hills.png" &&
			params.Prompt == "Clouds drift slowly over hills" &&
			params.JobID != ""
	})).Return(&video.Result{VideoURL: "https://cdn.test/hills.mp4", Metadata: map[string]any{"keyFrames": 4}}, nil)
	p.On("GenerateThumbnail", mock.Anything, "Clouds drift slowly over hills").Return("https://cdn.test/hills.jpg", nil)

	memory := repo.NewMemoryJobRepository()
	pub := newRecordingPublisher()
	o := newTestOrchestrator(memory, p, pub)

	req := domain.GenerateRequest{
		Kind:           domain.JobKindImageToVideo,
		Prompt:         "Make the clouds drift slowly",
		SourceImageRef: "https://img.test/hills.png",
	}
	job, err := o.StartJob(context.Background(), req, "alice")
	require.NoError(t, err)
	assert.Equal(t, job.ID, pub.waitTerminal(t))

	assert.Equal(t, []int{25, 50, 75, 95, 100}, pub.percents(job.ID))
	stored, err := memory.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, "https://cdn.test/hills.mp4", stored.VideoRef)
	assert.Equal(t, "https://img.test/hills.png", stored.SourceImageRef)
	p.AssertExpectations(t)
	p.AssertNotCalled(t, "GenerateFromText", mock.Anything, mock.Anything)
}

func TestThumbnailFailureMarksJobFailed(t *testing.T) {
	p := &mockProvider{}
	p.On("Enhance", mock.Anything, mock.Anything, mock.Anything).Return("enhanced prompt text", nil)
	p.On("GenerateFromText", mock.Anything, mock.Anything).
		Return(&video.Result{VideoURL: "https://cdn.test/v.mp4"}, nil)
	p.On("GenerateThumbnail", mock.Anything, mock.Anything).Return("", errors.New("image api unavailable"))

	store := &countingRepo{JobRepository: repo.NewMemoryJobRepository()}
	pub := newRecordingPublisher()
	o := newTestOrchestrator(store, p, pub)

	job, err := o.StartJob(context.Background(), textRequest(), "alice")
	require.NoError(t, err)
	pub.waitTerminal(t)

	assert.Equal(t, []int{25, 50, 75, 0}, pub.percents(job.ID))
	events := pub.snapshot()
	last := events[len(events)-1]
	require.Equal(t, "error", last.kind)
	assert.Equal(t, "image api unavailable", last.failure.Error)

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Empty(t, stored.VideoRef)
	assert.Empty(t, stored.ThumbnailRef)
	assert.Equal(t, "image api unavailable", stored.ErrorMessage())
	assert.Equal(t, 1, store.finishes)
}
