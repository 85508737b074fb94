package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/providers/video"
)

// Publisher receives job events. Implementations must not block for long and
// must not fail the caller; delivery is best effort.
type Publisher interface {
	PublishProgress(ctx context.Context, event domain.ProgressEvent)
	PublishCompletion(ctx context.Context, event domain.CompletionEvent)
	PublishError(ctx context.Context, event domain.FailureEvent)
}

type stage struct {
	name    domain.Stage
	percent int
	message string
}

var (
	stageEnhancing   = stage{domain.StageEnhancing, 25, "Enhancing prompt"}
	stageGenerating  = stage{domain.StageGenerating, 50, "Generating video"}
	stageCompositing = stage{domain.StageCompositing, 75, "Compositing thumbnail"}
	stageFinalizing  = stage{domain.StageFinalizing, 95, "Finalizing"}
	stageCompleted   = stage{domain.StageCompleted, 100, "Video ready"}
)

const defaultFallbackBaseURL = "https://example.com"

type Options struct {
	Repo            domain.JobRepository
	Provider        video.Provider
	Publisher       Publisher
	Logger          infra.Logger
	MaxConcurrent   int
	JobTimeout      time.Duration
	FallbackBaseURL string
}

// Orchestrator accepts generation requests and drives each job through the
// pipeline stages in the background.
type Orchestrator struct {
	repo         domain.JobRepository
	provider     video.Provider
	publisher    Publisher
	logger       infra.Logger
	supervisor   *Supervisor
	fallbackBase string
	now          func() time.Time
	newID        func() string
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger.With().Str("component", "orchestrator").Logger()
	return &Orchestrator{
		repo:         opts.Repo,
		provider:     opts.Provider,
		publisher:    opts.Publisher,
		logger:       logger,
		supervisor:   NewSupervisor(opts.MaxConcurrent, opts.JobTimeout, logger),
		fallbackBase: strings.TrimRight(coalesce(opts.FallbackBaseURL, defaultFallbackBaseURL), "/"),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// StartJob validates req, enhances its prompt, records the job as processing
// and schedules the pipeline. It returns without waiting for generation.
// Validation failures return an error matching domain.ErrInvalidRequest and
// leave no record behind.
func (o *Orchestrator) StartJob(ctx context.Context, req domain.GenerateRequest, ownerID string) (*domain.Job, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrUnauthorized
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt := req.Prompt
	enhanced, err := o.provider.Enhance(ctx, req.Prompt, req.Style)
	switch {
	case err != nil:
		o.logger.Warn().Err(err).Msg("prompt enhancement failed, using original prompt")
	case strings.TrimSpace(enhanced) != "":
		prompt = strings.TrimSpace(enhanced)
	}

	now := o.now().UTC()
	job := &domain.Job{
		ID:             o.newID(),
		OwnerID:        ownerID,
		Title:          coalesce(req.Title, "Video "+now.Format("1/2/2006")),
		Description:    coalesce(req.Description, req.Prompt),
		Kind:           req.Kind,
		Status:         domain.JobStatusProcessing,
		Prompt:         prompt,
		SourceImageRef: req.SourceImageRef,
		Duration:       req.DurationSeconds(),
		Resolution:     req.Resolution,
		Style:          req.Style,
		Effects:        append([]string{}, req.Effects...),
		CameraControls: req.CameraControls,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	snapshot := job.Clone()
	if err := o.supervisor.Go(func(ctx context.Context) { o.run(ctx, snapshot) }); err != nil {
		o.fail(context.Background(), snapshot, err.Error())
		return nil, err
	}

	o.logger.Info().Str("job_id", job.ID).Str("owner_id", ownerID).Str("kind", string(job.Kind)).Msg("job started")
	return job, nil
}

// Shutdown waits for running jobs; see Supervisor.Shutdown.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.supervisor.Shutdown(ctx)
}

func (o *Orchestrator) run(ctx context.Context, job *domain.Job) {
	log := o.logger.With().Str("job_id", job.ID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			o.fail(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	o.emit(ctx, job.ID, stageEnhancing)

	o.emit(ctx, job.ID, stageGenerating)
	result, err := o.generate(ctx, job)
	if err != nil {
		log.Warn().Err(err).Msg("generation failed")
		o.fail(ctx, job, err.Error())
		return
	}

	o.emit(ctx, job.ID, stageCompositing)
	thumbnail, err := o.provider.GenerateThumbnail(ctx, job.Prompt)
	if err != nil {
		log.Warn().Err(err).Msg("thumbnail failed")
		o.fail(ctx, job, err.Error())
		return
	}

	o.emit(ctx, job.ID, stageFinalizing)
	if err := ctx.Err(); err != nil {
		o.fail(ctx, job, "generation aborted: "+err.Error())
		return
	}

	res := domain.JobResult{
		Status:       domain.JobStatusCompleted,
		VideoRef:     coalesce(result.VideoURL, fmt.Sprintf("%s/videos/%s.mp4", o.fallbackBase, job.ID)),
		ThumbnailRef: coalesce(thumbnail, fmt.Sprintf("%s/thumbnails/%s.jpg", o.fallbackBase, job.ID)),
		Metadata:     successMetadata(result.Metadata),
	}
	persistCtx := context.WithoutCancel(ctx)
	if _, err := o.repo.Finish(persistCtx, job.ID, res); err != nil {
		log.Error().Err(err).Msg("persist completed job")
		return
	}

	o.emit(persistCtx, job.ID, stageCompleted)
	o.publisher.PublishCompletion(persistCtx, domain.CompletionEvent{
		JobID:        job.ID,
		VideoRef:     res.VideoRef,
		ThumbnailRef: res.ThumbnailRef,
	})
	log.Info().Str("video_ref", res.VideoRef).Msg("job completed")
}

func (o *Orchestrator) generate(ctx context.Context, job *domain.Job) (*video.Result, error) {
	params := video.GenerateParams{
		JobID:          job.ID,
		Prompt:         job.Prompt,
		Duration:       job.Duration,
		Resolution:     job.Resolution,
		Style:          job.Style,
		Effects:        job.Effects,
		CameraControls: job.CameraControls,
	}
	var (
		result *video.Result
		err    error
	)
	switch job.Kind {
	case domain.JobKindImageToVideo:
		result, err = o.provider.GenerateFromImage(ctx, video.ImageParams{GenerateParams: params, SourceImageRef: job.SourceImageRef})
	default:
		result, err = o.provider.GenerateFromText(ctx, params)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &video.Result{}
	}
	return result, nil
}

// fail records the failure and notifies subscribers. Nothing is emitted when
// the write is rejected, e.g. because the job already reached a terminal state.
func (o *Orchestrator) fail(ctx context.Context, job *domain.Job, message string) {
	if strings.TrimSpace(message) == "" {
		message = "generation failed"
	}
	persistCtx := context.WithoutCancel(ctx)
	_, err := o.repo.Finish(persistCtx, job.ID, domain.JobResult{
		Status:   domain.JobStatusFailed,
		Metadata: map[string]any{domain.MetadataErrorKey: message},
	})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist failed job")
		return
	}
	o.publisher.PublishProgress(persistCtx, domain.ProgressEvent{
		JobID:    job.ID,
		Stage:    domain.StageFailed,
		Progress: 0,
		Message:  message,
	})
	o.publisher.PublishError(persistCtx, domain.FailureEvent{JobID: job.ID, Error: message})
	o.logger.Info().Str("job_id", job.ID).Str("error", message).Msg("job failed")
}

func (o *Orchestrator) emit(ctx context.Context, jobID string, s stage) {
	o.publisher.PublishProgress(ctx, domain.ProgressEvent{
		JobID:    jobID,
		Stage:    s.name,
		Progress: s.percent,
		Message:  s.message,
	})
}

func successMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == domain.MetadataErrorKey {
			continue
		}
		out[k] = v
	}
	return out
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
