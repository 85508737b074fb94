package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on the video_jobs table.
type JobRepositoryPG struct {
	db  infra.SQLExecutor
	now func() time.Time
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db, now: time.Now}
}

// EnsureSchema creates the video_jobs table when it does not exist yet.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, sqlinline.QEnsureVideoJobsSchema)
	return err
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	metadata, err := marshalNullable(job.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	effects, err := json.Marshal(nonNilEffects(job.Effects))
	if err != nil {
		return fmt.Errorf("encode effects: %w", err)
	}
	var camera []byte
	if job.CameraControls != nil {
		if camera, err = json.Marshal(job.CameraControls); err != nil {
			return fmt.Errorf("encode camera controls: %w", err)
		}
	}
	_, err = r.db.Exec(ctx, sqlinline.QInsertVideoJob,
		job.ID,
		job.OwnerID,
		job.Title,
		job.Description,
		string(job.Kind),
		string(job.Status),
		job.Prompt,
		job.SourceImageRef,
		metadata,
		job.Duration,
		job.Resolution,
		job.Style,
		effects,
		camera,
		job.CreatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.db.QueryRow(ctx, sqlinline.QSelectVideoJobByID, jobID))
}

// GetForOwner fetches a job only when it belongs to ownerID.
func (r *JobRepositoryPG) GetForOwner(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.db.QueryRow(ctx, sqlinline.QSelectVideoJobForOwner, jobID, ownerID))
}

// ListByOwner returns the owner's jobs, newest first.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListVideoJobsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// UpdateDetails applies the non-nil patch fields.
func (r *JobRepositoryPG) UpdateDetails(ctx context.Context, jobID, ownerID string, patch domain.JobPatch) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.db.QueryRow(ctx, sqlinline.QUpdateVideoJobDetails,
		jobID, ownerID, patch.Title, patch.Description, r.now().UTC()))
}

// Finish writes the terminal state of a processing job.
func (r *JobRepositoryPG) Finish(ctx context.Context, jobID string, result domain.JobResult) (*domain.Job, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	metadata, err := marshalNullable(result.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	job, err := scanJob(r.db.QueryRow(ctx, sqlinline.QFinishVideoJob,
		jobID, string(result.Status), result.VideoRef, result.ThumbnailRef, metadata, r.now().UTC()))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// No processing row matched: tell a missing job apart from a finished one.
	current, getErr := r.GetByID(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, domain.ValidateTransition(current.Status, result.Status)
}

// Delete removes an owner's job.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID, ownerID string) error {
	if !validID(jobID) {
		return domain.ErrNotFound
	}
	tag, err := r.db.Exec(ctx, sqlinline.QDeleteVideoJob, jobID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job                     domain.Job
		kind, status            string
		metadata, effects, cams []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Title,
		&job.Description,
		&kind,
		&status,
		&job.Prompt,
		&job.SourceImageRef,
		&job.VideoRef,
		&job.ThumbnailRef,
		&metadata,
		&job.Duration,
		&job.Resolution,
		&job.Style,
		&effects,
		&cams,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if len(job.Metadata) == 0 {
			job.Metadata = nil
		}
	}
	job.Effects = []string{}
	if len(effects) > 0 {
		if err := json.Unmarshal(effects, &job.Effects); err != nil {
			return nil, fmt.Errorf("decode effects: %w", err)
		}
	}
	if len(cams) > 0 && string(cams) != "null" {
		job.CameraControls = &domain.CameraControls{}
		if err := json.Unmarshal(cams, job.CameraControls); err != nil {
			return nil, fmt.Errorf("decode camera controls: %w", err)
		}
	}
	return &job, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func marshalNullable(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nonNilEffects(effects []string) []string {
	if effects == nil {
		return []string{}
	}
	return effects
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
