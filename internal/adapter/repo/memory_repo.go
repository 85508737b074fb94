package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SkelleTu/UltraPix/internal/domain"
)

// JobRepositoryMemory is an in-process domain.JobRepository used when no
// database is configured and in tests. Records are copied on the way in and out.
type JobRepositoryMemory struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

// NewMemoryJobRepository creates an empty in-memory repository.
func NewMemoryJobRepository() *JobRepositoryMemory {
	return &JobRepositoryMemory{
		jobs: make(map[string]*domain.Job),
		now:  time.Now,
	}
}

func (r *JobRepositoryMemory) Create(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidRequest
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return domain.ErrInvalidRequest
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *JobRepositoryMemory) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *JobRepositoryMemory) GetForOwner(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *JobRepositoryMemory) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	r.mu.RLock()
	out := []domain.Job{}
	for _, job := range r.jobs {
		if job.OwnerID == ownerID {
			out = append(out, *job.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *JobRepositoryMemory) UpdateDetails(ctx context.Context, jobID, ownerID string, patch domain.JobPatch) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	if patch.Title != nil {
		job.Title = *patch.Title
	}
	if patch.Description != nil {
		job.Description = *patch.Description
	}
	job.UpdatedAt = r.now().UTC()
	return job.Clone(), nil
}

func (r *JobRepositoryMemory) Finish(ctx context.Context, jobID string, result domain.JobResult) (*domain.Job, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := domain.ValidateTransition(job.Status, result.Status); err != nil {
		return nil, err
	}
	cp := result
	if result.Metadata != nil {
		cp.Metadata = make(map[string]any, len(result.Metadata))
		for k, v := range result.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Apply(job, r.now().UTC())
	return job.Clone(), nil
}

func (r *JobRepositoryMemory) Delete(ctx context.Context, jobID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
