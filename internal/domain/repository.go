package domain

import "context"

// JobRepository defines persistence for job records.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetForOwner(ctx context.Context, jobID, ownerID string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Job, error)
	UpdateDetails(ctx context.Context, jobID, ownerID string, patch JobPatch) (*Job, error)
	// Finish writes the terminal state. It fails with ErrInvalidTransition
	// unless the job is still processing.
	Finish(ctx context.Context, jobID string, result JobResult) (*Job, error)
	Delete(ctx context.Context, jobID, ownerID string) error
}

// CatalogRepository exposes the read-only template and effect catalog.
type CatalogRepository interface {
	Templates(category string) []Template
	Template(id string) (*Template, error)
	Effects(category string) []Effect
	TrendingEffects() []Effect
	Effect(id string) (*Effect, error)
}
