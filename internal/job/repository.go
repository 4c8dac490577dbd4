package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the interface for the job registry. It is the only
// cross-job shared mutable state in the system.
type Repository interface {
	// Save persists a job to the registry.
	// If the job already exists, it is updated.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// Update applies mutate to the stored record atomically, so a caller
	// holding a stale copy cannot overwrite a transition made elsewhere.
	// Returns ErrJobNotFound if the job does not exist; mutate's error is
	// returned unchanged.
	Update(ctx context.Context, id string, mutate func(*Job) error) error

	// List returns all jobs.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job from the registry.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
