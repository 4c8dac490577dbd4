// Package job provides the Job aggregate for narrated-video render jobs:
// the job entity with its status transitions, repository interfaces for the
// in-memory registry, the render orchestration service and the TTL sweeper.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/birkanfirat/ffmpeg-video-api/internal/job/id"
	"github.com/birkanfirat/ffmpeg-video-api/internal/plan"
)

// Status represents the current state of a Job. A job is fully processing
// the moment its creation is acknowledged; there is no externally observable
// queued state.
type Status string

const (
	// StatusProcessing indicates the render pipeline is running.
	StatusProcessing Status = "processing"
	// StatusDone indicates the job finished and its artifact is available.
	StatusDone Status = "done"
	// StatusError indicates the job failed; Error holds the reason.
	StatusError Status = "error"
)

// ErrAlreadyTerminal is returned when a terminal job is transitioned again.
var ErrAlreadyTerminal = errors.New("job: already in a terminal state")

// Job represents one render job. The stage label is a free-form progress
// string for observation only; the formal state machine is Status alone.
// Invariant: once a job leaves processing, exactly one of OutputPath and
// Error is populated.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Stage is the current progress label (queued, tts_intro, seg_3_ar,
	// concat, render_mp4, verify, done, error, ...).
	Stage string
	// WorkDir is the working directory exclusively owned by this job.
	WorkDir string
	// Plan is the render plan the job executes.
	Plan *plan.RenderPlan
	// BackgroundPaths are the uploaded background images in slot order.
	BackgroundPaths []string
	// CTAPath is the uploaded call-to-action image, if any.
	CTAPath string
	// OutputPath is the finished MP4; set only when Status is done.
	OutputPath string
	// ArtifactURL is the S3 URL of the artifact when publication is enabled.
	ArtifactURL string
	// Error is the failure reason; set only when Status is error.
	Error string
	// CreatedAt is used solely for TTL-based reclamation.
	CreatedAt time.Time
}

// New creates a Job with a generated ID in processing state.
func New() *Job {
	return &Job{
		ID:        id.Generate(),
		Status:    StatusProcessing,
		Stage:     "queued",
		CreatedAt: time.Now(),
	}
}

// SetStage updates the progress label. Terminal jobs keep their final stage.
func (j *Job) SetStage(stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == StatusProcessing {
		j.Stage = stage
	}
}

// MarkDone transitions the job to done with its artifact path.
func (j *Job) MarkDone(outputPath string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusProcessing {
		return ErrAlreadyTerminal
	}
	j.Status = StatusDone
	j.Stage = "done"
	j.OutputPath = outputPath
	return nil
}

// MarkError transitions the job to error with the failure message captured
// verbatim.
func (j *Job) MarkError(msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusProcessing {
		return ErrAlreadyTerminal
	}
	j.Status = StatusError
	j.Stage = "error"
	j.Error = msg
	return nil
}

// SetArtifactURL records the published S3 URL.
func (j *Job) SetArtifactURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArtifactURL = url
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// GetStage returns the current stage label (thread-safe).
func (j *Job) GetStage() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage
}

// IsTerminal returns true if the job has left processing.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status != StatusProcessing
}

// Age returns the time since the job was created.
func (j *Job) Age() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return time.Since(j.CreatedAt)
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	backgrounds := make([]string, len(j.BackgroundPaths))
	copy(backgrounds, j.BackgroundPaths)

	return &Job{
		ID:              j.ID,
		Status:          j.Status,
		Stage:           j.Stage,
		WorkDir:         j.WorkDir,
		Plan:            j.Plan,
		BackgroundPaths: backgrounds,
		CTAPath:         j.CTAPath,
		OutputPath:      j.OutputPath,
		ArtifactURL:     j.ArtifactURL,
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
	}
}
