package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/birkanfirat/ffmpeg-video-api/internal/assemble"
	"github.com/birkanfirat/ffmpeg-video-api/internal/media"
	"github.com/birkanfirat/ffmpeg-video-api/internal/plan"
	"github.com/birkanfirat/ffmpeg-video-api/internal/video"
)

// Static errors for job creation and retrieval.
var (
	// ErrNoBackgrounds is returned when a submission carries no background images.
	ErrNoBackgrounds = errors.New("job: at least one background image is required")
	// ErrPlanRequired is returned when a submission carries no render plan.
	ErrPlanRequired = errors.New("job: render plan is required")
	// ErrNotReady is returned when a result is requested before the job is done.
	ErrNotReady = errors.New("job: result not ready")
)

// Assembler produces normalized clips and the concat manifest for a plan.
type Assembler interface {
	Assemble(ctx context.Context, p *plan.RenderPlan, clipDir string, onStage assemble.StageFunc) (string, error)
}

// Finisher turns a concat manifest into the final narration track.
type Finisher interface {
	Finish(ctx context.Context, manifestPath, dir string) (string, error)
}

// Compositor renders the final MP4.
type Compositor interface {
	Compose(ctx context.Context, spec video.ComposeSpec) error
}

// Workspace allocates and removes per-job working directories.
type Workspace interface {
	Create(jobID string) (string, error)
	Remove(jobID string) error
}

// Publisher uploads finished artifacts; optional.
type Publisher interface {
	Publish(ctx context.Context, key string, data io.Reader) (string, error)
}

// Upload is one uploaded file blob.
type Upload struct {
	// Name is the original filename, used only for the extension.
	Name string
	// Data is the file content.
	Data []byte
}

// CreateInput is a validated job submission.
type CreateInput struct {
	Plan        *plan.RenderPlan
	Backgrounds []Upload
	CTA         *Upload
}

// RenderService owns the job lifecycle: synchronous creation, asynchronous
// pipeline execution, status retrieval with a lazy soft timeout, and result
// lookup. Pipeline stages for one job run strictly in sequence; multiple
// jobs run concurrently, bounded by a semaphore.
type RenderService struct {
	repo       Repository
	assembler  Assembler
	finisher   Finisher
	compositor Compositor
	workspace  Workspace
	runner     media.Runner
	publisher  Publisher
	logger     *slog.Logger

	sem         *semaphore.Weighted
	softTimeout time.Duration
	minOutput   float64
}

// ServiceOption configures a RenderService.
type ServiceOption func(*RenderService)

// WithPublisher enables S3 artifact publication.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *RenderService) {
		s.publisher = p
	}
}

// WithSoftTimeout sets the wall-clock ceiling after which a processing job
// is lazily transitioned to error on read. Zero disables the timeout.
func WithSoftTimeout(d time.Duration) ServiceOption {
	return func(s *RenderService) {
		s.softTimeout = d
	}
}

// WithMinOutputDuration sets the sanity floor for finished renders in seconds.
func WithMinOutputDuration(sec float64) ServiceOption {
	return func(s *RenderService) {
		if sec > 0 {
			s.minOutput = sec
		}
	}
}

// WithMaxConcurrent bounds how many render pipelines run at once.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *RenderService) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewRenderService creates a RenderService.
func NewRenderService(
	repo Repository,
	assembler Assembler,
	finisher Finisher,
	compositor Compositor,
	workspace Workspace,
	runner media.Runner,
	logger *slog.Logger,
	opts ...ServiceOption,
) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RenderService{
		repo:        repo,
		assembler:   assembler,
		finisher:    finisher,
		compositor:  compositor,
		workspace:   workspace,
		runner:      runner,
		logger:      logger,
		sem:         semaphore.NewWeighted(2),
		softTimeout: 45 * time.Minute,
		minOutput:   10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates a submission, allocates the job's working directory,
// writes the uploaded inputs into it and records the job as processing.
// Invalid submissions are rejected synchronously; no job is created for them.
func (s *RenderService) CreateJob(ctx context.Context, input CreateInput) (*Job, error) {
	if input.Plan == nil {
		return nil, ErrPlanRequired
	}
	if len(input.Backgrounds) == 0 {
		return nil, ErrNoBackgrounds
	}

	j := New()
	j.Plan = input.Plan

	dir, err := s.workspace.Create(j.ID)
	if err != nil {
		return nil, err
	}
	j.WorkDir = dir

	for i, bg := range input.Backgrounds {
		path := filepath.Join(dir, fmt.Sprintf("bg_%02d%s", i, uploadExt(bg.Name, ".jpg")))
		if err := os.WriteFile(path, bg.Data, 0600); err != nil {
			_ = s.workspace.Remove(j.ID)
			return nil, fmt.Errorf("job: write background image: %w", err)
		}
		j.BackgroundPaths = append(j.BackgroundPaths, path)
	}

	if input.CTA != nil {
		path := filepath.Join(dir, "cta"+uploadExt(input.CTA.Name, ".png"))
		if err := os.WriteFile(path, input.CTA.Data, 0600); err != nil {
			_ = s.workspace.Remove(j.ID)
			return nil, fmt.Errorf("job: write CTA image: %w", err)
		}
		j.CTAPath = path
	}

	if err := s.repo.Save(ctx, j); err != nil {
		_ = s.workspace.Remove(j.ID)
		return nil, err
	}

	s.logger.Info("job created",
		slog.String("job_id", j.ID),
		slog.Int("backgrounds", len(j.BackgroundPaths)),
		slog.Bool("cta", j.CTAPath != ""),
		slog.Int("segments", len(input.Plan.Segments)),
	)

	return j, nil
}

// Run executes the render pipeline for an existing job: assemble → finish →
// compose → verify, strictly in order. Each stage updates the job's stage
// label before starting; any stage failure transitions the job to error with
// the failure message captured verbatim and halts the pipeline. No stage is
// retried here.
func (s *RenderService) Run(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.fail(ctx, j, fmt.Errorf("acquire render slot: %w", err))
	}
	defer s.sem.Release(1)

	started := time.Now()

	clipDir := filepath.Join(j.WorkDir, "clips")
	manifest, err := s.assembler.Assemble(ctx, j.Plan, clipDir, func(stage string) {
		s.setStage(ctx, j, stage)
	})
	if err != nil {
		return s.fail(ctx, j, err)
	}

	s.setStage(ctx, j, "concat")
	audioPath, err := s.finisher.Finish(ctx, manifest, j.WorkDir)
	if err != nil {
		return s.fail(ctx, j, err)
	}

	s.setStage(ctx, j, "render_mp4")
	outputPath := filepath.Join(j.WorkDir, j.ID+".mp4")
	err = s.compositor.Compose(ctx, video.ComposeSpec{
		Images:     j.BackgroundPaths,
		AudioPath:  audioPath,
		CTAPath:    j.CTAPath,
		Params:     ParamsFromEffects(j.Plan.Effects),
		OutputPath: outputPath,
	})
	if err != nil {
		return s.fail(ctx, j, err)
	}

	s.setStage(ctx, j, "verify")
	duration, err := s.runner.Duration(ctx, outputPath)
	if err != nil {
		return s.fail(ctx, j, err)
	}
	if duration < s.minOutput {
		// A clean render that is implausibly short is still a failure.
		return s.fail(ctx, j, fmt.Errorf("output duration %.1fs below sanity floor %.1fs", duration, s.minOutput))
	}

	var artifactURL string
	if s.publisher != nil {
		s.setStage(ctx, j, "publish")
		if url, pubErr := s.publishArtifact(ctx, j.ID, outputPath); pubErr != nil {
			s.logger.Warn("artifact publication failed",
				slog.String("job_id", j.ID),
				slog.String("error", pubErr.Error()),
			)
		} else {
			artifactURL = url
		}
	}

	if err := s.repo.Update(ctx, j.ID, func(stored *Job) error {
		if artifactURL != "" {
			stored.SetArtifactURL(artifactURL)
		}
		return stored.MarkDone(outputPath)
	}); err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			// The job completed after a soft timeout already ended it.
			// The earlier terminal outcome stands.
			s.logger.Warn("pipeline finished after terminal transition",
				slog.String("job_id", j.ID),
			)
		}
		return err
	}

	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.Float64("duration_sec", duration),
		slog.Duration("elapsed", time.Since(started)),
	)

	return nil
}

// GetJob retrieves a job, lazily transitioning an overdue processing job to
// error. The timeout is soft: it does not kill a running subprocess, it only
// stops reporting a hopeless job as processing.
func (s *RenderService) GetJob(ctx context.Context, jobID string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if s.softTimeout > 0 && j.GetStatus() == StatusProcessing && j.Age() > s.softTimeout {
		msg := fmt.Sprintf("job timed out after %s", s.softTimeout)
		err := s.repo.Update(ctx, jobID, func(stored *Job) error {
			return stored.MarkError(msg)
		})
		if err != nil && !errors.Is(err, ErrAlreadyTerminal) {
			return nil, err
		}
		return s.repo.FindByID(ctx, jobID)
	}

	return j, nil
}

// Result returns the artifact path of a done job. A processing job yields
// ErrNotReady; a failed job yields its recorded error.
func (s *RenderService) Result(ctx context.Context, jobID string) (string, error) {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	switch j.GetStatus() {
	case StatusDone:
		return j.OutputPath, nil
	case StatusError:
		return "", errors.New(j.Error)
	default:
		return "", ErrNotReady
	}
}

// ParamsFromEffects maps plan effect overrides onto compositor parameters.
func ParamsFromEffects(e plan.Effects) video.Params {
	return video.Params{
		ZoomBase:      e.ZoomBase,
		ZoomAmplitude: e.ZoomAmplitude,
		ZoomPeriodSec: e.ZoomPeriodSec,
		FPS:           e.FPS,
		Width:         e.Width,
		Height:        e.Height,
		VideoBitrate:  e.VideoBitrate,
		Overscan:      e.Overscan,
		CTAHeadSec:    e.CTAHeadSec,
		CTATailSec:    e.CTATailSec,
	}
}

// setStage updates the job's stage label on the stored record. A job that
// has already reached a terminal state keeps it; SetStage is a no-op there.
func (s *RenderService) setStage(ctx context.Context, j *Job, stage string) {
	j.SetStage(stage)
	if err := s.repo.Update(ctx, j.ID, func(stored *Job) error {
		stored.SetStage(stage)
		return nil
	}); err != nil {
		s.logger.Warn("failed to persist stage",
			slog.String("job_id", j.ID),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
	}
}

// fail records a pipeline failure verbatim and halts.
func (s *RenderService) fail(ctx context.Context, j *Job, cause error) error {
	s.logger.Error("job failed",
		slog.String("job_id", j.ID),
		slog.String("stage", j.GetStage()),
		slog.String("error", cause.Error()),
	)
	err := s.repo.Update(ctx, j.ID, func(stored *Job) error {
		return stored.MarkError(cause.Error())
	})
	if err != nil && !errors.Is(err, ErrAlreadyTerminal) {
		return err
	}
	return cause
}

func (s *RenderService) publishArtifact(ctx context.Context, jobID, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is produced by this service
	if err != nil {
		return "", fmt.Errorf("job: open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.publisher.Publish(ctx, jobID+".mp4", f)
}

// uploadExt returns the upload's file extension or fallback when absent.
func uploadExt(name, fallback string) string {
	if ext := filepath.Ext(name); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}
