// Package bootstrap provides dependency initialization for the render API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/birkanfirat/ffmpeg-video-api/internal/assemble"
	"github.com/birkanfirat/ffmpeg-video-api/internal/audio"
	"github.com/birkanfirat/ffmpeg-video-api/internal/config"
	"github.com/birkanfirat/ffmpeg-video-api/internal/fetch"
	"github.com/birkanfirat/ffmpeg-video-api/internal/job"
	"github.com/birkanfirat/ffmpeg-video-api/internal/media"
	"github.com/birkanfirat/ffmpeg-video-api/internal/storage"
	"github.com/birkanfirat/ffmpeg-video-api/internal/tts"
	"github.com/birkanfirat/ffmpeg-video-api/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	RenderService *job.RenderService
	Compositor    *video.Compositor
	Sweeper       *job.Sweeper
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	workspace, err := storage.NewWorkspace(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	runner := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)

	synth, err := initSynthesizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New()
	normalizer := audio.NewNormalizer(runner)
	assembler := assemble.New(synth, fetcher, normalizer, logger)

	finishOpts := audio.DefaultFinishOpts()
	finishOpts.TargetDurationSec = cfg.TargetDurationSec
	finisher := audio.NewFinisher(runner, finishOpts)

	compositor := video.NewCompositor(runner, logger)

	repo := job.NewMemoryRepository()

	serviceOpts := []job.ServiceOption{
		job.WithMaxConcurrent(cfg.MaxConcurrentJobs),
		job.WithSoftTimeout(cfg.JobSoftTimeout),
		job.WithMinOutputDuration(cfg.MinOutputDuration),
	}

	if cfg.S3Enabled() {
		publisher, err := storage.NewS3Publisher(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 publisher: %w", err)
		}
		serviceOpts = append(serviceOpts, job.WithPublisher(publisher))
		logger.Info("S3 publication configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	}

	svc := job.NewRenderService(
		repo,
		assembler,
		finisher,
		compositor,
		workspace,
		runner,
		logger,
		serviceOpts...,
	)

	sweeper := job.NewSweeper(repo, workspace, cfg.JobTTL, cfg.SweepInterval, logger)

	return &Dependencies{
		RenderService: svc,
		Compositor:    compositor,
		Sweeper:       sweeper,
	}, nil
}

// initSynthesizer selects the TTS backend from configuration.
func initSynthesizer(cfg *config.Config, logger *slog.Logger) (tts.Synthesizer, error) {
	switch strings.ToLower(cfg.TTSBackend) {
	case "elevenlabs":
		synth, err := tts.NewElevenLabs(cfg.ElevenLabsAPIKey, tts.WithVoice(cfg.ElevenLabsVoice))
		if err != nil {
			return nil, fmt.Errorf("create elevenlabs backend: %w", err)
		}
		logger.Info("TTS backend configured", slog.String("backend", synth.Name()))
		return synth, nil
	case "espeak":
		synth, err := tts.NewEspeak("", cfg.TTSVoice, cfg.TTSRate)
		if err != nil {
			return nil, fmt.Errorf("create espeak backend: %w", err)
		}
		logger.Info("TTS backend configured", slog.String("backend", synth.Name()))
		return synth, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTTSBackend, cfg.TTSBackend)
	}
}
