// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrUnknownTTSBackend is returned when TTS_BACKEND names an unsupported backend.
	ErrUnknownTTSBackend = errors.New("config: unknown TTS backend")
	// ErrElevenLabsKeyRequired is returned when the elevenlabs backend is selected
	// without ELEVENLABS_API_KEY.
	ErrElevenLabsKeyRequired = errors.New("config: ELEVENLABS_API_KEY is required for the elevenlabs backend")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Working directory root for job workspaces
	WorkDir string `env:"WORK_DIR, default=/tmp/videoapi" json:"work_dir"`

	// Job lifecycle settings
	JobTTL            time.Duration `env:"JOB_TTL, default=2h" json:"job_ttl"`
	JobSoftTimeout    time.Duration `env:"JOB_SOFT_TIMEOUT, default=45m" json:"job_soft_timeout"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL, default=10m" json:"sweep_interval"`
	MaxConcurrentJobs int           `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs"`

	// TargetDurationSec forces the final audio (and therefore the video) to an
	// exact length when > 0. Zero leaves the natural narration length.
	TargetDurationSec float64 `env:"TARGET_DURATION_SEC, default=0" json:"target_duration_sec"`
	// MinOutputDuration is the sanity floor for a finished render, in seconds.
	MinOutputDuration float64 `env:"MIN_OUTPUT_DURATION_SEC, default=10" json:"min_output_duration_sec"`

	// Media tool settings
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// TTS settings
	TTSBackend       string `env:"TTS_BACKEND, default=elevenlabs" json:"tts_backend"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY" json:"-"` // Masked in JSON
	ElevenLabsVoice  string `env:"ELEVENLABS_VOICE_ID" json:"elevenlabs_voice_id,omitempty"`
	TTSVoice         string `env:"TTS_VOICE, default=en" json:"tts_voice"`
	TTSRate          int    `env:"TTS_RATE, default=0" json:"tts_rate"`

	// Optional S3 settings for publishing finished artifacts
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// CORS settings (comma-separated origins, empty = allow all)
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" json:"cors_allowed_origins,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.TTSBackend) {
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			return ErrElevenLabsKeyRequired
		}
	case "espeak":
		// Local backend needs no credentials.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTTSBackend, c.TTSBackend)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WorkDir: %s, JobTTL: %s, MaxConcurrentJobs: %d, TTSBackend: %s, TargetDurationSec: %.0f, S3Bucket: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WorkDir,
		c.JobTTL,
		c.MaxConcurrentJobs,
		c.TTSBackend,
		c.TargetDurationSec,
		c.S3Bucket,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
