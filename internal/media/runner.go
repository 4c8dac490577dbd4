// Package media wraps the ffmpeg and ffprobe CLIs behind a narrow Runner
// interface. All pipeline stages invoke the media tools through it; the
// package never interprets codec internals beyond argument construction.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes media tool invocations for a named pipeline stage.
type Runner interface {
	// Run executes ffmpeg with the given arguments. On failure the returned
	// error carries the stage name, arguments and the tool's stderr output.
	Run(ctx context.Context, stage string, args []string) error

	// Duration returns the measured duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpeg is the subprocess implementation of Runner.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg runner. Empty paths default to "ffmpeg"
// and "ffprobe" resolved via PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Run executes ffmpeg with the given arguments.
func (f *FFmpeg) Run(ctx context.Context, stage string, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s cancelled: %w", stage, ctx.Err())
		}
		return &ToolError{
			Stage:  stage,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// Duration returns the duration in seconds of a media file using ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("ffprobe %s: %w, stderr: %s", path, err, stderr.String())
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

// ToolError represents a failed media tool invocation, including the
// stderr output needed to diagnose filter-graph and codec problems.
type ToolError struct {
	Stage  string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("ffmpeg %s failed: %v\nargs: %v\nstderr: %s", e.Stage, e.Err, e.Args, e.Stderr)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Runner = (*FFmpeg)(nil)
