// Package assemble turns an expanded render plan into normalized audio clips
// on disk plus the concat manifest that fixes their order. The manifest is
// the sole ordering contract consumed by the concatenation stage.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/birkanfirat/ffmpeg-video-api/internal/plan"
	"github.com/birkanfirat/ffmpeg-video-api/internal/tts"
)

// ErrEmptyPlan is returned when a plan expands to no audio clips at all.
var ErrEmptyPlan = errors.New("assemble: plan yields no audio clips")

// Downloader retrieves a remote clip's bytes.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Normalizer converts a clip file to the canonical audio format.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// StageFunc receives progress labels as the assembler works through clips.
type StageFunc func(stage string)

// Assembler drives synthesis, download and normalization for every clip of a
// plan and records the result in a manifest.
type Assembler struct {
	synth      tts.Synthesizer
	downloader Downloader
	normalizer Normalizer
	logger     *slog.Logger
}

// New creates an Assembler.
func New(synth tts.Synthesizer, downloader Downloader, normalizer Normalizer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		synth:      synth,
		downloader: downloader,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Assemble produces one raw and one normalized file per clip in clipDir and
// returns the path of the written manifest. Clip files carry a zero-padded
// sequence index so their on-disk order matches plan order. Any clip failure
// aborts assembly; a video with missing segments is never produced.
func (a *Assembler) Assemble(ctx context.Context, p *plan.RenderPlan, clipDir string, onStage StageFunc) (string, error) {
	if onStage == nil {
		onStage = func(string) {}
	}

	clips := plan.Expand(p)
	if len(clips) == 0 {
		// Surface the empty plan here rather than as an opaque ffmpeg
		// concat failure downstream.
		return "", ErrEmptyPlan
	}

	if err := os.MkdirAll(clipDir, 0750); err != nil {
		return "", fmt.Errorf("assemble: create clip directory: %w", err)
	}
	normalized := make([]string, 0, len(clips))

	for _, clip := range clips {
		var (
			raw []byte
			ext string
		)

		switch clip.Kind {
		case plan.ClipSynth:
			onStage("tts_" + clip.Label)
			speech, err := a.synth.Synthesize(ctx, clip.Text)
			if err != nil {
				return "", fmt.Errorf("assemble: clip %03d %s: %w", clip.Index, clip.Label, err)
			}
			raw = speech.Audio
			ext = speech.Format
		case plan.ClipFetch:
			onStage(clip.Label)
			data, err := a.downloader.Fetch(ctx, clip.URL)
			if err != nil {
				return "", fmt.Errorf("assemble: clip %03d %s: %w", clip.Index, clip.Label, err)
			}
			raw = data
			ext = urlExt(clip.URL)
		default:
			return "", fmt.Errorf("assemble: clip %03d %s: unknown kind %q", clip.Index, clip.Label, clip.Kind)
		}

		rawPath := filepath.Join(clipDir, fmt.Sprintf("%03d_%s.%s", clip.Index, clip.Label, ext))
		if err := os.WriteFile(rawPath, raw, 0600); err != nil {
			return "", fmt.Errorf("assemble: write clip %03d: %w", clip.Index, err)
		}

		normPath := filepath.Join(clipDir, fmt.Sprintf("%03d_%s_norm.wav", clip.Index, clip.Label))
		if err := a.normalizer.Normalize(ctx, rawPath, normPath); err != nil {
			return "", fmt.Errorf("assemble: normalize clip %03d %s: %w", clip.Index, clip.Label, err)
		}

		a.logger.Debug("clip assembled",
			slog.Int("index", clip.Index),
			slog.String("label", clip.Label),
			slog.String("kind", string(clip.Kind)),
		)

		normalized = append(normalized, normPath)
	}

	manifestPath := filepath.Join(clipDir, "manifest.txt")
	if err := WriteManifest(manifestPath, normalized); err != nil {
		return "", err
	}

	return manifestPath, nil
}

// WriteManifest writes the ordered clip list in ffmpeg concat demuxer format,
// one single-quoted path per line with embedded quotes escaped.
func WriteManifest(manifestPath string, clipPaths []string) error {
	var b strings.Builder
	for _, p := range clipPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("assemble: absolute path for %s: %w", p, err)
		}
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}

	if err := os.WriteFile(manifestPath, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("assemble: write manifest: %w", err)
	}
	return nil
}

// urlExt picks the clip file extension from the URL path, defaulting to mp3.
func urlExt(url string) string {
	ext := strings.TrimPrefix(path.Ext(stripQuery(url)), ".")
	if ext == "" || len(ext) > 4 {
		return "mp3"
	}
	return strings.ToLower(ext)
}

func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
