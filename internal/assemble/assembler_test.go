package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/birkanfirat/ffmpeg-video-api/internal/plan"
	"github.com/birkanfirat/ffmpeg-video-api/internal/tts"
)

// mockSynthesizer implements tts.Synthesizer for testing.
type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) (*tts.Speech, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tts.Speech), args.Error(1)
}

func (m *mockSynthesizer) Name() string { return "mock" }

// mockDownloader implements Downloader for testing.
type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// mockNormalizer implements Normalizer for testing. It copies the raw file so
// the normalized output exists on disk.
type mockNormalizer struct {
	mock.Mock
}

func (m *mockNormalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	args := m.Called(ctx, inputPath, outputPath)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0600)
}

func TestAssemble_FullPlan(t *testing.T) {
	synth := &mockSynthesizer{}
	dl := &mockDownloader{}
	norm := &mockNormalizer{}

	synth.On("Synthesize", mock.Anything, "welcome").Return(&tts.Speech{Audio: []byte("intro-audio"), Format: "mp3"}, nil)
	synth.On("Synthesize", mock.Anything, "first verse meaning").Return(&tts.Speech{Audio: []byte("tr-audio"), Format: "mp3"}, nil)
	dl.On("Fetch", mock.Anything, "https://cdn.example.com/001.mp3").Return([]byte("ar-audio"), nil)
	norm.On("Normalize", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	a := New(synth, dl, norm, nil)

	p := &plan.RenderPlan{
		IntroText: "welcome",
		Segments: []plan.Segment{
			{ExternalAudioURL: "https://cdn.example.com/001.mp3", SpokenText: "first verse meaning", AyahNumber: 1},
		},
	}

	clipDir := filepath.Join(t.TempDir(), "clips")
	var stages []string
	manifest, err := a.Assemble(context.Background(), p, clipDir, func(s string) { stages = append(stages, s) })
	require.NoError(t, err)

	// Stage labels arrive in plan order.
	assert.Equal(t, []string{"tts_intro", "seg_1_ar", "tts_seg_1_tr"}, stages)

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	// Manifest order matches clip indices, one quoted absolute path per line.
	assert.Contains(t, lines[0], "000_intro_norm.wav")
	assert.Contains(t, lines[1], "001_seg_1_ar_norm.wav")
	assert.Contains(t, lines[2], "002_seg_1_tr_norm.wav")
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "file '"))
		assert.True(t, strings.HasSuffix(line, "'"))
	}

	// Raw and normalized files both exist.
	raw, err := os.ReadFile(filepath.Join(clipDir, "000_intro.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("intro-audio"), raw)

	synth.AssertExpectations(t)
	dl.AssertExpectations(t)
}

func TestAssemble_SynthFailureAborts(t *testing.T) {
	synth := &mockSynthesizer{}
	dl := &mockDownloader{}
	norm := &mockNormalizer{}

	synth.On("Synthesize", mock.Anything, "boom").Return(nil, errors.New("tts down"))

	a := New(synth, dl, norm, nil)
	p := &plan.RenderPlan{IntroText: "boom"}

	_, err := a.Assemble(context.Background(), p, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intro")
	assert.Contains(t, err.Error(), "tts down")
	dl.AssertNotCalled(t, "Fetch")
}

func TestAssemble_FetchFailureAborts(t *testing.T) {
	synth := &mockSynthesizer{}
	dl := &mockDownloader{}
	norm := &mockNormalizer{}

	dl.On("Fetch", mock.Anything, "https://cdn.example.com/missing.mp3").Return(nil, errors.New("404"))

	a := New(synth, dl, norm, nil)
	p := &plan.RenderPlan{
		Segments: []plan.Segment{
			{ExternalAudioURL: "https://cdn.example.com/missing.mp3", SpokenText: "never reached", AyahNumber: 7},
		},
	}

	_, err := a.Assemble(context.Background(), p, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seg_7_ar")
	synth.AssertNotCalled(t, "Synthesize")
}

func TestAssemble_NormalizeFailureAborts(t *testing.T) {
	synth := &mockSynthesizer{}
	dl := &mockDownloader{}
	norm := &mockNormalizer{}

	synth.On("Synthesize", mock.Anything, "hi").Return(&tts.Speech{Audio: []byte("a"), Format: "mp3"}, nil)
	norm.On("Normalize", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bad container"))

	a := New(synth, dl, norm, nil)
	_, err := a.Assemble(context.Background(), &plan.RenderPlan{IntroText: "hi"}, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize")
}

func TestAssemble_EmptyPlanRejected(t *testing.T) {
	a := New(&mockSynthesizer{}, &mockDownloader{}, &mockNormalizer{}, nil)

	// No texts and no usable segments: the expansion is empty and must be
	// rejected up front, not left to fail inside the concat stage.
	p := &plan.RenderPlan{Segments: []plan.Segment{{SpokenText: "orphaned"}}}
	_, err := a.Assemble(context.Background(), p, t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

func TestWriteManifest_EscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.txt")

	err := WriteManifest(manifest, []string{filepath.Join(dir, "it's_a_clip.wav")})
	require.NoError(t, err)

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `it'\''s_a_clip.wav`)
}

func TestURLExt(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/clip.mp3", "mp3"},
		{"https://cdn.example.com/clip.WAV", "wav"},
		{"https://cdn.example.com/clip.m4a?token=abc", "m4a"},
		{"https://cdn.example.com/clip", "mp3"},
		{"https://cdn.example.com/clip.verylongext", "mp3"},
	}

	for _, tt := range tests {
		if got := urlExt(tt.url); got != tt.want {
			t.Errorf("urlExt(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
