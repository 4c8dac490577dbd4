package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrEspeakNotFound is returned when the espeak-ng binary is not installed.
var ErrEspeakNotFound = errors.New("tts: espeak-ng not found in PATH")

// Espeak is a local TTS backend shelling out to espeak-ng. It needs no
// credentials and no network, which makes it the fallback for environments
// without a cloud TTS account.
type Espeak struct {
	binPath string
	voice   string
	rate    int
}

// NewEspeak creates an Espeak backend. binPath defaults to "espeak-ng" found
// in PATH; voice defaults to "en"; rate <= 0 uses the espeak default.
// The binary's presence is verified up front so a misconfigured host fails at
// startup rather than on the first job.
func NewEspeak(binPath, voice string, rate int) (*Espeak, error) {
	if binPath == "" {
		binPath = "espeak-ng"
	}
	if voice == "" {
		voice = "en"
	}
	if _, err := exec.LookPath(binPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEspeakNotFound, binPath)
	}
	return &Espeak{binPath: binPath, voice: voice, rate: rate}, nil
}

// Name returns the backend name.
func (e *Espeak) Name() string { return "espeak" }

// Synthesize converts text to WAV audio via espeak-ng's stdout mode.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*Speech, error) {
	text = sanitizeText(text)

	// #nosec G204 - binPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.binPath, espeakArgs(e.voice, e.rate, text)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("tts: espeak cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("tts: espeak failed: %w, stderr: %s", err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, ErrEmptyAudio
	}

	return &Speech{Audio: stdout.Bytes(), Format: "wav"}, nil
}

// espeakArgs builds the argv for one synthesis run. The "--" terminator
// keeps text starting with a dash from being read as an option.
func espeakArgs(voice string, rate int, text string) []string {
	args := []string{"--stdout", "-v", voice}
	if rate > 0 {
		args = append(args, "-s", fmt.Sprintf("%d", rate))
	}
	return append(args, "--", text)
}

// Verify interface implementation at compile time.
var _ Synthesizer = (*Espeak)(nil)
