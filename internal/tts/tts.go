// Package tts provides text-to-speech synthesis behind a single Synthesizer
// interface with swappable backends. The cloud backend calls the ElevenLabs
// REST API; the local backend shells out to espeak-ng. Backends produce audio
// in their native container; callers normalize before concatenation.
package tts

import (
	"context"
	"strings"
)

// Speech is the result of a synthesis call.
type Speech struct {
	// Audio is the raw audio file content.
	Audio []byte
	// Format is the container hint ("mp3", "wav") used for the file extension.
	Format string
}

// Synthesizer converts text into speech audio.
type Synthesizer interface {
	// Synthesize converts text to audio. Empty or whitespace-only text is
	// substituted with a minimal placeholder rather than rejected, so a plan
	// with a missing narration line never breaks clip ordering.
	Synthesize(ctx context.Context, text string) (*Speech, error)

	// Name returns the backend name for logging.
	Name() string
}

// sanitizeText substitutes a single-space placeholder for empty input.
func sanitizeText(text string) string {
	if strings.TrimSpace(text) == "" {
		return " "
	}
	return text
}

// chunkText splits text into pieces no longer than limit runes, preferring
// sentence boundaries and falling back to word boundaries. Backends with a
// per-request character limit synthesize chunks sequentially and concatenate
// the audio, transparently to callers.
func chunkText(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := []rune(text)

	for len(remaining) > limit {
		cut := limit
		// Prefer the last sentence boundary inside the window.
		if idx := lastBoundary(remaining[:limit], ".!?؟"); idx > 0 {
			cut = idx + 1
		} else if idx := lastBoundary(remaining[:limit], " \t\n"); idx > 0 {
			cut = idx + 1
		}
		chunks = append(chunks, strings.TrimSpace(string(remaining[:cut])))
		remaining = remaining[cut:]
	}

	if tail := strings.TrimSpace(string(remaining)); tail != "" {
		chunks = append(chunks, tail)
	}

	return chunks
}

// lastBoundary returns the index of the last rune in s that is one of cutset,
// or -1 if none is present.
func lastBoundary(s []rune, cutset string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if strings.ContainsRune(cutset, s[i]) {
			return i
		}
	}
	return -1
}
