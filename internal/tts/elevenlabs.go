package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for the ElevenLabs backend.
var (
	// ErrElevenLabsKeyRequired is returned when no API key is provided.
	ErrElevenLabsKeyRequired = errors.New("tts: elevenlabs API key is required")
	// ErrRateLimited is returned when the API responds with 429 and the
	// retry budget is exhausted.
	ErrRateLimited = errors.New("tts: elevenlabs rate limited")
	// ErrRequestFailed is returned for non-retryable non-2xx responses.
	ErrRequestFailed = errors.New("tts: elevenlabs request failed")
	// ErrEmptyAudio is returned when the API responds 200 with no audio bytes.
	ErrEmptyAudio = errors.New("tts: elevenlabs returned empty audio")
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB"
	elevenLabsOutputFormat = "mp3_44100_128"

	// elevenLabsCharLimit is the per-request transcript limit; longer text is
	// chunked into sequential requests.
	elevenLabsCharLimit = 2500
)

// ElevenLabs is a cloud TTS backend using the ElevenLabs REST API.
type ElevenLabs struct {
	apiKey      string
	voiceID     string
	modelID     string
	baseURL     string
	speed       float64
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// ElevenLabsOption configures an ElevenLabs backend.
type ElevenLabsOption func(*ElevenLabs)

// WithVoice sets the voice identity.
func WithVoice(voiceID string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if voiceID != "" {
			e.voiceID = voiceID
		}
	}
}

// WithSpeed sets the speaking rate multiplier.
func WithSpeed(speed float64) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if speed > 0 {
			e.speed = speed
		}
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(url string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.httpClient = c
	}
}

// WithMaxAttempts sets the bounded retry budget for rate-limited calls.
func WithMaxAttempts(n int) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if d > 0 {
			e.baseBackoff = d
		}
	}
}

// NewElevenLabs creates an ElevenLabs backend. A missing API key is a fatal
// configuration error: there is no point accepting jobs that cannot synthesize.
func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, ErrElevenLabsKeyRequired
	}

	e := &ElevenLabs{
		apiKey:      apiKey,
		voiceID:     elevenLabsDefaultVoice,
		modelID:     elevenLabsDefaultModel,
		baseURL:     elevenLabsBaseURL,
		speed:       0.9,
		httpClient:  &http.Client{Timeout: 90 * time.Second},
		maxAttempts: 6,
		baseBackoff: 800 * time.Millisecond,
		maxBackoff:  15 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Name returns the backend name.
func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
	Speed         *float64                 `json:"speed,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to MP3 audio. Text beyond the per-request limit is
// chunked and the resulting audio concatenated before returning.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*Speech, error) {
	text = sanitizeText(text)

	var audio []byte
	for _, chunk := range chunkText(text, elevenLabsCharLimit) {
		part, err := e.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		audio = append(audio, part...)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return &Speech{Audio: audio, Format: "mp3"}, nil
}

// synthesizeChunk performs one TTS request with bounded retry on rate limits.
func (e *ElevenLabs) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	speed := e.speed
	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		Speed:   &speed,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.6,
			SimilarityBoost: 0.8,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.baseURL, e.voiceID, elevenLabsOutputFormat)

	backoff := e.baseBackoff
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("tts: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > e.maxBackoff {
				backoff = e.maxBackoff
			}
		}

		audio, err := e.doRequest(ctx, url, body)
		if err == nil {
			return audio, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("tts: retry budget exhausted: %w", lastErr)
}

func (e *ElevenLabs) doRequest(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	// The response body is the audio file itself.
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}

// Verify interface implementation at compile time.
var _ Synthesizer = (*ElevenLabs)(nil)
