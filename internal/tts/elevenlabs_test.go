package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElevenLabs_MissingKey(t *testing.T) {
	_, err := NewElevenLabs("")
	if !errors.Is(err, ErrElevenLabsKeyRequired) {
		t.Errorf("expected ErrElevenLabsKeyRequired, got %v", err)
	}
}

func TestNewElevenLabs_Defaults(t *testing.T) {
	e, err := NewElevenLabs("test-key")
	require.NoError(t, err)

	assert.Equal(t, elevenLabsDefaultVoice, e.voiceID)
	assert.Equal(t, elevenLabsDefaultModel, e.modelID)
	assert.Equal(t, 6, e.maxAttempts)
	assert.Equal(t, "elevenlabs", e.Name())
}

func TestNewElevenLabs_Options(t *testing.T) {
	e, err := NewElevenLabs("test-key",
		WithVoice("custom-voice"),
		WithSpeed(1.1),
		WithMaxAttempts(3),
		WithBaseBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	assert.Equal(t, "custom-voice", e.voiceID)
	assert.Equal(t, 1.1, e.speed)
	assert.Equal(t, 3, e.maxAttempts)
}

func TestElevenLabs_Synthesize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		assert.Contains(t, r.URL.Path, "/v1/text-to-speech/")
		assert.Equal(t, elevenLabsOutputFormat, r.URL.Query().Get("output_format"))

		var req elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello there", req.Text)
		assert.Equal(t, elevenLabsDefaultModel, req.ModelID)

		_, _ = w.Write([]byte("fake-mp3-bytes"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	speech, err := e.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-mp3-bytes"), speech.Audio)
	assert.Equal(t, "mp3", speech.Format)
}

func TestElevenLabs_Synthesize_EmptyTextUsesPlaceholder(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req elevenLabsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotText = req.Text
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, " ", gotText)
}

func TestElevenLabs_Synthesize_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("audio-after-retries"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key",
		WithBaseURL(srv.URL),
		WithBaseBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	speech, err := e.Synthesize(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-after-retries"), speech.Audio)
	assert.Equal(t, int32(4), calls.Load())
}

func TestElevenLabs_Synthesize_RateLimitBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key",
		WithBaseURL(srv.URL),
		WithBaseBackoff(time.Millisecond),
		WithMaxAttempts(3),
	)
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), "never succeeds")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(3), calls.Load())
}

func TestElevenLabs_Synthesize_FatalErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key",
		WithBaseURL(srv.URL),
		WithBaseBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestElevenLabs_Synthesize_LongTextChunked(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	// Two sentences, each just under the limit, together well over it.
	long := ""
	for len(long) < elevenLabsCharLimit+100 {
		long += "A reasonably long sentence used for padding purposes. "
	}

	speech, err := e.Synthesize(context.Background(), long)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	assert.Equal(t, int(calls.Load()), len(speech.Audio))
}

func TestElevenLabs_Synthesize_EmptyAudioResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrEmptyAudio))
}

func TestElevenLabs_Synthesize_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, err := NewElevenLabs("test-key",
		WithBaseURL(srv.URL),
		WithBaseBackoff(time.Minute),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = e.Synthesize(ctx, "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
