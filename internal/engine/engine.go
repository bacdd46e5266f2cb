// Package engine wraps the whisper.cpp native speech-recognition engine
// behind a single-payload Transcribe call, gated by a process-wide
// [limiter.Limiter].
//
// It is the CGO-backed sibling of the streaming whisper.cpp provider this
// repository's dependency graph descends from, collapsed to the one
// operation this gateway actually needs: take a complete WAV payload, run
// one-shot inference, return the text. There is no silence detection or
// buffering here — the client already delimited the utterance by sending a
// complete WAV file per message.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/riftwave/voxgate/internal/limiter"
	"github.com/riftwave/voxgate/internal/wav"
)

// ErrCancelled is returned by [Adapter.Transcribe] when ctx is cancelled
// while waiting for a limiter lease. Unlike every other failure mode it
// propagates to the caller instead of being sanitised to an empty string.
var ErrCancelled = errors.New("engine: transcribe cancelled")

// fallbackLanguage is substituted when both the caller-supplied language
// and the Adapter's configured default are empty or whitespace-only.
const fallbackLanguage = "auto"

// Recorder receives engine call outcomes for observability. Implementations
// must be safe for concurrent use. A nil Recorder is valid and records
// nothing.
type Recorder interface {
	RecordTranscribe(ok bool, seconds float64)

	// LimiterInFlightDelta reports a change in the number of outstanding
	// limiter leases: +1 when Transcribe acquires one, -1 when it releases
	// one.
	LimiterInFlightDelta(delta int64)
}

// Adapter transcribes WAV payloads using a shared whisper.cpp model, gated
// by a shared [limiter.Limiter]. Safe for concurrent use by any number of
// sessions; it holds no per-session state.
type Adapter struct {
	model           whisperlib.Model
	limiter         *limiter.Limiter
	metrics         Recorder
	now             func() time.Time
	defaultLanguage string
}

// New loads the whisper.cpp model at modelPath and returns an Adapter that
// admits at most lim's capacity concurrent transcriptions. The model is
// loaded once and shared across every call; Close releases it.
//
// defaultLanguage is substituted whenever a session's Transcribe call
// supplies an empty or whitespace-only language; an empty defaultLanguage
// falls back to [fallbackLanguage].
func New(modelPath, defaultLanguage string, lim *limiter.Limiter, metrics Recorder) (*Adapter, error) {
	if modelPath == "" {
		return nil, errors.New("engine: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("engine: load model %q: %w", modelPath, err)
	}
	lang := strings.TrimSpace(defaultLanguage)
	if lang == "" {
		lang = fallbackLanguage
	}
	return &Adapter{model: model, limiter: lim, metrics: metrics, now: time.Now, defaultLanguage: lang}, nil
}

// DefaultLanguage returns the language substituted when a Transcribe call
// supplies an empty or whitespace-only language.
func (a *Adapter) DefaultLanguage() string { return a.defaultLanguage }

// Close releases the underlying whisper.cpp model.
func (a *Adapter) Close() error {
	if a.model == nil {
		return nil
	}
	return a.model.Close()
}

// Transcribe runs one-shot inference over a complete WAV payload and returns
// the concatenated, trimmed segment text.
//
// On [ErrCancelled] the caller must treat the call as aborted. On any other
// failure — a malformed payload or an engine-internal error — Transcribe
// logs the cause and returns ("", nil) rather than an error, keeping one
// bad payload from taking down the session.
func (a *Adapter) Transcribe(ctx context.Context, payload []byte, language string) (string, error) {
	lease, err := a.limiter.Acquire(ctx)
	if err != nil {
		return "", ErrCancelled
	}
	a.recordInFlightDelta(1)
	defer func() {
		lease.Release()
		a.recordInFlightDelta(-1)
	}()

	start := a.now()
	text, err := a.infer(payload, language)
	elapsed := a.now().Sub(start).Seconds()

	if err != nil {
		slog.Error("engine transcription failed", "error", err)
		a.record(false, elapsed)
		return "", nil
	}
	a.record(true, elapsed)
	return text, nil
}

func (a *Adapter) record(ok bool, seconds float64) {
	if a.metrics != nil {
		a.metrics.RecordTranscribe(ok, seconds)
	}
}

func (a *Adapter) recordInFlightDelta(delta int64) {
	if a.metrics != nil {
		a.metrics.LimiterInFlightDelta(delta)
	}
}

func (a *Adapter) infer(payload []byte, language string) (string, error) {
	pcm, err := wav.Decode(payload)
	if err != nil {
		return "", fmt.Errorf("engine: decode payload: %w", err)
	}
	samples := pcm.ToFloat32Mono()

	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = a.defaultLanguage
	}

	// Each call gets its own whisper.cpp context; contexts are not
	// thread-safe but the underlying model may be shared across goroutines.
	wctx, err := a.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("engine: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("engine: failed to set language, using default", "language", lang, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("engine: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("engine: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.TrimSpace(strings.Join(parts, " ")), nil
}
