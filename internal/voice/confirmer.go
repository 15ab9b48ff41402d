// Package voice implements the spoken yes/no gate: cue, record, transcribe,
// match.
package voice

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"wes/internal/audio"
	"wes/internal/engine"
)

type Recorder interface {
	Record(ctx context.Context, maxDur time.Duration) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

// Cue tells the user the microphone is open.
type Cue interface {
	Play(ctx context.Context) error
}

// Ducker lowers other audio while listening.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// restoreReserve is the tail of each listen window kept back for restoring
// ducked audio, capped at a quarter of the window.
const restoreReserve = 500 * time.Millisecond

// Confirmer listens on the microphone. Cue and Ducker are optional.
type Confirmer struct {
	rec  Recorder
	stt  Transcriber
	cue  Cue
	duck Ducker
}

type Option func(*Confirmer)

func WithCue(c Cue) Option       { return func(v *Confirmer) { v.cue = c } }
func WithDucker(d Ducker) Option { return func(v *Confirmer) { v.duck = d } }

func NewConfirmer(rec Recorder, stt Transcriber, opts ...Option) *Confirmer {
	c := &Confirmer{rec: rec, stt: stt}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListenFor returns within timeout, restore of ducked audio included.
// Silence until the deadline is TimedOut; speech without keyword is NotHeard.
func (c *Confirmer) ListenFor(ctx context.Context, keyword string, timeout time.Duration) (engine.ListenResult, error) {
	deadline := time.Now().Add(timeout)

	capture := timeout
	if c.duck != nil {
		capture -= min(restoreReserve, timeout/4)
	}
	lctx, cancel := context.WithDeadline(ctx, deadline.Add(capture-timeout))
	defer cancel()

	if c.cue != nil {
		if err := c.cue.Play(lctx); err != nil && lctx.Err() == nil {
			log.Warn("Listening cue failed", "err", err)
		}
	}

	if c.duck != nil {
		if err := c.duck.Duck(lctx); err != nil {
			log.Warn("Failed to duck other audio", "err", err)
		}
		defer func() {
			// Shutdown must not leave other audio ducked, so only the
			// listen deadline bounds the restore.
			rctx, rcancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
			defer rcancel()
			if err := c.duck.Restore(rctx); err != nil {
				log.Warn("Failed to restore other audio", "err", err)
			}
		}()
	}

	pcm, err := c.rec.Record(lctx, capture)
	if err != nil {
		return classify(ctx, lctx, fmt.Errorf("record: %w", err))
	}

	text, err := transcribe(lctx, c.stt, pcm)
	if err != nil {
		return classify(ctx, lctx, fmt.Errorf("transcribe: %w", err))
	}

	log.Info("Heard", "text", text)
	return Match(text, keyword), nil
}

// transcribe gives up at ctx's deadline even if the model keeps running.
func transcribe(ctx context.Context, stt Transcriber, pcm []float32) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := stt.Transcribe(ctx, pcm)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Match maps a transcript onto Heard or NotHeard.
func Match(text, keyword string) engine.ListenResult {
	if ContainsKeyword(text, keyword) {
		return engine.Heard
	}
	return engine.NotHeard
}

func classify(parent, listen context.Context, err error) (engine.ListenResult, error) {
	switch {
	case parent.Err() != nil:
		return engine.ListenError, parent.Err()
	case errors.Is(err, audio.ErrNoSpeech), listen.Err() != nil:
		return engine.TimedOut, nil
	}
	return engine.ListenError, err
}
