// Package display renders the engine's status projection on the available
// outputs.
package display

import (
	"context"
	"errors"
	log "log/slog"
	"sync"

	"wes/internal/engine"
)

// Log writes status changes to the logger. Unchanged frames go to debug.
type Log struct {
	mu   sync.Mutex
	last *engine.Status
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Render(_ context.Context, s engine.Status) error {
	l.mu.Lock()
	changed := l.last == nil || l.last.Color != s.Color || l.last.Label != s.Label
	l.last = &s
	l.mu.Unlock()

	attrs := []any{"color", s.Color, "label", s.Label, "prox", s.Proximity}
	if changed {
		log.Info("Display", attrs...)
	} else {
		log.Debug("Display", attrs...)
	}
	return nil
}

func (l *Log) Blank(context.Context) error {
	l.mu.Lock()
	l.last = nil
	l.mu.Unlock()
	log.Info("Display blanked")
	return nil
}

// Multi fans every call out to all displays and joins their errors.
type Multi []engine.StatusDisplay

func (m Multi) Render(ctx context.Context, s engine.Status) error {
	var errs []error
	for _, d := range m {
		if err := d.Render(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Blank(ctx context.Context) error {
	var errs []error
	for _, d := range m {
		if err := d.Blank(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
