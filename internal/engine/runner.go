package engine

import (
	"context"
	"fmt"
	log "log/slog"
	"sync/atomic"
	"time"
)

// Command is an operator request applied between ticks.
type Command int

const (
	CommandReset Command = iota
)

// RunnerConfig tunes the driver loop.
type RunnerConfig struct {
	TickInterval    time.Duration
	ErrorCooldown   time.Duration
	ShutdownTimeout time.Duration
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		TickInterval:    100 * time.Millisecond,
		ErrorCooldown:   5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Runner owns the engine's goroutine. Commands and snapshots are the only
// way other goroutines reach the engine.
type Runner struct {
	engine   *Engine
	cfg      RunnerConfig
	commands chan Command
	snapshot atomic.Pointer[Snapshot]
}

func NewRunner(e *Engine, cfg RunnerConfig) *Runner {
	d := DefaultRunnerConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = d.TickInterval
	}
	if cfg.ErrorCooldown < 0 {
		cfg.ErrorCooldown = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
	r := &Runner{
		engine:   e,
		cfg:      cfg,
		commands: make(chan Command, 8),
	}
	r.publish()
	return r
}

// Submit queues cmd for the next tick boundary. Safe for concurrent use.
func (r *Runner) Submit(cmd Command) error {
	select {
	case r.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Snapshot returns the state published after the most recent tick.
func (r *Runner) Snapshot() Snapshot {
	return *r.snapshot.Load()
}

// Run ticks until ctx is cancelled, then performs the shutdown sequence.
func (r *Runner) Run(ctx context.Context) error {
	r.engine.Start(ctx)
	r.publish()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		r.step(ctx)

		select {
		case <-ctx.Done():
			r.shutdown(ctx)
			return nil
		case <-ticker.C:
		}
	}
}

// step runs one tick boundary. A queued command takes the whole step, so
// it is never followed by a second transition before the next boundary.
func (r *Runner) step(ctx context.Context) {
	if !r.drain(ctx) {
		if err := r.safeTick(ctx); err != nil && ctx.Err() == nil {
			r.handleFailure(ctx, err)
		}
	}
	r.publish()
}

// drain applies every queued command and reports whether any was applied.
func (r *Runner) drain(ctx context.Context) bool {
	applied := false
	for {
		select {
		case cmd := <-r.commands:
			switch cmd {
			case CommandReset:
				log.Info("Reset requested by operator")
				r.engine.Reset(ctx)
				applied = true
			default:
				log.Warn("Unknown command", "cmd", int(cmd))
			}
		default:
			return applied
		}
	}
}

func (r *Runner) safeTick(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return r.engine.Tick(ctx)
}

// handleFailure handles an unexpected tick failure: reset, surface it, cool down.
func (r *Runner) handleFailure(ctx context.Context, err error) {
	log.Error("Unexpected failure during tick", "state", r.engine.State(), "err", err)
	r.engine.Reset(ctx)
	r.engine.say(ctx, sourceSystem, fmt.Sprintf("An unexpected error occurred: %v", err))
	r.publish()

	if r.cfg.ErrorCooldown == 0 {
		return
	}
	t := time.NewTimer(r.cfg.ErrorCooldown)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *Runner) shutdown(ctx context.Context) {
	log.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ShutdownTimeout)
	defer cancel()
	r.engine.Shutdown(sctx)
	r.publish()
}

func (r *Runner) publish() {
	s := r.engine.Snapshot()
	r.snapshot.Store(&s)
}
