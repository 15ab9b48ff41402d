package engine

import (
	"context"
	"errors"
	"fmt"

	"wes/internal/wotd"
)

var (
	// ErrNoPayload means a delivery state was reached without a held word.
	ErrNoPayload = errors.New("no word payload held")
	// ErrUnknownState means the state scalar is outside the enum.
	ErrUnknownState = errors.New("unknown engine state")
	// ErrPanic wraps a recovered panic from inside a tick.
	ErrPanic = errors.New("tick panicked")
	// ErrQueueFull is returned by Runner.Submit when commands back up.
	ErrQueueFull = errors.New("command queue full")
)

// FailureKind classifies why a generation call did not produce a result.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureCanceled  FailureKind = "canceled"
	FailureMalformed FailureKind = "malformed"
	FailureBackend   FailureKind = "backend"
)

// GenerationError is the typed failure of a word or etymology call.
type GenerationError struct {
	Topic string
	Kind  FailureKind
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %s: %v", e.Topic, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func classifyGeneration(topic string, err error) *GenerationError {
	ge := &GenerationError{Topic: topic, Kind: FailureBackend, Err: err}
	switch {
	case errors.Is(err, context.Canceled):
		ge.Kind = FailureCanceled
	case errors.Is(err, context.DeadlineExceeded):
		ge.Kind = FailureTimeout
	case errors.Is(err, wotd.ErrIncompleteResponse), errors.Is(err, wotd.ErrIncompletePayload):
		ge.Kind = FailureMalformed
	}
	return ge
}
