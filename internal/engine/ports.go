package engine

import (
	"context"
	"time"

	"wes/internal/wotd"
)

// ProximitySource returns the latest proximity magnitude. It never blocks
// and masks transient sensor errors by returning the last known value.
type ProximitySource interface {
	Read() int
}

// ListenResult is the outcome of one bounded voice confirmation.
type ListenResult int

const (
	Heard ListenResult = iota
	NotHeard
	TimedOut
	ListenError
)

func (r ListenResult) String() string {
	switch r {
	case Heard:
		return "heard"
	case NotHeard:
		return "not-heard"
	case TimedOut:
		return "timed-out"
	case ListenError:
		return "error"
	}
	return "unknown"
}

// VoiceConfirmer listens for keyword and must return within timeout.
// A non-nil error is reported together with ListenError.
type VoiceConfirmer interface {
	ListenFor(ctx context.Context, keyword string, timeout time.Duration) (ListenResult, error)
}

// Speaker announces text. Errors are reported but never change engine state.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Generator produces the day's word and etymology passages.
type Generator interface {
	GenerateWord(ctx context.Context, date wotd.Date) (wotd.WordPayload, error)
	GenerateEtymology(ctx context.Context, word string) (string, error)
}

// StatusDisplay shows the presenter's projection. Blank turns the panel off
// and is the last call made on shutdown.
type StatusDisplay interface {
	Render(ctx context.Context, s Status) error
	Blank(ctx context.Context) error
}

// CacheStore persists the day's word so a restart on the same day does not
// generate again. Optional.
type CacheStore interface {
	Save(ctx context.Context, date wotd.Date, p wotd.WordPayload) error
}
