package tts

import "context"

// Silent is a Speaker for benches without audio output. The engine already
// logs every announcement.
type Silent struct{}

func (Silent) Say(ctx context.Context, _ string) error {
	return ctx.Err()
}
