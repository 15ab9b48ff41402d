// Package notify plays the short cue that tells the user the appliance is
// listening.
package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Chime plays an mp3 or wav file through the default output.
type Chime struct {
	path string

	initOnce sync.Once
	initErr  error
	rate     beep.SampleRate
}

func NewChime(path string) *Chime {
	return &Chime{path: path}
}

// Play blocks until the cue finished or ctx is done.
func (c *Chime) Play(ctx context.Context) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := decode(f, c.path)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime %s: %w", c.path, err)
	}
	defer streamer.Close()

	c.initOnce.Do(func() {
		c.rate = format.SampleRate
		c.initErr = speaker.Init(c.rate, c.rate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != c.rate {
		s = beep.Resample(4, format.SampleRate, c.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wav.Decode(f)
	case ".mp3":
		return mp3.Decode(f)
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported chime format %q", filepath.Ext(path))
}
