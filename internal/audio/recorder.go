// Package audio captures microphone input and quiets other playback while
// the appliance listens.
package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrNoSpeech is returned when the deadline passes before anyone spoke.
var ErrNoSpeech = errors.New("no speech before deadline")

const SampleRate = 16000

type RecorderConfig struct {
	FrameSize       int           // samples per read; 320 = 20 ms
	SilenceRMS      float64       // frames at or below are silence
	TrailingSilence time.Duration // silence after speech that ends the take
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		FrameSize:       320,
		SilenceRMS:      0.015,
		TrailingSilence: 600 * time.Millisecond,
	}
}

type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultRecorderConfig().FrameSize
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record captures one utterance from the default input: it starts keeping
// audio at the first loud frame and stops after TrailingSilence, at maxDur,
// or when ctx is done.
func (r *Recorder) Record(ctx context.Context, maxDur time.Duration) ([]float32, error) {
	buf := make([]float32, r.cfg.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	ep := newEndpointer(r.cfg, maxDur)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		if ep.feed(buf) {
			break
		}
	}
	return ep.result()
}

// endpointer decides which frames belong to the utterance.
type endpointer struct {
	threshold      float64
	frameDur       time.Duration
	maxFrames      int
	silenceFrames  int
	trailingFrames int
	frames         int
	speaking       bool
	out            []float32
}

func newEndpointer(cfg RecorderConfig, maxDur time.Duration) *endpointer {
	frameDur := time.Duration(cfg.FrameSize) * time.Second / SampleRate
	trailing := int(cfg.TrailingSilence / frameDur)
	if trailing < 1 {
		trailing = 1
	}
	return &endpointer{
		threshold:      cfg.SilenceRMS,
		frameDur:       frameDur,
		maxFrames:      int(maxDur / frameDur),
		trailingFrames: trailing,
		out:            make([]float32, 0, SampleRate*3),
	}
}

// feed consumes one frame and reports whether recording is finished.
func (e *endpointer) feed(frame []float32) bool {
	e.frames++

	if frameRMS(frame) > e.threshold {
		e.speaking = true
		e.silenceFrames = 0
		e.out = append(e.out, frame...)
	} else if e.speaking {
		e.silenceFrames++
		e.out = append(e.out, frame...)
		if e.silenceFrames >= e.trailingFrames {
			return true
		}
	}
	return e.frames >= e.maxFrames
}

func (e *endpointer) result() ([]float32, error) {
	if !e.speaking {
		return nil, ErrNoSpeech
	}
	return e.out, nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
