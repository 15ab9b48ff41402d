package audio

import (
	"bufio"
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxVolume is the pactl ceiling the ducker will ever set.
const maxVolume = 150

var volumeRe = regexp.MustCompile(`(\d+)\s*%`)

// sinkInput is one playback stream as reported by PulseAudio.
type sinkInput struct {
	ID     int
	Volume int
	App    string
}

// mixer is the slice of PulseAudio the ducker needs.
type mixer interface {
	SinkInputs(ctx context.Context) ([]sinkInput, error)
	SetVolume(ctx context.Context, id, percent int) error
}

// Ducker lowers other applications' playback while the appliance listens
// and brings it back afterwards. Streams owned by one of the keep names are
// never touched.
type Ducker struct {
	mix    mixer
	keep   map[string]bool
	floor  int
	factor float64
	fade   time.Duration

	mu    sync.Mutex
	saved map[int]int // nil unless ducked
}

// NewDucker ducks foreign streams to factor of their volume, never below
// floor percent, fading over fade.
func NewDucker(keep []string, floor int, factor float64, fade time.Duration) *Ducker {
	d := &Ducker{
		mix:    pactl{},
		keep:   make(map[string]bool, len(keep)),
		floor:  min(max(floor, 0), maxVolume),
		factor: factor,
		fade:   fade,
	}
	for _, name := range keep {
		d.keep[name] = true
	}
	return d
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saved != nil {
		return nil
	}

	inputs, err := d.mix.SinkInputs(ctx)
	if err != nil {
		return err
	}

	saved := make(map[int]int)
	var ramps []ramp
	for _, in := range inputs {
		if d.keep[in.App] {
			continue
		}
		saved[in.ID] = in.Volume
		ramps = append(ramps, ramp{id: in.ID, from: in.Volume, to: d.ducked(in.Volume)})
	}

	d.saved = saved
	log.Debug("Ducking playback", "streams", len(ramps))
	return d.apply(ctx, ramps)
}

// Restore returns every stream ducked by Duck to its earlier volume. Streams
// that appeared in between are left as they are.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saved == nil {
		return nil
	}
	saved := d.saved
	d.saved = nil

	inputs, err := d.mix.SinkInputs(ctx)
	if err != nil {
		return err
	}

	var ramps []ramp
	for _, in := range inputs {
		if to, ok := saved[in.ID]; ok && !d.keep[in.App] {
			ramps = append(ramps, ramp{id: in.ID, from: in.Volume, to: to})
		}
	}
	return d.apply(ctx, ramps)
}

func (d *Ducker) ducked(volume int) int {
	v := int(math.Round(float64(volume) * d.factor))
	return min(max(v, d.floor), maxVolume)
}

type ramp struct {
	id, from, to int
}

func (r ramp) at(frac float64) int {
	return int(math.Round(float64(r.from) + float64(r.to-r.from)*frac))
}

const fadeStep = 10 * time.Millisecond

// apply walks every ramp to its end over d.fade, one pactl call per stream
// per step.
func (d *Ducker) apply(ctx context.Context, ramps []ramp) error {
	if len(ramps) == 0 {
		return nil
	}

	steps := max(int(d.fade/fadeStep), 1)

	var tick <-chan time.Time
	if d.fade > 0 {
		t := time.NewTicker(d.fade / time.Duration(steps))
		defer t.Stop()
		tick = t.C
	}

	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		for _, r := range ramps {
			if err := d.mix.SetVolume(ctx, r.id, r.at(frac)); err != nil {
				return fmt.Errorf("sink input %d: %w", r.id, err)
			}
		}
		if i == steps || tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
	return nil
}

// pactl drives PulseAudio through its command-line client.
type pactl struct{}

func (pactl) SinkInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (pactl) SetVolume(ctx context.Context, id, percent int) error {
	percent = min(max(percent, 0), maxVolume)
	err := exec.CommandContext(ctx, "pactl", "set-sink-input-volume",
		strconv.Itoa(id), strconv.Itoa(percent)+"%").Run()
	if err != nil {
		return fmt.Errorf("pactl set-sink-input-volume: %w", err)
	}
	return nil
}

// parseSinkInputs reads `pactl list sink-inputs`. Only the first Volume line
// and the application.name property of each block are used.
func parseSinkInputs(text string) []sinkInput {
	var (
		res []sinkInput
		cur *sinkInput
	)
	flush := func() {
		if cur != nil && (cur.Volume != 0 || cur.App != "") {
			res = append(res, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if rest, ok := strings.CutPrefix(line, "Sink Input #"); ok {
			flush()
			if id, err := strconv.Atoi(rest); err == nil {
				cur = &sinkInput{ID: id}
			}
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Volume:") && cur.Volume == 0:
			if m := volumeRe.FindStringSubmatch(line); m != nil {
				cur.Volume, _ = strconv.Atoi(m[1])
			}
		case strings.HasPrefix(line, "application.name =") && cur.App == "":
			_, val, _ := strings.Cut(line, "=")
			cur.App = strings.Trim(strings.TrimSpace(val), `"`)
		}
	}
	flush()
	return res
}
