package display

import (
	"context"
	"strconv"
	"sync"

	"wes/internal/engine"
	"wes/pkg/protocol"
)

// Sender is the write side of a protocol.Link.
type Sender interface {
	Send(ctx context.Context, to, verb, noun string, args ...string) error
}

// Bus sends status frames to a remote panel shard:
//
//	DISPLAY:STATUS:<COLOR>:<LABEL>:<PROX>:WES
//	DISPLAY:BLANK:OFF:WES
//
// Identical consecutive frames are sent once.
type Bus struct {
	link Sender
	to   string

	mu   sync.Mutex
	last string
}

func NewBus(link Sender, to string) *Bus {
	if to == "" {
		to = "DISPLAY"
	}
	return &Bus{link: link, to: to}
}

func (b *Bus) Render(ctx context.Context, s engine.Status) error {
	color := s.Color.Hue()
	label := protocol.Tokenize(s.Label)
	prox := strconv.Itoa(s.Proximity)

	key := color + ":" + label + ":" + prox
	b.mu.Lock()
	defer b.mu.Unlock()
	if key == b.last {
		return nil
	}

	if err := b.link.Send(ctx, b.to, "STATUS", color, label, prox); err != nil {
		return err
	}
	b.last = key
	return nil
}

func (b *Bus) Blank(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = ""
	return b.link.Send(ctx, b.to, "BLANK", "OFF")
}
