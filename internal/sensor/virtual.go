package sensor

import (
	"sync"
	"time"
)

// Virtual is a proximity source driven by software: a steady level plus
// short pulses from the control socket.
type Virtual struct {
	mu         sync.Mutex
	level      int
	pulse      int
	pulseUntil time.Time
	now        func() time.Time
}

func NewVirtual() *Virtual {
	return &Virtual{now: time.Now}
}

// Set changes the steady level.
func (v *Virtual) Set(level int) {
	v.mu.Lock()
	v.level = level
	v.mu.Unlock()
}

// Pulse reports value for d, then falls back to the steady level.
func (v *Virtual) Pulse(value int, d time.Duration) {
	v.mu.Lock()
	v.pulse = value
	v.pulseUntil = v.now().Add(d)
	v.mu.Unlock()
}

func (v *Virtual) Read() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.now().Before(v.pulseUntil) && v.pulse > v.level {
		return v.pulse
	}
	return v.level
}
