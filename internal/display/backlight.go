package display

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"wes/internal/engine"
)

// Backlight drives the panel backlight pin: high while a status is shown,
// low once blanked.
type Backlight struct {
	pin gpio.PinOut

	mu sync.Mutex
	on bool
}

// OpenBacklight looks up a GPIO by name, e.g. "GPIO18".
func OpenBacklight(name string) (*Backlight, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return NewBacklight(pin), nil
}

func NewBacklight(pin gpio.PinOut) *Backlight {
	return &Backlight{pin: pin}
}

func (b *Backlight) Render(context.Context, engine.Status) error {
	return b.set(true)
}

func (b *Backlight) Blank(context.Context) error {
	return b.set(false)
}

func (b *Backlight) set(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.on == on {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := b.pin.Out(level); err != nil {
		return fmt.Errorf("backlight %s: %w", b.pin, err)
	}
	b.on = on
	return nil
}
