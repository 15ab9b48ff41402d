// Package sensor provides proximity sources for the engine.
package sensor

import (
	"encoding/binary"
	"fmt"
	log "log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	DefaultAddr = 0x60

	regPSConf = 0x03 // PS_CONF1 (low byte), PS_CONF2 (high byte)
	regPSData = 0x08
	regID     = 0x0C

	deviceID = 0x0186

	// PS_CONF1: 8T integration, sensor powered on. PS_CONF2: 16-bit output.
	psConf1 = 0x0E
	psConf2 = 0x08
)

// VCNL4040 reads the proximity channel of a Vishay VCNL4040. A failed read
// returns the last value that succeeded.
type VCNL4040 struct {
	dev    *i2c.Dev
	closer func() error

	mu      sync.Mutex
	last    int
	failing bool
}

// Open initialises the host drivers, opens the named I2C bus ("" for the
// first one) and configures the sensor at addr.
func Open(busName string, addr uint16) (*VCNL4040, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	s, err := New(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	s.closer = bus.Close
	return s, nil
}

// New configures a VCNL4040 on an already opened bus.
func New(bus i2c.Bus, addr uint16) (*VCNL4040, error) {
	s := &VCNL4040{dev: &i2c.Dev{Bus: bus, Addr: addr}}

	id, err := s.readReg(regID)
	if err != nil {
		return nil, fmt.Errorf("vcnl4040: read id: %w", err)
	}
	if id != deviceID {
		return nil, fmt.Errorf("vcnl4040: unexpected device id %#04x at %#02x", id, addr)
	}

	if err := s.dev.Tx([]byte{regPSConf, psConf1, psConf2}, nil); err != nil {
		return nil, fmt.Errorf("vcnl4040: enable proximity: %w", err)
	}
	return s, nil
}

// Read returns the raw 16-bit proximity count.
func (s *VCNL4040) Read() int {
	v, err := s.readReg(regPSData)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if !s.failing {
			log.Warn("Proximity read failed, holding last value", "last", s.last, "err", err)
			s.failing = true
		}
		return s.last
	}
	if s.failing {
		log.Info("Proximity sensor recovered")
		s.failing = false
	}
	s.last = int(v)
	return s.last
}

func (s *VCNL4040) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *VCNL4040) readReg(reg byte) (uint16, error) {
	var buf [2]byte
	if err := s.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}
