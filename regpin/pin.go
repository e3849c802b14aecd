// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regpin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrRegister is returned by New when a register is missing.
	ErrRegister = errors.New("regpin: direction, output and input registers are required")
	// ErrNotImplemented is returned for features the registers cannot
	// provide.
	ErrNotImplemented = errors.New("regpin: not implemented")
)

// rmw serializes read-modify-write cycles; pins commonly share registers.
var rmw sync.Mutex

// Pin is a GPIO line controlled through its registers.
type Pin struct {
	name string
	bit  int
	mask uint32
	dir  Register
	out  Register
	in   Register
}

// New returns the Pin at bit of the registers dir, out and in. in may be the
// same Register as out.
func New(name string, dir, out, in Register, bit int) (*Pin, error) {
	if dir == nil || out == nil || in == nil {
		return nil, fmt.Errorf("%w: %s", ErrRegister, name)
	}
	if bit < 0 || bit > 31 {
		return nil, fmt.Errorf("regpin: %s: invalid bit %d", name, bit)
	}
	return &Pin{name: name, bit: bit, mask: 1 << uint(bit), dir: dir, out: out, in: in}, nil
}

func (p *Pin) String() string {
	return p.name
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.name
}

// Number implements pin.Pin. It is the bit index in the registers.
func (p *Pin) Number() int {
	return p.bit
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	if p.dir.Load()&p.mask != 0 {
		return "Out/" + p.level(p.out).String()
	}
	return "In/" + p.level(p.in).String()
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// In implements gpio.PinIn.
//
// The direction bit is cleared, then the output bit selects the pull-up.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return fmt.Errorf("%w: edge detection on %s", ErrNotImplemented, p.name)
	}
	switch pull {
	case gpio.PullUp:
		p.clear(p.dir)
		p.set(p.out)
	case gpio.Float:
		p.clear(p.dir)
		p.clear(p.out)
	case gpio.PullNoChange:
		p.clear(p.dir)
	default:
		return fmt.Errorf("%w: %s on %s", ErrNotImplemented, pull, p.name)
	}
	return nil
}

// Read implements gpio.PinIn. It is valid in both directions.
func (p *Pin) Read() gpio.Level {
	return p.level(p.in)
}

// WaitForEdge implements gpio.PinIn.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	if p.dir.Load()&p.mask != 0 {
		return gpio.PullNoChange
	}
	if p.out.Load()&p.mask != 0 {
		return gpio.PullUp
	}
	return gpio.Float
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out implements gpio.PinOut.
//
// The direction bit is set, then the output bit.
func (p *Pin) Out(l gpio.Level) error {
	p.set(p.dir)
	if l == gpio.High {
		p.set(p.out)
	} else {
		p.clear(p.out)
	}
	return nil
}

// PWM implements gpio.PinOut.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

func (p *Pin) level(r Register) gpio.Level {
	return gpio.Level(r.Load()&p.mask != 0)
}

func (p *Pin) set(r Register) {
	rmw.Lock()
	defer rmw.Unlock()
	r.Store(r.Load() | p.mask)
}

func (p *Pin) clear(r Register) {
	rmw.Lock()
	defer rmw.Unlock()
	r.Store(r.Load() &^ p.mask)
}

var _ gpio.PinIO = &Pin{}
