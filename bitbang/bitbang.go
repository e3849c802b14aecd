// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// MaxSpeed is the fastest clock SetSpeed accepts. Faster buses cannot be
// produced reliably with a busy wait.
const MaxSpeed = physic.MegaHertz

var (
	// ErrNoPin is returned when a Bus is built without both of its pins.
	ErrNoPin = errors.New("bitbang: SDA and SCL pins are required")
	// ErrAddress is returned for addresses that do not fit in 7 bits.
	ErrAddress = errors.New("bitbang: invalid 7 bit address")
	// ErrSpeed is returned by SetSpeed for an unsupported frequency.
	ErrSpeed = errors.New("bitbang: unsupported bus speed")
	// ErrNoDevice signals that no device acknowledged the address byte.
	ErrNoDevice = errors.New("bitbang: no device acknowledged the address")
	// ErrNACK signals that a data byte was not acknowledged.
	ErrNACK = errors.New("bitbang: byte not acknowledged")
	// ErrEmptyRead is returned by ReadMessage for an empty buffer. A target
	// that acknowledged a read drives SDA until a byte is clocked out and
	// not acknowledged, so the stop could not be sent.
	ErrEmptyRead = errors.New("bitbang: read of zero bytes")
	// ErrClockStretch signals that SCL was still held low after
	// Opts.StretchPolls reads.
	ErrClockStretch = errors.New("bitbang: clock stretching timeout")
)

// DebugF the debug function type.
type DebugF func(string, ...interface{})

// Opts holds the configuration of a Bus.
type Opts struct {
	// Delay is the half period of the clock.
	Delay time.Duration
	// StretchPolls is the number of SCL reads done while waiting for a
	// target that stretches the clock. The resulting maximum stall is
	// StretchPolls times the cost of gpio.PinIO.Read, which depends on the
	// host CPU and on the pin driver.
	StretchPolls int
	// Delayer implements the busy wait. Defaults to Spin.
	Delayer Delayer
	// Name is returned by String. Defaults to a name built from the pins.
	Name string
	// Debug receives a line for every failed transaction.
	Debug DebugF
}

// DefaultOpts is a 100kHz bus that tolerates 10000 polls of clock
// stretching.
var DefaultOpts = Opts{
	Delay:        5 * time.Microsecond,
	StretchPolls: 10000,
}

// Bus is an I²C controller driving two GPIO lines.
type Bus struct {
	sda     gpio.PinIO
	scl     gpio.PinIO
	delayer Delayer
	polls   int
	name    string
	debug   DebugF

	mu    sync.Mutex
	delay time.Duration
	// half is the delay in use by the transaction in progress.
	half time.Duration
	// err is the first pin error of the transaction in progress.
	err error
}

// New returns a Bus on the sda and scl pins.
//
// Both pins are first set as outputs driven high and then released, so the
// bus is idle when New returns.
func New(sda, scl gpio.PinIO, opts *Opts) (*Bus, error) {
	if sda == nil || scl == nil {
		return nil, ErrNoPin
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	b := &Bus{
		sda:     sda,
		scl:     scl,
		delayer: opts.Delayer,
		polls:   opts.StretchPolls,
		name:    opts.Name,
		debug:   opts.Debug,
		delay:   opts.Delay,
	}
	if b.delay <= 0 {
		b.delay = DefaultOpts.Delay
	}
	if b.polls <= 0 {
		b.polls = DefaultOpts.StretchPolls
	}
	if b.delayer == nil {
		b.delayer = Spin{}
	}
	if b.debug == nil {
		b.debug = noop
	}
	if b.name == "" {
		b.name = fmt.Sprintf("bitbang(SDA=%s, SCL=%s)", sda, scl)
	}
	for _, p := range []gpio.PinIO{sda, scl} {
		if err := p.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("bitbang: %s: %w", p, err)
		}
	}
	b.release(scl)
	b.release(sda)
	if b.err != nil {
		return nil, b.err
	}
	return b, nil
}

// String implements conn.Resource.
func (b *Bus) String() string {
	return b.name
}

// SetDelay sets the half period of the clock. It takes effect on the next
// transaction. A non-positive d restores DefaultOpts.Delay, like a zero
// Opts.Delay does in New.
func (b *Bus) SetDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultOpts.Delay
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// Delay returns the half period of the clock.
func (b *Bus) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay
}

// SetSpeed implements i2c.Bus.
//
// The half cycle delay is set to half the period of f.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > MaxSpeed {
		return fmt.Errorf("%w: %s", ErrSpeed, f)
	}
	b.SetDelay(f.Period() / 2)
	return nil
}

// Tx implements i2c.Bus.
//
// When both w and r are set, w is written then r is read after a repeated
// start, without releasing the bus in between. When both are empty only the
// address is sent, which is how devices are probed.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%w: %#x", ErrAddress, addr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.begin()
	var err error
	if len(r) == 0 {
		err = b.write(addr, w)
	} else {
		if len(w) != 0 {
			err = b.write(addr, w)
		}
		if err == nil {
			err = b.read(addr, r)
		}
	}
	return b.end(addr, err)
}

// WriteMessage writes w to the device at addr in a single transaction.
//
// The payload is only sent when the address is acknowledged and the transfer
// stops at the first byte that is not acknowledged. A stop condition is
// always sent.
func (b *Bus) WriteMessage(addr uint16, w []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%w: %#x", ErrAddress, addr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.begin()
	return b.end(addr, b.write(addr, w))
}

// ReadMessage fills r from the device at addr in a single transaction.
//
// Every byte is acknowledged except the last one, which tells the device to
// stop sending. A stop condition is always sent. An empty r is refused with
// ErrEmptyRead before the bus is touched.
func (b *Bus) ReadMessage(addr uint16, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%w: %#x", ErrAddress, addr)
	}
	if len(r) == 0 {
		return ErrEmptyRead
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.begin()
	return b.end(addr, b.read(addr, r))
}

// Scan probes every non reserved address, 0x08 to 0x77, and returns the ones
// that were acknowledged.
func (b *Bus) Scan() ([]uint16, error) {
	var found []uint16
	for addr := uint16(0x08); addr <= 0x77; addr++ {
		err := b.WriteMessage(addr, nil)
		if err == nil {
			found = append(found, addr)
			continue
		}
		if !errors.Is(err, ErrNoDevice) {
			return found, err
		}
	}
	return found, nil
}

// Close implements io.Closer.
//
// Both lines are released and the pins halted.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
	b.release(b.scl)
	b.release(b.sda)
	err := b.err
	for _, p := range []gpio.PinIO{b.scl, b.sda} {
		if herr := p.Halt(); herr != nil && err == nil {
			err = fmt.Errorf("bitbang: %s: %w", p, herr)
		}
	}
	return err
}

// SCL implements i2c.Pins.
func (b *Bus) SCL() gpio.PinIO {
	return b.scl
}

// SDA implements i2c.Pins.
func (b *Bus) SDA() gpio.PinIO {
	return b.sda
}

func (b *Bus) begin() {
	b.half = b.delay
	b.err = nil
}

// end sends the stop condition and returns the first error of the
// transaction.
func (b *Bus) end(addr uint16, err error) error {
	if serr := b.stop(); err == nil {
		err = serr
	}
	if b.err != nil {
		err = b.err
	}
	if err != nil {
		b.debug("%s: %#02x: %v", b.name, addr, err)
	}
	return err
}

// write sends the start condition, the address with the write bit and w.
func (b *Bus) write(addr uint16, w []byte) error {
	if err := b.start(); err != nil {
		return err
	}
	if err := b.address(addr, 0); err != nil {
		return err
	}
	for i, v := range w {
		ack, err := b.writeByte(v)
		if err != nil {
			return err
		}
		if !ack {
			return fmt.Errorf("%w: byte %d of %d to %#02x", ErrNACK, i+1, len(w), addr)
		}
	}
	return nil
}

// read sends the start condition, the address with the read bit and fills
// r. When a write preceded it in the same transaction, the start is a
// repeated start.
func (b *Bus) read(addr uint16, r []byte) error {
	if err := b.start(); err != nil {
		return err
	}
	if err := b.address(addr, 1); err != nil {
		return err
	}
	for i := range r {
		v, err := b.readByte(i < len(r)-1)
		if err != nil {
			return err
		}
		r[i] = v
	}
	return nil
}

func (b *Bus) address(addr uint16, dir byte) error {
	ack, err := b.writeByte(byte(addr<<1) | dir)
	if err != nil {
		return err
	}
	if !ack {
		return fmt.Errorf("%w: %#02x", ErrNoDevice, addr)
	}
	return nil
}

func noop(string, ...interface{}) {}

var _ i2c.BusCloser = &Bus{}
var _ i2c.Pins = &Bus{}
