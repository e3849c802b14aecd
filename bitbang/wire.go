// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// driveLow pulls the line to ground.
func (b *Bus) driveLow(p gpio.PinIO) {
	if err := p.Out(gpio.Low); err != nil && b.err == nil {
		b.err = fmt.Errorf("bitbang: %s: %w", p, err)
	}
}

// release lets the pull-up bring the line high, unless a device holds it
// low.
func (b *Bus) release(p gpio.PinIO) {
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil && b.err == nil {
		b.err = fmt.Errorf("bitbang: %s: %w", p, err)
	}
}

func (b *Bus) wait() {
	b.delayer.Delay(b.half)
}

// clockHigh releases SCL and polls it until it reads high, which is where a
// target stretches the clock.
func (b *Bus) clockHigh() error {
	b.release(b.scl)
	for n := b.polls; n > 0; n-- {
		if b.scl.Read() == gpio.High {
			return nil
		}
	}
	return ErrClockStretch
}

// writeByte clocks v out MSB first and returns true when the receiver pulled
// SDA low on the 9th clock.
//
// SCL is left low.
func (b *Bus) writeByte(v byte) (bool, error) {
	for range 8 {
		b.driveLow(b.scl)
		b.wait()
		if v&0x80 != 0 {
			b.release(b.sda)
		} else {
			b.driveLow(b.sda)
		}
		b.wait()
		if err := b.clockHigh(); err != nil {
			return false, err
		}
		b.wait()
		v <<= 1
	}

	b.driveLow(b.scl)
	b.release(b.sda)
	b.wait()
	if err := b.clockHigh(); err != nil {
		return false, err
	}
	b.wait()
	ack := b.sda.Read() == gpio.Low
	b.driveLow(b.scl)
	return ack, b.err
}

// readByte clocks in a byte MSB first, then acknowledges it when ack is true.
// The last byte of a read must not be acknowledged so the target stops
// driving SDA.
//
// SCL is left low and SDA released.
func (b *Bus) readByte(ack bool) (byte, error) {
	var v byte
	b.release(b.sda)
	for range 8 {
		b.driveLow(b.scl)
		b.wait()
		if err := b.clockHigh(); err != nil {
			return 0, err
		}
		b.wait()
		v <<= 1
		if b.sda.Read() == gpio.High {
			v |= 1
		}
	}

	b.driveLow(b.scl)
	if ack {
		b.driveLow(b.sda)
	} else {
		b.release(b.sda)
	}
	b.wait()
	if err := b.clockHigh(); err != nil {
		return 0, err
	}
	b.wait()
	b.driveLow(b.scl)
	b.release(b.sda)
	return v, b.err
}

// start emits a start condition: SDA falls while SCL is high. From an idle
// bus both lines are already released; in the middle of a transaction SCL is
// low and SDA is released first, which makes it a repeated start.
//
// SCL is left low.
func (b *Bus) start() error {
	b.release(b.sda)
	b.wait()
	if err := b.clockHigh(); err != nil {
		return err
	}
	b.wait()
	b.driveLow(b.sda)
	b.wait()
	b.driveLow(b.scl)
	return b.err
}

// stop emits a stop condition: SDA rises while SCL is high. Both lines are
// released afterward even when SCL is held low by a target.
func (b *Bus) stop() error {
	b.driveLow(b.scl)
	b.driveLow(b.sda)
	b.wait()
	err := b.clockHigh()
	b.wait()
	b.release(b.sda)
	b.wait()
	return err
}
