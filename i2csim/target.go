// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2csim

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/GermanBionicSystems/softi2c/logic"
)

// Handler serves the payload of the transactions addressed to a Target.
type Handler interface {
	// Begin is called when the address matched, after every start or
	// repeated start.
	Begin(read bool)
	// Receive is called for every byte written by the controller. Returning
	// false does not acknowledge it.
	Receive(b byte) bool
	// Transmit returns the next byte to send to the controller.
	Transmit() byte
	// End is called on the stop condition.
	End()
}

type state int

const (
	idle state = iota
	addressing
	receiving
	transmitting
	// ignoring waits for the next start or stop.
	ignoring
)

// Target is a device on a Wire.
//
// The fields must be set before the Target is added to a Wire.
type Target struct {
	// Addr is the 7 bit address the Target answers to.
	Addr uint16
	// Handler serves the payload. nil acknowledges everything and reads
	// 0xFF.
	Handler Handler
	// NACKAfter refuses the nth byte written in a transaction, counting
	// from 1 after the address. 0 disables it.
	NACKAfter int
	// Stretch is the number of SCL reads during which the Target holds SCL
	// low after each falling edge while it is addressed.
	Stretch int

	// Log is the traffic seen by the Target. Bytes are only logged while it
	// is addressed, with its own acknowledge bit, or the controller's one
	// for transmitted bytes. Event.At is not set.
	Log []logic.Event

	state    state
	shift    byte
	bits     int
	ackPhase bool
	read     bool
	acked    bool
	out      byte
	rx       int
	active   bool

	sdaLow bool
	hold   int
}

func (t *Target) handler() Handler {
	if t.Handler == nil {
		return discard{}
	}
	return t.Handler
}

func (t *Target) holds(line int) bool {
	if line == lineSDA {
		return t.sdaLow
	}
	return t.hold > 0
}

// poll is called on every read of SCL by the controller.
func (t *Target) poll() {
	if t.hold > 0 {
		t.hold--
	}
}

func (t *Target) edge(sda0, scl0, sda, scl gpio.Level) {
	switch {
	case scl0 == gpio.High && scl == gpio.High && sda0 != sda:
		if sda == gpio.Low {
			t.start()
		} else {
			t.stop()
		}
	case scl0 == gpio.Low && scl == gpio.High:
		t.rise(sda)
	case scl0 == gpio.High && scl == gpio.Low:
		t.fall()
	}
}

func (t *Target) start() {
	k := logic.Start
	if t.state != idle {
		k = logic.Restart
	}
	t.Log = append(t.Log, logic.Event{Kind: k})
	t.state = addressing
	t.shift, t.bits, t.rx = 0, 0, 0
	t.ackPhase = false
	t.sdaLow = false
}

func (t *Target) stop() {
	if t.state == idle {
		return
	}
	if t.active {
		t.handler().End()
		t.active = false
	}
	t.Log = append(t.Log, logic.Event{Kind: logic.Stop})
	t.state = idle
	t.sdaLow = false
	t.hold = 0
}

func (t *Target) rise(sda gpio.Level) {
	switch t.state {
	case addressing, receiving:
		if t.ackPhase {
			return
		}
		t.shift <<= 1
		if sda == gpio.High {
			t.shift |= 1
		}
		t.bits++
	case transmitting:
		if t.ackPhase {
			t.acked = sda == gpio.Low
			t.Log = append(t.Log, logic.Event{Kind: logic.Byte, Value: t.out, Ack: t.acked})
		}
	}
}

func (t *Target) fall() {
	switch t.state {
	case idle, ignoring:
		return
	}
	defer func() {
		if t.Stretch > 0 && t.state != ignoring {
			t.hold = t.Stretch
		}
	}()

	if t.ackPhase {
		t.ackPhase = false
		t.sdaLow = false
		switch t.state {
		case addressing:
			if t.read {
				t.state = transmitting
				t.load()
			} else {
				t.state = receiving
			}
		case transmitting:
			if t.acked {
				t.load()
			} else {
				t.state = ignoring
			}
		}
		return
	}

	switch t.state {
	case addressing:
		if t.bits < 8 {
			return
		}
		t.bits = 0
		if uint16(t.shift>>1) != t.Addr {
			t.Log = append(t.Log, logic.Event{Kind: logic.Byte, Value: t.shift})
			t.state = ignoring
			return
		}
		t.read = t.shift&1 == 1
		t.handler().Begin(t.read)
		t.active = true
		t.ackPhase = true
		t.sdaLow = true
		t.Log = append(t.Log, logic.Event{Kind: logic.Byte, Value: t.shift, Ack: true})
	case receiving:
		if t.bits < 8 {
			return
		}
		t.bits = 0
		t.rx++
		ack := t.NACKAfter != t.rx && t.handler().Receive(t.shift)
		t.ackPhase = true
		t.sdaLow = ack
		t.Log = append(t.Log, logic.Event{Kind: logic.Byte, Value: t.shift, Ack: ack})
		if !ack {
			// The controller is expected to stop; anything else is ignored.
			t.ackPhase = false
			t.state = ignoring
		}
	case transmitting:
		if t.bits < 8 {
			t.sdaLow = t.out&(0x80>>t.bits) == 0
			t.bits++
			return
		}
		t.sdaLow = false
		t.ackPhase = true
	}
}

// load fetches the next byte to transmit and puts its MSB on SDA.
func (t *Target) load() {
	t.out = t.handler().Transmit()
	t.sdaLow = t.out&0x80 == 0
	t.bits = 1
}

type discard struct{}

func (discard) Begin(bool)        {}
func (discard) Receive(byte) bool { return true }
func (discard) Transmit() byte    { return 0xFF }
func (discard) End()              {}
