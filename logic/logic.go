// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package logic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ErrFraming is returned by Decode when a start or stop condition interrupts
// a byte.
var ErrFraming = errors.New("logic: byte interrupted by a bus condition")

// Sample is the state of both lines from At until the next Sample.
type Sample struct {
	At  time.Duration
	SDA gpio.Level
	SCL gpio.Level
}

func (s Sample) String() string {
	return fmt.Sprintf("%s SDA=%s SCL=%s", s.At, s.SDA, s.SCL)
}

// Capture records the transitions of an I²C bus.
type Capture struct {
	mu      sync.Mutex
	samples []Sample
}

// Observe records the state of the lines at time at. Repeated states are
// dropped.
func (c *Capture) Observe(at time.Duration, sda, scl gpio.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.samples); n != 0 {
		if last := c.samples[n-1]; last.SDA == sda && last.SCL == scl {
			return
		}
	}
	c.samples = append(c.samples, Sample{At: at, SDA: sda, SCL: scl})
}

// Samples returns a copy of the recorded samples.
func (c *Capture) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sample(nil), c.samples...)
}

// Reset forgets everything but the current state of the lines.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.samples); n != 0 {
		c.samples = c.samples[n-1:]
		return
	}
	c.samples = nil
}

// Events decodes the recorded samples.
func (c *Capture) Events() ([]Event, error) {
	return Decode(c.Samples())
}

// Kind is the type of an Event.
type Kind int

const (
	Start Kind = iota
	Restart
	Byte
	Stop
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "START"
	case Restart:
		return "RESTART"
	case Byte:
		return "BYTE"
	case Stop:
		return "STOP"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a bus condition or a byte with its acknowledge bit.
type Event struct {
	Kind Kind
	// Value and Ack are only set for Byte.
	Value byte
	Ack   bool
	// At is when the condition happened or when the 9th clock of the byte
	// rose.
	At time.Duration
}

func (e Event) String() string {
	if e.Kind != Byte {
		return e.Kind.String()
	}
	if e.Ack {
		return fmt.Sprintf("0x%02x ACK", e.Value)
	}
	return fmt.Sprintf("0x%02x NACK", e.Value)
}

// Decode interprets a waveform as I²C traffic.
//
// Bits are sampled on the rising edge of SCL. A start or stop condition
// interrupting a byte is reported with ErrFraming, the partial byte is
// dropped and decoding continues. A single clock just before a condition is
// how controllers set up a repeated start or a stop and is not an error.
func Decode(samples []Sample) ([]Event, error) {
	var (
		events []Event
		err    error
		busy   bool
		bits   int
		v      byte
	)
	condition := func(k Kind, at time.Duration) {
		if bits > 1 && err == nil {
			err = fmt.Errorf("%w: %d bits before %s at %s", ErrFraming, bits, k, at)
		}
		bits, v = 0, 0
		events = append(events, Event{Kind: k, At: at})
	}
	for i := 1; i < len(samples); i++ {
		p, s := samples[i-1], samples[i]
		switch {
		case p.SCL == gpio.High && s.SCL == gpio.High && p.SDA != s.SDA:
			if s.SDA == gpio.Low {
				k := Start
				if busy {
					k = Restart
				}
				busy = true
				condition(k, s.At)
			} else if busy {
				busy = false
				condition(Stop, s.At)
			}
		case busy && p.SCL == gpio.Low && s.SCL == gpio.High:
			if bits < 8 {
				v <<= 1
				if s.SDA == gpio.High {
					v |= 1
				}
				bits++
				continue
			}
			events = append(events, Event{Kind: Byte, Value: v, Ack: s.SDA == gpio.Low, At: s.At})
			bits, v = 0, 0
		}
	}
	return events, err
}
