// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2csim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrNotImplemented is returned for pin features a bus line cannot have.
	ErrNotImplemented = errors.New("i2csim: not implemented")
	// ErrPull is returned when the controller asks for a pull down.
	ErrPull = errors.New("i2csim: lines are pulled up")
)

const (
	lineSDA = iota
	lineSCL
)

// Probe observes every change of the lines.
type Probe interface {
	Observe(at time.Duration, sda, scl gpio.Level)
}

// Opts represents the options of a Wire.
type Opts struct {
	// PollCost is the virtual time spent by each read of a pin.
	PollCost time.Duration
}

// DefaultOpts charges 100ns per pin read.
var DefaultOpts = Opts{PollCost: 100 * time.Nanosecond}

// Wire is an I²C bus with its pull-ups.
type Wire struct {
	clock *Clock
	cost  time.Duration
	sda   *linePin
	scl   *linePin

	mu      sync.Mutex
	ctrl    [2]bool
	level   [2]gpio.Level
	targets []*Target
	probes  []Probe
}

// New returns an idle Wire.
func New(opts *Opts) *Wire {
	if opts == nil {
		opts = &DefaultOpts
	}
	w := &Wire{
		clock: &Clock{},
		cost:  opts.PollCost,
		level: [2]gpio.Level{gpio.High, gpio.High},
	}
	w.sda = &linePin{w: w, line: lineSDA, name: "SIM_SDA"}
	w.scl = &linePin{w: w, line: lineSCL, name: "SIM_SCL"}
	return w
}

func (w *Wire) String() string {
	return "i2csim"
}

// Clock returns the virtual time source of the Wire.
func (w *Wire) Clock() *Clock {
	return w.clock
}

// SDA returns the controller pin of the data line.
func (w *Wire) SDA() gpio.PinIO {
	return w.sda
}

// SCL returns the controller pin of the clock line.
func (w *Wire) SCL() gpio.PinIO {
	return w.scl
}

// Add connects a target to the bus.
func (w *Wire) Add(t *Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets = append(w.targets, t)
}

// Attach connects a probe to the bus. It immediately observes the current
// state of the lines.
func (w *Wire) Attach(p Probe) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.probes = append(w.probes, p)
	p.Observe(w.clock.Now(), w.level[lineSDA], w.level[lineSCL])
}

// Levels returns the state of the lines.
func (w *Wire) Levels() (sda, scl gpio.Level) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.level[lineSDA], w.level[lineSCL]
}

// Released returns true when the controller drives neither line.
func (w *Wire) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.ctrl[lineSDA] && !w.ctrl[lineSCL]
}

func (w *Wire) drive(line int, low bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctrl[line] = low
	w.settle()
}

func (w *Wire) read(line int) gpio.Level {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock.Delay(w.cost)
	if line == lineSCL {
		for _, t := range w.targets {
			t.poll()
		}
		w.settle()
	}
	return w.level[line]
}

// settle resolves both lines and notifies the probes and targets until no
// target reacts anymore.
func (w *Wire) settle() {
	for {
		next := [2]gpio.Level{gpio.High, gpio.High}
		for line := range next {
			if w.ctrl[line] {
				next[line] = gpio.Low
				continue
			}
			for _, t := range w.targets {
				if t.holds(line) {
					next[line] = gpio.Low
					break
				}
			}
		}
		if next == w.level {
			return
		}
		prev := w.level
		w.level = next
		now := w.clock.Now()
		for _, p := range w.probes {
			p.Observe(now, next[lineSDA], next[lineSCL])
		}
		for _, t := range w.targets {
			t.edge(prev[lineSDA], prev[lineSCL], next[lineSDA], next[lineSCL])
		}
	}
}

// linePin is the controller side of a line.
type linePin struct {
	w    *Wire
	line int
	name string
}

func (p *linePin) String() string {
	return p.name
}

func (p *linePin) Name() string {
	return p.name
}

func (p *linePin) Number() int {
	return p.line
}

func (p *linePin) Function() string {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	if p.w.ctrl[p.line] {
		return "Out/Low"
	}
	return "In/PullUp"
}

func (p *linePin) Halt() error {
	return nil
}

// In releases the line. Only gpio.PullUp and gpio.Float are accepted since
// the pull-up resistors are part of the bus.
func (p *linePin) In(pull gpio.Pull, edge gpio.Edge) error {
	if pull == gpio.PullDown {
		return ErrPull
	}
	if edge != gpio.NoEdge {
		return fmt.Errorf("%w: edge detection on %s", ErrNotImplemented, p.name)
	}
	p.w.drive(p.line, false)
	return nil
}

func (p *linePin) Read() gpio.Level {
	return p.w.read(p.line)
}

func (p *linePin) WaitForEdge(timeout time.Duration) bool {
	return false
}

func (p *linePin) Pull() gpio.Pull {
	return gpio.PullUp
}

func (p *linePin) DefaultPull() gpio.Pull {
	return gpio.PullUp
}

// Out drives the line low. A high level only releases it since the line is
// open drain.
func (p *linePin) Out(l gpio.Level) error {
	p.w.drive(p.line, l == gpio.Low)
	return nil
}

func (p *linePin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

var _ gpio.PinIO = &linePin{}
