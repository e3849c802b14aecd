// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"time"

	"periph.io/x/host/v3/cpu"
)

// Delayer waits for at least the requested duration without yielding.
type Delayer interface {
	Delay(d time.Duration)
}

// Spin busy waits on the CPU. It is the default Delayer.
type Spin struct{}

// Delay implements Delayer.
func (Spin) Delay(d time.Duration) {
	cpu.Nanospin(d)
}

// DelayFunc adapts a function to Delayer.
type DelayFunc func(d time.Duration)

// Delay implements Delayer.
func (f DelayFunc) Delay(d time.Duration) {
	f(d)
}
