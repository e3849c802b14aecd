// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitbang implements an I²C controller in software on top of two
// GPIO lines.
//
// It is meant for boards where no I²C peripheral is free, or where the
// peripheral is wired to the wrong pins. Any pair of gpio.PinIO can be used as
// long as they can be switched between output low and input with pull-up,
// which emulates the open drain output I²C requires.
//
// The Bus implements i2c.BusCloser so every periph device driver can be used
// on top of it.
//
// # Timing
//
// The bus speed is set by the half cycle delay, 5µs by default, which gives a
// clock of at most 100kHz. The delay is a busy wait and is never compensated
// for the time spent toggling the pins, so the effective clock is always a bit
// slower.
//
// Clock stretching is supported: after releasing SCL the controller polls it
// until it reads high. The number of polls is bounded by Opts.StretchPolls so
// the maximum stall depends on the cost of a pin read on the host, not on
// wall clock time. When the budget is exhausted the transfer fails with
// ErrClockStretch.
//
// # Limitations
//
// Only 7 bit addressing is supported. There is no multi-controller
// arbitration; the two pins must be owned exclusively by one Bus.
package bitbang
