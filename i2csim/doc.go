// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2csim simulates an I²C bus at the electrical level, for testing
// software controllers without hardware.
//
// A Wire is a pair of open drain lines with pull-up resistors. The controller
// gets one gpio.PinIO per line; driving a pin low pulls the line to ground
// and releasing it (In with gpio.PullUp) lets the line float high unless a
// Target holds it low.
//
// Targets react to the edges of the lines like a real device: they sample
// SDA on the rising edge of SCL, change SDA only while SCL is low and may
// hold SCL low to stretch the clock. The payload of a transaction is handled
// by a Handler, for example a Memory.
//
// Time is virtual. The Clock implements bitbang.Delayer and every pin read
// costs Opts.PollCost, so tests are deterministic and do not sleep.
package i2csim
