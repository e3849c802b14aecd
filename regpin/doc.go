// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package regpin exposes a GPIO line driven through raw registers as a
// gpio.PinIO.
//
// A Pin is made of three registers, direction, output and input, and the bit
// of the line in them. This is the layout of the AVR DDRx/PORTx/PINx
// registers and of many small microcontrollers: a set direction bit makes the
// line an output, and with the direction cleared a set output bit enables the
// internal pull-up. On chips where the input is read back from the output
// register, pass the same Register twice.
//
// Registers are either plain Words, useful in tests, or words of a Bank
// mapped from physical memory with periph.io/x/host/v3/pmem.
package regpin
