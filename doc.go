// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softi2c is a container for a software I²C controller and its
// tooling.
//
// bitbang is the controller itself, an i2c.Bus driven over any two
// gpio.PinIO. regpin exposes pins controlled directly through their
// registers. i2csim and logic let the controller be exercised and inspected
// without hardware. mpu6050 is a small driver used to check a bus end to end.
package softi2c
