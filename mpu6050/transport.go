// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mpu6050

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// DebugF the debug function type.
type DebugF func(string, ...interface{})

// transport encapsulates the register access over I²C.
type transport struct {
	d     *i2c.Dev
	debug DebugF
}

func (t *transport) writeByte(address byte, value byte) error {
	t.debug("write register %x value %x", address, value)
	if err := t.d.Tx([]byte{address, value}, nil); err != nil {
		return fmt.Errorf("mpu6050: write %#02x: %w", address, err)
	}
	return nil
}

func (t *transport) writeMaskedReg(address byte, mask byte, value byte) error {
	t.debug("write masked %x, mask %x, value %x", address, mask, value)
	regVal, err := t.readByte(address)
	if err != nil {
		return err
	}
	t.debug("current register %x", regVal)
	regVal = (regVal &^ mask) | (value & mask)
	t.debug("new value %x", regVal)
	return t.writeByte(address, regVal)
}

func (t *transport) readByte(address byte) (byte, error) {
	t.debug("read register %x", address)
	var r [1]byte
	if err := t.read(address, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// read fills r from consecutive registers starting at address. The register
// pointer is written first, then the data is read after a repeated start.
func (t *transport) read(address byte, r []byte) error {
	if err := t.d.Tx([]byte{address}, r); err != nil {
		return fmt.Errorf("mpu6050: read %#02x: %w", address, err)
	}
	t.debug("register %x content %x", address, r)
	return nil
}

func noop(string, ...interface{}) {}
