// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mpu6050 controls the gyroscope of an InvenSense MPU-6050 over I²C.
//
// Only the gyroscope and the power management are exposed; it is mostly used
// to check that an I²C bus works, since the WHO_AM_I register gives a known
// answer.
//
// # Datasheet
//
// https://invensense.tdk.com/wp-content/uploads/2015/02/MPU-6000-Register-Map1.pdf
package mpu6050

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

const (
	// DefaultAddress is the address with AD0 low. With AD0 high it is 0x69.
	DefaultAddress uint16 = 0x68

	regPwrMgmt1 byte = 0x6B
	regGyroXH   byte = 0x43
	regWhoAmI   byte = 0x75

	sleepBit byte = 1 << 6
)

// ErrWrongDevice is returned when WHO_AM_I does not identify an MPU-6050.
var ErrWrongDevice = errors.New("mpu6050: unexpected WHO_AM_I")

// Dev is an MPU-6050.
type Dev struct {
	mu sync.Mutex
	t  transport
}

// New returns a Dev on bus at addr. The device is not touched; call Init to
// check its identity and wake it up.
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	if addr != 0x68 && addr != 0x69 {
		return nil, fmt.Errorf("mpu6050: invalid address %#02x", addr)
	}
	return &Dev{t: transport{d: &i2c.Dev{Bus: bus, Addr: addr}, debug: noop}}, nil
}

// EnableDebug sets the debugging output using the local print function.
func (d *Dev) EnableDebug(f DebugF) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t.debug = f
}

func (d *Dev) String() string {
	return fmt.Sprintf("mpu6050: %s", d.t.d.String())
}

// Init checks WHO_AM_I and clears the sleep bit the device powers up with.
func (d *Dev) Init() error {
	id, err := d.WhoAmI()
	if err != nil {
		return err
	}
	if id != 0x68 && id != 0x69 {
		return fmt.Errorf("%w: %#02x", ErrWrongDevice, id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.writeByte(regPwrMgmt1, 0x00)
}

// WhoAmI returns the WHO_AM_I register, 0x68 on a genuine part.
func (d *Dev) WhoAmI() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.readByte(regWhoAmI)
}

// GyroX returns the raw X axis rotation rate.
func (d *Dev) GyroX() (int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var r [2]byte
	if err := d.t.read(regGyroXH, r[:]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(r[:])), nil
}

// Gyro returns the raw rotation rates of the three axes.
func (d *Dev) Gyro() (x, y, z int16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var r [6]byte
	if err = d.t.read(regGyroXH, r[:]); err != nil {
		return 0, 0, 0, err
	}
	x = int16(binary.BigEndian.Uint16(r[0:]))
	y = int16(binary.BigEndian.Uint16(r[2:]))
	z = int16(binary.BigEndian.Uint16(r[4:]))
	return x, y, z, nil
}

// Halt implements conn.Resource.
//
// It puts the device to sleep.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.writeMaskedReg(regPwrMgmt1, sleepBit, sleepBit)
}

var _ conn.Resource = &Dev{}
