// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// Register makes a software bus on the pins named sdaName and sclName
// available through i2creg.Open(name).
//
// The pins are looked up in gpioreg when the bus is opened, so Register can
// be called before host.Init().
func Register(name string, aliases []string, number int, sdaName, sclName string, opts *Opts) error {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Name == "" {
		o.Name = name
	}
	return i2creg.Register(name, aliases, number, func() (i2c.BusCloser, error) {
		sda := gpioreg.ByName(sdaName)
		if sda == nil {
			return nil, fmt.Errorf("%w: no pin %q", ErrNoPin, sdaName)
		}
		scl := gpioreg.ByName(sclName)
		if scl == nil {
			return nil, fmt.Errorf("%w: no pin %q", ErrNoPin, sclName)
		}
		b, err := New(sda, scl, &o)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}
