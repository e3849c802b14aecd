// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2csim

// Memory is a Handler for the common register based device: the first byte
// written after the address selects a register, the following bytes are
// stored from there and reads return the registers from there. The register
// pointer increments after every byte and wraps at 256.
type Memory struct {
	Regs [256]byte
	// ReadOnly registers ignore writes but still acknowledge them.
	ReadOnly map[byte]bool

	ptr     byte
	pointer bool
}

// Begin implements Handler.
func (m *Memory) Begin(read bool) {
	m.pointer = !read
}

// Receive implements Handler.
func (m *Memory) Receive(b byte) bool {
	if m.pointer {
		m.ptr = b
		m.pointer = false
		return true
	}
	if !m.ReadOnly[m.ptr] {
		m.Regs[m.ptr] = b
	}
	m.ptr++
	return true
}

// Transmit implements Handler.
func (m *Memory) Transmit() byte {
	v := m.Regs[m.ptr]
	m.ptr++
	return v
}

// End implements Handler.
func (m *Memory) End() {}

var _ Handler = &Memory{}
