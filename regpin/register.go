// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regpin

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/host/v3/pmem"
)

// Register is a 32 bits hardware register.
type Register interface {
	Load() uint32
	Store(v uint32)
}

// Word is a Register in normal memory.
type Word struct {
	v uint32
}

// Load implements Register.
func (w *Word) Load() uint32 {
	return atomic.LoadUint32(&w.v)
}

// Store implements Register.
func (w *Word) Store(v uint32) {
	atomic.StoreUint32(&w.v, v)
}

// Bank is a block of memory mapped registers.
type Bank struct {
	view *pmem.View
	regs []uint32
}

// MapBank maps size bytes of physical memory at base. It requires root
// access on most hosts.
func MapBank(base uint64, size int) (*Bank, error) {
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("regpin: map %#x: %w", base, err)
	}
	return &Bank{view: v, regs: v.Uint32()}, nil
}

// Register returns the register at offset bytes from the start of the bank.
func (b *Bank) Register(offset int) (Register, error) {
	if offset < 0 || offset%4 != 0 || offset/4 >= len(b.regs) {
		return nil, fmt.Errorf("regpin: invalid register offset %#x", offset)
	}
	return mmio{p: &b.regs[offset/4]}, nil
}

// Close unmaps the bank. Its registers must not be used anymore.
func (b *Bank) Close() error {
	return b.view.Close()
}

// mmio is a memory mapped register. Every access goes to memory.
type mmio struct {
	p *uint32
}

func (m mmio) Load() uint32 {
	return atomic.LoadUint32(m.p)
}

func (m mmio) Store(v uint32) {
	atomic.StoreUint32(m.p, v)
}
