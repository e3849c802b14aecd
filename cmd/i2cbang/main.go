// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// i2cbang talks to I²C devices through a software bus on two GPIO pins.
//
// Usage:
//
//	i2cbang [flags] scan
//	i2cbang [flags] read ADDR REG N
//	i2cbang [flags] write ADDR BYTE...
//	i2cbang [flags] mpu6050
//
// With -sim the commands run against a simulated bus with an MPU-6050 at
// 0x68, and -trace / -png show the waveform the controller produced.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/softi2c/bitbang"
	"github.com/GermanBionicSystems/softi2c/i2csim"
	"github.com/GermanBionicSystems/softi2c/logic"
	"github.com/GermanBionicSystems/softi2c/mpu6050"
)

func simBus(opts *bitbang.Opts) (*bitbang.Bus, *logic.Capture, error) {
	w := i2csim.New(nil)
	mem := &i2csim.Memory{ReadOnly: map[byte]bool{0x75: true}}
	mem.Regs[0x75] = 0x68
	mem.Regs[0x6B] = 0x40
	// Gyro X, Y, Z: -1234, 42, 1000.
	copy(mem.Regs[0x43:], []byte{0xFB, 0x2E, 0x00, 0x2A, 0x03, 0xE8})
	w.Add(&i2csim.Target{Addr: mpu6050.DefaultAddress, Handler: mem, Stretch: 3})
	c := &logic.Capture{}
	w.Attach(c)
	opts.Delayer = w.Clock()
	b, err := bitbang.New(w.SDA(), w.SCL(), opts)
	return b, c, err
}

func hostBus(sda, scl string, opts *bitbang.Opts) (*bitbang.Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	if err := bitbang.Register("bitbang", nil, -1, sda, scl, opts); err != nil {
		return nil, err
	}
	bc, err := i2creg.Open("bitbang")
	if err != nil {
		return nil, err
	}
	return bc.(*bitbang.Bus), nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}

func run(b *bitbang.Bus, args []string) error {
	if len(args) == 0 {
		return errors.New("specify a command: scan, read, write or mpu6050")
	}
	switch cmd, args := args[0], args[1:]; cmd {
	case "scan":
		found, err := b.Scan()
		for _, addr := range found {
			fmt.Printf("%#02x\n", addr)
		}
		return err
	case "read":
		if len(args) != 3 {
			return errors.New("usage: read ADDR REG N")
		}
		addr, err := parseUint(args[0], 7)
		if err != nil {
			return err
		}
		reg, err := parseUint(args[1], 8)
		if err != nil {
			return err
		}
		n, err := parseUint(args[2], 16)
		if err != nil {
			return err
		}
		d := i2c.Dev{Bus: b, Addr: uint16(addr)}
		r := make([]byte, n)
		if err := d.Tx([]byte{byte(reg)}, r); err != nil {
			return err
		}
		fmt.Printf("% x\n", r)
		return nil
	case "write":
		if len(args) < 1 {
			return errors.New("usage: write ADDR BYTE...")
		}
		addr, err := parseUint(args[0], 7)
		if err != nil {
			return err
		}
		w := make([]byte, 0, len(args)-1)
		for _, s := range args[1:] {
			v, err := parseUint(s, 8)
			if err != nil {
				return err
			}
			w = append(w, byte(v))
		}
		return b.WriteMessage(uint16(addr), w)
	case "mpu6050":
		dev, err := mpu6050.New(b, mpu6050.DefaultAddress)
		if err != nil {
			return err
		}
		if err := dev.Init(); err != nil {
			return err
		}
		x, y, z, err := dev.Gyro()
		if err != nil {
			return err
		}
		fmt.Printf("%s: gyro x=%d y=%d z=%d\n", dev, x, y, z)
		return dev.Halt()
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func mainImpl() error {
	sda := flag.String("sda", "GPIO2", "SDA pin name")
	scl := flag.String("scl", "GPIO3", "SCL pin name")
	hz := physic.Frequency(100 * physic.KiloHertz)
	flag.Var(&hz, "hz", "bus clock")
	polls := flag.Int("polls", bitbang.DefaultOpts.StretchPolls, "SCL reads allowed for clock stretching")
	sim := flag.Bool("sim", false, "use a simulated bus with an MPU-6050 at 0x68")
	trace := flag.Bool("trace", false, "print the waveform (with -sim)")
	png := flag.String("png", "", "write a timing diagram to this file (with -sim)")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	opts := bitbang.DefaultOpts
	opts.StretchPolls = *polls
	opts.Debug = log.Printf

	var (
		b   *bitbang.Bus
		c   *logic.Capture
		err error
	)
	if *sim {
		b, c, err = simBus(&opts)
	} else {
		b, err = hostBus(*sda, *scl, &opts)
	}
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.SetSpeed(hz); err != nil {
		return err
	}
	log.Printf("using %s, half period %s", b, b.Delay())

	if err := run(b, flag.Args()); err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	samples := c.Samples()
	events, derr := c.Events()
	if derr != nil {
		log.Printf("decode: %v", derr)
	}
	if *trace {
		t := logic.NewTerminal(&logic.TerminalOpts{Width: 120, Plain: !isatty.IsTerminal(os.Stdout.Fd())})
		if err := t.Render(samples); err != nil {
			return err
		}
		if err := t.RenderEvents(events); err != nil {
			return err
		}
	}
	if *png != "" {
		f, err := os.Create(*png)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := logic.DrawPNG(f, samples, events, nil); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "i2cbang: %s.\n", err)
		os.Exit(1)
	}
}
