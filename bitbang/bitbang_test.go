// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/softi2c/i2csim"
	"github.com/GermanBionicSystems/softi2c/logic"
	"github.com/GermanBionicSystems/softi2c/regpin"
)

var ignoreAt = cmpopts.IgnoreFields(logic.Event{}, "At")

func newSim(t *testing.T, opts Opts, targets ...*i2csim.Target) (*Bus, *i2csim.Wire, *logic.Capture) {
	t.Helper()
	w := i2csim.New(nil)
	for _, tgt := range targets {
		w.Add(tgt)
	}
	c := &logic.Capture{}
	w.Attach(c)
	opts.Delayer = w.Clock()
	b, err := New(w.SDA(), w.SCL(), &opts)
	if err != nil {
		t.Fatal(err)
	}
	return b, w, c
}

// checkIdle verifies the controller let go of both lines and that nothing
// else holds them.
func checkIdle(t *testing.T, w *i2csim.Wire) {
	t.Helper()
	if !w.Released() {
		t.Error("controller still drives a line")
	}
	if sda, scl := w.Levels(); sda != gpio.High || scl != gpio.High {
		t.Errorf("bus not idle: SDA=%s SCL=%s", sda, scl)
	}
}

func decode(t *testing.T, c *logic.Capture) []logic.Event {
	t.Helper()
	events, err := c.Events()
	if err != nil {
		t.Error(err)
	}
	return events
}

func start() logic.Event      { return logic.Event{Kind: logic.Start} }
func restart() logic.Event    { return logic.Event{Kind: logic.Restart} }
func stop() logic.Event       { return logic.Event{Kind: logic.Stop} }
func ack(v byte) logic.Event  { return logic.Event{Kind: logic.Byte, Value: v, Ack: true} }
func nack(v byte) logic.Event { return logic.Event{Kind: logic.Byte, Value: v} }

func mem(regs ...byte) *i2csim.Memory {
	m := &i2csim.Memory{}
	copy(m.Regs[:], regs)
	return m
}

func TestNewNoPin(t *testing.T) {
	w := i2csim.New(nil)
	if _, err := New(nil, w.SCL(), nil); !errors.Is(err, ErrNoPin) {
		t.Errorf("New(nil, SCL) expected ErrNoPin, got %v", err)
	}
	if _, err := New(w.SDA(), nil, nil); !errors.Is(err, ErrNoPin) {
		t.Errorf("New(SDA, nil) expected ErrNoPin, got %v", err)
	}
}

func TestNewReleasesPins(t *testing.T) {
	sda := &gpiotest.Pin{N: "SDA", Num: 1}
	scl := &gpiotest.Pin{N: "SCL", Num: 2}
	b, err := New(sda, scl, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []*gpiotest.Pin{sda, scl} {
		if p.P != gpio.PullUp {
			t.Errorf("%s: expected pull-up, got %s", p, p.P)
		}
	}
	if s := b.String(); s != "bitbang(SDA="+sda.String()+", SCL="+scl.String()+")" {
		t.Errorf("String() = %q", s)
	}
	if b.Delay() != DefaultOpts.Delay {
		t.Errorf("Delay() = %s, expected %s", b.Delay(), DefaultOpts.Delay)
	}
	if b.SDA() != sda || b.SCL() != scl {
		t.Error("SDA()/SCL() do not return the pins")
	}
	if err := b.Close(); err != nil {
		t.Error(err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{time.Microsecond, 5 * time.Microsecond, 50 * time.Microsecond} {
		t.Run(d.String(), func(t *testing.T) {
			m := mem()
			tgt := &i2csim.Target{Addr: 0x50, Handler: m}
			b, w, c := newSim(t, Opts{Delay: d}, tgt)

			if err := b.WriteMessage(0x50, []byte{0x10, 0xA5, 0x3C}); err != nil {
				t.Fatal(err)
			}
			checkIdle(t, w)
			if m.Regs[0x10] != 0xA5 || m.Regs[0x11] != 0x3C {
				t.Errorf("target received % x", m.Regs[0x10:0x12])
			}

			r := make([]byte, 2)
			if err := b.Tx(0x50, []byte{0x10}, r); err != nil {
				t.Fatal(err)
			}
			checkIdle(t, w)
			if diff := cmp.Diff(r, []byte{0xA5, 0x3C}); diff != "" {
				t.Errorf("read (-got +want):\n%s", diff)
			}

			want := []logic.Event{
				start(), ack(0xA0), ack(0x10), ack(0xA5), ack(0x3C), stop(),
				start(), ack(0xA0), ack(0x10), restart(), ack(0xA1), ack(0xA5), nack(0x3C), stop(),
			}
			if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
				t.Errorf("wire (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(tgt.Log, want, ignoreAt); diff != "" {
				t.Errorf("target log (-got +want):\n%s", diff)
			}
		})
	}
}

func TestByteMSBFirst(t *testing.T) {
	tgt := &i2csim.Target{Addr: 0x2A, Handler: mem(0x81)}
	b, w, c := newSim(t, DefaultOpts, tgt)

	b.mu.Lock()
	b.begin()
	if err := b.start(); err != nil {
		t.Fatal(err)
	}
	for _, v := range []byte{0x54, 0x00} {
		if ok, err := b.writeByte(v); !ok || err != nil {
			t.Fatalf("writeByte(%#02x) = %t, %v", v, ok, err)
		}
	}
	if err := b.start(); err != nil {
		t.Fatal(err)
	}
	if ok, err := b.writeByte(0x55); !ok || err != nil {
		t.Fatalf("writeByte(0x55) = %t, %v", ok, err)
	}
	v, err := b.readByte(false)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.stop(); err != nil {
		t.Fatal(err)
	}
	b.mu.Unlock()

	if v != 0x81 {
		t.Errorf("readByte() = %#02x, expected 0x81", v)
	}
	checkIdle(t, w)

	// Every bit as seen on the wire, SDA sampled on the rising edges of SCL.
	var bits []gpio.Level
	samples := c.Samples()
	for i := 1; i < len(samples); i++ {
		if samples[i-1].SCL == gpio.Low && samples[i].SCL == gpio.High {
			bits = append(bits, samples[i].SDA)
		}
	}
	const H, L = gpio.High, gpio.Low
	want := []gpio.Level{
		L, H, L, H, L, H, L, L, L, // 0x54 ACK
		L, L, L, L, L, L, L, L, L, // 0x00 ACK
		H,                         // repeated start setup
		L, H, L, H, L, H, L, H, L, // 0x55 ACK
		H, L, L, L, L, L, L, H, H, // 0x81 NACK
		L,                         // stop setup
	}
	if diff := cmp.Diff(bits, want); diff != "" {
		t.Errorf("bits (-got +want):\n%s", diff)
	}
}

func TestExampleWire(t *testing.T) {
	tgt := &i2csim.Target{Addr: 0x68, Handler: mem()}
	b, w, c := newSim(t, DefaultOpts, tgt)
	if err := b.WriteMessage(0x68, []byte{0x00, 0x42}); err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	want := []logic.Event{start(), ack(0xD0), ack(0x00), ack(0x42), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
}

func TestWriteAddressNACK(t *testing.T) {
	m := mem()
	tgt := &i2csim.Target{Addr: 0x51, Handler: m}
	b, w, c := newSim(t, DefaultOpts, tgt)

	err := b.WriteMessage(0x50, []byte{0x01, 0x02})
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	checkIdle(t, w)
	want := []logic.Event{start(), nack(0xA0), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
	if m.Regs[0x01] != 0 {
		t.Error("payload reached a device")
	}
}

func TestWritePayloadNACK(t *testing.T) {
	m := mem()
	tgt := &i2csim.Target{Addr: 0x50, Handler: m, NACKAfter: 2}
	b, w, c := newSim(t, DefaultOpts, tgt)

	err := b.WriteMessage(0x50, []byte{0x00, 0x11, 0x22, 0x33})
	if !errors.Is(err, ErrNACK) {
		t.Fatalf("expected ErrNACK, got %v", err)
	}
	checkIdle(t, w)
	want := []logic.Event{start(), ack(0xA0), ack(0x00), nack(0x11), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(tgt.Log, want, ignoreAt); diff != "" {
		t.Errorf("target log (-got +want):\n%s", diff)
	}
}

func TestReadAcknowledgesAllButLast(t *testing.T) {
	// NACKAfter only applies to written bytes; reads are driven by the
	// controller.
	tgt := &i2csim.Target{Addr: 0x50, Handler: mem(0xDE, 0xAD, 0xBE, 0xEF), NACKAfter: 1}
	b, w, c := newSim(t, DefaultOpts, tgt)

	r := make([]byte, 4)
	if err := b.ReadMessage(0x50, r); err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	if diff := cmp.Diff(r, []byte{0xDE, 0xAD, 0xBE, 0xEF}); diff != "" {
		t.Errorf("read (-got +want):\n%s", diff)
	}
	want := []logic.Event{start(), ack(0xA1), ack(0xDE), ack(0xAD), ack(0xBE), nack(0xEF), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
}

func TestReadAddressNACK(t *testing.T) {
	b, w, c := newSim(t, DefaultOpts)
	r := []byte{0x55}
	if err := b.ReadMessage(0x3C, r); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	checkIdle(t, w)
	if r[0] != 0x55 {
		t.Error("buffer modified")
	}
	want := []logic.Event{start(), nack(0x79), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
}

func TestReadEmpty(t *testing.T) {
	// The first byte has its MSB cleared, the target would hold SDA low.
	tgt := &i2csim.Target{Addr: 0x50, Handler: mem(0x12)}
	b, w, c := newSim(t, DefaultOpts, tgt)
	for _, r := range [][]byte{nil, {}} {
		if err := b.ReadMessage(0x50, r); !errors.Is(err, ErrEmptyRead) {
			t.Errorf("ReadMessage(%v) expected ErrEmptyRead, got %v", r, err)
		}
	}
	checkIdle(t, w)
	if events := decode(t, c); len(events) != 0 {
		t.Errorf("expected no traffic, got %v", events)
	}
	r := make([]byte, 1)
	if err := b.ReadMessage(0x50, r); err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	if r[0] != 0x12 {
		t.Errorf("read %#02x, expected 0x12", r[0])
	}
}

func TestTxProbe(t *testing.T) {
	b, w, c := newSim(t, DefaultOpts, &i2csim.Target{Addr: 0x20})
	if err := b.Tx(0x20, nil, nil); err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	want := []logic.Event{start(), ack(0x40), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
}

func TestScan(t *testing.T) {
	b, w, _ := newSim(t, DefaultOpts, &i2csim.Target{Addr: 0x68}, &i2csim.Target{Addr: 0x20})
	found, err := b.Scan()
	if err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	if diff := cmp.Diff(found, []uint16{0x20, 0x68}); diff != "" {
		t.Errorf("Scan() (-got +want):\n%s", diff)
	}
}

func TestInvalidAddress(t *testing.T) {
	b, _, c := newSim(t, DefaultOpts)
	if err := b.WriteMessage(0x80, nil); !errors.Is(err, ErrAddress) {
		t.Errorf("WriteMessage expected ErrAddress, got %v", err)
	}
	if err := b.ReadMessage(0x100, []byte{0}); !errors.Is(err, ErrAddress) {
		t.Errorf("ReadMessage expected ErrAddress, got %v", err)
	}
	if err := b.Tx(0xFFFF, nil, nil); !errors.Is(err, ErrAddress) {
		t.Errorf("Tx expected ErrAddress, got %v", err)
	}
	if n := len(c.Samples()); n != 1 {
		t.Errorf("the bus was touched: %d samples", n)
	}
}

func duration(c *logic.Capture) time.Duration {
	s := c.Samples()
	return s[len(s)-1].At - s[0].At
}

func TestSetDelay(t *testing.T) {
	b, w, c := newSim(t, DefaultOpts, &i2csim.Target{Addr: 0x50})
	if err := b.WriteMessage(0x50, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	d1 := duration(c)

	b.SetDelay(10 * time.Microsecond)
	if b.Delay() != 10*time.Microsecond {
		t.Errorf("Delay() = %s", b.Delay())
	}
	c.Reset()
	if err := b.WriteMessage(0x50, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	d2 := duration(c)
	if d2 <= d1*3/2 {
		t.Errorf("doubling the delay changed the transfer from %s to %s", d1, d2)
	}
}

func TestSetDelayDefault(t *testing.T) {
	b, _, _ := newSim(t, Opts{Delay: -time.Second})
	if b.Delay() != DefaultOpts.Delay {
		t.Errorf("New: Delay() = %s, expected %s", b.Delay(), DefaultOpts.Delay)
	}
	for _, d := range []time.Duration{0, -time.Microsecond} {
		b.SetDelay(time.Microsecond)
		b.SetDelay(d)
		if b.Delay() != DefaultOpts.Delay {
			t.Errorf("SetDelay(%s): Delay() = %s, expected %s", d, b.Delay(), DefaultOpts.Delay)
		}
	}
}

func TestSetSpeed(t *testing.T) {
	b, _, _ := newSim(t, DefaultOpts)
	data := []struct {
		f     physic.Frequency
		delay time.Duration
		err   error
	}{
		{100 * physic.KiloHertz, 5 * time.Microsecond, nil},
		{400 * physic.KiloHertz, 1250 * time.Nanosecond, nil},
		{physic.MegaHertz, 500 * time.Nanosecond, nil},
		{2 * physic.MegaHertz, 500 * time.Nanosecond, ErrSpeed},
		{0, 500 * time.Nanosecond, ErrSpeed},
	}
	for _, line := range data {
		if err := b.SetSpeed(line.f); !errors.Is(err, line.err) {
			t.Errorf("SetSpeed(%s) = %v, expected %v", line.f, err, line.err)
		}
		if b.Delay() != line.delay {
			t.Errorf("SetSpeed(%s): Delay() = %s, expected %s", line.f, b.Delay(), line.delay)
		}
	}
}

func TestClockStretch(t *testing.T) {
	b, _, c := newSim(t, DefaultOpts, &i2csim.Target{Addr: 0x50})
	if err := b.WriteMessage(0x50, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	plain := duration(c)

	const stretch = 50
	tgt := &i2csim.Target{Addr: 0x50, Stretch: stretch}
	b, w, c := newSim(t, DefaultOpts, tgt)
	if err := b.WriteMessage(0x50, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	checkIdle(t, w)
	stretched := duration(c)
	// At least one stretched clock per bit of the two bytes.
	if least := 18 * (stretch - 1) * i2csim.DefaultOpts.PollCost; stretched-plain < least {
		t.Errorf("stretching added %s, expected at least %s", stretched-plain, least)
	}
	want := []logic.Event{start(), ack(0xA0), ack(0x01), stop()}
	if diff := cmp.Diff(decode(t, c), want, ignoreAt); diff != "" {
		t.Errorf("wire (-got +want):\n%s", diff)
	}
}

func TestClockStretchTimeout(t *testing.T) {
	tgt := &i2csim.Target{Addr: 0x50, Stretch: 1 << 20}
	opts := DefaultOpts
	opts.StretchPolls = 100
	var debug []string
	opts.Debug = func(format string, args ...interface{}) {
		debug = append(debug, format)
	}
	b, w, _ := newSim(t, opts, tgt)
	err := b.WriteMessage(0x50, []byte{0x01})
	if !errors.Is(err, ErrClockStretch) {
		t.Fatalf("expected ErrClockStretch, got %v", err)
	}
	if errors.Is(err, ErrNoDevice) || errors.Is(err, ErrNACK) {
		t.Error("a timeout must not look like a NACK")
	}
	if !w.Released() {
		t.Error("controller still drives a line")
	}
	if len(debug) != 1 {
		t.Errorf("expected one debug line, got %d", len(debug))
	}
}

// stallOnRead starts stretching the clock once the first byte of a read is
// requested.
type stallOnRead struct {
	tgt *i2csim.Target
}

func (s *stallOnRead) Begin(bool)        {}
func (s *stallOnRead) Receive(byte) bool { return true }
func (s *stallOnRead) End()              {}

func (s *stallOnRead) Transmit() byte {
	s.tgt.Stretch = 1 << 20
	return 0x00
}

func TestClockStretchTimeoutRead(t *testing.T) {
	tgt := &i2csim.Target{Addr: 0x50}
	tgt.Handler = &stallOnRead{tgt: tgt}
	opts := DefaultOpts
	opts.StretchPolls = 100
	var debug []string
	opts.Debug = func(format string, args ...interface{}) {
		debug = append(debug, format)
	}
	b, w, _ := newSim(t, opts, tgt)
	r := []byte{0x55, 0x55}
	err := b.ReadMessage(0x50, r)
	if !errors.Is(err, ErrClockStretch) {
		t.Fatalf("expected ErrClockStretch, got %v", err)
	}
	if errors.Is(err, ErrNoDevice) || errors.Is(err, ErrNACK) {
		t.Error("a timeout must not look like a NACK")
	}
	if !w.Released() {
		t.Error("controller still drives a line")
	}
	if r[0] != 0x55 || r[1] != 0x55 {
		t.Errorf("buffer modified: % x", r)
	}
	if len(debug) != 1 {
		t.Errorf("expected one debug line, got %d", len(debug))
	}
}

func TestStopClockStretch(t *testing.T) {
	opts := DefaultOpts
	opts.StretchPolls = 100
	b, w, _ := newSim(t, opts, &i2csim.Target{Addr: 0x50, Stretch: 1 << 20})
	b.begin()
	// The target holds SCL from the falling edge that ends the start.
	if err := b.start(); err != nil {
		t.Fatal(err)
	}
	if err := b.stop(); !errors.Is(err, ErrClockStretch) {
		t.Fatalf("stop() expected ErrClockStretch, got %v", err)
	}
	if !w.Released() {
		t.Error("controller still drives a line")
	}
}

func TestRegisterPins(t *testing.T) {
	dir, port := &regpin.Word{}, &regpin.Word{}
	sda, err := regpin.New("PC4", dir, port, port, 4)
	if err != nil {
		t.Fatal(err)
	}
	scl, err := regpin.New("PC5", dir, port, port, 5)
	if err != nil {
		t.Fatal(err)
	}
	var slept time.Duration
	b, err := New(sda, scl, &Opts{Delayer: DelayFunc(func(d time.Duration) { slept += d })})
	if err != nil {
		t.Fatal(err)
	}
	// Nothing pulls SDA low, so nobody acknowledges.
	if err := b.WriteMessage(0x68, []byte{0x00, 0x42}); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if dir.Load() != 0 || port.Load() != 0x30 {
		t.Errorf("lines not released: DDR=%#02x PORT=%#02x", dir.Load(), port.Load())
	}
	if slept == 0 {
		t.Error("the Delayer was not used")
	}
}

func TestRegister(t *testing.T) {
	for _, p := range []*gpiotest.Pin{{N: "BB_TEST_SDA", Num: 100}, {N: "BB_TEST_SCL", Num: 101}} {
		if err := gpioreg.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	defer func() {
		_ = gpioreg.Unregister("BB_TEST_SDA")
		_ = gpioreg.Unregister("BB_TEST_SCL")
	}()
	if err := Register("bbtest", nil, -1, "BB_TEST_SDA", "BB_TEST_SCL", nil); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = i2creg.Unregister("bbtest") }()
	if err := Register("bbtest_missing", nil, -1, "BB_NOPE", "BB_TEST_SCL", nil); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = i2creg.Unregister("bbtest_missing") }()

	bus, err := i2creg.Open("bbtest")
	if err != nil {
		t.Fatal(err)
	}
	if s := bus.String(); s != "bbtest" {
		t.Errorf("String() = %q", s)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
	if _, err := i2creg.Open("bbtest_missing"); !errors.Is(err, ErrNoPin) {
		t.Errorf("expected ErrNoPin, got %v", err)
	}
}
