// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package logic

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"strings"
	"time"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
)

// TerminalOpts represents the options available for a Terminal.
type TerminalOpts struct {
	// Width is the number of columns used for the waveform.
	Width int
	// Palette maps the line colors to ANSI codes. Defaults to ansi256.Default.
	Palette *ansi256.Palette
	// W defaults to a colorable stdout.
	W io.Writer
	// Plain draws with ASCII characters instead of colors, for output that
	// is not a terminal.
	Plain bool
}

var (
	colorHigh = color.NRGBA{0, 200, 0, 255}
	colorLow  = color.NRGBA{0, 40, 0, 255}
)

// Terminal prints waveforms as two rows of colored blocks, one per line.
type Terminal struct {
	w       io.Writer
	width   int
	plain   bool
	palette ansi256.Palette

	buf bytes.Buffer
}

// NewTerminal returns a Terminal that writes to opts.W.
//
// A nil opts draws 80 colored columns on stdout.
func NewTerminal(opts *TerminalOpts) *Terminal {
	if opts == nil {
		opts = &TerminalOpts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	t := &Terminal{w: opts.W, width: opts.Width, plain: opts.Plain, palette: *p}
	if t.w == nil {
		t.w = colorable.NewColorableStdout()
	}
	if t.width <= 0 {
		t.width = 80
	}
	return t
}

func (t *Terminal) String() string {
	return "logic.Terminal"
}

// Render draws samples scaled to the width of the Terminal. Each column shows
// the level of the line at the start of its time slice.
func (t *Terminal) Render(samples []Sample) error {
	if len(samples) == 0 {
		return errors.New("logic: nothing to render")
	}
	t0 := samples[0].At
	span := samples[len(samples)-1].At - t0
	step := span / time.Duration(t.width)
	if step <= 0 {
		step = 1
	}
	t.buf.Reset()
	rows := []struct {
		name  string
		level func(Sample) gpio.Level
	}{
		{"SDA ", func(s Sample) gpio.Level { return s.SDA }},
		{"SCL ", func(s Sample) gpio.Level { return s.SCL }},
	}
	for _, row := range rows {
		_, _ = t.buf.WriteString(row.name)
		i := 0
		for col := 0; col < t.width; col++ {
			at := t0 + time.Duration(col)*step
			for i+1 < len(samples) && samples[i+1].At <= at {
				i++
			}
			t.cell(row.level(samples[i]))
		}
		if !t.plain {
			_, _ = t.buf.WriteString("\033[0m")
		}
		_ = t.buf.WriteByte('\n')
	}
	_, err := t.buf.WriteTo(t.w)
	return err
}

// RenderEvents prints the decoded events on a single line.
func (t *Terminal) RenderEvents(events []Event) error {
	s := make([]string, 0, len(events))
	for _, e := range events {
		s = append(s, e.String())
	}
	_, err := io.WriteString(t.w, strings.Join(s, " ")+"\n")
	return err
}

func (t *Terminal) cell(l gpio.Level) {
	switch {
	case t.plain && l == gpio.High:
		_ = t.buf.WriteByte('-')
	case t.plain:
		_ = t.buf.WriteByte('_')
	case l == gpio.High:
		_, _ = io.WriteString(&t.buf, t.palette.Block(colorHigh))
	default:
		_, _ = io.WriteString(&t.buf, t.palette.Block(colorLow))
	}
}
