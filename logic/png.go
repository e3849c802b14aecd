// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package logic

import (
	"errors"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/gpio"
)

// DiagramOpts represents the options of a timing diagram.
type DiagramOpts struct {
	W, H int
	// FontSize is in points.
	FontSize float64
}

// DefaultDiagramOpts fits about a dozen bytes.
var DefaultDiagramOpts = DiagramOpts{W: 1600, H: 240, FontSize: 12}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: size}), nil
}

// DrawPNG writes a timing diagram of samples as a PNG image. The decoded
// events are written above the SDA trace.
func DrawPNG(w io.Writer, samples []Sample, events []Event, opts *DiagramOpts) error {
	if len(samples) < 2 {
		return errors.New("logic: not enough samples to draw")
	}
	if opts == nil {
		opts = &DefaultDiagramOpts
	}
	f, err := face(opts.FontSize)
	if err != nil {
		return err
	}
	const margin = 48.0
	width, height := float64(opts.W), float64(opts.H)
	t0 := samples[0].At
	span := float64(samples[len(samples)-1].At - t0)
	x := func(at float64) float64 {
		return margin + (at-float64(t0))/span*(width-2*margin)
	}

	dc := gg.NewContext(opts.W, opts.H)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(f)

	rowH := (height - 2*margin) / 2
	rows := []struct {
		name  string
		top   float64
		level func(Sample) gpio.Level
	}{
		{"SDA", margin, func(s Sample) gpio.Level { return s.SDA }},
		{"SCL", margin + rowH, func(s Sample) gpio.Level { return s.SCL }},
	}
	for _, row := range rows {
		y := func(l gpio.Level) float64 {
			if l == gpio.High {
				return row.top + rowH*0.2
			}
			return row.top + rowH*0.8
		}
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(row.name, margin/2, row.top+rowH/2, 0.5, 0.5)
		dc.SetRGB(0, 0.5, 0)
		dc.SetLineWidth(1.5)
		dc.MoveTo(x(float64(samples[0].At)), y(row.level(samples[0])))
		for i := 1; i < len(samples); i++ {
			at := x(float64(samples[i].At))
			dc.LineTo(at, y(row.level(samples[i-1])))
			dc.LineTo(at, y(row.level(samples[i])))
		}
		dc.Stroke()
	}

	dc.SetRGB(0.1, 0.1, 0.6)
	for _, e := range events {
		dc.DrawStringAnchored(e.String(), x(float64(e.At)), margin/2, 0.5, 0.5)
	}
	return dc.EncodePNG(w)
}
