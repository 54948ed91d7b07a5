// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termlcd emulates the OpenLCD firmware on an ANSI terminal.
//
// It accepts the same byte stream a SerLCD receives over its serial
// interface and repaints a character grid on the terminal, with the
// backlight color rendered as a block beside the frame. Plug it into
// serlcd.NewSerial to develop against the protocol without hardware.
//
// Useful while you are waiting for your display to come by mail.
package termlcd

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Opts represents the options available for the emulator.
type Opts struct {
	Rows int
	Cols int
	// W receives the rendered frames. Defaults to the colorable stdout.
	W       io.Writer
	Palette *ansi256.Palette
}

// DefaultOpts emulates the stock 20x4 panel.
var DefaultOpts = Opts{Rows: 4, Cols: 20}

// rowOffsets maps display memory addresses back to grid positions.
var rowOffsets = [4]byte{0, 64, 20, 84}

// Parser states. Multi-byte setting commands park the parser until their
// payload arrives, which may span Write calls.
type state int

const (
	stateData state = iota
	stateSetting
	stateSpecial
	stateContrast
	stateAddress
	stateRGB
	stateGlyph
)

// Dev is an OpenLCD emulator that outputs to the console.
type Dev struct {
	w       io.Writer
	rows    int
	cols    int
	palette ansi256.Palette

	cells [][]byte
	row   int
	col   int

	on         bool
	cursor     bool
	blink      bool
	entryLeft  bool
	autoScroll bool
	splash     bool
	contrast   byte
	addr       byte
	backlight  color.NRGBA
	glyphs     [8][8]byte

	st      state
	pending []byte
	need    int
	slot    byte

	painted bool
	buf     bytes.Buffer
}

// New returns a Dev that renders to the console, or to opts.W when set.
func New(opts *Opts) *Dev {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Rows == 0 {
		o.Rows = DefaultOpts.Rows
	}
	if o.Cols == 0 {
		o.Cols = DefaultOpts.Cols
	}
	if o.W == nil {
		o.W = colorable.NewColorableStdout()
	}
	p := o.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		w:         o.W,
		rows:      o.Rows,
		cols:      o.Cols,
		palette:   *p,
		on:        true,
		entryLeft: true,
		contrast:  40,
		addr:      0x72,
		backlight: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	}
	d.cells = make([][]byte, d.rows)
	for r := range d.cells {
		d.cells[r] = bytes.Repeat([]byte{' '}, d.cols)
	}
	return d
}

func (d *Dev) String() string {
	return fmt.Sprintf("termlcd(%dx%d)", d.cols, d.rows)
}

// Write feeds protocol bytes to the emulator and repaints the terminal.
// Partial command sequences carry over to the next call.
func (d *Dev) Write(p []byte) (int, error) {
	for _, b := range p {
		d.step(b)
	}
	return len(p), d.refresh()
}

func (d *Dev) step(b byte) {
	switch d.st {
	case stateData:
		switch b {
		case 0x7c:
			d.st = stateSetting
		case 254:
			d.st = stateSpecial
		default:
			d.place(b)
		}
	case stateSetting:
		d.setting(b)
	case stateSpecial:
		d.special(b)
		d.st = stateData
	case stateContrast:
		d.contrast = b
		d.st = stateData
	case stateAddress:
		d.addr = b
		d.st = stateData
	case stateRGB:
		d.pending = append(d.pending, b)
		if len(d.pending) == 3 {
			d.backlight = color.NRGBA{R: d.pending[0], G: d.pending[1], B: d.pending[2], A: 255}
			d.pending = nil
			d.st = stateData
		}
	case stateGlyph:
		d.pending = append(d.pending, b)
		if len(d.pending) == 8 {
			copy(d.glyphs[d.slot][:], d.pending)
			d.pending = nil
			d.st = stateData
		}
	}
}

func (d *Dev) setting(b byte) {
	d.st = stateData
	switch {
	case b == 0x2d: // clear and home
		for r := range d.cells {
			for c := range d.cells[r] {
				d.cells[r][c] = ' '
			}
		}
		d.row, d.col = 0, 0
	case b == 0x18:
		d.st = stateContrast
	case b == 0x19:
		d.st = stateAddress
	case b == 0x2b:
		d.st = stateRGB
	case b == 0x09:
		d.splash = !d.splash
	case b == 0x0a:
		// Splash saved; nothing to model.
	case b == 0x2c:
		for _, c := range []byte("OpenLCD sim") {
			d.place(c)
		}
	case b >= 27 && b < 35:
		d.slot = b - 27
		d.st = stateGlyph
	case b >= 35 && b < 43:
		d.place(b - 35)
	case b >= 128 && b <= 157:
		d.backlight.R = band(b - 128)
	case b >= 158 && b <= 187:
		d.backlight.G = band(b - 158)
	case b >= 188 && b <= 217:
		d.backlight.B = band(b - 188)
	}
}

func (d *Dev) special(b byte) {
	switch {
	case b&0x80 != 0:
		d.moveToAddr(b & 0x7f)
	case b&0x40 != 0:
		// CGRAM addressing, never produced by the driver.
	case b&0x10 != 0:
		if b&0x08 == 0 { // cursor move; display shift is not modeled
			if b&0x04 != 0 {
				d.advance(1)
			} else {
				d.advance(-1)
			}
		}
	case b&0x08 != 0:
		d.on = b&0x04 != 0
		d.cursor = b&0x02 != 0
		d.blink = b&0x01 != 0
	case b&0x04 != 0:
		d.entryLeft = b&0x02 != 0
		d.autoScroll = b&0x01 != 0
	case b == 0x02:
		d.row, d.col = 0, 0
	}
}

// band maps a 0-29 backlight band offset back to a 0-255 channel value.
func band(v byte) byte {
	return byte(int(v) * 255 / 29)
}

func (d *Dev) moveToAddr(a byte) {
	for r := 0; r < d.rows && r < len(rowOffsets); r++ {
		off := int(rowOffsets[r])
		if int(a) >= off && int(a) < off+d.cols {
			d.row, d.col = r, int(a)-off
			return
		}
	}
}

func (d *Dev) place(b byte) {
	d.cells[d.row][d.col] = b
	if d.entryLeft {
		d.advance(1)
	} else {
		d.advance(-1)
	}
}

func (d *Dev) advance(n int) {
	d.col += n
	if d.col < 0 {
		d.col = 0
	}
	if d.col >= d.cols {
		d.col = d.cols - 1
	}
}

// cellRune renders one display memory byte. Values 0-7 reference the
// programmable glyphs and are drawn by ink coverage.
func (d *Dev) cellRune(b byte) rune {
	if b < 8 {
		ramp := []rune{' ', '.', ':', '*', '#', '@'}
		set := 0
		for _, row := range d.glyphs[b] {
			for m := byte(1); m <= 0x10; m <<= 1 {
				if row&m != 0 {
					set++
				}
			}
		}
		return ramp[set*(len(ramp)-1)/40]
	}
	if b < 32 || b > 126 {
		return ' '
	}
	return rune(b)
}

// Line returns resulting text of one grid row, as rendered.
func (d *Dev) Line(row int) string {
	var sb strings.Builder
	for _, b := range d.cells[row] {
		sb.WriteRune(d.cellRune(b))
	}
	return sb.String()
}

// Backlight returns the current backlight color.
func (d *Dev) Backlight() color.NRGBA {
	return d.backlight
}

// Contrast returns the last contrast value received.
func (d *Dev) Contrast() byte {
	return d.contrast
}

// Addr returns the device's current I²C address.
func (d *Dev) Addr() byte {
	return d.addr
}

// DisplayOn reports whether the display is on.
func (d *Dev) DisplayOn() bool {
	return d.on
}

// CursorPos returns the cursor position.
func (d *Dev) CursorPos() (row, col int) {
	return d.row, d.col
}

// Glyph returns the pattern programmed into a custom character slot.
func (d *Dev) Glyph(slot byte) [8]byte {
	return d.glyphs[slot&0x7]
}

func (d *Dev) refresh() error {
	// Reuse one buffer per repaint, in the manner of a display refresh loop.
	d.buf.Reset()
	if d.painted {
		fmt.Fprintf(&d.buf, "\033[%dF", d.rows+2)
	}
	d.painted = true
	swatch := d.palette.Block(d.backlight)
	border := "+" + strings.Repeat("-", d.cols) + "+"
	fmt.Fprintf(&d.buf, "%s %s\033[0m\n", border, swatch)
	for r := 0; r < d.rows; r++ {
		if d.on {
			fmt.Fprintf(&d.buf, "|%s|\n", d.Line(r))
		} else {
			fmt.Fprintf(&d.buf, "|%s|\n", strings.Repeat(" ", d.cols))
		}
	}
	fmt.Fprintf(&d.buf, "%s\n", border)
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ io.Writer = &Dev{}
var _ fmt.Stringer = &Dev{}
