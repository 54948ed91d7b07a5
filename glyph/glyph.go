// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package glyph builds the 5x8 patterns the SerLCD's eight programmable
// character slots accept, from images or font glyphs.
//
// A pattern is 8 bytes, one per pixel row, with bit 4 the leftmost column
// and bit 0 the rightmost.
package glyph

import (
	"image"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Dimensions of a character cell in pixels.
const (
	Width  = 5
	Height = 8
)

// Stock patterns for common symbols missing from the HD44780 character ROM.
var (
	Heart      = [8]byte{0x00, 0x0a, 0x1f, 0x1f, 0x0e, 0x04, 0x00, 0x00}
	Degree     = [8]byte{0x0c, 0x12, 0x12, 0x0c, 0x00, 0x00, 0x00, 0x00}
	Bell       = [8]byte{0x04, 0x0e, 0x0e, 0x0e, 0x1f, 0x00, 0x04, 0x00}
	Block      = [8]byte{0x1f, 0x1f, 0x1f, 0x1f, 0x1f, 0x1f, 0x1f, 0x1f}
	ArrowRight = [8]byte{0x00, 0x04, 0x02, 0x1f, 0x02, 0x04, 0x00, 0x00}
	ArrowLeft  = [8]byte{0x00, 0x04, 0x08, 0x1f, 0x08, 0x04, 0x00, 0x00}
)

// FromImage thresholds the top left 5x8 pixels of img into a pattern.
// Pixels brighter than mid-gray are set; transparent pixels stay clear.
// Smaller images leave the uncovered rows and columns clear.
func FromImage(img image.Image) [8]byte {
	var p [8]byte
	b := img.Bounds()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			pt := image.Pt(b.Min.X+x, b.Min.Y+y)
			if !pt.In(b) {
				continue
			}
			r, g, bl, a := img.At(pt.X, pt.Y).RGBA()
			if a < 0x8000 {
				continue
			}
			// BT.601 luma.
			if (19595*r+38470*g+7471*bl)>>16 >= 0x8000 {
				p[y] |= 1 << (Width - 1 - x)
			}
		}
	}
	return p
}

// Render rasterizes one rune into a pattern, with the glyph baseline on the
// bottom pixel row. Faces taller than the cell are clipped; a face sized
// close to 8 pixels works best.
func Render(face font.Face, r rune) [8]byte {
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, Height-1),
	}
	d.DrawString(string(r))
	return FromImage(img)
}

// Face parses TTF data and returns a face sized in points at 72 DPI, for
// use with Render.
func Face(ttf []byte, points float64) (font.Face, error) {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: points, DPI: 72}), nil
}
