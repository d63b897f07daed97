// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package testimage draws synthetic test cards: two italic digits, the first
// knocking a radial gradient out of a white background and the second
// masking a linear gradient. They mix flat areas, smooth ramps and hard
// anti-aliased edges, which is what a block encoder finds hard.
package testimage

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	ErrBadArgument = errors.New("testimage: bad argument")
)

var parsed struct {
	once sync.Once
	font *opentype.Font
	err  error
}

// Digits returns a size×size card for the two digit string digits, such as
// "36" or "49". size must be at least 16.
func Digits(digits string, size int) (*image.RGBA, error) {
	if (len(digits) != 2) || (size < 16) {
		return nil, ErrBadArgument
	}

	parsed.once.Do(func() {
		parsed.font, parsed.err = opentype.Parse(goitalic.TTF)
	})
	if parsed.err != nil {
		return nil, parsed.err
	}
	face, err := opentype.NewFace(parsed.font, &opentype.FaceOptions{
		Size:    float64(200*size) / 256,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	defer face.Close()

	// s scales a coordinate on a 256×256 card to this card.
	s := func(v int) int { return (v * size) / 256 }
	r := image.Rect(0, 0, size, size)

	mask0 := image.NewAlpha(r)
	(&font.Drawer{Dst: mask0, Src: image.Opaque, Face: face, Dot: fixed.P(s(4), s(224))}).DrawString(digits[0:1])
	for i := range mask0.Pix {
		mask0.Pix[i] ^= 0xFF
	}

	mask1 := image.NewAlpha(r)
	(&font.Drawer{Dst: mask1, Src: image.Opaque, Face: face, Dot: fixed.P(s(116), s(176))}).DrawString(digits[1:2])

	circ := image.NewRGBA(r)
	cx, cy := s(30), s(50)
	for y := range size {
		dy := y - cy
		for x := range size {
			dx := x - cx
			distance := int((256 * math.Sqrt(float64((dx*dx)+(dy*dy)))) / float64(size))
			v := 0xFF - uint8(max(0x00, min(0xFF, distance)))
			circ.SetRGBA(x, y, color.RGBA{v, v / 3, 0, 0xFF})
		}
	}

	dst := image.NewRGBA(r)
	draw.Draw(dst, r, image.White, image.Point{}, draw.Src)
	draw.DrawMask(dst, r, circ, image.Point{}, mask0, image.Point{}, draw.Over)
	draw.DrawMask(dst, r, linearGradient(size), image.Point{}, mask1, image.Point{}, draw.Over)
	return dst, nil
}

// linearGradient ramps green from left to right and blue from top to bottom,
// each over the full 0x00 to 0xFF range whatever the size.
func linearGradient(size int) *image.RGBA {
	grad := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			grad.SetRGBA(x, y, color.RGBA{0x00, uint8((256 * x) / size), uint8((256 * y) / size), 0xFF})
		}
	}
	return grad
}
