// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package nie implements the NIE (Naive) image file format.
//
// It is an incomplete implementation (and hence an internal package), only
// providing the encoders needed by the etc1pack tool and by tests.
//
// NIE is specified at
// https://github.com/google/wuffs/blob/main/doc/spec/nie-spec.md
package nie

import (
	"errors"
	"image"
	"image/color"
)

var (
	ErrUnsupportedImageType = errors.New("nie: unsupported image type")
)

// EncodeBN4 encodes m as a NIE file in BGRA order, non-premultiplied alpha, 4
// bytes per pixel (8 bits per channel).
func EncodeBN4(m image.Image) ([]byte, error) {
	b := m.Bounds()
	ret := make([]byte, 0, 16+(4*b.Dx()*b.Dy()))
	ret = append(ret, 0x6E, 0xC3, 0xAF, 0x45, 0xFF, 'b', 'n', '4')
	ret = appendU32LE(ret, uint32(b.Dx()))
	ret = appendU32LE(ret, uint32(b.Dy()))

	err := walk(m, func(c color.NRGBA64) {
		ret = append(ret,
			uint8(c.B>>8),
			uint8(c.G>>8),
			uint8(c.R>>8),
			uint8(c.A>>8),
		)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// EncodeBN8 encodes m as a NIE file in BGRA order, non-premultiplied alpha, 8
// bytes per pixel (16 bits per channel).
func EncodeBN8(m image.Image) ([]byte, error) {
	b := m.Bounds()
	ret := make([]byte, 0, 16+(8*b.Dx()*b.Dy()))
	ret = append(ret, 0x6E, 0xC3, 0xAF, 0x45, 0xFF, 'b', 'n', '8')
	ret = appendU32LE(ret, uint32(b.Dx()))
	ret = appendU32LE(ret, uint32(b.Dy()))

	err := walk(m, func(c color.NRGBA64) {
		ret = append(ret,
			uint8(c.B>>0), uint8(c.B>>8),
			uint8(c.G>>0), uint8(c.G>>8),
			uint8(c.R>>0), uint8(c.R>>8),
			uint8(c.A>>0), uint8(c.A>>8),
		)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// walk calls f for every pixel of m, in raster order.
//
// Premultiplied images are only supported when fully opaque or fully
// transparent, so that no precision is lost un-premultiplying.
func walk(m image.Image, f func(c color.NRGBA64)) error {
	b := m.Bounds()

	switch m := m.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				at := m.RGBAAt(x, y)
				if (at.A != 0x00) && (at.A != 0xFF) {
					return ErrUnsupportedImageType
				}
				f(color.NRGBA64{
					uint16(at.R) * 0x101,
					uint16(at.G) * 0x101,
					uint16(at.B) * 0x101,
					uint16(at.A) * 0x101,
				})
			}
		}
		return nil

	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				at := m.NRGBAAt(x, y)
				f(color.NRGBA64{
					uint16(at.R) * 0x101,
					uint16(at.G) * 0x101,
					uint16(at.B) * 0x101,
					uint16(at.A) * 0x101,
				})
			}
		}
		return nil

	case *image.NRGBA64:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				f(m.NRGBA64At(x, y))
			}
		}
		return nil

	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := uint16(m.GrayAt(x, y).Y) * 0x101
				f(color.NRGBA64{g, g, g, 0xFFFF})
			}
		}
		return nil
	}

	return ErrUnsupportedImageType
}

func appendU32LE(b []byte, u uint32) []byte {
	return append(b,
		uint8(u>>0),
		uint8(u>>8),
		uint8(u>>16),
		uint8(u>>24),
	)
}
