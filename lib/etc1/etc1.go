// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package etc1 implements a block packer and unpacker for ETC1 (Ericsson
// Texture Compression, version 1).
//
// Each 4×4 pixel block is coded as 64 bits: two sub-blocks (2×4 or 4×2,
// depending on the flip bit), each with a base color, an intensity table and
// 2-bit per-pixel selectors. Base colors are either two independent RGB444
// values or an RGB555 value plus an RGB333 signed delta.
//
// ETC1 is specified at
// https://registry.khronos.org/DataFormat/specs/1.3/dataformat.1.3.html#ETC1
//
// Packing is pure and allocation-free per block. Call NewPacker once, before
// any concurrent packing starts, and share the returned *Packer freely.
package etc1

import (
	"errors"
	"image/color"
)

var (
	ErrBadArgument     = errors.New("etc1: bad argument")
	ErrBadQuality      = errors.New("etc1: bad quality")
	ErrImageIsTooLarge = errors.New("etc1: image is too large")
	ErrNotInitialized  = errors.New("etc1: packer is not initialized")
)

// BytesPerBlock is the size of one coded 4×4 pixel block.
const BytesPerBlock = 8

// Block is one coded 4×4 pixel block. Its serialized form is big-endian.
type Block uint64

// LoadBlock reads a Block from the first 8 bytes of src.
func LoadBlock(src []byte) Block {
	src = src[:8]
	return Block(0 |
		(uint64(src[0]) << 56) |
		(uint64(src[1]) << 48) |
		(uint64(src[2]) << 40) |
		(uint64(src[3]) << 32) |
		(uint64(src[4]) << 24) |
		(uint64(src[5]) << 16) |
		(uint64(src[6]) << 8) |
		(uint64(src[7]) << 0))
}

// Put writes b to the first 8 bytes of dst.
func (b Block) Put(dst []byte) {
	dst = dst[:8]
	dst[0] = uint8(b >> 56)
	dst[1] = uint8(b >> 48)
	dst[2] = uint8(b >> 40)
	dst[3] = uint8(b >> 32)
	dst[4] = uint8(b >> 24)
	dst[5] = uint8(b >> 16)
	dst[6] = uint8(b >> 8)
	dst[7] = uint8(b >> 0)
}

// Pixels holds a 4×4 block of RGBA pixels, 4 bytes per pixel, in row-major
// order. The pixel at (x, y) starts at byte offset (16 * y) + (4 * x).
//
// The R, G, B, A byte order is fixed, regardless of host endianness.
type Pixels [64]byte

// At returns the pixel at (x, y).
func (p *Pixels) At(x int, y int) color.RGBA {
	i := (16 * y) + (4 * x)
	return color.RGBA{p[i+0], p[i+1], p[i+2], p[i+3]}
}

// Set sets the pixel at (x, y).
func (p *Pixels) Set(x int, y int, c color.RGBA) {
	i := (16 * y) + (4 * x)
	p[i+0] = c.R
	p[i+1] = c.G
	p[i+2] = c.B
	p[i+3] = c.A
}

// Fill sets all 16 pixels to c.
func (p *Pixels) Fill(c color.RGBA) {
	for i := 0; i < 64; i += 4 {
		p[i+0] = c.R
		p[i+1] = c.G
		p[i+2] = c.B
		p[i+3] = c.A
	}
}

// SquaredError returns the sum, over all 16 pixels, of the squared R, G and B
// differences between p and q. Alpha is ignored.
func (p *Pixels) SquaredError(q *Pixels) uint64 {
	loss := uint64(0)
	for i := 0; i < 64; i += 4 {
		d0 := int32(p[i+0]) - int32(q[i+0])
		d1 := int32(p[i+1]) - int32(q[i+1])
		d2 := int32(p[i+2]) - int32(q[i+2])
		loss += uint64((d0 * d0) + (d1 * d1) + (d2 * d2))
	}
	return loss
}

// Quality trades packing speed for packing error. Higher qualities search a
// superset of the lower qualities' candidates, so for the same input, with or
// without dithering, their error is never larger.
//
// The zero value means QualityHigh.
type Quality uint8

const (
	QualityLow    = Quality(1)
	QualityMedium = Quality(2)
	QualityHigh   = Quality(3)
)

// Valid returns whether q is the zero value or one of the named qualities.
func (q Quality) Valid() bool {
	return q <= QualityHigh
}

func (q Quality) String() string {
	switch q {
	case 0, QualityHigh:
		return "high"
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	}
	return "invalid"
}

// ParseQuality returns the Quality named by s: "low", "medium" or "high".
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high", "":
		return QualityHigh, nil
	}
	return 0, ErrBadQuality
}

// scanRadius is how far, in quantized base color steps per channel, the
// packer searches around each sub-block's rounded average color.
func (q Quality) scanRadius() int32 {
	switch q {
	case QualityLow:
		return 0
	case QualityMedium:
		return 1
	case 0, QualityHigh:
		return 2
	}
	panic(ErrBadQuality)
}

// PackParams are the per-block packing parameters. The zero value is valid
// and means high quality without dithering.
type PackParams struct {
	Quality Quality

	// Dithering applies a fixed ordered dither to the source pixels before
	// searching, reducing banding on smooth gradients. The returned squared
	// error is still measured against the undithered source.
	Dithering bool
}

// BlockInfo is a Block's fields, unpacked.
type BlockInfo struct {
	// Differential is the diff bit: RGB555 + delta instead of 2× RGB444.
	Differential bool

	// Flip is the flip bit. False means two 2×4 sub-blocks (left, right).
	// True means two 4×2 sub-blocks (top, bottom).
	Flip bool

	// Bases are the two sub-blocks' base colors, expanded to 8 bits per
	// channel.
	Bases [2][3]uint8

	// Tables are the two sub-blocks' intensity table indexes, each in [0, 8).
	Tables [2]uint8

	// Selectors holds the selector MSBs in the high 16 bits and LSBs in the
	// low 16 bits. The pixel at (x, y) uses bit (4 * x) + y of each half.
	Selectors uint32
}

// Info unpacks b. The bool result is false if b is a differential mode block
// whose second base color overflows, in which case that base is clamped.
func (b Block) Info() (info BlockInfo, valid bool) {
	code := uint64(b)
	info.Differential = ((code >> 33) & 1) != 0
	info.Flip = ((code >> 32) & 1) != 0
	info.Tables[0] = uint8((code >> 37) & 7)
	info.Tables[1] = uint8((code >> 34) & 7)
	info.Selectors = uint32(code)

	valid = true
	if !info.Differential {
		for c := range 3 {
			shift := 56 - (8 * uint32(c))
			info.Bases[0][c] = uint8((code>>(shift+4))&15) * 0x11
			info.Bases[1][c] = uint8((code>>(shift+0))&15) * 0x11
		}
		return info, valid
	}

	for c := range 3 {
		shift := 56 - (8 * uint32(c))
		base5 := int32((code >> (shift + 3)) & 31)
		delta := int32((code>>shift)&7^4) - 4
		other5 := base5 + delta
		if (other5 < 0) || (31 < other5) {
			valid = false
			other5 = max(0, min(31, other5))
		}
		info.Bases[0][c] = expand5(base5)
		info.Bases[1][c] = expand5(other5)
	}
	return info, valid
}

func expand4(x int32) uint8 {
	return uint8(x * 0x11)
}

func expand5(x int32) uint8 {
	return uint8((x << 3) | (x >> 2))
}

// numOrientations counts four orientations of a 2×4 or 4×2 sub-block.
//
//   - 0: 2×4 tall and thin,  not-flipped, left side.
//   - 1: 2×4 tall and thin,  not-flipped, right side.
//   - 2: 4×2 short and wide, yes-flipped, top side.
//   - 3: 4×2 short and wide, yes-flipped, bottom side.
const numOrientations = 4

// perOrientationPixelsOffsets are byte offsets into a Pixels.
var perOrientationPixelsOffsets = [numOrientations][8]uint8{
	{0x00, 0x10, 0x20, 0x30, 0x04, 0x14, 0x24, 0x34},
	{0x08, 0x18, 0x28, 0x38, 0x0C, 0x1C, 0x2C, 0x3C},
	{0x00, 0x10, 0x04, 0x14, 0x08, 0x18, 0x0C, 0x1C},
	{0x20, 0x30, 0x24, 0x34, 0x28, 0x38, 0x2C, 0x3C},
}

// perOrientationShifts are selector bit positions, matching
// perOrientationPixelsOffsets element-wise.
var perOrientationShifts = [numOrientations][8]uint8{
	{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
	{0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F},
	{0x00, 0x01, 0x04, 0x05, 0x08, 0x09, 0x0C, 0x0D},
	{0x02, 0x03, 0x06, 0x07, 0x0A, 0x0B, 0x0E, 0x0F},
}

// modifiers is indexed by table and then by the 2-bit selector code.
var modifiers = [8][4]int32{
	{+2, +8, -2, -8},
	{+5, +17, -5, -17},
	{+9, +29, -9, -29},
	{+13, +42, -13, -42},
	{+18, +60, -18, -60},
	{+24, +80, -24, -80},
	{+33, +106, -33, -106},
	{+47, +183, -47, -183},
}

// scramble maps a selector's rank (most negative modifier first) to its
// 2-bit code.
var scramble = [4]uint8{3, 2, 0, 1}

const (
	maxInt32 = int32(0x7FFF_FFFF) // 2147483647
)
