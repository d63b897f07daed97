// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package etc1

import (
	"image"
	"io"
)

// DecodeBlock unpacks b into dst's RGB channels.
//
// If preserveAlpha is false, every alpha byte in dst is set to 0xFF.
// Otherwise, dst's alpha bytes are left untouched.
//
// It returns false if b is malformed (see Block.Info). Malformed blocks are
// still fully decoded, with clamping, so dst never holds stale pixels.
//
// DecodeBlock does not need a Packer and is safe for concurrent use.
func DecodeBlock(dst *Pixels, b Block, preserveAlpha bool) (valid bool) {
	info, valid := b.Info()

	for x := range 4 {
		for y := range 4 {
			half := x >> 1
			if info.Flip {
				half = y >> 1
			}
			shift := uint32((4 * x) + y)
			j := ((info.Selectors >> (shift + 15)) & 2) | ((info.Selectors >> shift) & 1)
			mod := modifiers[info.Tables[half]][j]
			base := &info.Bases[half]

			i := (16 * y) + (4 * x)
			dst[i+0] = uint8(max(0, min(255, int32(base[0])+mod)))
			dst[i+1] = uint8(max(0, min(255, int32(base[1])+mod)))
			dst[i+2] = uint8(max(0, min(255, int32(base[2])+mod)))
			if !preserveAlpha {
				dst[i+3] = 0xFF
			}
		}
	}
	return valid
}

// DecodeBlocks unpacks blocks, in raster order, into dst. dst's bounds must
// be a multiple of 4 in both dimensions and hold exactly len(blocks) blocks.
//
// It returns the number of malformed blocks, which are still decoded.
func DecodeBlocks(dst *image.RGBA, blocks []Block) (numInvalid int, retErr error) {
	b := dst.Bounds()
	bW, bH := b.Dx(), b.Dy()
	if ((bW & 3) != 0) || ((bH & 3) != 0) || ((bW/4)*(bH/4) != len(blocks)) {
		return 0, ErrBadArgument
	}

	pixels := Pixels{}
	j := 0
	for blockY := 0; blockY < bH; blockY += 4 {
		for blockX := 0; blockX < bW; blockX += 4 {
			if !DecodeBlock(&pixels, blocks[j], false) {
				numInvalid++
			}
			j++
			for y := range 4 {
				o := dst.PixOffset(b.Min.X+blockX, b.Min.Y+blockY+y)
				copy(dst.Pix[o:o+16], pixels[16*y:16*y+16])
			}
		}
	}
	return numInvalid, nil
}

// Decode reads (dst's width / 4) × (dst's height / 4) blocks from r, in
// raster order, and unpacks them into dst.
//
// It returns the number of malformed blocks, which are still decoded.
func Decode(dst *image.RGBA, r io.Reader) (numInvalid int, retErr error) {
	b := dst.Bounds()
	bW, bH := b.Dx(), b.Dy()
	if ((bW & 3) != 0) || ((bH & 3) != 0) {
		return 0, ErrBadArgument
	}

	if (bW == 0) || (bH == 0) {
		return 0, nil
	}

	buf := [decoderBufferSize]byte{}
	pixels := Pixels{}

	blockX, blockY := 0, 0
	for blockY < bH {
		n := min(decoderBufferSize/BytesPerBlock, ((bH-blockY)/4)*(bW/4)-(blockX/4))
		if _, err := io.ReadFull(r, buf[:n*BytesPerBlock]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return numInvalid, err
		}

		for i := range n {
			if !DecodeBlock(&pixels, LoadBlock(buf[i*BytesPerBlock:]), false) {
				numInvalid++
			}
			for y := range 4 {
				o := dst.PixOffset(b.Min.X+blockX, b.Min.Y+blockY+y)
				copy(dst.Pix[o:o+16], pixels[16*y:16*y+16])
			}
			if blockX += 4; blockX >= bW {
				blockX, blockY = 0, blockY+4
			}
		}
	}
	return numInvalid, nil
}

const decoderBufferSize = 4096
