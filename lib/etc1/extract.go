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
)

// makeExtract returns a closure that extracts the 4×4 block from src whose
// top-left corner is at (blockX, blockY) relative to src's bounds.
//
// Out-of-bound pixels right of and below the image are substituted with the
// nearest in-bound pixel from the right and bottom edges.
//
// The closure only reads src, so it may be called concurrently, each caller
// passing its own pixels.
func makeExtract(src image.Image) func(pixels *Pixels, blockX int, blockY int) {
	bounds := src.Bounds()
	mX1 := bounds.Max.X - 1
	mY1 := bounds.Max.Y - 1

	if srcNRGBA, ok := src.(*image.NRGBA); ok {
		return func(pixels *Pixels, blockX int, blockY int) {
			for y := range 4 {
				for x := range 4 {
					i := (16 * y) + (4 * x)
					c := srcNRGBA.NRGBAAt(min(mX1, bounds.Min.X+blockX+x), min(mY1, bounds.Min.Y+blockY+y))
					pixels[i+0] = c.R
					pixels[i+1] = c.G
					pixels[i+2] = c.B
					pixels[i+3] = c.A
				}
			}
		}

	} else if srcRGBA64, ok := src.(image.RGBA64Image); ok {
		return func(pixels *Pixels, blockX int, blockY int) {
			for y := range 4 {
				for x := range 4 {
					i := (16 * y) + (4 * x)
					c := srcRGBA64.RGBA64At(min(mX1, bounds.Min.X+blockX+x), min(mY1, bounds.Min.Y+blockY+y))
					if (c.A != 0x0000) && (c.A != 0xFFFF) {
						c.R = uint16((uint32(c.R) * 0xFFFF) / uint32(c.A))
						c.G = uint16((uint32(c.G) * 0xFFFF) / uint32(c.A))
						c.B = uint16((uint32(c.B) * 0xFFFF) / uint32(c.A))
					}
					pixels[i+0] = uint8(c.R >> 8)
					pixels[i+1] = uint8(c.G >> 8)
					pixels[i+2] = uint8(c.B >> 8)
					pixels[i+3] = uint8(c.A >> 8)
				}
			}
		}
	}

	return func(pixels *Pixels, blockX int, blockY int) {
		for y := range 4 {
			for x := range 4 {
				i := (16 * y) + (4 * x)
				r, g, b, a := src.At(min(mX1, bounds.Min.X+blockX+x), min(mY1, bounds.Min.Y+blockY+y)).RGBA()
				if (a != 0x0000) && (a != 0xFFFF) {
					r = (r * 0xFFFF) / a
					g = (g * 0xFFFF) / a
					b = (b * 0xFFFF) / a
				}
				pixels[i+0] = uint8(r >> 8)
				pixels[i+1] = uint8(g >> 8)
				pixels[i+2] = uint8(b >> 8)
				pixels[i+3] = uint8(a >> 8)
			}
		}
	}
}
