// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package etc1

import (
	"sync"
)

// Packer packs 4×4 pixel blocks. Obtain one from NewPacker. A *Packer is safe
// for concurrent use by multiple goroutines and holds no mutable state.
//
// The zero value is not usable: its methods panic with ErrNotInitialized.
type Packer struct {
	t *tables
}

var (
	sharedTables     tables
	sharedTablesOnce sync.Once
)

// NewPacker builds the packer's shared lookup tables, the first time it is
// called, and returns a Packer that uses them. Later calls are cheap and
// return a Packer sharing the same read-only tables.
//
// Every EncodeBlock call on the returned Packer happens after the tables are
// built.
func NewPacker() *Packer {
	sharedTablesOnce.Do(sharedTables.build)
	return &Packer{t: &sharedTables}
}

// EncodeBlock packs src, returning the Block and the sum over all 16 pixels of
// the squared R, G and B error between src and the decoded Block. src's alpha
// is ignored.
//
// It panics with ErrBadQuality if params.Quality is not Valid.
func (p *Packer) EncodeBlock(src *Pixels, params PackParams) (Block, uint64) {
	if (p == nil) || (p.t == nil) {
		panic(ErrNotInitialized)
	}

	radius := params.Quality.scanRadius()
	e := blockEncoder{
		t:      p.t,
		pixels: *src,
		radius: radius,
	}
	if !params.Dithering {
		code, loss := e.encode()
		return Block(code), uint64(loss)
	}

	// The search minimizes error against the dithered pixels, but the error
	// is measured against src. Searching every radius up to this Quality's,
	// and keeping the best against src, keeps higher Qualities no worse.
	e.dither()
	bestBlock, bestLoss := Block(0), uint64(0)
	work := Pixels{}
	for r := range radius + 1 {
		e.radius = r
		code, _ := e.encode()
		DecodeBlock(&work, Block(code), true)
		if loss := src.SquaredError(&work); (r == 0) || (bestLoss > loss) {
			bestBlock, bestLoss = Block(code), loss
		}
	}
	return bestBlock, bestLoss
}

// tables are built once, by NewPacker, and are read-only afterwards.
type tables struct {
	// inverse[mode][table][selector][value] packs the quantized base color
	// channel that best reproduces the 8-bit value (low 8 bits) and that
	// reproduction's squared error (high 24 bits). Mode 0 means 5 bit
	// (differential) base colors. Mode 1 means 4 bit (individual) ones.
	//
	// Ties go to the smaller base.
	inverse [2][8][4][256]uint32
}

func (t *tables) build() {
	for mode := range 2 {
		limit := int32(31)
		if mode == 1 {
			limit = 15
		}

		for table := range 8 {
			for sel := range 4 {
				mod := modifiers[table][sel]
				for value := range int32(256) {
					best := uint32(0xFFFF_FFFF)
					for q := int32(0); q <= limit; q++ {
						expanded := int32(expand5(q))
						if mode == 1 {
							expanded = int32(expand4(q))
						}
						d := max(0, min(255, expanded+mod)) - value
						if packed := (uint32(d*d) << 8) | uint32(q); best > packed {
							best = packed
						}
					}
					t.inverse[mode][table][sel][value] = best
				}
			}
		}
	}
}
