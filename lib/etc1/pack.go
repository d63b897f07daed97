// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package etc1

const (
	maxScanRadius = 2
	maxCandidates = (2*maxScanRadius + 1) * (2*maxScanRadius + 1) * (2*maxScanRadius + 1)
)

// halfBlockCandidate is one quantized base color for one sub-block, with the
// best intensity table and selectors for that base.
type halfBlockCandidate struct {
	base    [3]int32
	table   uint32
	indexes uint32
	loss    int32
}

type halfBlockCandidates struct {
	n int
	c [maxCandidates]halfBlockCandidate
}

// best returns the lowest loss candidate, preferring earlier ones on ties.
func (h *halfBlockCandidates) best() *halfBlockCandidate {
	ret := &h.c[0]
	for i := 1; i < h.n; i++ {
		if ret.loss > h.c[i].loss {
			ret = &h.c[i]
		}
	}
	return ret
}

// blockEncoder is the per-call packing state. It lives on the stack of
// Packer.EncodeBlock and is never shared.
type blockEncoder struct {
	t      *tables
	pixels Pixels
	radius int32
	cands  [2]halfBlockCandidates
}

// ditherOffsets is a 4×4 ordered (Bayer) dither matrix, indexed by (4 * y) +
// x, scaled to roughly one RGB555 quantization step.
var ditherOffsets = [16]int8{
	-4, +0, -3, +1,
	+2, -2, +3, -1,
	-2, +2, -3, +1,
	+4, +0, +3, -1,
}

func (e *blockEncoder) dither() {
	for i, d := range ditherOffsets {
		for c := range 3 {
			p := &e.pixels[(4*i)+c]
			*p = uint8(max(0, min(255, int32(*p)+int32(d))))
		}
	}
}

func (e *blockEncoder) encode() (bestCode uint64, bestLoss int32) {
	if e.isSolid() {
		return e.encodeSolid()
	}

	bestLoss = maxInt32
	for flipBit := range uint32(2) {
		if code, loss := e.encodeIndividual(flipBit); bestLoss > loss {
			bestCode, bestLoss = code, loss
		}
		if code, loss, ok := e.encodeDifferential(flipBit); ok && (bestLoss > loss) {
			bestCode, bestLoss = code, loss
		}
	}
	return bestCode, bestLoss
}

func (e *blockEncoder) isSolid() bool {
	for i := 4; i < 64; i += 4 {
		if (e.pixels[i+0] != e.pixels[0]) ||
			(e.pixels[i+1] != e.pixels[1]) ||
			(e.pixels[i+2] != e.pixels[2]) {
			return false
		}
	}
	return true
}

// encodeSolid finds the exact optimum for a block whose 16 pixels share one
// RGB color, via the inverse lookup tables.
func (e *blockEncoder) encodeSolid() (uint64, int32) {
	r, g, b := e.pixels[0], e.pixels[1], e.pixels[2]

	bestMode, bestTable, bestSel, bestLoss := 0, 0, 0, maxInt32
	for mode := range 2 {
		for table := range 8 {
			for sel := range 4 {
				inv := &e.t.inverse[mode][table][sel]
				loss := int32((inv[r] >> 8) + (inv[g] >> 8) + (inv[b] >> 8))
				if bestLoss > loss {
					bestMode, bestTable, bestSel, bestLoss = mode, table, sel, loss
				}
			}
		}
	}

	inv := &e.t.inverse[bestMode][bestTable][bestSel]
	q0 := uint64(inv[r] & 0xFF)
	q1 := uint64(inv[g] & 0xFF)
	q2 := uint64(inv[b] & 0xFF)

	code := 0 |
		(uint64(bestTable) << 37) |
		(uint64(bestTable) << 34)
	if bestMode == 0 {
		// Differential, with a zero delta.
		code |= (q0 << 59) | (q1 << 51) | (q2 << 43) | (1 << 33)
	} else {
		code |= (q0 << 60) | (q0 << 56) | (q1 << 52) | (q1 << 48) | (q2 << 44) | (q2 << 40)
	}
	if (bestSel & 2) != 0 {
		code |= 0xFFFF_0000
	}
	if (bestSel & 1) != 0 {
		code |= 0x0000_FFFF
	}
	return code, 16 * bestLoss
}

func (e *blockEncoder) encodeIndividual(flipBit uint32) (uint64, int32) {
	e.scan(&e.cands[0], int(2*flipBit)+0, 15)
	e.scan(&e.cands[1], int(2*flipBit)+1, 15)
	c0 := e.cands[0].best()
	c1 := e.cands[1].best()

	code := 0 |
		(uint64(c0.base[0]) << (64 - 4)) |
		(uint64(c1.base[0]) << (60 - 4)) |
		(uint64(c0.base[1]) << (56 - 4)) |
		(uint64(c1.base[1]) << (52 - 4)) |
		(uint64(c0.base[2]) << (48 - 4)) |
		(uint64(c1.base[2]) << (44 - 4)) |
		(uint64(c0.table) << (40 - 3)) |
		(uint64(c1.table) << (37 - 3)) |
		(uint64(flipBit) << (33 - 1)) |
		uint64(c1.indexes) |
		uint64(c0.indexes)
	return code, c0.loss + c1.loss
}

// encodeDifferential returns ok == false if no pair of scanned base colors is
// close enough to be delta coded.
func (e *blockEncoder) encodeDifferential(flipBit uint32) (code uint64, loss int32, ok bool) {
	e.scan(&e.cands[0], int(2*flipBit)+0, 31)
	e.scan(&e.cands[1], int(2*flipBit)+1, 31)
	h0, h1 := &e.cands[0], &e.cands[1]

	bestI, bestJ, bestLoss := -1, -1, maxInt32
	for i := range h0.n {
		c0 := &h0.c[i]
		if c0.loss >= bestLoss {
			continue
		}
		for j := range h1.n {
			c1 := &h1.c[j]
			d0 := c1.base[0] - c0.base[0]
			d1 := c1.base[1] - c0.base[1]
			d2 := c1.base[2] - c0.base[2]
			if (d0 < -4) || (+3 < d0) ||
				(d1 < -4) || (+3 < d1) ||
				(d2 < -4) || (+3 < d2) {
				continue
			}
			if l := c0.loss + c1.loss; bestLoss > l {
				bestI, bestJ, bestLoss = i, j, l
			}
		}
	}
	if bestI < 0 {
		return 0, maxInt32, false
	}

	const diffBit = 1
	c0, c1 := &h0.c[bestI], &h1.c[bestJ]
	diff0 := c1.base[0] - c0.base[0]
	diff1 := c1.base[1] - c0.base[1]
	diff2 := c1.base[2] - c0.base[2]

	code = 0 |
		(uint64(c0.base[0]) << (64 - 5)) |
		(uint64(diff0&7) << (59 - 3)) |
		(uint64(c0.base[1]) << (56 - 5)) |
		(uint64(diff1&7) << (51 - 3)) |
		(uint64(c0.base[2]) << (48 - 5)) |
		(uint64(diff2&7) << (43 - 3)) |
		(uint64(c0.table) << (40 - 3)) |
		(uint64(c1.table) << (37 - 3)) |
		(uint64(diffBit) << (34 - 1)) |
		(uint64(flipBit) << (33 - 1)) |
		uint64(c1.indexes) |
		uint64(c0.indexes)
	return code, bestLoss, true
}

// scan fills dst with every base color, quantized to limit (15 or 31) per
// channel, within e.radius steps of the sub-block's rounded average color.
//
// The scanned cube only grows with the radius, so each Quality's candidates
// are a superset of the lower Qualities' candidates.
func (e *blockEncoder) scan(dst *halfBlockCandidates, orientation int, limit int32) {
	avgs := e.calculateRGBAverages(orientation)
	centre := [3]int32{
		int32(((avgs[0] * float64(limit)) / 255) + 0.5),
		int32(((avgs[1] * float64(limit)) / 255) + 0.5),
		int32(((avgs[2] * float64(limit)) / 255) + 0.5),
	}

	dst.n = 0
	r := e.radius
	for q0 := max(0, centre[0]-r); q0 <= min(limit, centre[0]+r); q0++ {
		for q1 := max(0, centre[1]-r); q1 <= min(limit, centre[1]+r); q1++ {
			for q2 := max(0, centre[2]-r); q2 <= min(limit, centre[2]+r); q2++ {
				base := [3]int32{}
				if limit == 31 {
					base = [3]int32{int32(expand5(q0)), int32(expand5(q1)), int32(expand5(q2))}
				} else {
					base = [3]int32{int32(expand4(q0)), int32(expand4(q1)), int32(expand4(q2))}
				}

				c := &dst.c[dst.n]
				dst.n++
				c.base = [3]int32{q0, q1, q2}
				c.table, c.indexes, c.loss = e.encodeHalfBlock(orientation, &base)
			}
		}
	}
}

func (e *blockEncoder) calculateRGBAverages(orientation int) [3]float64 {
	sums := [3]int32{}
	for i := range 8 {
		offset := perOrientationPixelsOffsets[orientation][i]
		sums[0] += int32(e.pixels[offset+0])
		sums[1] += int32(e.pixels[offset+1])
		sums[2] += int32(e.pixels[offset+2])
	}
	return [3]float64{
		float64(sums[0]) / 8,
		float64(sums[1]) / 8,
		float64(sums[2]) / 8,
	}
}

// encodeHalfBlock picks the intensity table, and per-pixel selectors, that
// minimize the sub-block's squared error for the given 8-bit base color.
func (e *blockEncoder) encodeHalfBlock(orientation int, base *[3]int32) (table uint32, indexes uint32, loss int32) {
	loss = maxInt32
	for t := range uint32(8) {
		indexes0, loss0 := e.encodeHalfBlock1(orientation, base, t, loss)
		if loss > loss0 {
			table, indexes, loss = t, indexes0, loss0
		}
	}
	return table, indexes, loss
}

// encodeHalfBlock1 gives up early, returning a loss of at least
// bestLossSoFar, once it cannot beat bestLossSoFar.
func (e *blockEncoder) encodeHalfBlock1(orientation int, base *[3]int32, table uint32, bestLossSoFar int32) (indexes uint32, loss int32) {
	for i := range 8 {
		offset := perOrientationPixelsOffsets[orientation][i]
		orig0 := int32(e.pixels[offset+0])
		orig1 := int32(e.pixels[offset+1])
		orig2 := int32(e.pixels[offset+2])

		bestOneLoss := maxInt32
		bestJ := uint8(0)
		for _, j := range scramble {
			mod := modifiers[table][j]
			delta0 := max(0, min(255, base[0]+mod)) - orig0
			delta1 := max(0, min(255, base[1]+mod)) - orig1
			delta2 := max(0, min(255, base[2]+mod)) - orig2
			oneLoss := (delta0 * delta0) + (delta1 * delta1) + (delta2 * delta2)
			if bestOneLoss > oneLoss {
				bestJ, bestOneLoss = j, oneLoss
			}
		}

		shift := perOrientationShifts[orientation][i]
		indexes |= uint32(bestJ&2) << (shift + 0x0F)
		indexes |= uint32(bestJ&1) << (shift + 0x00)
		loss += bestOneLoss
		if loss >= bestLossSoFar {
			break
		}
	}
	return indexes, loss
}
