// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package palette collects the distinct sub-block endpoints (base color and
// modifier table) of a run of ETC1 blocks into a codebook, plus the stream of
// codebook indexes that refer back to them, and reorders that codebook with
// the coherence package.
package palette

import (
	"bytes"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/nigeltao/etc1/lib/coherence"
	"github.com/nigeltao/etc1/lib/etc1"
)

var (
	ErrBadArgument = errors.New("palette: bad argument")
)

// Endpoint is one sub-block's base color, expanded to 8 bits per channel,
// and modifier table.
type Endpoint struct {
	Color [3]uint8
	Table uint8
}

// Endpoints returns the distinct endpoints of blocks, in first-seen order,
// and refs, which holds two codebook indexes per block (the first and then
// the second sub-block).
//
// Malformed (differential overflow) blocks contribute their clamped colors.
func Endpoints(blocks []etc1.Block) (entries []Endpoint, refs []int) {
	seen := map[Endpoint]int{}
	refs = make([]int, 0, 2*len(blocks))
	for _, b := range blocks {
		info, _ := b.Info()
		for i := range 2 {
			e := Endpoint{Color: info.Bases[i], Table: info.Tables[i]}
			index, ok := seen[e]
			if !ok {
				index = len(entries)
				seen[e] = index
				entries = append(entries, e)
			}
			refs = append(refs, index)
		}
	}
	return entries, refs
}

// tablePenalty is the distance added per step of modifier table difference.
// Neighboring tables' modifiers differ by roughly a third.
const tablePenalty = 0.02

// Similarity returns a coherence.Similarity over the indexes of entries.
// It is 1/(1+d), where d is the CIE L*a*b* distance between the two colors
// plus a small penalty for differing modifier tables.
func Similarity(entries []Endpoint) coherence.Similarity {
	labs := make([]colorful.Color, len(entries))
	for i, e := range entries {
		labs[i] = colorful.Color{
			R: float64(e.Color[0]) / 255,
			G: float64(e.Color[1]) / 255,
			B: float64(e.Color[2]) / 255,
		}
	}
	return func(a int, b int) float64 {
		d := labs[a].DistanceLab(labs[b])
		t := int(entries[a].Table) - int(entries[b].Table)
		if t < 0 {
			t = -t
		}
		d += tablePenalty * float64(t)
		return 1 / (1 + d)
	}
}

// Reorder reorders entries so that similar ones are adjacent, rewriting refs
// to match. weight is passed on to coherence.BuildReorderTable.
//
// It returns new slices. The arguments are not modified.
func Reorder(entries []Endpoint, refs []int, weight float64) ([]Endpoint, []int, error) {
	n := len(entries)
	for _, r := range refs {
		if (r < 0) || (n <= r) {
			return nil, nil, ErrBadArgument
		}
	}
	if n == 0 {
		return nil, nil, nil
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	remap, err := coherence.BuildReorderTable(n, indices, Similarity(entries), weight)
	if err != nil {
		return nil, nil, err
	}

	newEntries := make([]Endpoint, n)
	for i, pos := range remap {
		newEntries[pos] = entries[i]
	}
	newRefs := make([]int, len(refs))
	for i, r := range refs {
		newRefs[i] = remap[r]
	}
	return newEntries, newRefs, nil
}

var sharedEncoder struct {
	once sync.Once
	mu   sync.Mutex
	enc  *zstd.Encoder
	err  error
}

// StreamCost returns the zstd compressed size of entries and refs, each delta
// coded against its predecessor. Smaller means more coherent.
func StreamCost(entries []Endpoint, refs []int) (int, error) {
	n := len(entries)
	data := make([]byte, 0, (4*n)+(2*len(refs)))
	prev := Endpoint{}
	for _, e := range entries {
		data = append(data,
			e.Color[0]-prev.Color[0],
			e.Color[1]-prev.Color[1],
			e.Color[2]-prev.Color[2],
			e.Table-prev.Table,
		)
		prev = e
	}
	prevRef := 0
	for _, r := range refs {
		if (r < 0) || (n <= r) {
			return 0, ErrBadArgument
		}
		d := uint16(r - prevRef)
		data = append(data, uint8(d>>8), uint8(d>>0))
		prevRef = r
	}

	sharedEncoder.once.Do(func() {
		sharedEncoder.enc, sharedEncoder.err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderConcurrency(1),
		)
	})
	if sharedEncoder.err != nil {
		return 0, sharedEncoder.err
	}
	sharedEncoder.mu.Lock()
	defer sharedEncoder.mu.Unlock()

	buf := &bytes.Buffer{}
	sharedEncoder.enc.Reset(buf)
	if _, err := sharedEncoder.enc.Write(data); err != nil {
		sharedEncoder.enc.Close()
		return 0, err
	} else if err := sharedEncoder.enc.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
