// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package palette

import (
	"context"
	"testing"

	"github.com/nigeltao/etc1/internal/testimage"
	"github.com/nigeltao/etc1/lib/etc1"
)

func TestEndpoints(tt *testing.T) {
	// Individual mode, no flip. Sub-block colors 0x1 and 0x2 (per channel),
	// tables 3 and 5.
	a := etc1.Block(0x1212_1200_0000_0000 | (3 << 37) | (5 << 34))
	// The same, with the sub-blocks swapped.
	b := etc1.Block(0x2121_2100_0000_0000 | (5 << 37) | (3 << 34))

	entries, refs := Endpoints([]etc1.Block{a, b, a})
	want := []Endpoint{
		{Color: [3]uint8{0x11, 0x11, 0x11}, Table: 3},
		{Color: [3]uint8{0x22, 0x22, 0x22}, Table: 5},
	}
	if len(entries) != len(want) {
		tt.Fatalf("entries: got %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			tt.Fatalf("entries: got %v, want %v", entries, want)
		}
	}
	wantRefs := []int{0, 1, 1, 0, 0, 1}
	for i := range wantRefs {
		if refs[i] != wantRefs[i] {
			tt.Fatalf("refs: got %v, want %v", refs, wantRefs)
		}
	}
}

func TestSimilarity(tt *testing.T) {
	entries := []Endpoint{
		{Color: [3]uint8{0x00, 0x00, 0x00}, Table: 0},
		{Color: [3]uint8{0x08, 0x08, 0x08}, Table: 0},
		{Color: [3]uint8{0xFF, 0x00, 0x00}, Table: 0},
		{Color: [3]uint8{0x00, 0x00, 0x00}, Table: 7},
	}
	sim := Similarity(entries)

	if got := sim(0, 0); got != 1 {
		tt.Errorf("self: got %g, want 1", got)
	}
	if sim(0, 1) != sim(1, 0) {
		tt.Errorf("not symmetric")
	}
	if !(sim(0, 1) > sim(0, 2)) {
		tt.Errorf("dark gray should be more like black than red is")
	}
	if !(sim(0, 3) < 1) {
		tt.Errorf("differing tables should lower the score")
	}
}

func TestReorder(tt *testing.T) {
	src, err := testimage.Digits("49", 64)
	if err != nil {
		tt.Fatalf("testimage.Digits: %v", err)
	}
	blocks, _, err := etc1.EncodeBlocks(context.Background(), src, &etc1.EncodeOptions{
		Quality: etc1.QualityLow,
	})
	if err != nil {
		tt.Fatalf("EncodeBlocks: %v", err)
	}
	entries, refs := Endpoints(blocks)

	newEntries, newRefs, err := Reorder(entries, refs, 0.9)
	if err != nil {
		tt.Fatalf("Reorder: %v", err)
	}
	if len(newEntries) != len(entries) || len(newRefs) != len(refs) {
		tt.Fatalf("lengths changed")
	}
	for i := range refs {
		if newEntries[newRefs[i]] != entries[refs[i]] {
			tt.Fatalf("ref #%d: got %v, want %v", i, newEntries[newRefs[i]], entries[refs[i]])
		}
	}

	seen := map[Endpoint]bool{}
	for _, e := range newEntries {
		seen[e] = true
	}
	if len(seen) != len(entries) {
		tt.Fatalf("entries are not a permutation")
	}

	if _, _, err := Reorder(entries, []int{len(entries)}, 0.9); err != ErrBadArgument {
		tt.Errorf("bad ref: got %v, want %v", err, ErrBadArgument)
	}
	if e, r, err := Reorder(nil, nil, 0.9); (e != nil) || (r != nil) || (err != nil) {
		tt.Errorf("empty: got %v, %v, %v", e, r, err)
	}
}

func TestStreamCost(tt *testing.T) {
	entries := []Endpoint{
		{Color: [3]uint8{0x10, 0x20, 0x30}, Table: 1},
		{Color: [3]uint8{0x11, 0x21, 0x31}, Table: 1},
	}
	refs := []int{0, 1, 1, 0}

	got, err := StreamCost(entries, refs)
	if err != nil {
		tt.Fatalf("StreamCost: %v", err)
	} else if got <= 0 {
		tt.Fatalf("got %d, want > 0", got)
	}
	again, err := StreamCost(entries, refs)
	if err != nil {
		tt.Fatalf("StreamCost: %v", err)
	} else if again != got {
		tt.Fatalf("not deterministic: %d then %d", got, again)
	}

	if _, err := StreamCost(entries, []int{2}); err != ErrBadArgument {
		tt.Fatalf("bad ref: got %v, want %v", err, ErrBadArgument)
	}
}
