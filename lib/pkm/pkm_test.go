// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package pkm

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/nigeltao/etc1/internal/nie"
	"github.com/nigeltao/etc1/lib/etc1"
)

func makeTestImage(w int, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			m.SetNRGBA(x, y, color.NRGBA{uint8(11 * x), uint8(7 * y), uint8(3 * (x + y)), 0xFF})
		}
	}
	return m
}

func TestHeaderRoundTrip(tt *testing.T) {
	testCases := []Header{
		{0, 0},
		{1, 1},
		{21, 32},
		{54, 64},
		{65532, 3},
	}

	for _, tc := range testCases {
		buf := &bytes.Buffer{}
		if err := WriteHeader(buf, tc); err != nil {
			tt.Errorf("tc=%v: WriteHeader: %v", tc, err)
			continue
		}
		if buf.Len() != headerSize {
			tt.Errorf("tc=%v: header length: got %d, want %d", tc, buf.Len(), headerSize)
			continue
		}
		got, err := ReadHeader(buf)
		if err != nil {
			tt.Errorf("tc=%v: ReadHeader: %v", tc, err)
		} else if got != tc {
			tt.Errorf("tc=%v: got %v", tc, got)
		}
	}
}

func TestReadHeaderRejects(tt *testing.T) {
	valid := []byte("PKM 10\x00\x00\x00\x18\x00\x20\x00\x15\x00\x20")
	if _, err := ReadHeader(bytes.NewReader(valid)); err != nil {
		tt.Fatalf("valid: %v", err)
	}

	testCases := []struct {
		name   string
		offset int
		value  byte
	}{
		{"magic", 0, 'Q'},
		{"version", 4, '2'},
		{"dataType", 7, 0x01},
		{"paddedWidth", 9, 0x14},
		{"height", 15, 0x40},
	}

	for _, tc := range testCases {
		b := bytes.Clone(valid)
		b[tc.offset] = tc.value
		if _, err := ReadHeader(bytes.NewReader(b)); err != ErrNotAPKMFile {
			tt.Errorf("tc=%q: got %v, want %v", tc.name, err, ErrNotAPKMFile)
		}
	}

	if _, err := ReadHeader(bytes.NewReader(valid[:9])); err == nil {
		tt.Errorf("truncated: got nil error")
	}
}

func TestEncodeDecode(tt *testing.T) {
	testCases := []struct {
		w, h int
	}{
		{4, 4},
		{21, 13},
		{24, 32},
	}

	for _, tc := range testCases {
		src := makeTestImage(tc.w, tc.h)
		buf := &bytes.Buffer{}
		options := &EncodeOptions{ETC1: &etc1.EncodeOptions{Quality: etc1.QualityLow}}
		if err := Encode(buf, src, options); err != nil {
			tt.Errorf("tc=%v: Encode: %v", tc, err)
			continue
		}
		numBlocks := ((tc.w + 3) / 4) * ((tc.h + 3) / 4)
		if got, want := buf.Len(), headerSize+(numBlocks*etc1.BytesPerBlock); got != want {
			tt.Errorf("tc=%v: length: got %d, want %d", tc, got, want)
			continue
		}
		encoded := buf.Bytes()

		m, format, err := image.Decode(bytes.NewReader(encoded))
		if err != nil {
			tt.Errorf("tc=%v: image.Decode: %v", tc, err)
			continue
		} else if format != "pkm" {
			tt.Errorf("tc=%v: format: got %q, want %q", tc, format, "pkm")
			continue
		}
		if got := m.Bounds(); got != image.Rect(0, 0, tc.w, tc.h) {
			tt.Errorf("tc=%v: bounds: got %v", tc, got)
			continue
		}

		m2, numInvalid, err := DecodeWithStats(bytes.NewReader(encoded))
		if err != nil {
			tt.Errorf("tc=%v: DecodeWithStats: %v", tc, err)
			continue
		} else if numInvalid != 0 {
			tt.Errorf("tc=%v: numInvalid: got %d, want 0", tc, numInvalid)
		}

		nie1, err := nie.EncodeBN4(m)
		if err != nil {
			tt.Errorf("tc=%v: nie.EncodeBN4: %v", tc, err)
			continue
		}
		nie2, err := nie.EncodeBN4(m2)
		if err != nil {
			tt.Errorf("tc=%v: nie.EncodeBN4: %v", tc, err)
			continue
		}
		if !bytes.Equal(nie1, nie2) {
			tt.Errorf("tc=%v: Decode and DecodeWithStats disagree", tc)
		}

		h, blocks, err := ReadBlocks(bytes.NewReader(encoded))
		if err != nil {
			tt.Errorf("tc=%v: ReadBlocks: %v", tc, err)
			continue
		}
		want, _, err := etc1.EncodeBlocks(context.Background(), src, options.ETC1)
		if err != nil {
			tt.Errorf("tc=%v: etc1.EncodeBlocks: %v", tc, err)
			continue
		}
		if (h.Width != tc.w) || (h.Height != tc.h) || (len(blocks) != len(want)) {
			tt.Errorf("tc=%v: ReadBlocks: got %v with %d blocks", tc, h, len(blocks))
			continue
		}
		for i := range want {
			if blocks[i] != want[i] {
				tt.Errorf("tc=%v: block %d: got 0x%016X, want 0x%016X", tc, i, blocks[i], want[i])
				break
			}
		}

		rewritten := &bytes.Buffer{}
		if err := WriteBlocks(rewritten, h, blocks); err != nil {
			tt.Errorf("tc=%v: WriteBlocks: %v", tc, err)
		} else if !bytes.Equal(rewritten.Bytes(), encoded) {
			tt.Errorf("tc=%v: WriteBlocks did not reproduce the file", tc)
		}
	}
}

func TestDecodeTruncated(tt *testing.T) {
	buf := &bytes.Buffer{}
	if err := Encode(buf, makeTestImage(8, 8), nil); err != nil {
		tt.Fatalf("Encode: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-1]
	if _, err := Decode(bytes.NewReader(truncated)); err == nil {
		tt.Fatalf("got nil error")
	}
}

func TestWriteBlocksBadArgument(tt *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteBlocks(buf, Header{Width: 8, Height: 8}, make([]etc1.Block, 3)); err != ErrBadArgument {
		tt.Fatalf("got %v, want %v", err, ErrBadArgument)
	}
}
