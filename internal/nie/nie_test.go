// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package nie

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestEncodeBN4(tt *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 2, 1))
	m.SetRGBA(0, 0, color.RGBA{0x11, 0x22, 0x33, 0xFF})
	m.SetRGBA(1, 0, color.RGBA{0x00, 0x00, 0x00, 0x00})

	got, err := EncodeBN4(m)
	if err != nil {
		tt.Fatalf("EncodeBN4: %v", err)
	}
	want := []byte{
		0x6E, 0xC3, 0xAF, 0x45, 0xFF, 'b', 'n', '4',
		0x02, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x33, 0x22, 0x11, 0xFF,
		0x00, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		tt.Fatalf("got\n% 02X\nwant\n% 02X", got, want)
	}
}

func TestEncodeBN8(tt *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	m.SetNRGBA(0, 0, color.NRGBA{0x11, 0x22, 0x33, 0x44})

	got, err := EncodeBN8(m)
	if err != nil {
		tt.Fatalf("EncodeBN8: %v", err)
	}
	want := []byte{
		0x6E, 0xC3, 0xAF, 0x45, 0xFF, 'b', 'n', '8',
		0x01, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x33, 0x33, 0x22, 0x22, 0x11, 0x11, 0x44, 0x44,
	}
	if !bytes.Equal(got, want) {
		tt.Fatalf("got\n% 02X\nwant\n% 02X", got, want)
	}
}

func TestEncodeRejectsTranslucentPremultiplied(tt *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 1, 1))
	m.SetRGBA(0, 0, color.RGBA{0x10, 0x10, 0x10, 0x80})
	if _, err := EncodeBN4(m); err != ErrUnsupportedImageType {
		tt.Fatalf("got %v, want %v", err, ErrUnsupportedImageType)
	}
	if _, err := EncodeBN4(image.NewCMYK(image.Rect(0, 0, 1, 1))); err != ErrUnsupportedImageType {
		tt.Fatalf("CMYK: got %v, want %v", err, ErrUnsupportedImageType)
	}
}
