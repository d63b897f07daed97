// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package pkm implements the PKM container format for ETC1 textures.
//
// A PKM file is a 16 byte header (magic, version, data type, then padded and
// actual width and height, all big-endian) followed by the ETC1 blocks in
// raster order.
package pkm

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"

	"github.com/nigeltao/etc1/lib/etc1"
)

// Magic is the byte string prefix of every PKM image file.
const Magic = "PKM "

const (
	headerSize = 16

	// version10 is "10", the only PKM version whose data type 0 means ETC1.
	version10Hi = '1'
	version10Lo = '0'

	dataTypeETC1RGBNoMipmaps = 0x00
)

func init() {
	image.RegisterFormat("pkm", Magic, Decode, DecodeConfig)
}

var (
	ErrBadArgument     = errors.New("pkm: bad argument")
	ErrNotAPKMFile     = errors.New("pkm: not a PKM file")
	ErrImageIsTooLarge = errors.New("pkm: image is too large")
)

// Header is a PKM file's decoded header.
type Header struct {
	Width  int
	Height int
}

// PaddedWidth returns the width rounded up to a multiple of 4.
func (h Header) PaddedWidth() int { return (h.Width + 3) &^ 3 }

// PaddedHeight returns the height rounded up to a multiple of 4.
func (h Header) PaddedHeight() int { return (h.Height + 3) &^ 3 }

// NumBlocks returns the number of ETC1 blocks following the header.
func (h Header) NumBlocks() int { return (h.PaddedWidth() / 4) * (h.PaddedHeight() / 4) }

// ReadHeader reads and validates a PKM header from r.
func ReadHeader(r io.Reader) (Header, error) {
	buf := [headerSize]byte{}
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, err
	} else if (buf[0] != Magic[0]) ||
		(buf[1] != Magic[1]) ||
		(buf[2] != Magic[2]) ||
		(buf[3] != Magic[3]) ||
		(buf[4] != version10Hi) ||
		(buf[5] != version10Lo) ||
		(buf[6] != 0x00) ||
		(buf[7] != dataTypeETC1RGBNoMipmaps) {
		return Header{}, ErrNotAPKMFile
	}

	roundedUpWidth := (uint32(buf[8]) << 8) | uint32(buf[9])
	roundedUpHeight := (uint32(buf[10]) << 8) | uint32(buf[11])
	width := (uint32(buf[12]) << 8) | uint32(buf[13])
	height := (uint32(buf[14]) << 8) | uint32(buf[15])

	if (((width + 3) &^ 3) != roundedUpWidth) ||
		(((height + 3) &^ 3) != roundedUpHeight) {
		return Header{}, ErrNotAPKMFile
	}
	return Header{Width: int(width), Height: int(height)}, nil
}

// WriteHeader writes h to w.
func WriteHeader(w io.Writer, h Header) error {
	if (h.Width < 0) || (h.Height < 0) {
		return ErrBadArgument
	} else if (h.Width > 65532) || (h.Height > 65532) {
		return ErrImageIsTooLarge
	}

	buf := [headerSize]byte{}
	copy(buf[:4], Magic)
	buf[0x04] = version10Hi
	buf[0x05] = version10Lo
	buf[0x06] = 0x00
	buf[0x07] = dataTypeETC1RGBNoMipmaps

	roundedUpW := h.PaddedWidth()
	roundedUpH := h.PaddedHeight()
	buf[0x08] = uint8(roundedUpW >> 8)
	buf[0x09] = uint8(roundedUpW >> 0)
	buf[0x0A] = uint8(roundedUpH >> 8)
	buf[0x0B] = uint8(roundedUpH >> 0)
	buf[0x0C] = uint8(h.Width >> 8)
	buf[0x0D] = uint8(h.Width >> 0)
	buf[0x0E] = uint8(h.Height >> 8)
	buf[0x0F] = uint8(h.Height >> 0)
	_, err := w.Write(buf[:])
	return err
}

// DecodeConfig reads a PKM image configuration from r.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      h.Width,
		Height:     h.Height,
	}, nil
}

// Decode reads a PKM image from r. Malformed ETC1 blocks are decoded with
// clamping, not rejected. Use DecodeWithStats to count them.
func Decode(r io.Reader) (image.Image, error) {
	m, _, err := DecodeWithStats(r)
	return m, err
}

// DecodeWithStats is like Decode but also returns the number of malformed
// ETC1 blocks.
func DecodeWithStats(r io.Reader) (m image.Image, numInvalid int, retErr error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, 0, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, h.PaddedWidth(), h.PaddedHeight()))
	if numInvalid, err = etc1.Decode(dst, r); err != nil {
		return nil, numInvalid, err
	}
	return dst.SubImage(image.Rect(0, 0, h.Width, h.Height)), numInvalid, nil
}

// EncodeOptions are optional arguments to Encode. The zero value is valid and
// means to use the default configuration.
type EncodeOptions struct {
	// ETC1 holds the block packing options. nil means the etc1 defaults.
	ETC1 *etc1.EncodeOptions
}

// Encode writes src to w in the PKM format.
//
// options may be nil, which means to use the default configuration.
func Encode(w io.Writer, src image.Image, options *EncodeOptions) error {
	_, err := EncodeContext(context.Background(), w, src, options)
	return err
}

// EncodeContext is like Encode but takes a context, passed on to
// etc1.EncodeBlocks, and returns the total squared packing error.
func EncodeContext(ctx context.Context, w io.Writer, src image.Image, options *EncodeOptions) (sumSquaredError uint64, retErr error) {
	if (w == nil) || (src == nil) {
		return 0, ErrBadArgument
	}
	b := src.Bounds()
	h := Header{Width: b.Dx(), Height: b.Dy()}
	if (h.Width > 65532) || (h.Height > 65532) {
		return 0, ErrImageIsTooLarge
	}

	var etc1Options *etc1.EncodeOptions
	if options != nil {
		etc1Options = options.ETC1
	}
	blocks, sumSquaredError, err := etc1.EncodeBlocks(ctx, src, etc1Options)
	if err != nil {
		return 0, err
	}
	return sumSquaredError, WriteBlocks(w, h, blocks)
}

// WriteBlocks writes a header and then blocks, which must number
// h.NumBlocks(), to w.
func WriteBlocks(w io.Writer, h Header, blocks []etc1.Block) error {
	if len(blocks) != h.NumBlocks() {
		return ErrBadArgument
	}
	if err := WriteHeader(w, h); err != nil {
		return err
	}

	buf, bufJ := [4096]byte{}, 0
	for _, block := range blocks {
		block.Put(buf[bufJ:])
		if bufJ += etc1.BytesPerBlock; bufJ == len(buf) {
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
			bufJ = 0
		}
	}
	if bufJ > 0 {
		if _, err := w.Write(buf[:bufJ]); err != nil {
			return err
		}
	}
	return nil
}

// ReadBlocks reads a header and then its blocks from r.
func ReadBlocks(r io.Reader) (Header, []etc1.Block, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	data := make([]byte, h.NumBlocks()*etc1.BytesPerBlock)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, nil, err
	}
	blocks := make([]etc1.Block, h.NumBlocks())
	for i := range blocks {
		blocks[i] = etc1.LoadBlock(data[i*etc1.BytesPerBlock:])
	}
	return h, blocks, nil
}
