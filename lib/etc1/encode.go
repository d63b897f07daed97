// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package etc1

import (
	"context"
	"image"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// EncodeOptions are optional arguments to Encode and EncodeBlocks. The zero
// value is valid and means to use the default configuration.
type EncodeOptions struct {
	// Quality is the per-block search effort. Zero means QualityHigh.
	Quality Quality

	// Dithering is passed through to each block's PackParams.
	Dithering bool

	// Workers caps the number of goroutines packing rows of blocks. Zero or
	// negative means runtime.GOMAXPROCS(0).
	Workers int
}

func (o *EncodeOptions) packParams() PackParams {
	if o == nil {
		return PackParams{}
	}
	return PackParams{Quality: o.Quality, Dithering: o.Dithering}
}

func (o *EncodeOptions) workers() int {
	if (o == nil) || (o.Workers <= 0) {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

// Encode writes src to dst as ETC1 blocks, in raster order, without any
// container header.
//
// options may be nil, which means to use the default configuration.
func Encode(dst io.Writer, src image.Image, options *EncodeOptions) error {
	if dst == nil {
		return ErrBadArgument
	}
	blocks, _, err := EncodeBlocks(context.Background(), src, options)
	if err != nil {
		return err
	}

	buf, bufJ := [encoderBufferSize]byte{}, 0
	for _, block := range blocks {
		block.Put(buf[bufJ:])
		bufJ += BytesPerBlock
		if bufJ == encoderBufferSize {
			if _, err := dst.Write(buf[:]); err != nil {
				return err
			}
			bufJ = 0
		}
	}
	if bufJ > 0 {
		if _, err := dst.Write(buf[:bufJ]); err != nil {
			return err
		}
	}
	return nil
}

const encoderBufferSize = 4096

// EncodeBlocks packs src's 4×4 blocks, in raster order. Partial blocks at the
// right and bottom edges are padded by repeating the edge pixels.
//
// Rows of blocks are packed concurrently. The result does not depend on the
// number of workers. It also returns the total squared error over all blocks,
// padding included.
//
// ctx is checked between rows. options may be nil, which means to use the
// default configuration.
func EncodeBlocks(ctx context.Context, src image.Image, options *EncodeOptions) (blocks []Block, sumSquaredError uint64, retErr error) {
	if src == nil {
		return nil, 0, ErrBadArgument
	}
	params := options.packParams()
	if !params.Quality.Valid() {
		return nil, 0, ErrBadQuality
	}

	b := src.Bounds()
	bW, bH := b.Dx(), b.Dy()
	if (bW > 65532) || (bH > 65532) {
		return nil, 0, ErrImageIsTooLarge
	} else if (bW <= 0) || (bH <= 0) {
		return nil, 0, nil
	}

	numBlocksX, numBlocksY := (bW+3)/4, (bH+3)/4
	blocks = make([]Block, numBlocksX*numBlocksY)
	rowErrors := make([]uint64, numBlocksY)

	packer := NewPacker()
	extract := makeExtract(src)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(options.workers())
	for row := range numBlocksY {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			pixels := Pixels{}
			dst := blocks[row*numBlocksX : (row+1)*numBlocksX]
			for col := range dst {
				extract(&pixels, 4*col, 4*row)
				block, loss := packer.EncodeBlock(&pixels, params)
				dst[col] = block
				rowErrors[row] += loss
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	for _, e := range rowErrors {
		sumSquaredError += e
	}
	return blocks, sumSquaredError, nil
}
