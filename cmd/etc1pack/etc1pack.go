// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// etc1pack decodes and encodes the ETC1 (Ericsson Texture Compression 1) lossy
// image file format.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/nigeltao/etc1/internal/nie"
	"github.com/nigeltao/etc1/internal/squash"
	"github.com/nigeltao/etc1/lib/etc1"
	"github.com/nigeltao/etc1/lib/palette"
	"github.com/nigeltao/etc1/lib/pkm"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	decodeFlag   = flag.Bool("decode", false, "whether to decode the input")
	encodeFlag   = flag.Bool("encode", false, "whether to encode the input")
	outputFlag   = flag.String("output", "", "output format")
	qualityFlag  = flag.String("quality", "high", "encoding quality: low, medium or high")
	ditherFlag   = flag.Bool("dither", false, "whether to dither before encoding")
	workersFlag  = flag.Int("workers", 0, "number of encoding goroutines (0 means GOMAXPROCS)")
	compressFlag = flag.String("compress", "none", "output compression: none, lz4 or zstd")
	statsFlag    = flag.Bool("stats", false, "whether to print statistics to stderr")
	verboseFlag  = flag.Bool("v", false, "whether to log progress to stderr")
)

const usageStr = `etc1pack decodes and encodes the ETC1 lossy image file format.

Usage: choose one of

    etc1pack -decode [path]
    etc1pack -encode [path]

The path to the input image file is optional. If omitted, stdin is read.

When decoding you can also pass one of these flags (before the path):

    -output=nie-bn4
    -output=nie-bn8
    -output=png (this is the default)

When encoding you can also pass these flags (before the path):

    -output=pkm (this is the default)
    -quality=low|medium|high (high is the default)
    -dither
    -workers=N

Either way, you can also pass:

    -compress=none|lz4|zstd (none is the default)
    -stats
    -v

The output image (in NIE/PNG or PKM format, optionally wrapped in an LZ4 or
Zstandard frame) is written to stdout, which must not be a terminal.

Decode inputs PKM and outputs NIE/PNG. LZ4 or Zstandard wrapped PKM input is
unwrapped automatically.
Encode inputs BMP, GIF, JPEG, PNG, TIFF or WEBP and outputs PKM.
`

var (
	ErrBadOutputFlag = errors.New("main: bad -output flag")
	ErrStdoutIsATTY  = errors.New("main: refusing to write binary output to a terminal")
)

func main() {
	if err := main1(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func main1() error {
	flag.Usage = func() { os.Stderr.WriteString(usageStr) }
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("etc1pack: ")

	inFile := os.Stdin
	switch flag.NArg() {
	case 0:
		// No-op.
	case 1:
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		inFile = f
	default:
		return errors.New("too many filenames; the maximum is one")
	}

	if *decodeFlag == *encodeFlag {
		return errors.New("must specify exactly one of -decode, -encode or -help")
	}
	method, err := squash.ParseMethod(*compressFlag)
	if err != nil {
		return fmt.Errorf("%w: %q", err, *compressFlag)
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrStdoutIsATTY
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *decodeFlag {
		return decode(inFile, method)
	}
	return encode(ctx, inFile, method)
}

func logf(format string, args ...any) {
	if *verboseFlag {
		log.Printf(format, args...)
	}
}

// writeOutput writes to stdout through the -compress layer.
func writeOutput(method squash.Method, write func(w io.Writer) error) error {
	w, err := squash.NewWriter(os.Stdout, method)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func decode(inFile *os.File, method squash.Method) error {
	switch *outputFlag {
	case "", "nie-bn4", "nie-bn8", "png":
		// No-op.
	default:
		return fmt.Errorf("%w: %q", ErrBadOutputFlag, *outputFlag)
	}

	r, inMethod, err := squash.NewReader(inFile)
	if err != nil {
		return err
	}
	defer r.Close()
	logf("decoding PKM (compression: %v)", inMethod)

	src, numInvalid, err := pkm.DecodeWithStats(r)
	if err != nil {
		return err
	}
	b := src.Bounds()
	logf("decoded %dx%d", b.Dx(), b.Dy())
	if *statsFlag {
		fmt.Fprintf(os.Stderr, "invalid blocks: %d\n", numInvalid)
	}

	return writeOutput(method, func(w io.Writer) error {
		switch *outputFlag {
		case "nie-bn4", "nie-bn8":
			encodeNIE := nie.EncodeBN4
			if *outputFlag == "nie-bn8" {
				encodeNIE = nie.EncodeBN8
			}
			dst, err := encodeNIE(src)
			if err != nil {
				return err
			}
			_, err = w.Write(dst)
			return err
		}
		return png.Encode(w, src)
	})
}

func encode(ctx context.Context, inFile *os.File, method squash.Method) error {
	switch *outputFlag {
	case "", "pkm":
		// No-op.
	default:
		return fmt.Errorf("%w: %q", ErrBadOutputFlag, *outputFlag)
	}

	quality, err := etc1.ParseQuality(*qualityFlag)
	if err != nil {
		return fmt.Errorf("%w: %q", err, *qualityFlag)
	}
	options := &etc1.EncodeOptions{
		Quality:   quality,
		Dithering: *ditherFlag,
		Workers:   *workersFlag,
	}

	src, format, err := image.Decode(inFile)
	if err != nil {
		return err
	}
	b := src.Bounds()
	h := pkm.Header{Width: b.Dx(), Height: b.Dy()}
	logf("encoding %dx%d %s image (quality: %v, dithering: %t)", h.Width, h.Height, format, quality, *ditherFlag)

	blocks, sumSquaredError, err := etc1.EncodeBlocks(ctx, src, options)
	if err != nil {
		return err
	}
	logf("encoded %d blocks", len(blocks))

	if *statsFlag {
		if err := printEncodeStats(blocks, sumSquaredError); err != nil {
			return err
		}
	}

	return writeOutput(method, func(w io.Writer) error {
		return pkm.WriteBlocks(w, h, blocks)
	})
}

const (
	// reorderWeight favors similarity over keeping the first-seen order.
	reorderWeight = 0.9

	// maxReorderEntries bounds the palette size given to palette.Reorder,
	// whose running time is quadratic in the number of entries.
	maxReorderEntries = 8192
)

func printEncodeStats(blocks []etc1.Block, sumSquaredError uint64) error {
	numSamples := float64(3 * 16 * len(blocks))
	psnr := math.Inf(+1)
	if sumSquaredError > 0 {
		mse := float64(sumSquaredError) / numSamples
		psnr = 10 * math.Log10((255*255)/mse)
	}
	fmt.Fprintf(os.Stderr, "squared error: %d\n", sumSquaredError)
	fmt.Fprintf(os.Stderr, "PSNR: %.3f dB\n", psnr)

	numInvalid := 0
	for _, block := range blocks {
		if _, valid := block.Info(); !valid {
			numInvalid++
		}
	}
	fmt.Fprintf(os.Stderr, "invalid blocks: %d\n", numInvalid)

	entries, refs := palette.Endpoints(blocks)
	before, err := palette.StreamCost(entries, refs)
	if err != nil {
		return err
	}
	if len(entries) > maxReorderEntries {
		fmt.Fprintf(os.Stderr, "endpoint palette: %d entries, zstd cost %d bytes (too many to reorder)\n",
			len(entries), before)
		return nil
	}
	newEntries, newRefs, err := palette.Reorder(entries, refs, reorderWeight)
	if err != nil {
		return err
	}
	after, err := palette.StreamCost(newEntries, newRefs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "endpoint palette: %d entries, zstd cost %d bytes (%d after reordering)\n",
		len(entries), before, after)
	return nil
}
