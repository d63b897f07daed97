// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package squash wraps the etc1pack tool's output in an optional general
// purpose compression layer (LZ4 or Zstandard frames) and unwraps its input,
// recognizing either frame format by its magic number.
package squash

import (
	"bufio"
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	ErrUnsupportedMethod = errors.New("squash: unsupported method")
)

// Method is a compression method.
type Method uint8

const (
	MethodNone Method = 0
	MethodLZ4  Method = 1
	MethodZstd Method = 2
)

const (
	magicLZ4  = "\x04\x22\x4D\x18"
	magicZstd = "\x28\xB5\x2F\xFD"
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodLZ4:
		return "lz4"
	case MethodZstd:
		return "zstd"
	}
	return "unknown"
}

// ParseMethod parses "none", "lz4" or "zstd". The empty string means
// MethodNone.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "none":
		return MethodNone, nil
	case "lz4":
		return MethodLZ4, nil
	case "zstd":
		return MethodZstd, nil
	}
	return 0, ErrUnsupportedMethod
}

// Sniff returns the method whose frame magic prefixes data, or MethodNone.
func Sniff(data []byte) Method {
	if len(data) >= 4 {
		switch string(data[:4]) {
		case magicLZ4:
			return MethodLZ4
		case magicZstd:
			return MethodZstd
		}
	}
	return MethodNone
}

// NewWriter returns a writer that compresses to w. Closing it flushes the
// final frame but does not close w.
func NewWriter(w io.Writer, m Method) (io.WriteCloser, error) {
	switch m {
	case MethodNone:
		return nopWriteCloser{w}, nil
	case MethodLZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, err
		}
		return zw, nil
	case MethodZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
		return zw, nil
	}
	return nil, ErrUnsupportedMethod
}

// NewReader returns a reader that decompresses r if it starts with an LZ4 or
// Zstandard frame, and passes it through unchanged otherwise.
func NewReader(r io.Reader) (io.ReadCloser, Method, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(4)
	if (err != nil) && (err != io.EOF) {
		return nil, MethodNone, err
	}

	switch m := Sniff(prefix); m {
	case MethodLZ4:
		return io.NopCloser(lz4.NewReader(br)), m, nil
	case MethodZstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, MethodNone, err
		}
		return zr.IOReadCloser(), m, nil
	}
	return io.NopCloser(br), MethodNone, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
