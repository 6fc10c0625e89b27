// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package codec defines the contract shared by every compressor and
// expander in this module: a one-shot, one-direction transducer that is
// fed bytes, drained of bytes, and explicitly finished.
package codec

import "errors"

var (
	// ErrConfig means the instance was constructed or used incorrectly
	// (bad option values, Feed after Finish). Caller bug, not data.
	ErrConfig = errors.New("codec misconfigured")

	// ErrCorrupt means the compressed input cannot be decoded: bad
	// magic, out-of-range table or node references, truncation,
	// checksum mismatch. Terminal for the operation; never retried.
	ErrCorrupt = errors.New("corrupt compressed data")

	// ErrInternal marks an invariant violation that valid input can
	// never provoke. Distinct from ErrCorrupt so defects are not
	// mistaken for bad archives.
	ErrInternal = errors.New("internal codec error")
)

// A Transducer compresses or expands exactly one stream.
//
// Feed accepts the next run of input bytes. Produce drains whatever
// output has accumulated so far; compressors may legitimately hold
// everything back until Finish (Squeeze and ZX0 need whole-file
// analysis, NuFX LZW/1 leads with a stream-wide CRC). Finish is
// mandatory in compress mode, flushing pending partial codes and bit
// buffers; skipping it silently truncates the stream. On an expander,
// Finish signals end of compressed input and verifies clean
// termination.
//
// A Transducer is single-threaded and non-reentrant. Independent
// instances share no mutable state and may run on separate goroutines.
type Transducer interface {
	Feed(p []byte) error
	Produce() []byte
	Finish() error
}
