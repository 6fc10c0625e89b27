// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package squeeze is the CP/M-era "Squeeze" format: a run-length pass
// followed by a semi-adaptive Huffman code built from a full pass over
// the run-length output. Compression is therefore two-pass and
// whole-file; nothing is emitted before Finish.
//
// The tree is serialized as a count of internal nodes followed by the
// nodes themselves, children as signed 16-bit references where a
// negative value encodes a literal. An empty file serializes as a node
// count of zero and no data at all, not even the EOF code; the quirk is
// part of the format and preserved here.
package squeeze

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

const (
	// Delimiter is the run-length escape byte, fixed by the format.
	Delimiter = 0x90

	// eofSym terminates the Huffman-coded symbol stream.
	eofSym = 256

	// maxCodeLen bounds Huffman code length; frequencies are rescaled
	// until the tree fits.
	maxCodeLen = 16

	magic1 = 0x76
	magic2 = 0xFF
)

// Options configure the stream framing. A nil *Options means the bare
// tree-plus-data form with no standalone header.
type Options struct {
	// FullHeader prepends the standalone file header: magic, a 16-bit
	// checksum of the original bytes, and a NUL-terminated filename.
	// The expander then verifies the checksum at EOF.
	FullHeader bool
	Filename   string
}

func (o *Options) fullHeader() bool { return o != nil && o.FullHeader }

func (o *Options) filename() string {
	if o == nil {
		return ""
	}
	return o.Filename
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: squeeze: %s", codec.ErrCorrupt, fmt.Sprintf(format, args...))
}

// rlePack run-length encodes src. Runs longer than 2 bytes become
// delim,value,count-1 (count capped at 256); a literal delimiter is
// the zero-length run delim,delim,0.
func rlePack(dst, src []byte) []byte {
	for i := 0; i < len(src); {
		b := src[i]
		n := 1
		for i+n < len(src) && src[i+n] == b && n < 256 {
			n++
		}
		if b == Delimiter || n > 2 {
			dst = append(dst, Delimiter, b, byte(n-1))
		} else {
			for range n {
				dst = append(dst, b)
			}
		}
		i += n
	}
	return dst
}

// rleExpander undoes rlePack one byte at a time, so the Huffman
// decoder can stream symbols straight through it.
type rleExpander struct {
	state int // 0 literal, 1 expecting value, 2 expecting count
	value byte
}

func (r *rleExpander) feed(dst []byte, b byte) []byte {
	switch r.state {
	case 0:
		if b == Delimiter {
			r.state = 1
			return dst
		}
		return append(dst, b)
	case 1:
		r.value = b
		r.state = 2
		return dst
	default:
		r.state = 0
		for range int(b) + 1 {
			dst = append(dst, r.value)
		}
		return dst
	}
}

// midRun reports whether the expander is waiting for the rest of a
// run, which at EOF means a truncated stream.
func (r *rleExpander) midRun() bool { return r.state != 0 }
