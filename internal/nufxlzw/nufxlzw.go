// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package nufxlzw is the ShrinkIt compression used inside NuFX
// archives: a run-length pass followed by variable-width LZW over
// independent 4096-byte chunks. Two stream flavours exist, LZW/1
// (P8 ShrinkIt, leading CRC, dictionary reset every chunk) and LZW/2
// (GS/ShrinkIt, dictionary persists across chunks).
//
// The bitstream reproduces the historical format exactly, including
// the "early change" code-width growth and the dictionary clear at
// code 0x0FFD.
package nufxlzw

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

const (
	// ChunkSize is the unit of compression. Chunks always decode to
	// exactly this many bytes; a short final chunk is zero-padded and
	// the consumer trims using the externally-known unpacked length.
	ChunkSize = 4096

	// DefaultDelimiter is the byte ShrinkIt uses to escape runs.
	DefaultDelimiter = 0xDB

	clearCode  = 0x0100
	firstFree  = 0x0101
	tableLimit = 0x0FFD // next-free reaching this forces a clear
	minWidth   = 9
	maxWidth   = 12
	hashSize   = 0x13FF // prime, comfortably above the 0xEFC live entries
)

// Format selects the stream flavour.
type Format int

const (
	LZW1 Format = 1
	LZW2 Format = 2
)

func (f Format) String() string {
	switch f {
	case LZW1:
		return "lzw1"
	case LZW2:
		return "lzw2"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func (f Format) valid() bool { return f == LZW1 || f == LZW2 }

// Options carries the knobs that end up in the stream header.
// A nil *Options means delimiter 0xDB, volume 0.
type Options struct {
	Delimiter *byte // nil means DefaultDelimiter; 0x00 is a valid choice
	Volume    byte  // P8 volume number, recorded but not interpreted
}

func (o *Options) delim() byte {
	if o == nil || o.Delimiter == nil {
		return DefaultDelimiter
	}
	return *o.Delimiter
}

func (o *Options) volume() byte {
	if o == nil {
		return 0
	}
	return o.Volume
}

// Per-byte hash seeds for the compressor trie. Immutable after
// package load; concurrent readers need no synchronization.
var hashSeed = func() (t [256]uint16) {
	s := uint32(0x2545)
	for i := range t {
		s = s*1103515245 + 12345
		t[i] = uint16(s>>16) % hashSize
	}
	return
}()

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: nufx lzw: %s", codec.ErrCorrupt, fmt.Sprintf(format, args...))
}
