// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package lzc is the classic UNIX compress(1) format: a single hashed
// LZW trie over the whole stream, 9..16-bit codes with the historical
// early width change, and (in block mode) an adaptive CLEAR code
// emitted when the compression ratio stops improving.
//
// Codes travel in groups of eight, each group occupying exactly nbits
// bytes. A width change or a CLEAR flushes the group early, padded with
// zero bytes; the decoder discards the unreadable tail of such a group.
// This alignment is load-bearing and reproduced exactly.
package lzc

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

const (
	magic1 = 0x1F
	magic2 = 0x9D
	// flags byte: low 5 bits = max code width, high bit = block mode
	bitMask   = 0x1F
	blockBit  = 0x80
	clearCode = 256
	minWidth  = 9

	// MaxWidth is the widest code this implementation emits or accepts.
	MaxWidth = 16

	// checkGap is how often (in input bytes) block mode reconsiders
	// clearing the table, once the table is full.
	checkGap = 10000
)

// Options configure a Compressor. A nil *Options means 16-bit codes in
// block mode, the compress(1) defaults.
type Options struct {
	MaxBits  int  // code width ceiling, 9..16; 0 means 16
	NonBlock bool // suppress block mode (no CLEAR codes, first code 256)
}

func (o *Options) maxBits() int {
	if o == nil || o.MaxBits == 0 {
		return MaxWidth
	}
	return o.MaxBits
}

func (o *Options) block() bool { return o == nil || !o.NonBlock }

// hsizeFor picks the hash table size for a code width ceiling, the
// same primes compress(1) compiled in for each memory budget.
func hsizeFor(maxbits int) int {
	switch {
	case maxbits <= 12:
		return 5003
	case maxbits == 13:
		return 9001
	case maxbits == 14:
		return 18013
	case maxbits == 15:
		return 35023
	default:
		return 69001
	}
}

// hshiftFor mirrors the historical shift computation: enough to spread
// the new byte across the hash range.
func hshiftFor(hsize int) uint {
	shift := 0
	for fcode := hsize; fcode < 65536; fcode *= 2 {
		shift++
	}
	return uint(8 - shift)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: lzc: %s", codec.ErrCorrupt, fmt.Sprintf(format, args...))
}
