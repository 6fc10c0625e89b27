// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package zx0 is Einar Saukas's ZX0 format: an LZSS-family code with
// interlaced Elias-gamma lengths and offsets, produced by an optimal
// parse over the whole input. There is no header or footer; the stream
// ends at an in-band sentinel (offset MSB value 256).
//
// Both directions are whole-file: the compressor needs every byte
// before it can search for the cheapest parse, and the expander keeps
// its full output as the match window.
package zx0

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

const (
	initialOffset = 1
	endMarker     = 256

	maxOffsetNormal = 32640
	// Quick mode trades ratio for a much smaller search, the ZX7-sized
	// window.
	maxOffsetQuick = 2176
)

// Options configure a Compressor. A nil *Options means the full
// 32640-byte offset window.
type Options struct {
	Quick bool
}

func (o *Options) offsetLimit() int {
	if o != nil && o.Quick {
		return maxOffsetQuick
	}
	return maxOffsetNormal
}

// gammaBits is the cost in bits of the interlaced Elias-gamma coding
// of a positive value.
func gammaBits(value int) int {
	bits := 1
	for value > 1 {
		value >>= 1
		bits += 2
	}
	return bits
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: zx0: %s", codec.ErrCorrupt, fmt.Sprintf(format, args...))
}
