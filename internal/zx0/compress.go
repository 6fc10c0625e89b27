// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package zx0

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

// Compressor stages the whole input and emits the token stream at
// Finish. An empty input compresses to an empty stream.
type Compressor struct {
	offsetLimit int
	raw         []byte
	out         []byte
	finished    bool
}

var _ codec.Transducer = (*Compressor)(nil)

func NewCompressor(opts *Options) (*Compressor, error) {
	return &Compressor{offsetLimit: opts.offsetLimit()}, nil
}

func (c *Compressor) Feed(p []byte) error {
	if c.finished {
		return fmt.Errorf("%w: Feed after Finish", codec.ErrConfig)
	}
	c.raw = append(c.raw, p...)
	return nil
}

func (c *Compressor) Produce() []byte {
	p := c.out
	c.out = nil
	return p
}

func (c *Compressor) Finish() error {
	if c.finished {
		return fmt.Errorf("%w: Finish twice", codec.ErrConfig)
	}
	c.finished = true
	if len(c.raw) == 0 {
		return nil
	}
	optimal := optimize(c.raw, c.offsetLimit)
	if optimal == nil {
		return fmt.Errorf("%w: zx0: optimal parse found no path", codec.ErrInternal)
	}
	c.out = emit(optimal, c.raw)
	c.raw = nil
	return nil
}

// emitter writes the token stream: raw bytes interleaved with control
// bits packed MSB-first into dedicated bytes allocated on demand. The
// backtrack flag retroactively parks one bit in bit 0 of the byte just
// written, the format's trick for the bit that follows an offset LSB.
type emitter struct {
	out       []byte
	bitIndex  int
	bitMask   byte
	backtrack bool
}

func (e *emitter) writeByte(v byte) {
	e.out = append(e.out, v)
}

func (e *emitter) writeBit(v int) {
	if e.backtrack {
		if v > 0 {
			e.out[len(e.out)-1] |= 1
		}
		e.backtrack = false
		return
	}
	if e.bitMask == 0 {
		e.bitMask = 128
		e.bitIndex = len(e.out)
		e.writeByte(0)
	}
	if v > 0 {
		e.out[e.bitIndex] |= e.bitMask
	}
	e.bitMask >>= 1
}

// writeGamma is the interlaced Elias-gamma coding: a data bit for each
// significant bit below the MSB, each preceded by a 0 continuation
// bit, terminated by a 1.
func (e *emitter) writeGamma(value int) {
	i := 2
	for i <= value {
		i <<= 1
	}
	i >>= 2
	for ; i > 0; i >>= 1 {
		e.writeBit(0)
		e.writeBit(value & i)
	}
	e.writeBit(1)
}

// emit walks the optimal parse chain, reversing it first since
// optimize links backward. The leading bit of the first token (always
// a literal run) is implicit, absorbed by starting in backtrack mode
// over nothing.
func emit(optimal *block, input []byte) []byte {
	// un-reverse the chain
	var prev *block
	for optimal != nil {
		next := optimal.chain
		optimal.chain = prev
		prev = optimal
		optimal = next
	}

	e := &emitter{backtrack: true}
	inputIndex := 0
	lastOffset := initialOffset

	for cur := prev.chain; cur != nil; prev, cur = cur, cur.chain {
		length := cur.index - prev.index
		switch {
		case cur.offset == 0:
			e.writeBit(0)
			e.writeGamma(length)
			for range length {
				e.writeByte(input[inputIndex])
				inputIndex++
			}
		case cur.offset == lastOffset:
			e.writeBit(0)
			e.writeGamma(length)
			inputIndex += length
		default:
			e.writeBit(1)
			e.writeGamma((cur.offset-1)/128 + 1)
			e.writeByte(byte((127 - (cur.offset-1)%128) << 1))
			e.backtrack = true
			e.writeGamma(length - 1)
			inputIndex += length
			lastOffset = cur.offset
		}
	}

	e.writeBit(1)
	e.writeGamma(endMarker)
	return e.out
}
