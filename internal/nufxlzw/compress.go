// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package nufxlzw

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
	"github.com/elliotnunn/crunch/internal/crc16"
)

// Compressor packs a byte stream into NuFX LZW/1 or LZW/2 form.
// LZW/1 output is withheld until Finish because the stream leads with
// a CRC over the whole (padded) input; LZW/2 streams chunk by chunk.
type Compressor struct {
	format   Format
	delim    byte
	vol      byte
	enc      encoder
	pending  []byte // partial chunk, < ChunkSize
	out      []byte // ready for Produce
	body     []byte // LZW/1: chunks awaiting the header
	crc      uint16 // LZW/1: over zero-padded uncompressed data
	started  bool
	finished bool
}

var _ codec.Transducer = (*Compressor)(nil)

func NewCompressor(f Format, opts *Options) (*Compressor, error) {
	if !f.valid() {
		return nil, fmt.Errorf("%w: unknown nufx format %d", codec.ErrConfig, int(f))
	}
	c := &Compressor{format: f, delim: opts.delim(), vol: opts.volume()}
	c.enc.reset()
	return c, nil
}

func (c *Compressor) Feed(p []byte) error {
	if c.finished {
		return fmt.Errorf("%w: Feed after Finish", codec.ErrConfig)
	}
	c.start()
	c.pending = append(c.pending, p...)
	for len(c.pending) >= ChunkSize {
		c.chunk(c.pending[:ChunkSize])
		c.pending = c.pending[:copy(c.pending, c.pending[ChunkSize:])]
	}
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
	c.start()
	if len(c.pending) > 0 {
		pad := make([]byte, ChunkSize)
		copy(pad, c.pending)
		c.chunk(pad)
		c.pending = nil
	}
	if c.format == LZW1 {
		c.out = append(c.out, byte(c.crc), byte(c.crc>>8), c.vol, c.delim)
		c.out = append(c.out, c.body...)
		c.body = nil
	}
	c.finished = true
	return nil
}

// start emits the LZW/2 header eagerly; LZW/1 cannot until the CRC is
// known.
func (c *Compressor) start() {
	if c.started {
		return
	}
	c.started = true
	if c.format == LZW2 {
		c.out = append(c.out, c.vol, c.delim)
	}
}

// chunk compresses one full zero-padded chunk and emits its header and
// the smallest of the LZW, RLE and raw renditions.
func (c *Compressor) chunk(src []byte) {
	if c.format == LZW1 {
		c.crc = crc16.Sum(c.crc, src)
	}

	data := rlePack(nil, src, c.delim)
	rleLen := len(data)
	if rleLen >= ChunkSize {
		data, rleLen = src, ChunkSize // RLE did not help, store raw
	}

	if c.format == LZW1 {
		c.enc.reset() // fresh dictionary every chunk
	}
	lzw := c.enc.compressChunk(data)
	useLZW := len(lzw) < rleLen
	if !useLZW && c.format == LZW2 {
		// the expander sees the flag and clears its table too
		c.enc.reset()
	}

	var hdr []byte
	if c.format == LZW1 {
		hdr = []byte{byte(rleLen), byte(rleLen >> 8), bool2byte(useLZW)}
	} else {
		field := uint16(rleLen)
		if useLZW {
			field |= 0x8000
		}
		hdr = []byte{byte(field), byte(field >> 8)}
		if useLZW {
			// self-inclusive length; expanders ignore it (see expand.go)
			total := uint16(4 + len(lzw))
			hdr = append(hdr, byte(total), byte(total>>8))
		}
	}

	payload := data
	if useLZW {
		payload = lzw
	}
	if c.format == LZW1 {
		c.body = append(c.body, hdr...)
		c.body = append(c.body, payload...)
	} else {
		c.out = append(c.out, hdr...)
		c.out = append(c.out, payload...)
	}
}

func bool2byte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
