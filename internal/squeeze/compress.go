// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package squeeze

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/bitio"
	"github.com/elliotnunn/crunch/internal/codec"
)

// Compressor squeezes a byte stream. The Huffman code is built from
// global statistics, so all input is staged and the entire output
// appears at Finish.
type Compressor struct {
	fullHeader bool
	filename   string
	raw        []byte
	out        []byte
	finished   bool
}

var _ codec.Transducer = (*Compressor)(nil)

func NewCompressor(opts *Options) (*Compressor, error) {
	return &Compressor{fullHeader: opts.fullHeader(), filename: opts.filename()}, nil
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

	if c.fullHeader {
		var sum uint16
		for _, b := range c.raw {
			sum += uint16(b)
		}
		c.out = append(c.out, magic1, magic2, byte(sum), byte(sum>>8))
		c.out = append(c.out, c.filename...)
		c.out = append(c.out, 0)
	}

	// An empty file is a zero node count and nothing else, not even
	// the EOF code.
	if len(c.raw) == 0 {
		c.out = append(c.out, 0, 0)
		return nil
	}

	rle := rlePack(nil, c.raw)
	c.raw = nil

	var freq [257]uint32
	for _, b := range rle {
		if freq[b] < 65535 {
			freq[b]++
		}
	}
	freq[eofSym] = 1

	nodes, root, err := buildBounded(&freq)
	if err != nil {
		return err
	}
	codes := buildEncoding(nodes, root)
	c.out = serializeTree(c.out, nodes, root)

	var bw bitio.Writer
	for _, b := range rle {
		k := codes[b]
		bw.PutCode(k.bits, k.len)
	}
	bw.PutCode(codes[eofSym].bits, codes[eofSym].len)
	bw.Flush()
	c.out = append(c.out, bw.Bytes()...)
	return nil
}
