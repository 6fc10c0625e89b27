// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package lzc

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/bitio"
	"github.com/elliotnunn/crunch/internal/codec"
)

// Compressor packs a byte stream into compress(1) form. Output streams
// as codes complete; only the final partial code group waits for
// Finish.
type Compressor struct {
	maxbits    int
	maxmaxcode int
	block      bool
	hsize      int
	hshift     uint

	htab    []int32 // fcode per slot, -1 empty
	codetab []uint16

	ent      int // open prefix code, -1 before the first byte
	free     int
	width    uint
	maxcode  int
	clearing bool

	gw      bitio.Writer
	ingroup int // codes in the current 8-code group

	inCount    int64
	outCount   int64 // includes the 3-byte header, like the original ratio math
	checkpoint int64
	ratio      int64

	out      []byte
	started  bool
	finished bool
}

var _ codec.Transducer = (*Compressor)(nil)

func NewCompressor(opts *Options) (*Compressor, error) {
	mb := opts.maxBits()
	if mb < minWidth || mb > MaxWidth {
		return nil, fmt.Errorf("%w: lzc max bits %d outside 9..16", codec.ErrConfig, mb)
	}
	c := &Compressor{
		maxbits:    mb,
		maxmaxcode: 1 << mb,
		block:      opts.block(),
		hsize:      hsizeFor(mb),
		ent:        -1,
		width:      minWidth,
		maxcode:    1<<minWidth - 1,
		outCount:   3,
		checkpoint: checkGap,
	}
	if mb == minWidth {
		c.maxcode = c.maxmaxcode
	}
	c.hshift = hshiftFor(c.hsize)
	c.htab = make([]int32, c.hsize)
	c.codetab = make([]uint16, c.hsize)
	for i := range c.htab {
		c.htab[i] = -1
	}
	c.free = 256
	if c.block {
		c.free = clearCode + 1
	}
	return c, nil
}

func (c *Compressor) Feed(p []byte) error {
	if c.finished {
		return fmt.Errorf("%w: Feed after Finish", codec.ErrConfig)
	}
	c.start()
	for _, ch := range p {
		c.inCount++
		if c.ent < 0 {
			c.ent = int(ch)
			continue
		}
		fcode := int(ch)<<c.maxbits + c.ent
		h := (int(ch) << c.hshift) ^ c.ent
		if c.htab[h] == int32(fcode) {
			c.ent = int(c.codetab[h])
			continue
		}
		if c.htab[h] >= 0 {
			// secondary probe, the historical displacement
			disp := c.hsize - h
			if h == 0 {
				disp = 1
			}
			found := false
			for {
				h -= disp
				if h < 0 {
					h += c.hsize
				}
				if c.htab[h] == int32(fcode) {
					c.ent = int(c.codetab[h])
					found = true
					break
				}
				if c.htab[h] < 0 {
					break
				}
			}
			if found {
				continue
			}
		}
		c.putcode(c.ent)
		c.ent = int(ch)
		if c.free < c.maxmaxcode {
			c.codetab[h] = uint16(c.free)
			c.free++
			c.htab[h] = int32(fcode)
		} else if c.block && c.inCount >= c.checkpoint {
			c.maybeClear()
		}
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
	if c.ent >= 0 {
		c.putcode(c.ent)
	}
	c.endGroup(false) // final flush: occupied bytes only
	c.finished = true
	return nil
}

func (c *Compressor) start() {
	if c.started {
		return
	}
	c.started = true
	flags := byte(c.maxbits)
	if c.block {
		flags |= blockBit
	}
	c.out = append(c.out, magic1, magic2, flags)
}

// putcode appends one code to the current group, then handles the
// group-alignment consequences: a full group is emitted as-is, and a
// pending width change or CLEAR pads the group to width bytes before
// the width moves (the decoder cannot learn of the change sooner).
func (c *Compressor) putcode(code int) {
	c.gw.PutCode(uint32(code), c.width)
	c.ingroup++
	if c.ingroup == 8 {
		c.endGroup(false)
	}
	if c.free > c.maxcode || c.clearing {
		c.endGroup(true)
		if c.clearing {
			c.clearing = false
			c.width = minWidth
			c.maxcode = 1<<minWidth - 1
			if c.maxbits == minWidth {
				c.maxcode = c.maxmaxcode
			}
		} else {
			c.width++
			if int(c.width) == c.maxbits {
				c.maxcode = c.maxmaxcode
			} else {
				c.maxcode = 1<<c.width - 1
			}
		}
	}
}

// endGroup flushes whatever codes are buffered. pad extends the
// emission to a whole width-byte group, matching the historical flush
// on width change; the final flush at Finish does not pad.
func (c *Compressor) endGroup(pad bool) {
	if c.ingroup == 0 {
		return
	}
	c.gw.Flush()
	b := c.gw.Take()
	n := len(b)
	c.out = append(c.out, b...)
	if pad {
		for ; n < int(c.width); n++ {
			c.out = append(c.out, 0)
		}
	}
	c.outCount += int64(n)
	c.ingroup = 0
}

// maybeClear is block mode's ratio check, run every checkGap input
// bytes once the table is full. The scaled ratio must keep improving;
// the moment it stalls, the table is cleared and rebuilt from scratch.
func (c *Compressor) maybeClear() {
	c.checkpoint = c.inCount + checkGap
	var rat int64
	if c.inCount > 0x007FFFFF { // shift both to avoid overflow
		rat = c.outCount >> 8
		if rat == 0 {
			rat = 0x7FFFFFFF
		} else {
			rat = c.inCount / rat
		}
	} else {
		rat = (c.inCount << 8) / c.outCount
	}
	if rat > c.ratio {
		c.ratio = rat
		return
	}
	c.ratio = 0
	for i := range c.htab {
		c.htab[i] = -1
	}
	c.free = clearCode + 1
	c.clearing = true
	c.putcode(clearCode)
}
