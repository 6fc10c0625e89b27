// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package lzc

import (
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

// Expander unpacks a compress(1) stream. The format has no in-band end
// marker: the stream simply stops, and the final code group may be
// shorter than nbits bytes, so the last group can only be decoded once
// Finish signals that no more input is coming.
type Expander struct {
	maxbits    int
	maxmaxcode int
	block      bool

	in  []byte
	pos int // consumed whole groups

	group   [18]byte // one 8-code group, plus slack for the 3-byte loader
	boffset int      // bits
	bsize   int      // bits, guarded so no code starts in the unreadable tail

	width     int
	maxcode   int
	free      int
	clearflag bool
	clears    int // CLEAR codes obeyed so far

	prefix []uint16
	suffix []byte
	stack  []byte

	oldcode   int
	finchar   byte
	first     bool
	gotHeader bool

	out      []byte
	finished bool
	failed   error
}

var _ codec.Transducer = (*Expander)(nil)

func NewExpander() *Expander {
	return &Expander{first: true}
}

func (e *Expander) Feed(p []byte) error {
	if e.finished {
		return fmt.Errorf("%w: Feed after Finish", codec.ErrConfig)
	}
	if e.failed != nil {
		return e.failed
	}
	e.in = append(e.in, p...)
	if err := e.pump(false); err != nil {
		e.failed = err
		return err
	}
	return nil
}

func (e *Expander) Produce() []byte {
	p := e.out
	e.out = nil
	return p
}

func (e *Expander) Finish() error {
	if e.finished {
		return fmt.Errorf("%w: Finish twice", codec.ErrConfig)
	}
	e.finished = true
	if e.failed != nil {
		return e.failed
	}
	if !e.gotHeader {
		return corrupt("stream truncated before 3-byte header")
	}
	return e.pump(true)
}

// pump decodes as many codes as the buffered input permits. Before
// Finish it stops at any group that might still grow; final makes it
// drain the partial last group too.
func (e *Expander) pump(final bool) error {
	if !e.gotHeader {
		if len(e.in) < 3 {
			return nil
		}
		if e.in[0] != magic1 || e.in[1] != magic2 {
			return corrupt("bad magic % x", e.in[:2])
		}
		flags := e.in[2]
		if flags&^(bitMask|blockBit) != 0 {
			return corrupt("unknown flag bits %#02x", flags)
		}
		e.maxbits = int(flags & bitMask)
		if e.maxbits < minWidth || e.maxbits > MaxWidth {
			return corrupt("max code width %d outside 9..16", e.maxbits)
		}
		e.block = flags&blockBit != 0
		e.maxmaxcode = 1 << e.maxbits
		e.width = minWidth
		e.maxcode = 1<<minWidth - 1
		if e.maxbits == minWidth {
			e.maxcode = e.maxmaxcode
		}
		e.free = 256
		if e.block {
			e.free = clearCode + 1
		}
		e.prefix = make([]uint16, e.maxmaxcode)
		e.suffix = make([]byte, e.maxmaxcode)
		for i := range 256 {
			e.suffix[i] = byte(i)
		}
		e.pos = 3
		e.gotHeader = true
	}

	for {
		code, ok, err := e.getcode(final)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if e.first {
			if code > 0xFF {
				return corrupt("first code %#04x is not a literal", code)
			}
			e.finchar = byte(code)
			e.oldcode = code
			e.out = append(e.out, e.finchar)
			e.first = false
			continue
		}

		if code == clearCode && e.block {
			clear(e.prefix[:256])
			e.clearflag = true
			e.free = clearCode
			e.clears++
			continue
		}
		incode := code

		if code >= e.free {
			if code > e.free {
				return corrupt("code %#04x references unpopulated entry", code)
			}
			// KwKwK: the encoder used the entry it was still creating
			e.stack = append(e.stack, e.finchar)
			code = e.oldcode
		}
		for code >= 256 {
			e.stack = append(e.stack, e.suffix[code])
			code = int(e.prefix[code])
		}
		e.finchar = e.suffix[code]
		e.stack = append(e.stack, e.finchar)

		for i := len(e.stack) - 1; i >= 0; i-- {
			e.out = append(e.out, e.stack[i])
		}
		e.stack = e.stack[:0]

		if e.free < e.maxmaxcode {
			e.prefix[e.free] = uint16(e.oldcode)
			e.suffix[e.free] = e.finchar
			e.free++
		}
		e.oldcode = incode
	}
}

// getcode reads the next code, refilling the 8-code group buffer as
// needed. Width changes and CLEAR resets take effect only at a refill,
// abandoning the unread tail of the old group, exactly where the
// encoder padded it. ok=false means wait for more input (or, at
// Finish, a clean end of stream).
func (e *Expander) getcode(final bool) (int, bool, error) {
	refill := e.boffset >= e.bsize
	width, maxcode := e.width, e.maxcode
	if e.free > maxcode {
		width++
		if width == e.maxbits {
			maxcode = e.maxmaxcode
		} else {
			maxcode = 1<<width - 1
		}
		refill = true
	}
	if e.clearflag {
		width = minWidth
		maxcode = 1<<minWidth - 1
		if e.maxbits == minWidth {
			maxcode = e.maxmaxcode
		}
		refill = true
	}

	if refill {
		avail := len(e.in) - e.pos
		if avail == 0 {
			return 0, false, nil
		}
		n := width
		if avail < n {
			if !final {
				return 0, false, nil
			}
			n = avail
		}
		bsize := n*8 - (width - 1) // no code may start in the tail
		if bsize <= 0 {
			if !final {
				return 0, false, nil
			}
			return 0, false, corrupt("%d stray trailing bytes", avail)
		}
		e.width, e.maxcode, e.clearflag = width, maxcode, false
		copy(e.group[:], e.in[e.pos:e.pos+n])
		clear(e.group[n:])
		e.pos += n
		e.boffset, e.bsize = 0, bsize
	}

	byteoff := e.boffset / 8
	bitoff := e.boffset % 8
	code := (int(e.group[byteoff]) |
		int(e.group[byteoff+1])<<8 |
		int(e.group[byteoff+2])<<16) >> bitoff & (1<<e.width - 1)
	e.boffset += e.width
	return code, true, nil
}
