// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package nufxlzw

import "github.com/elliotnunn/crunch/internal/bitio"

// encoder is the compress-side prefix trie: open addressing with
// double hashing over a prime-size table. Codes 0x000-0x0FF are the
// implicit single-byte strings; assigned codes start at 0x101
// (0x100 is the clear code). Entries are created once and only ever
// removed by a full clear.
type encoder struct {
	hashPrefix [hashSize]uint16
	hashSuffix [hashSize]byte
	hashCode   [hashSize]uint16 // 0 = empty slot (0 is never assigned)
	nextCode   uint16
	width      uint
	bw         bitio.Writer
}

func (e *encoder) reset() {
	clear(e.hashCode[:])
	e.nextCode = firstFree
	e.width = minWidth
}

// findSlot returns the code for (prefix,c) if present, else 0 and the
// empty slot where it belongs. The table never fills: the clear at
// tableLimit keeps live entries well below hashSize.
func (e *encoder) findSlot(prefix uint16, c byte) (uint16, int) {
	h := int(hashSeed[c]^prefix) % hashSize
	disp := hashSize - h
	if disp == 0 {
		disp = 1
	}
	for {
		if e.hashCode[h] == 0 {
			return 0, h
		}
		if e.hashPrefix[h] == prefix && e.hashSuffix[h] == c {
			return e.hashCode[h], h
		}
		h -= disp
		if h < 0 {
			h += hashSize
		}
	}
}

// putCode packs a code at the current width, then applies the early
// width change: the width grows as soon as the next free code would
// reach 1<<width, one code sooner than strictly necessary.
func (e *encoder) putCode(code uint16) {
	e.bw.PutCode(uint32(code), e.width)
	if e.width < maxWidth && e.nextCode > 1<<e.width-1 {
		e.width++
	}
}

// compressChunk LZW-encodes one chunk's worth of (usually RLE) data.
// The bit accumulator starts and ends on a byte boundary; the
// dictionary state is whatever the caller left it (LZW/1 resets every
// chunk, LZW/2 persists). When the dictionary reaches tableLimit the
// clear code is emitted mid-stream and the scan restarts at the
// current byte via the outer loop.
func (e *encoder) compressChunk(src []byte) []byte {
	e.bw.Reset()
	pos := 0
	for pos < len(src) {
		ent := uint16(src[pos])
		pos++
		cleared := false
		for pos < len(src) {
			c := src[pos]
			if code, slot := e.findSlot(ent, c); code != 0 {
				ent = code
				pos++
				continue
			} else {
				e.putCode(ent)
				e.hashPrefix[slot] = ent
				e.hashSuffix[slot] = c
				e.hashCode[slot] = e.nextCode
				e.nextCode++
			}
			ent = uint16(c)
			pos++
			if e.nextCode >= tableLimit {
				e.putCode(clearCode)
				e.reset()
				pos-- // re-seed from this byte after the clear
				cleared = true
				break
			}
		}
		if !cleared {
			e.putCode(ent) // terminate the open string at chunk end
		}
	}
	e.bw.Flush()
	return append([]byte(nil), e.bw.Bytes()...)
}

// decoder mirrors the encoder with flat prefix/suffix arrays, in the
// manner of the classic compress(1) expander.
type decoder struct {
	prefix   [1 << maxWidth]uint16
	suffix   [1 << maxWidth]byte
	nextCode uint16
	width    uint
	stack    []byte
}

func (d *decoder) reset() {
	d.nextCode = firstFree
	d.width = minWidth
}

type decoderSnap struct {
	prefix   [1 << maxWidth]uint16
	suffix   [1 << maxWidth]byte
	nextCode uint16
	width    uint
}

func (d *decoder) snapshot() *decoderSnap {
	s := &decoderSnap{nextCode: d.nextCode, width: d.width}
	s.prefix = d.prefix
	s.suffix = d.suffix
	return s
}

func (d *decoder) restore(s *decoderSnap) {
	d.prefix = s.prefix
	d.suffix = s.suffix
	d.nextCode = s.nextCode
	d.width = s.width
}

// getCode applies the early width change before reading, matching the
// encoder's post-write bump.
func (d *decoder) getCode(br *bitio.Reader) (uint16, error) {
	if d.width < maxWidth && d.nextCode > 1<<d.width-1 {
		d.width++
	}
	v, err := br.GetCode(d.width)
	return uint16(v), err
}

// decodeChunk reads codes until exactly want bytes are produced,
// appending to dst. A bitio.ErrUnderrun passes through untouched so
// the caller can roll back and wait for more input.
func (d *decoder) decodeChunk(br *bitio.Reader, dst []byte, want int) ([]byte, error) {
	var oldcode uint16
	var finchar byte
	first := true
	produced := 0
	for produced < want {
		code, err := d.getCode(br)
		if err != nil {
			return dst, err
		}

		if code == clearCode {
			d.reset()
			first = true
			continue
		}
		if first {
			// The compressor terminates its open string at every chunk
			// end without linking an entry across the boundary, so the
			// first code gets no entry here either. With a persistent
			// dictionary it may name any populated string; in a fresh
			// table only literals are populated.
			if code >= d.nextCode {
				return dst, corrupt("first code %#04x references unpopulated entry", code)
			}
			d.stack = d.stack[:0]
			walk := code
			for walk > 0xFF {
				d.stack = append(d.stack, d.suffix[walk])
				walk = d.prefix[walk]
			}
			finchar = byte(walk)
			d.stack = append(d.stack, finchar)
			produced += len(d.stack)
			if produced > want {
				return dst, corrupt("chunk overruns its %d-byte length", want)
			}
			for i := len(d.stack) - 1; i >= 0; i-- {
				dst = append(dst, d.stack[i])
			}
			oldcode = code
			first = false
			continue
		}

		incode := code
		d.stack = d.stack[:0]
		if code >= d.nextCode {
			if code > d.nextCode {
				return dst, corrupt("code %#04x references unpopulated entry", code)
			}
			// KwKwK: the encoder used the entry it was creating
			d.stack = append(d.stack, finchar)
			code = oldcode
		}
		for code > 0xFF {
			d.stack = append(d.stack, d.suffix[code])
			code = d.prefix[code]
		}
		finchar = byte(code)
		d.stack = append(d.stack, finchar)

		produced += len(d.stack)
		if produced > want {
			return dst, corrupt("chunk overruns its %d-byte length", want)
		}
		for i := len(d.stack) - 1; i >= 0; i-- {
			dst = append(dst, d.stack[i])
		}

		if d.nextCode < tableLimit {
			d.prefix[d.nextCode] = oldcode
			d.suffix[d.nextCode] = finchar
			d.nextCode++
		}
		oldcode = incode
	}
	return dst, nil
}
