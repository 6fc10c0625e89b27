// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package bitio packs and unpacks variable-width codes, low bit first
// within each byte, the convention shared by NuFX LZW, LZC and Squeeze.
package bitio

import "errors"

// ErrUnderrun means the buffer ran out mid-code. Resumable expanders
// roll back and wait for more input; at end of stream the codec
// promotes it to a corrupt-data error.
var ErrUnderrun = errors.New("bit buffer underrun")

// A Writer appends codes of 1..24 bits to a growing byte buffer.
// The zero value is ready to use.
type Writer struct {
	buf   []byte
	accum uint32
	nbits uint
}

// PutCode appends the low width bits of v. Width 0 is the finalize-now
// sentinel: it behaves exactly like Flush.
func (w *Writer) PutCode(v uint32, width uint) {
	if width == 0 {
		w.Flush()
		return
	}
	if width > 24 {
		panic("bitio: code width out of range")
	}
	w.accum |= (v & (1<<width - 1)) << w.nbits
	w.nbits += width
	for w.nbits >= 8 {
		w.buf = append(w.buf, byte(w.accum))
		w.accum >>= 8
		w.nbits -= 8
	}
}

// Flush zero-pads the current byte and advances past it.
// A no-op on a byte boundary.
func (w *Writer) Flush() {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.accum))
		w.accum = 0
		w.nbits = 0
	}
}

// Bytes returns the packed bytes accumulated so far, not including any
// partial byte still in the accumulator.
func (w *Writer) Bytes() []byte { return w.buf }

// Take returns the packed bytes and detaches them from the Writer,
// which keeps any partial byte and continues packing.
func (w *Writer) Take() []byte {
	b := w.buf
	w.buf = nil
	return b
}

// Len reports the number of whole bytes emitted so far.
func (w *Writer) Len() int { return len(w.buf) }

// BitLen reports the total number of bits written, padding included.
func (w *Writer) BitLen() int { return len(w.buf)*8 + int(w.nbits) }

// Reset empties the Writer for reuse within the same stream direction.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.accum = 0
	w.nbits = 0
}

// A Reader extracts codes from a byte slice at a bit cursor.
type Reader struct {
	buf []byte
	pos int // bits
}

func NewReader(p []byte) *Reader { return &Reader{buf: p} }

// GetCode extracts the next width (1..24) bits as an unsigned value.
func (r *Reader) GetCode(width uint) (uint32, error) {
	if width == 0 || width > 24 {
		panic("bitio: code width out of range")
	}
	if r.pos+int(width) > len(r.buf)*8 {
		return 0, ErrUnderrun
	}
	var v uint32
	for i := uint(0); i < width; {
		byteoff := r.pos / 8
		bitoff := uint(r.pos % 8)
		take := min(8-bitoff, width-i)
		bits := uint32(r.buf[byteoff]>>bitoff) & (1<<take - 1)
		v |= bits << i
		i += take
		r.pos += int(take)
	}
	return v, nil
}

// Extend appends more input for the cursor to run into, preserving the
// current position. Used by expanders that are fed incrementally.
func (r *Reader) Extend(p []byte) {
	r.buf = append(r.buf, p...)
}

// AlignByte discards bits up to the next byte boundary.
func (r *Reader) AlignByte() {
	r.pos = (r.pos + 7) &^ 7
}

// GetBytes reads n whole bytes. The cursor must be byte-aligned;
// formats only mix byte fields and bit fields at byte boundaries.
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if r.pos%8 != 0 {
		panic("bitio: GetBytes off byte boundary")
	}
	start := r.pos / 8
	if start+n > len(r.buf) {
		return nil, ErrUnderrun
	}
	r.pos += n * 8
	return r.buf[start : start+n], nil
}

// Remaining reports how many unread bits are left.
func (r *Reader) Remaining() int { return len(r.buf)*8 - r.pos }

// BitPos reports the cursor, for checkpoint/rollback by resumable
// expanders.
func (r *Reader) BitPos() int { return r.pos }

// SeekBit restores a cursor previously obtained from BitPos.
func (r *Reader) SeekBit(pos int) { r.pos = pos }
