// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package nufxlzw

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/elliotnunn/crunch/internal/bitio"
	"github.com/elliotnunn/crunch/internal/codec"
	"github.com/elliotnunn/crunch/internal/crc16"
)

// Expander unpacks a NuFX LZW stream. LZW has no in-band end marker,
// so the uncompressed length must be supplied externally (NuFX keeps
// it in the thread header); trailing pad bytes in the final chunk are
// trimmed against it. Decoding is incremental: chunks are expanded as
// soon as enough bytes have been fed, with a rollback when a chunk is
// still incomplete.
type Expander struct {
	format      Format
	want        int64
	totalChunks int64

	br         bitio.Reader
	dec        decoder
	out        []byte
	gotHeader  bool
	delim      byte
	crcWant    uint16
	crcGot     uint16
	chunksDone int64
	rlebuf     []byte
	finished   bool
	failed     error
}

var _ codec.Transducer = (*Expander)(nil)

func NewExpander(f Format, unpackedLen int64) (*Expander, error) {
	if !f.valid() {
		return nil, fmt.Errorf("%w: unknown nufx format %d", codec.ErrConfig, int(f))
	}
	if unpackedLen < 0 {
		return nil, fmt.Errorf("%w: negative unpacked length %d", codec.ErrConfig, unpackedLen)
	}
	e := &Expander{
		format:      f,
		want:        unpackedLen,
		totalChunks: (unpackedLen + ChunkSize - 1) / ChunkSize,
	}
	e.dec.reset()
	return e, nil
}

func (e *Expander) Feed(p []byte) error {
	if e.finished {
		return fmt.Errorf("%w: Feed after Finish", codec.ErrConfig)
	}
	if e.failed != nil {
		return e.failed
	}
	e.br.Extend(p)
	if err := e.pump(); err != nil {
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
		return corrupt("stream truncated before header")
	}
	if e.chunksDone < e.totalChunks {
		return corrupt("stream truncated: %d of %d chunks", e.chunksDone, e.totalChunks)
	}
	if rest := e.br.Remaining() / 8; rest > 0 {
		slog.Warn("nufxlzw: trailing bytes after final chunk", "bytes", rest)
	}
	if e.format == LZW1 && e.crcGot != e.crcWant {
		return corrupt("crc mismatch: stream says %#04x, data sums to %#04x", e.crcWant, e.crcGot)
	}
	return nil
}

// pump decodes whatever whole pieces the buffered input allows.
// bitio.ErrUnderrun means "try again after more Feed", anything else
// is terminal.
func (e *Expander) pump() error {
	if !e.gotHeader {
		n := 2
		if e.format == LZW1 {
			n = 4
		}
		hdr, err := e.br.GetBytes(n)
		if errors.Is(err, bitio.ErrUnderrun) {
			return nil
		}
		if e.format == LZW1 {
			e.crcWant = uint16(hdr[0]) | uint16(hdr[1])<<8
			e.delim = hdr[3]
		} else {
			e.delim = hdr[1]
		}
		e.gotHeader = true
	}

	for e.chunksDone < e.totalChunks {
		mark := e.br.BitPos()
		var snap *decoderSnap
		if e.format == LZW2 {
			snap = e.dec.snapshot() // dictionary survives chunk boundaries
		}
		err := e.chunk()
		if errors.Is(err, bitio.ErrUnderrun) {
			e.br.SeekBit(mark)
			if snap != nil {
				e.dec.restore(snap)
			}
			return nil
		}
		if err != nil {
			return err
		}
		e.chunksDone++
	}
	return nil
}

func (e *Expander) chunk() error {
	var rleLen int
	var useLZW bool
	var claimed int // LZW/2 only
	if e.format == LZW1 {
		hdr, err := e.br.GetBytes(3)
		if err != nil {
			return err
		}
		rleLen = int(hdr[0]) | int(hdr[1])<<8
		useLZW = hdr[2] != 0
	} else {
		hdr, err := e.br.GetBytes(2)
		if err != nil {
			return err
		}
		field := uint16(hdr[0]) | uint16(hdr[1])<<8
		rleLen = int(field & 0x1FFF)
		useLZW = field&0x8000 != 0
		if useLZW {
			lf, err := e.br.GetBytes(2)
			if err != nil {
				return err
			}
			claimed = int(lf[0]) | int(lf[1])<<8
		}
	}
	if rleLen < 1 || rleLen > ChunkSize {
		return corrupt("impossible chunk rle length %d", rleLen)
	}

	var data []byte
	if useLZW {
		if e.format == LZW1 {
			e.dec.reset()
		}
		start := e.br.BitPos()
		var err error
		e.rlebuf, err = e.dec.decodeChunk(&e.br, e.rlebuf[:0], rleLen)
		if err != nil {
			return err
		}
		e.br.AlignByte()
		data = e.rlebuf
		if e.format == LZW2 {
			// Some historical Mac tools byte-swapped this field, so it
			// is never validated, only remarked upon.
			consumed := (e.br.BitPos()-start)/8 + 4
			if claimed != consumed {
				slog.Warn("nufxlzw: ignoring bad chunk length field",
					"claimed", claimed, "actual", consumed)
			}
		}
	} else {
		if e.format == LZW2 {
			// failed-LZW chunk: the compressor dropped its dictionary
			e.dec.reset()
		}
		raw, err := e.br.GetBytes(rleLen)
		if err != nil {
			return err
		}
		data = raw
	}

	chunk := data
	if rleLen != ChunkSize {
		var err error
		chunk, err = rleUnpack(data, e.delim)
		if err != nil {
			return err
		}
	}

	if e.format == LZW1 {
		e.crcGot = crc16.Sum(e.crcGot, chunk)
	}

	keep := e.want - e.chunksDone*ChunkSize
	if keep > ChunkSize {
		keep = ChunkSize
	}
	e.out = append(e.out, chunk[:keep]...)
	return nil
}
