// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package squeeze

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/elliotnunn/crunch/internal/bitio"
	"github.com/elliotnunn/crunch/internal/codec"
)

const (
	phaseHeader = iota
	phaseNodeCount
	phaseNodes
	phaseData
	phaseDone
)

// Expander unsqueezes a stream: optional standalone header, tree
// section, then Huffman codes walked bit by bit from node 0 and fed
// through the run-length expander. Decoding is incremental, one symbol
// at a time.
type Expander struct {
	fullHeader bool

	br    bitio.Reader
	phase int

	filename []byte
	sumWant  uint16
	sum      uint16

	nnodes int
	left   []int16
	right  []int16

	rle      rleExpander
	out      []byte
	finished bool
	failed   error
}

var _ codec.Transducer = (*Expander)(nil)

// NewExpander decodes the bare tree-plus-data form; fullHeader selects
// the standalone file variant with magic, checksum and filename.
func NewExpander(fullHeader bool) *Expander {
	return &Expander{fullHeader: fullHeader}
}

// Filename reports the name recorded in the standalone header, once
// enough input has been fed to parse it.
func (e *Expander) Filename() string { return string(e.filename) }

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
	if e.phase != phaseDone {
		// the empty-file quirk: a bare zero node count ends the
		// stream with no EOF code at all
		if e.phase == phaseData && e.nnodes == 0 && !e.rle.midRun() {
			return e.verify()
		}
		return corrupt("stream truncated")
	}
	if rest := e.br.Remaining() / 8; rest > 0 {
		slog.Warn("squeeze: trailing bytes after eof code", "bytes", rest)
	}
	return e.verify()
}

func (e *Expander) verify() error {
	if e.rle.midRun() {
		return corrupt("truncated run at end of stream")
	}
	if e.fullHeader && e.sum != e.sumWant {
		return corrupt("checksum mismatch: header says %#04x, data sums to %#04x", e.sumWant, e.sum)
	}
	return nil
}

func (e *Expander) pump() error {
	if e.phase == phaseHeader {
		if e.fullHeader {
			mark := e.br.BitPos()
			hdr, err := e.br.GetBytes(4)
			if errors.Is(err, bitio.ErrUnderrun) {
				return nil
			}
			if hdr[0] != magic1 || hdr[1] != magic2 {
				return corrupt("bad magic % x", hdr[:2])
			}
			e.sumWant = uint16(hdr[2]) | uint16(hdr[3])<<8
			// NUL-terminated filename
			for {
				b, err := e.br.GetBytes(1)
				if errors.Is(err, bitio.ErrUnderrun) {
					e.br.SeekBit(mark)
					e.filename = e.filename[:0]
					return nil
				}
				if b[0] == 0 {
					break
				}
				e.filename = append(e.filename, b[0])
			}
		}
		e.phase = phaseNodeCount
	}

	if e.phase == phaseNodeCount {
		b, err := e.br.GetBytes(2)
		if errors.Is(err, bitio.ErrUnderrun) {
			return nil
		}
		e.nnodes = int(b[0]) | int(b[1])<<8
		if e.nnodes > 256 {
			return corrupt("%d tree nodes, limit 256", e.nnodes)
		}
		e.phase = phaseNodes
	}

	if e.phase == phaseNodes {
		raw, err := e.br.GetBytes(4 * e.nnodes)
		if errors.Is(err, bitio.ErrUnderrun) {
			return nil
		}
		e.left = make([]int16, e.nnodes)
		e.right = make([]int16, e.nnodes)
		for i := range e.nnodes {
			e.left[i] = int16(uint16(raw[4*i]) | uint16(raw[4*i+1])<<8)
			e.right[i] = int16(uint16(raw[4*i+2]) | uint16(raw[4*i+3])<<8)
			for _, ref := range [2]int16{e.left[i], e.right[i]} {
				if int(ref) >= e.nnodes || ref < -(eofSym+1) {
					return corrupt("node %d reference %d out of range", i, ref)
				}
			}
		}
		e.phase = phaseData
	}

	for e.phase == phaseData && e.nnodes > 0 {
		mark := e.br.BitPos()
		sym, err := e.decodeSym()
		if errors.Is(err, bitio.ErrUnderrun) {
			e.br.SeekBit(mark)
			return nil
		}
		if err != nil {
			return err
		}
		if sym == eofSym {
			e.br.AlignByte()
			e.phase = phaseDone
			break
		}
		before := len(e.out)
		e.out = e.rle.feed(e.out, byte(sym))
		for _, b := range e.out[before:] {
			e.sum += uint16(b)
		}
	}
	return nil
}

// decodeSym walks the tree from the root, bit value 0 going left.
func (e *Expander) decodeSym() (int, error) {
	node := int16(0)
	for {
		bit, err := e.br.GetCode(1)
		if err != nil {
			return 0, err
		}
		ref := e.left[node]
		if bit != 0 {
			ref = e.right[node]
		}
		if ref < 0 {
			return int(-ref) - 1, nil
		}
		node = ref
	}
}
