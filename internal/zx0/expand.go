// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package zx0

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/elliotnunn/crunch/internal/codec"
)

const (
	stLiterals = iota
	stLastOffset
	stNewOffset
	stDone
)

// errShort is the internal wait-for-more-input signal; at Finish it
// hardens into a corrupt-data error.
var errShort = errors.New("zx0: token underrun")

// Expander decodes a token stream. It keeps everything it has decoded
// as the match window, so one instance holds the whole output until
// the caller drains it. Decoding halts exactly at the 256 sentinel.
type Expander struct {
	in         []byte
	inputIndex int
	bitMask    byte
	bitValue   byte
	backtrack  bool
	lastOffset int
	state      int

	win      []byte
	drained  int
	finished bool
	failed   error
}

var _ codec.Transducer = (*Expander)(nil)

func NewExpander() *Expander {
	return &Expander{lastOffset: initialOffset}
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
	p := e.win[e.drained:]
	e.drained = len(e.win)
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
	// a zero-length stream is the empty file
	if len(e.in) == 0 && e.state == stLiterals && len(e.win) == 0 {
		return nil
	}
	if err := e.pump(true); err != nil {
		return err
	}
	if rest := len(e.in) - e.inputIndex; rest > 0 {
		slog.Warn("zx0: trailing bytes after end marker", "bytes", rest)
	}
	return nil
}

type snapshot struct {
	inputIndex int
	bitMask    byte
	bitValue   byte
	backtrack  bool
	lastOffset int
	winLen     int
	state      int
}

// pump decodes token by token, rolling a partial token back to wait
// for more input.
func (e *Expander) pump(final bool) error {
	for e.state != stDone {
		snap := snapshot{e.inputIndex, e.bitMask, e.bitValue, e.backtrack,
			e.lastOffset, len(e.win), e.state}
		err := e.step()
		if errors.Is(err, errShort) {
			e.inputIndex, e.bitMask, e.bitValue, e.backtrack = snap.inputIndex, snap.bitMask, snap.bitValue, snap.backtrack
			e.lastOffset, e.state = snap.lastOffset, snap.state
			e.win = e.win[:snap.winLen]
			if final {
				return corrupt("token stream truncated")
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) step() error {
	switch e.state {
	case stLiterals:
		length, err := e.readGamma()
		if err != nil {
			return err
		}
		for range length {
			b, err := e.readByte()
			if err != nil {
				return err
			}
			e.win = append(e.win, b)
		}
		return e.nextState(stLastOffset)

	case stLastOffset:
		length, err := e.readGamma()
		if err != nil {
			return err
		}
		if err := e.copyMatch(length); err != nil {
			return err
		}
		return e.nextState(stLiterals)

	default: // stNewOffset
		msb, err := e.readGamma()
		if err != nil {
			return err
		}
		if msb == endMarker {
			e.state = stDone
			return nil
		}
		if msb > 255 {
			return corrupt("offset msb %d out of range", msb)
		}
		lsb, err := e.readByte()
		if err != nil {
			return err
		}
		e.lastOffset = msb*128 - int(lsb>>1)
		e.backtrack = true
		length, err := e.readGamma()
		if err != nil {
			return err
		}
		if err := e.copyMatch(length + 1); err != nil {
			return err
		}
		return e.nextState(stLiterals)
	}
}

// nextState reads the indicator bit for the following token: 0 means
// ifZero, 1 always means a new offset.
func (e *Expander) nextState(ifZero int) error {
	bit, err := e.readBit()
	if err != nil {
		return err
	}
	if bit == 0 {
		e.state = ifZero
	} else {
		e.state = stNewOffset
	}
	return nil
}

func (e *Expander) copyMatch(length int) error {
	if e.lastOffset > len(e.win) {
		return corrupt("match offset %d reaches before start of output", e.lastOffset)
	}
	for range length {
		e.win = append(e.win, e.win[len(e.win)-e.lastOffset])
	}
	return nil
}

func (e *Expander) readByte() (byte, error) {
	if e.inputIndex >= len(e.in) {
		return 0, errShort
	}
	b := e.in[e.inputIndex]
	e.inputIndex++
	return b, nil
}

func (e *Expander) readBit() (int, error) {
	if e.backtrack {
		e.backtrack = false
		return int(e.in[e.inputIndex-1] & 1), nil
	}
	e.bitMask >>= 1
	if e.bitMask == 0 {
		b, err := e.readByte()
		if err != nil {
			return 0, err
		}
		e.bitMask = 128
		e.bitValue = b
	}
	if e.bitValue&e.bitMask != 0 {
		return 1, nil
	}
	return 0, nil
}

func (e *Expander) readGamma() (int, error) {
	value := 1
	for {
		bit, err := e.readBit()
		if err != nil {
			return 0, err
		}
		if bit != 0 {
			return value, nil
		}
		data, err := e.readBit()
		if err != nil {
			return 0, err
		}
		value = value<<1 | data
		if value > 1<<24 {
			return 0, corrupt("unbounded elias-gamma value")
		}
	}
}
