// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package bitio

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestKnownPacking(t *testing.T) {
	// 9-bit codes 0x101, 0x102 pack low-bit-first:
	// 0x101 -> 0000_0001 1 ; 0x102 -> 0000_0010 1
	var w Writer
	w.PutCode(0x101, 9)
	w.PutCode(0x102, 9)
	w.Flush()
	want := []byte{0x01, 0x05, 0x02}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got % x want % x", w.Bytes(), want)
	}
}

func TestFlushSentinel(t *testing.T) {
	var a, b Writer
	a.PutCode(0x5, 3)
	a.Flush()
	b.PutCode(0x5, 3)
	b.PutCode(0, 0) // width 0 means finalize now
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Errorf("sentinel flush differs: % x vs % x", a.Bytes(), b.Bytes())
	}
	if !bytes.Equal(a.Bytes(), []byte{0x05}) {
		t.Errorf("got % x want 05", a.Bytes())
	}
}

func TestRoundTripAllWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for width := uint(1); width <= 16; width++ {
		var vals []uint32
		var w Writer
		for range 1000 {
			v := rng.Uint32() & (1<<width - 1)
			vals = append(vals, v)
			w.PutCode(v, width)
		}
		w.Flush()
		r := NewReader(w.Bytes())
		for i, want := range vals {
			got, err := r.GetCode(width)
			if err != nil {
				t.Fatalf("width %d code %d: %v", width, i, err)
			}
			if got != want {
				t.Fatalf("width %d code %d: got %#x want %#x", width, i, got, want)
			}
		}
	}
}

func TestMixedWidths(t *testing.T) {
	// Width changes mid-stream must not disturb the bit cursor
	var w Writer
	seq := []struct {
		v     uint32
		width uint
	}{{1, 1}, {0x1ff, 9}, {0xabc, 12}, {0, 1}, {0xffff, 16}, {0x2a, 7}}
	for _, s := range seq {
		w.PutCode(s.v, s.width)
	}
	w.Flush()
	r := NewReader(w.Bytes())
	for i, s := range seq {
		got, err := r.GetCode(s.width)
		if err != nil {
			t.Fatal(err)
		}
		if got != s.v {
			t.Errorf("code %d: got %#x want %#x", i, got, s.v)
		}
	}
}

func TestUnderrun(t *testing.T) {
	r := NewReader([]byte{0xff})
	if _, err := r.GetCode(8); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetCode(1); !errors.Is(err, ErrUnderrun) {
		t.Errorf("got %v, want ErrUnderrun", err)
	}

	// more input arrives, the read succeeds where it left off
	r.Extend([]byte{0x01})
	if v, err := r.GetCode(1); err != nil || v != 1 {
		t.Errorf("got %d, %v after Extend", v, err)
	}
}

func TestAlignAndSeek(t *testing.T) {
	var w Writer
	w.PutCode(0x3, 3)
	w.Flush()
	w.PutCode(0x55, 8)
	r := NewReader(w.Bytes())
	if v, _ := r.GetCode(3); v != 3 {
		t.Fatal("bad prefix")
	}
	r.AlignByte()
	mark := r.BitPos()
	if v, _ := r.GetCode(8); v != 0x55 {
		t.Error("aligned read wrong")
	}
	r.SeekBit(mark)
	if v, _ := r.GetCode(8); v != 0x55 {
		t.Error("re-read after SeekBit wrong")
	}
}

func TestTakeContinues(t *testing.T) {
	var w Writer
	w.PutCode(0xABCD, 16)
	w.PutCode(0x1, 4) // leaves a partial byte in the accumulator
	first := w.Take()
	if !bytes.Equal(first, []byte{0xcd, 0xab}) {
		t.Fatalf("got % x", first)
	}
	w.PutCode(0x2, 4)
	w.Flush()
	if !bytes.Equal(w.Bytes(), []byte{0x21}) {
		t.Fatalf("got % x", w.Bytes())
	}
}
