// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package nufxlzw

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/elliotnunn/crunch/internal/codec"
)

func compress(t *testing.T, f Format, opts *Options, data []byte) []byte {
	t.Helper()
	c, err := NewCompressor(f, opts)
	if err != nil {
		t.Fatal(err)
	}
	var out []byte
	for chunk := range chunks(data, 1000) {
		if err := c.Feed(chunk); err != nil {
			t.Fatal(err)
		}
		out = append(out, c.Produce()...)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	return append(out, c.Produce()...)
}

func expand(t *testing.T, f Format, packed []byte, want int64) []byte {
	t.Helper()
	e, err := NewExpander(f, want)
	if err != nil {
		t.Fatal(err)
	}
	var out []byte
	for chunk := range chunks(packed, 777) {
		if err := e.Feed(chunk); err != nil {
			t.Fatal(err)
		}
		out = append(out, e.Produce()...)
	}
	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}
	return append(out, e.Produce()...)
}

func chunks(p []byte, n int) func(func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for len(p) > 0 {
			k := min(n, len(p))
			if !yield(p[:k]) {
				return
			}
			p = p[k:]
		}
	}
}

func corpus() map[string][]byte {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 3*ChunkSize)
	rng.Read(random)
	mixed := append(bytes.Repeat([]byte("the quick brown fox "), 300), random[:ChunkSize]...)
	mixed = append(mixed, bytes.Repeat([]byte{0}, 2000)...)
	return map[string][]byte{
		"empty":      nil,
		"one byte":   {0x42},
		"sub-chunk":  []byte("hello, hello, hello sailor"),
		"one chunk":  bytes.Repeat([]byte{0xAA, 0x55}, ChunkSize/2),
		"zeros":      make([]byte, ChunkSize),
		"random":     random,
		"mixed":      mixed,
		"delimiters": bytes.Repeat([]byte{DefaultDelimiter}, 5000),
		"just short": make([]byte, ChunkSize-1),
		"just long":  bytes.Repeat([]byte{3}, ChunkSize+1),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{LZW1, LZW2} {
		for name, data := range corpus() {
			t.Run(fmt.Sprintf("%v/%s", f, name), func(t *testing.T) {
				packed := compress(t, f, nil, data)
				got := expand(t, f, packed, int64(len(data)))
				if !bytes.Equal(got, data) {
					t.Errorf("round trip lost data: %d bytes in, %d out", len(data), len(got))
				}
			})
		}
	}
}

//go:embed testdata/widths.in
var widthsInput []byte

//go:embed testdata/widths.lzw2
var widthsGolden []byte

// Three chunks of run-free 16-symbol text: the RLE pass is a no-op, so
// every chunk takes the raw-input LZW path, and the shared dictionary
// grows past code 0x800 without reaching the 0x0FFD clear. The stream
// therefore uses every width from 9 to 12 bits, and it is pinned
// byte-for-byte; drift in the early-change timing shows up as a byte
// diff here before it becomes a round-trip desync. The later chunks
// also open with multi-byte dictionary codes, which the expander must
// accept without minting a cross-chunk table entry.
func TestWidthChangeGolden(t *testing.T) {
	got := compress(t, LZW2, nil, widthsInput)
	if !bytes.Equal(got, widthsGolden) {
		t.Errorf("compressed form (%d bytes) differs from the pinned stream (%d bytes)",
			len(got), len(widthsGolden))
	}
	back := expand(t, LZW2, widthsGolden, int64(len(widthsInput)))
	if !bytes.Equal(back, widthsInput) {
		t.Error("pinned stream did not expand to the original data")
	}
}

// The escape byte is configurable all the way down to 0x00, which must
// not collapse into the 0xDB default.
func TestZeroDelimiter(t *testing.T) {
	zero := byte(0)
	opts := &Options{Delimiter: &zero}
	data := append(make([]byte, 1000), bytes.Repeat([]byte{0xDB, 7, 0, 0, 0, 0, 0}, 700)...)
	packed := compress(t, LZW2, opts, data)
	if packed[1] != 0 {
		t.Errorf("stream header records delimiter %#02x, want 0x00", packed[1])
	}
	if got := expand(t, LZW2, packed, int64(len(data))); !bytes.Equal(got, data) {
		t.Error("round trip lost data with a zero delimiter")
	}
}

func TestDeterminism(t *testing.T) {
	data := append(bytes.Repeat([]byte("determinism "), 2000), 0xDB, 0xDB)
	for _, f := range []Format{LZW1, LZW2} {
		a := compress(t, f, nil, data)
		b := compress(t, f, nil, data)
		if !bytes.Equal(a, b) {
			t.Errorf("%v: same input compressed to different bytes", f)
		}
	}
}

// The canonical all-zero chunk: the RLE pass collapses 4096 zeros into
// 16 runs of 48 bytes, LZW shrinks that further, and the chunk header
// records the RLE length with the LZW flag set.
func TestZeroChunk(t *testing.T) {
	data := make([]byte, ChunkSize)
	packed := compress(t, LZW1, nil, data)

	// CRC-16/XMODEM of 4096 zero bytes from a zero seed stays zero
	wantHdr := []byte{0x00, 0x00, 0x00, 0xDB}
	if !bytes.Equal(packed[:4], wantHdr) {
		t.Errorf("stream header % x, want % x", packed[:4], wantHdr)
	}
	rleLen := int(packed[4]) | int(packed[5])<<8
	if rleLen != 48 {
		t.Errorf("chunk rle length %d, want 48", rleLen)
	}
	if packed[6] != 1 {
		t.Errorf("lzw flag %d, want 1", packed[6])
	}
	if len(packed) >= 7+48 {
		t.Errorf("lzw output %d bytes did not beat the 48-byte rle form", len(packed)-7)
	}
	if got := expand(t, LZW1, packed, ChunkSize); !bytes.Equal(got, data) {
		t.Error("zero chunk did not round trip")
	}
}

func TestRawChunkFallback(t *testing.T) {
	// incompressible data must be stored raw with rle-len = ChunkSize
	rng := rand.New(rand.NewSource(99))
	data := make([]byte, ChunkSize)
	rng.Read(data)
	packed := compress(t, LZW2, nil, data)
	field := uint16(packed[2]) | uint16(packed[3])<<8
	if field&0x1FFF != ChunkSize {
		t.Errorf("rle length field %d, want %d", field&0x1FFF, ChunkSize)
	}
	if got := expand(t, LZW2, packed, ChunkSize); !bytes.Equal(got, data) {
		t.Error("raw chunk did not round trip")
	}
}

// A compressible chunk, then an incompressible one (which makes the
// compressor drop its dictionary), then compressible again. The
// expander must track the implicit LZW/2 clear or the third chunk
// decodes to garbage.
func TestLZW2ClearAfterFailedChunk(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	random := make([]byte, ChunkSize)
	rng.Read(random)
	data := bytes.Repeat([]byte("pattern "), ChunkSize/8)
	data = append(data, random...)
	data = append(data, bytes.Repeat([]byte("pattern "), ChunkSize/8)...)
	packed := compress(t, LZW2, nil, data)
	if got := expand(t, LZW2, packed, int64(len(data))); !bytes.Equal(got, data) {
		t.Error("dictionary desync across a failed-LZW chunk")
	}
}

func TestTrimShortFinalChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x11}, ChunkSize+100)
	packed := compress(t, LZW2, nil, data)
	got := expand(t, LZW2, packed, int64(len(data)))
	if len(got) != len(data) {
		t.Errorf("got %d bytes, want %d (padding not trimmed)", len(got), len(data))
	}
}

func TestCRCMismatch(t *testing.T) {
	data := []byte("check me")
	packed := compress(t, LZW1, nil, data)
	packed[0] ^= 0xFF // corrupt the stream CRC
	e, _ := NewExpander(LZW1, int64(len(data)))
	if err := e.Feed(packed); err != nil {
		t.Fatalf("Feed should not fail yet: %v", err)
	}
	if err := e.Finish(); !errors.Is(err, codec.ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestTruncated(t *testing.T) {
	data := make([]byte, 2*ChunkSize)
	packed := compress(t, LZW1, nil, data)
	e, _ := NewExpander(LZW1, int64(len(data)))
	if err := e.Feed(packed[:len(packed)-1]); err != nil {
		t.Fatal(err)
	}
	if err := e.Finish(); !errors.Is(err, codec.ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestConfigErrors(t *testing.T) {
	if _, err := NewCompressor(Format(9), nil); !errors.Is(err, codec.ErrConfig) {
		t.Errorf("bad format: got %v", err)
	}
	if _, err := NewExpander(LZW1, -1); !errors.Is(err, codec.ErrConfig) {
		t.Errorf("negative length: got %v", err)
	}
	c, _ := NewCompressor(LZW1, nil)
	c.Finish()
	if err := c.Feed([]byte{1}); !errors.Is(err, codec.ErrConfig) {
		t.Errorf("Feed after Finish: got %v", err)
	}
}

func TestRLE(t *testing.T) {
	cases := [][]byte{
		bytes.Repeat([]byte{7}, 300),
		{0xDB},
		{0xDB, 0xDB, 0xDB, 0xDB, 0xDB},
		{1, 2, 3, 3, 3, 3, 4},
		{1, 1, 1, 2, 2, 2}, // threshold: 3-byte runs stay literal
	}
	for _, c := range cases {
		src := make([]byte, ChunkSize)
		copy(src, c)
		packed := rlePack(nil, src, DefaultDelimiter)
		got, err := rleUnpack(packed, DefaultDelimiter)
		if err != nil {
			t.Fatalf("% x: %v", c, err)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("% x: rle round trip failed", c)
		}
	}
}
