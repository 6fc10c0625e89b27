// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package expandcache

import (
	"bytes"
	"io"
	"testing"

	"github.com/elliotnunn/crunch/internal/codec"
	"github.com/elliotnunn/crunch/internal/lzc"
)

func TestPermutedReads(t *testing.T) {
	type span struct{ offset, len int }
	spans := []span{
		{0, 1},
		{0, 3},
		{50, 10},
		{50, 30},
		{200, 55},
		{200, 56},
	}

	const expectlen = 255

	permute(spans, func(spans []span) {
		r := New(startIrreg(), expectlen, "irregular")
		for _, span := range spans {
			bin := make([]byte, span.len)
			n, err := r.ReadAt(bin, int64(span.offset))

			expectn := min(span.len, expectlen-span.offset)
			if expectn != n {
				t.Errorf("%v: expected to read %d bytes at offset %d, got %d",
					spans, expectn, span.offset, n)
			}

			var expecterr error
			if span.offset+span.len >= expectlen {
				expecterr = io.EOF
			}
			if expecterr != err {
				t.Errorf("%v: expected %v at offset %d, got %v",
					spans, expecterr, span.offset, err)
			}

			for i := range n {
				if bin[i] != byte(span.offset+i) {
					t.Fatalf("%v: wrong byte at offset %d", spans, span.offset+i)
				}
			}
		}
	})
}

// Counts 0..254 in irregularly sized steps.
func startIrreg() Stepper {
	return func() (Stepper, []byte, error) { return stepIrreg(0) }
}

func stepIrreg(s int) (Stepper, []byte, error) {
	var ret []byte

	for {
		ret = append(ret, byte(s))

		isPrime := true
		for fac := 2; ; fac++ {
			if s%fac == 0 {
				isPrime = false
				break
			} else if fac*fac > s {
				break
			}
		}
		s++

		stepper := func() (Stepper, []byte, error) { return stepIrreg(s) }
		if s == 255 {
			return stepper, ret, io.EOF
		} else if isPrime {
			return stepper, ret, nil
		}
	}
}

// A Stepper over a real expander must survive out-of-order reads.
func TestSteps(t *testing.T) {
	data := bytes.Repeat([]byte("stepwise random access "), 500)
	c, err := lzc.NewCompressor(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Feed(data); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	packed := c.Produce()

	newT := func() (codec.Transducer, error) { return lzc.NewExpander(), nil }
	r := New(Steps(newT, packed), int64(len(data)), "lzc-steps")
	got := make([]byte, len(data))
	for _, off := range []int64{9000, 0, 5000, 2500, 11000} {
		n, err := r.ReadAt(got[off:min(off+100, int64(len(data)))], off)
		if err != nil && err != io.EOF {
			t.Fatal(err)
		}
		if !bytes.Equal(got[off:off+int64(n)], data[off:off+int64(n)]) {
			t.Errorf("mismatch at offset %d", off)
		}
	}
}

// A stepper invoked after the underlying expander has moved past it
// (the evicted-checkpoint case) must reproduce its block exactly.
func TestStepperRewind(t *testing.T) {
	data := bytes.Repeat([]byte("rewind and replay "), 2000)
	c, err := lzc.NewCompressor(nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Feed(data)
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	packed := c.Produce()

	newT := func() (codec.Transducer, error) { return lzc.NewExpander(), nil }
	first := Steps(newT, packed)
	next, blob1, err := first()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := next(); err != nil && err != io.EOF {
		t.Fatal(err)
	}

	_, again, err := first()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob1, again) {
		t.Error("replayed block differs from the original")
	}
}

func permute[T any](arr []T, f func([]T)) {
	permuteHelper(arr, f, 0)
}

func permuteHelper[T any](arr []T, f func([]T), i int) {
	if i >= len(arr) {
		f(arr)
		return
	}
	for j := i; j < len(arr); j++ {
		arr[i], arr[j] = arr[j], arr[i]
		permuteHelper(arr, f, i+1)
		arr[i], arr[j] = arr[j], arr[i] // backtrack
	}
}
