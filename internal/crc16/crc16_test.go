// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package crc16

import "testing"

func TestCheckValue(t *testing.T) {
	// The standard CRC-16/XMODEM check value
	if got := Sum(0, []byte("123456789")); got != 0x31c3 {
		t.Errorf("got %#04x want 0x31c3", got)
	}
}

func TestChaining(t *testing.T) {
	whole := Sum(0, []byte("hello, world"))
	split := Sum(Sum(0, []byte("hello, ")), []byte("world"))
	if whole != split {
		t.Errorf("chained CRC %#04x != one-shot %#04x", split, whole)
	}
}

func TestEmpty(t *testing.T) {
	if got := Sum(0x1234, nil); got != 0x1234 {
		t.Errorf("empty buffer changed seed: %#04x", got)
	}
}
