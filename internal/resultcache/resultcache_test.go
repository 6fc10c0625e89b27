// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package resultcache

import (
	"bytes"
	"testing"
)

func TestHitMiss(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	input := []byte("some original file contents")
	packed := []byte{1, 2, 3, 4}

	if _, ok := c.Get("zx0", "", input); ok {
		t.Error("hit on an empty cache")
	}
	if err := c.Put("zx0", "", input, packed); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get("zx0", "", input)
	if !ok || !bytes.Equal(got, packed) {
		t.Errorf("got %v %v, want %v", got, ok, packed)
	}

	// same input under a different codec or option tag is a miss
	if _, ok := c.Get("lzc", "", input); ok {
		t.Error("codec tag did not separate entries")
	}
	if _, ok := c.Get("zx0", "q", input); ok {
		t.Error("option tag did not separate entries")
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	input := []byte("persist me")
	packed := []byte{9, 9, 9}

	c, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("sq", "", input, packed); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	got, ok := c.Get("sq", "", input)
	if !ok || !bytes.Equal(got, packed) {
		t.Error("entry did not survive a reopen")
	}
}

func TestKeyShape(t *testing.T) {
	a := key("zx0", "q", []byte("x"))
	b := key("zx0q", "", []byte("x"))
	if bytes.Equal(a, b) {
		t.Error("tag boundary ambiguity")
	}
}
