// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPickFormat(t *testing.T) {
	for name, suffix := range map[string]string{
		"lzw1": ".lzw1", "lzw2": ".lzw2", "lzc": ".Z", "sq": ".sq", "zx0": ".zx0",
	} {
		fl, err := pickFormat(name)
		if err != nil {
			t.Fatal(err)
		}
		if fl.suffix != suffix {
			t.Errorf("%s: suffix %q, want %q", name, fl.suffix, suffix)
		}
	}
	if _, err := pickFormat("lharc"); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestOneFileRoundTrip(t *testing.T) {
	indir, outdir := t.TempDir(), t.TempDir()
	data := bytes.Repeat([]byte("crunch me please "), 500)
	in := filepath.Join(indir, "hello.txt")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fl, err := pickFormat("lzc")
	if err != nil {
		t.Fatal(err)
	}
	if err := oneFile(in, fl, nil); err != nil {
		t.Fatal(err)
	}

	*expandFlag = true
	*outFlag = outdir
	defer func() { *expandFlag = false; *outFlag = "" }()
	if err := oneFile(filepath.Join(indir, "hello.txt.Z"), fl, nil); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(outdir, "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip through the CLI lost data")
	}
}

func TestMeasure(t *testing.T) {
	data := bytes.Repeat([]byte("sized exactly "), 300)
	fl, err := pickFormat("zx0")
	if err != nil {
		t.Fatal(err)
	}
	tr, err := fl.pack("x")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Feed(data); err != nil {
		t.Fatal(err)
	}
	if err := tr.Finish(); err != nil {
		t.Fatal(err)
	}
	n, err := measure(fl, tr.Produce())
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(data)) {
		t.Errorf("measured %d, want %d", n, len(data))
	}
}
