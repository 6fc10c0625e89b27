// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Crunch compresses and expands files in a handful of vintage formats:
// NuFX LZW/1 and LZW/2 (ShrinkIt), LZC (UNIX compress), Squeeze
// (CP/M sq) and ZX0. Inputs are chosen by doublestar glob patterns and
// xz-wrapped inputs are unwrapped before the codec sees them. Setting
// CRUNCHCACHE to a directory remembers compression results across runs.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/therootcompany/xz"

	"github.com/elliotnunn/crunch/internal/codec"
	"github.com/elliotnunn/crunch/internal/lzc"
	"github.com/elliotnunn/crunch/internal/nufxlzw"
	"github.com/elliotnunn/crunch/internal/resultcache"
	"github.com/elliotnunn/crunch/internal/squeeze"
	"github.com/elliotnunn/crunch/internal/zx0"
)

var (
	expandFlag = flag.Bool("x", false, "expand instead of compress")
	formatFlag = flag.String("f", "lzc", "format: lzw1 lzw2 lzc sq zx0")
	lenFlag    = flag.Int64("n", -1, "unpacked length, required to expand lzw1/lzw2")
	outFlag    = flag.String("o", "", "output directory (default: next to each input)")
	serveFlag  = flag.String("serve", "", "serve expanded views over HTTP at this address")
	quickFlag  = flag.Bool("quick", false, "zx0: small match window, much faster parse")
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr,
			"usage: crunch [-x] [-f format] [-n len] [-o dir] [-serve addr] [-quick] pattern...")
		os.Exit(2)
	}

	fl, err := pickFormat(*formatFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var files []string
	for _, pattern := range flag.Args() {
		m, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			slog.Error("badPattern", "pattern", pattern, "err", err)
			os.Exit(2)
		}
		files = append(files, m...)
	}
	if len(files) == 0 {
		slog.Error("noInputsMatched", "patterns", flag.Args())
		os.Exit(1)
	}

	if *serveFlag != "" {
		if err := serve(*serveFlag, files, fl); err != nil {
			slog.Error("serveError", "err", err)
			os.Exit(1)
		}
		return
	}

	var cache *resultcache.Cache
	if dir := os.Getenv("CRUNCHCACHE"); dir != "" && !*expandFlag {
		cache, err = resultcache.Open(dir)
		if err != nil {
			slog.Warn("cacheOpenError", "dir", dir, "err", err)
		} else {
			defer cache.Close()
		}
	}

	status := 0
	for _, name := range files {
		if err := oneFile(name, fl, cache); err != nil {
			slog.Error("fileError", "path", name, "err", err)
			status = 1
		}
	}
	os.Exit(status)
}

func oneFile(name string, fl flavour, cache *resultcache.Cache) error {
	data, err := slurp(name)
	if err != nil {
		return err
	}

	var out []byte
	var outname string
	if *expandFlag {
		out, err = run(fl.unpack, data)
		outname = strings.TrimSuffix(filepath.Base(name), fl.suffix)
		if outname == filepath.Base(name) {
			outname += ".out"
		}
	} else {
		out, err = pack(fl, name, data, cache)
		outname = filepath.Base(name) + fl.suffix
	}
	if err != nil {
		return err
	}

	dir := *outFlag
	if dir == "" {
		dir = filepath.Dir(name)
	}
	return os.WriteFile(filepath.Join(dir, outname), out, 0o644)
}

func pack(fl flavour, name string, data []byte, cache *resultcache.Cache) ([]byte, error) {
	tag := fl.tag(name)
	if cache != nil {
		if out, ok := cache.Get(fl.name, tag, data); ok {
			return out, nil
		}
	}
	out, err := run(func() (codec.Transducer, error) { return fl.pack(name) }, data)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.Put(fl.name, tag, data, out); err != nil {
			slog.Warn("cachePutError", "err", err)
		}
	}
	return out, nil
}

func run(newT func() (codec.Transducer, error), data []byte) ([]byte, error) {
	t, err := newT()
	if err != nil {
		return nil, err
	}
	if err := t.Feed(data); err != nil {
		return nil, err
	}
	if err := t.Finish(); err != nil {
		return nil, err
	}
	return t.Produce(), nil
}

// slurp reads a whole input, refusing files over the memory budget and
// peeling an xz wrapper when the magic says there is one.
func slurp(name string) ([]byte, error) {
	st, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if st.Size() > memLimit {
		return nil, fmt.Errorf("%s is %d bytes, over the %d byte budget (set CRUNCHGB to raise it)",
			name, st.Size(), memLimit)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return unwrapXZ(data)
}

func unwrapXZ(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("\xfd7zXZ\x00")) {
		return data, nil
	}
	r, err := xz.NewReader(bytes.NewReader(data), xz.DefaultDictMax)
	if err != nil {
		return nil, fmt.Errorf("unwrapping xz: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unwrapping xz: %w", err)
	}
	return plain, nil
}

// A flavour binds a format name to its transducer constructors. pack
// and tag take the input filename because the Squeeze header embeds it.
type flavour struct {
	name   string
	suffix string
	tag    func(name string) string
	pack   func(name string) (codec.Transducer, error)
	unpack func() (codec.Transducer, error)
}

func pickFormat(name string) (flavour, error) {
	plainTag := func(string) string { return "" }
	switch name {
	case "lzw1", "lzw2":
		f := nufxlzw.LZW1
		if name == "lzw2" {
			f = nufxlzw.LZW2
		}
		return flavour{
			name:   name,
			suffix: "." + name,
			tag:    plainTag,
			pack: func(string) (codec.Transducer, error) {
				return nufxlzw.NewCompressor(f, nil)
			},
			unpack: func() (codec.Transducer, error) {
				if *lenFlag < 0 {
					return nil, fmt.Errorf("%w: -n unpacked length required for %s", codec.ErrConfig, name)
				}
				return nufxlzw.NewExpander(f, *lenFlag)
			},
		}, nil
	case "lzc":
		return flavour{
			name:   "lzc",
			suffix: ".Z",
			tag:    plainTag,
			pack: func(string) (codec.Transducer, error) {
				return lzc.NewCompressor(nil)
			},
			unpack: func() (codec.Transducer, error) {
				return lzc.NewExpander(), nil
			},
		}, nil
	case "sq":
		return flavour{
			name:   "sq",
			suffix: ".sq",
			tag: func(name string) string {
				return "h:" + filepath.Base(name) // the header bytes depend on it
			},
			pack: func(name string) (codec.Transducer, error) {
				return squeeze.NewCompressor(&squeeze.Options{
					FullHeader: true,
					Filename:   filepath.Base(name),
				})
			},
			unpack: func() (codec.Transducer, error) {
				return squeeze.NewExpander(true), nil
			},
		}, nil
	case "zx0":
		tag := ""
		if *quickFlag {
			tag = "q"
		}
		return flavour{
			name:   "zx0",
			suffix: ".zx0",
			tag:    func(string) string { return tag },
			pack: func(string) (codec.Transducer, error) {
				return zx0.NewCompressor(&zx0.Options{Quick: *quickFlag})
			},
			unpack: func() (codec.Transducer, error) {
				return zx0.NewExpander(), nil
			},
		}, nil
	}
	return flavour{}, fmt.Errorf("unknown format %q (want lzw1 lzw2 lzc sq zx0)", name)
}
