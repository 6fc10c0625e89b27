// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/elliotnunn/crunch/internal/expandcache"
)

// serve presents the expanded view of each input file over HTTP
// without ever materialising the whole expansion: range requests
// replay from the nearest decode checkpoint, with hot blocks held in
// the shared expandcache.
func serve(addr string, files []string, fl flavour) error {
	mux := http.NewServeMux()
	for _, name := range files {
		data, err := slurp(name)
		if err != nil {
			return err
		}
		size, err := measure(fl, data)
		if err != nil {
			return err
		}
		r := expandcache.New(expandcache.Steps(fl.unpack, data), size, name)

		base := filepath.Base(name)
		mux.HandleFunc("/"+base, func(w http.ResponseWriter, req *http.Request) {
			http.ServeContent(w, req, base, time.Time{}, io.NewSectionReader(r, 0, r.Size()))
		})
	}
	slog.Info("serving", "addr", addr, "files", len(files))
	return http.ListenAndServe(addr, mux)
}

// measure streams one full decode to learn the expanded size, without
// holding more than a block of output at a time.
func measure(fl flavour, data []byte) (int64, error) {
	t, err := fl.unpack()
	if err != nil {
		return 0, err
	}
	var n int64
	for len(data) > 0 {
		k := min(4096, len(data))
		if err := t.Feed(data[:k]); err != nil {
			return 0, err
		}
		n += int64(len(t.Produce()))
		data = data[k:]
	}
	if err := t.Finish(); err != nil {
		return 0, err
	}
	return n + int64(len(t.Produce())), nil
}
