// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package resultcache remembers the compressed form of inputs already
// seen, so that a slow optimal-parse compressor is only ever paid for
// once per distinct input. The persistent layer is a pebble database
// keyed by codec, options and a 64-bit hash of the input; a small
// tinylfu layer sits in front so hot inputs never touch disk.
//
// Every codec here is deterministic, so a hit is byte-identical to a
// fresh compression and eviction only ever costs time.
package resultcache

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
)

const memEntries = 512 // in-memory layer, whole compressed outputs

type Cache struct {
	db *pebble.DB

	mu  sync.Mutex // tinylfu is not safe for concurrent use
	mem *tinylfu.T[string, []byte]
}

func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening result cache at %s: %w", dir, err)
	}
	return &Cache{
		db:  db,
		mem: tinylfu.New[string, []byte](memEntries, memEntries*10, hasher),
	}, nil
}

// Get returns the cached compression of input under the given codec
// and option tags, or ok=false on a miss.
func (c *Cache) Get(codec, opts string, input []byte) (packed []byte, ok bool) {
	k := key(codec, opts, input)

	c.mu.Lock()
	packed, ok = c.mem.Get(string(k))
	c.mu.Unlock()
	if ok {
		return packed, true
	}

	val, closer, err := c.db.Get(k)
	if err != nil { // pebble.ErrNotFound, or a sick database
		return nil, false
	}
	packed = append([]byte(nil), val...) // val dies with the closer
	closer.Close()

	c.mu.Lock()
	c.mem.Add(string(k), packed)
	c.mu.Unlock()
	return packed, true
}

func (c *Cache) Put(codec, opts string, input, packed []byte) error {
	k := key(codec, opts, input)

	c.mu.Lock()
	c.mem.Add(string(k), packed)
	c.mu.Unlock()

	if err := c.db.Set(k, packed, pebble.NoSync); err != nil {
		return fmt.Errorf("storing result: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Tags are short and hash-free in the key so that a codec or option
// change can never collide with a different input.
func key(codec, opts string, input []byte) []byte {
	k := make([]byte, 0, len(codec)+len(opts)+10)
	k = append(k, codec...)
	k = append(k, 0)
	k = append(k, opts...)
	k = append(k, 0)
	return binary.BigEndian.AppendUint64(k, xxhash.Sum64(input))
}

var seed = maphash.MakeSeed()

func hasher(k string) uint64 {
	return maphash.Comparable(seed, k)
}
