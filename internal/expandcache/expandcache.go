// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package expandcache gives random access over a sequential expander.
// A Stepper is a resumable checkpoint of a decode in progress: calling
// it yields the next run of output plus a new Stepper frozen just past
// it. A ReaderAt keeps the list of checkpoints it has discovered and
// replays from the nearest one, with the decoded blocks held in a
// process-wide cache so the replay is usually free.
package expandcache

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"

	"github.com/elliotnunn/crunch/internal/codec"
)

// A Stepper produces the next block of expanded bytes and a
// continuation, or an error when the stream ends (io.EOF) or is bad.
type Stepper func() (Stepper, []byte, error)

// New wraps a stepper in a ReaderAt of the given expanded size. The
// name keys the shared block cache and should be stable per stream.
func New(stepper Stepper, size int64, name string) *ReaderAt {
	return &ReaderAt{
		uniq:        atomic.AddUint64(&monotonic, 1),
		key:         xxhash.Sum64String(name),
		checkpoints: []checkpoint{{stepper: stepper, offset: 0}},
		size:        size,
	}
}

// Steps adapts a one-shot expander into a Stepper, feeding it the
// compressed stream in pieces and checkpointing after every batch of
// output. Expanders carry state that cannot be rewound, so a stepper
// called out of order (a cache-evicted checkpoint) rebuilds one from
// the factory and fast-forwards; the feeding schedule is fixed, so the
// replayed block boundaries land where they did the first time.
func Steps(newT func() (codec.Transducer, error), packed []byte) Stepper {
	s := &stream{newT: newT, packed: packed}
	return s.stepper(0)
}

type stream struct {
	newT   func() (codec.Transducer, error)
	packed []byte
	t      codec.Transducer
	fed    int
	out    int64
}

func (s *stream) stepper(out int64) Stepper {
	return func() (Stepper, []byte, error) {
		if s.t == nil || s.out != out {
			t, err := s.newT()
			if err != nil {
				return nil, nil, err
			}
			s.t, s.fed, s.out = t, 0, 0
			for s.out < out {
				blob, err := s.next()
				s.out += int64(len(blob))
				if err != nil {
					return nil, nil, fmt.Errorf("%w: replay fell short of checkpoint", codec.ErrInternal)
				}
			}
		}

		blob, err := s.next()
		s.out += int64(len(blob))
		if err != nil {
			return nil, blob, err // io.EOF or a decode failure
		}
		return s.stepper(s.out), blob, nil
	}
}

func (s *stream) next() ([]byte, error) {
	const bite = 4096
	for {
		if s.fed == len(s.packed) {
			if err := s.t.Finish(); err != nil {
				return s.t.Produce(), err
			}
			return s.t.Produce(), io.EOF
		}
		n := min(bite, len(s.packed)-s.fed)
		if err := s.t.Feed(s.packed[s.fed : s.fed+n]); err != nil {
			return nil, err
		}
		s.fed += n
		if out := s.t.Produce(); len(out) > 0 {
			return out, nil
		}
	}
}

func (r *ReaderAt) Size() int64 {
	return r.size
}

func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	} else if off+int64(len(p)) > r.size {
		p = p[:r.size-off]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.checkpoints), func(i int) bool {
		return r.checkpoints[i].offset > off
	}) - 1

	// start with the highest checkpoint that starts <= the request
	for {
		key := fmt.Sprintf("%016x_%d_%d", r.key, r.uniq, r.checkpoints[i].offset)
		blob, cacheErr := cache.Get(key)

		if cacheErr != nil { // decompress a block expensively
			newstepper, newblob, err := r.checkpoints[i].stepper()
			blob = newblob
			cache.Set(key, blob)
			if i+1 == len(r.checkpoints) && newstepper != nil {
				r.checkpoints = append(r.checkpoints, checkpoint{
					stepper: newstepper,
					offset:  r.checkpoints[i].offset + int64(len(blob))})
			}
			r.checkpoints[i].err = err
		}

		// copy bytes into the destination buffer
		destcut, srccut, ok := overlap(off, len(p), r.checkpoints[i].offset, len(blob))
		if ok {
			n := copy(p[destcut:], blob[srccut:])
			if destcut+n == len(p) /*satisfied*/ || r.checkpoints[i].err != nil /*eof*/ {
				return destcut + n, r.checkpoints[i].err
			}
		} else if r.checkpoints[i].err != nil {
			return 0, r.checkpoints[i].err
		}

		i++
	}
}

type ReaderAt struct {
	uniq        uint64
	key         uint64
	mu          sync.Mutex // steppers are stateful, one replay at a time
	checkpoints []checkpoint
	size        int64
}

type checkpoint struct {
	stepper Stepper
	offset  int64
	err     error
}

var monotonic uint64

var cache *bigcache.BigCache

func init() {
	c, err := bigcache.New(context.Background(), bigcache.Config{
		HardMaxCacheSize: 1024, // megabytes
		Shards:           1024,
	})
	if err != nil {
		panic(err)
	}
	cache = c
}

func overlap(aoffset int64, alen int, boffset int64, blen int) (ainner, binner int, ok bool) {
	if aoffset >= boffset+int64(blen) || boffset >= aoffset+int64(alen) {
		return 0, 0, false
	}

	if aoffset > boffset {
		binner = int(aoffset - boffset)
	} else {
		ainner = int(boffset - aoffset)
	}
	return ainner, binner, true
}
