// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package nufxlzw

// rlePack run-length encodes one chunk. Runs longer than 3 bytes
// become delim,value,count-1 (count capped at 256). The delimiter
// itself is always escaped the same way, so a lone literal delimiter
// is the zero-length run delim,delim,0.
func rlePack(dst, src []byte, delim byte) []byte {
	for i := 0; i < len(src); {
		b := src[i]
		n := 1
		for i+n < len(src) && src[i+n] == b && n < 256 {
			n++
		}
		if b == delim || n > 3 {
			dst = append(dst, delim, b, byte(n-1))
		} else {
			for range n {
				dst = append(dst, b)
			}
		}
		i += n
	}
	return dst
}

// rleUnpack expands chunk data that must decode to exactly ChunkSize
// bytes. Anything else is corruption, not a tolerable anomaly.
func rleUnpack(src []byte, delim byte) ([]byte, error) {
	out := make([]byte, 0, ChunkSize)
	for i := 0; i < len(src); {
		b := src[i]
		i++
		if b != delim {
			if len(out) >= ChunkSize {
				return nil, corrupt("rle output overruns chunk")
			}
			out = append(out, b)
			continue
		}
		if i+2 > len(src) {
			return nil, corrupt("truncated rle run")
		}
		v, count := src[i], int(src[i+1])+1
		i += 2
		if len(out)+count > ChunkSize {
			return nil, corrupt("rle run overruns chunk")
		}
		for range count {
			out = append(out, v)
		}
	}
	if len(out) != ChunkSize {
		return nil, corrupt("rle decoded to %d bytes, not %d", len(out), ChunkSize)
	}
	return out, nil
}
