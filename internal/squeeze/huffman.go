// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package squeeze

import (
	"container/heap"
	"fmt"

	"github.com/elliotnunn/crunch/internal/codec"
)

// tnode is one Huffman tree node. Leaves have left == right == -1;
// depth is the subtree height, so the root's depth is the longest code
// length.
type tnode struct {
	weight uint32
	depth  int
	left   int
	right  int
	sym    int
}

// nodeHeap orders tree nodes for the Huffman merge: lightest first,
// then shallowest (keeping codes short and reducing the rescale risk),
// then creation order so the result is deterministic.
type nodeHeap struct {
	nodes []tnode
	idx   []int
}

func (h *nodeHeap) Len() int { return len(h.idx) }
func (h *nodeHeap) Less(i, j int) bool {
	a, b := &h.nodes[h.idx[i]], &h.nodes[h.idx[j]]
	if a.weight != b.weight {
		return a.weight < b.weight
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return h.idx[i] < h.idx[j]
}
func (h *nodeHeap) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *nodeHeap) Push(x any)    { h.idx = append(h.idx, x.(int)) }
func (h *nodeHeap) Pop() any {
	x := h.idx[len(h.idx)-1]
	h.idx = h.idx[:len(h.idx)-1]
	return x
}

// makeTree runs the classic merge over the nonzero frequencies.
// Leaves are created in symbol order, so equal-weight ties resolve the
// same way on every run.
func makeTree(freq *[257]uint32) (nodes []tnode, root int) {
	h := &nodeHeap{}
	for sym, f := range freq {
		if f == 0 {
			continue
		}
		h.idx = append(h.idx, len(h.nodes))
		h.nodes = append(h.nodes, tnode{weight: f, left: -1, right: -1, sym: sym})
	}
	heap.Init(h)
	for h.Len() > 1 {
		left := heap.Pop(h).(int)
		right := heap.Pop(h).(int)
		h.nodes = append(h.nodes, tnode{
			weight: h.nodes[left].weight + h.nodes[right].weight,
			depth:  max(h.nodes[left].depth, h.nodes[right].depth) + 1,
			left:   left,
			right:  right,
			sym:    -1,
		})
		heap.Push(h, len(h.nodes)-1)
	}
	return h.nodes, heap.Pop(h).(int)
}

// buildBounded keeps rebuilding until the deepest code fits in
// maxCodeLen bits, rescaling the frequencies between attempts. A
// nonzero count never rescales to zero, so every symbol stays
// encodable.
func buildBounded(freq *[257]uint32) ([]tnode, int, error) {
	ceiling := uint32(65535)
	for {
		nodes, root := makeTree(freq)
		if nodes[root].depth <= maxCodeLen {
			return nodes, root, nil
		}
		ceiling /= 2
		if ceiling == 0 {
			return nil, 0, fmt.Errorf("%w: squeeze: frequency rescale did not converge", codec.ErrInternal)
		}
		var peak uint32
		for _, f := range freq {
			if f > peak {
				peak = f
			}
		}
		div := (peak + ceiling - 1) / ceiling
		if div < 2 {
			div = 2
		}
		for i, f := range freq {
			if f == 0 {
				continue
			}
			f /= div
			if f == 0 {
				f = 1
			}
			freq[i] = f
		}
	}
}

type hcode struct {
	bits uint32
	len  uint
}

// buildEncoding assigns each leaf its code: bit 0 is the first branch
// taken from the root, 0 meaning left. Walked with an explicit stack;
// depth is already bounded by maxCodeLen.
func buildEncoding(nodes []tnode, root int) (codes [257]hcode) {
	type visit struct {
		n int
		c hcode
	}
	stack := []visit{{root, hcode{}}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &nodes[v.n]
		if n.left < 0 {
			codes[n.sym] = v.c
			continue
		}
		stack = append(stack,
			visit{n.right, hcode{v.c.bits | 1<<v.c.len, v.c.len + 1}},
			visit{n.left, hcode{v.c.bits, v.c.len + 1}})
	}
	return codes
}

// serializeTree writes the node count and then only the internal
// nodes, in preorder so the root is node 0. Child references are
// signed 16-bit little-endian: non-negative is a node index, negative
// encodes literal -(ref+1).
func serializeTree(dst []byte, nodes []tnode, root int) []byte {
	index := make([]int, len(nodes))
	var order []int
	stack := []int{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodes[n].left < 0 {
			continue
		}
		index[n] = len(order)
		order = append(order, n)
		stack = append(stack, nodes[n].right, nodes[n].left)
	}

	ref := func(n int) int16 {
		if nodes[n].left < 0 {
			return int16(-(nodes[n].sym + 1))
		}
		return int16(index[n])
	}
	dst = append(dst, byte(len(order)), byte(len(order)>>8))
	for _, n := range order {
		l, r := ref(nodes[n].left), ref(nodes[n].right)
		dst = append(dst, byte(l), byte(uint16(l)>>8), byte(r), byte(uint16(r)>>8))
	}
	return dst
}
