// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package zx0

// A parse block is one token of a candidate parse: a literal run
// (offset 0) or a match, covering input up to and including index.
// Blocks chain backward to the preceding token; bits is the total cost
// of the parse ending here. Immutable once linked in.
type block struct {
	bits   int
	index  int
	offset int
	chain  *block
}

func offsetCeiling(index, limit int) int {
	if index > limit {
		return limit
	}
	if index < initialOffset {
		return initialOffset
	}
	return index
}

// optimize runs the dynamic-programming search for the least-bit
// parse. For every position it weighs extending a literal run,
// reusing the previous offset, and paying for a new offset; per-offset
// running match lengths plus the amortized best-length table keep the
// new-offset case from degenerating quadratically.
//
// The returned chain links backward from the final block; nil only for
// empty input.
func optimize(input []byte, offsetLimit int) *block {
	if len(input) == 0 {
		return nil
	}
	maxOffset := offsetCeiling(len(input)-1, offsetLimit)

	lastLiteral := make([]*block, maxOffset+1)
	lastMatch := make([]*block, maxOffset+1)
	optimal := make([]*block, len(input))
	matchLength := make([]int, maxOffset+1)
	bestLength := make([]int, max(len(input), 3))
	bestLength[2] = 2

	// a fake block before the data seeds the chain
	lastMatch[initialOffset] = &block{bits: -1, index: -1, offset: initialOffset}

	better := func(at int, b *block) {
		if optimal[at] == nil || optimal[at].bits > b.bits {
			optimal[at] = b
		}
	}

	for index := range input {
		bestLengthSize := 2
		ceiling := offsetCeiling(index, offsetLimit)
		for offset := 1; offset <= ceiling; offset++ {
			if index != 0 && index >= offset && input[index] == input[index-offset] {
				// copy from last offset
				if lit := lastLiteral[offset]; lit != nil {
					length := index - lit.index
					bits := lit.bits + 1 + gammaBits(length)
					lastMatch[offset] = &block{bits, index, offset, lit}
					better(index, lastMatch[offset])
				}
				// copy from new offset
				matchLength[offset]++
				if matchLength[offset] > 1 {
					if bestLengthSize < matchLength[offset] {
						bits := optimal[index-bestLength[bestLengthSize]].bits +
							gammaBits(bestLength[bestLengthSize]-1)
						for bestLengthSize < matchLength[offset] {
							bestLengthSize++
							bits2 := optimal[index-bestLengthSize].bits + gammaBits(bestLengthSize-1)
							if bits2 <= bits {
								bestLength[bestLengthSize] = bestLengthSize
								bits = bits2
							} else {
								bestLength[bestLengthSize] = bestLength[bestLengthSize-1]
							}
						}
					}
					length := bestLength[matchLength[offset]]
					bits := optimal[index-length].bits + 8 +
						gammaBits((offset-1)/128+1) + gammaBits(length-1)
					if m := lastMatch[offset]; m == nil || m.index != index || m.bits > bits {
						lastMatch[offset] = &block{bits, index, offset, optimal[index-length]}
						better(index, lastMatch[offset])
					}
				}
			} else {
				// the run over this offset is broken; a literal can follow
				matchLength[offset] = 0
				if m := lastMatch[offset]; m != nil {
					length := index - m.index
					bits := m.bits + 1 + gammaBits(length) + length*8
					lastLiteral[offset] = &block{bits, index, 0, m}
					better(index, lastLiteral[offset])
				}
			}
		}
	}
	return optimal[len(input)-1]
}
