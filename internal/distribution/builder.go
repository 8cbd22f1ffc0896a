package distribution

import "math/big"

// builder accumulates occurrences while an operator computes its result.
// It is the only mutable form of a distribution and never escapes the
// package.
type builder struct {
	counts []*big.Int
	offset int
}

// addOccurrences adds n occurrences of value, growing the stored range at
// either end as needed. Existing counts are never lost.
func (b *builder) addOccurrences(value int, n *big.Int) {
	if len(b.counts) == 0 {
		b.offset = value
	}
	if value < b.offset {
		grow := b.offset - value
		counts := make([]*big.Int, grow+len(b.counts))
		for i := 0; i < grow; i++ {
			counts[i] = new(big.Int)
		}
		copy(counts[grow:], b.counts)
		b.counts = counts
		b.offset = value
	}
	index := value - b.offset
	for index >= len(b.counts) {
		b.counts = append(b.counts, new(big.Int))
	}
	b.counts[index].Add(b.counts[index], n)
}

// finish hands the accumulated counts to an immutable Distribution. The
// builder must not be used afterwards.
func (b *builder) finish() Distribution {
	d := Distribution{counts: b.counts, offset: b.offset}
	b.counts = nil
	return d
}
