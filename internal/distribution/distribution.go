// Package distribution implements exact discrete probability distributions
// over the integers and the operators that combine them.
//
// A Distribution never stores a probability directly. Each value carries an
// integer occurrence count, and the probability of a value is its count over
// the sum of all counts (the total). Counts are arbitrary precision, so no
// combination of distributions loses exactness.
package distribution

import (
	"errors"
	"fmt"
	"iter"
	"math/big"
)

// Distribution is an immutable discrete distribution for a bounded dice
// expression.
//
// Invariant: counts[i] is the number of occurrences of value offset+i.
// Invariant: no element of counts is nil or negative.
type Distribution struct {
	counts []*big.Int
	offset int
}

// Occurrence pairs a value with its occurrence count.
type Occurrence struct {
	Value int
	Count *big.Int
}

// ErrNegativeOccurrence is returned by FromOccurrences for a negative count.
var ErrNegativeOccurrence = errors.New("occurrence counts must be non-negative")

// Die returns the uniform distribution on [1, faces]: one roll of a die
// with the given number of faces.
//
// Precondition: faces >= 1. Panics otherwise.
func Die(faces int) Distribution {
	if faces < 1 {
		panic(fmt.Sprintf("distribution: Die called with faces %d < 1", faces))
	}
	counts := make([]*big.Int, faces)
	for i := range counts {
		counts[i] = big.NewInt(1)
	}
	return Distribution{counts: counts, offset: 1}
}

// Modifier returns the distribution that produces value with probability 1.
func Modifier(value int) Distribution {
	return Distribution{counts: []*big.Int{big.NewInt(1)}, offset: value}
}

// FromOccurrences rebuilds a distribution whose lowest stored value is
// offset. The counts are copied.
//
// Postcondition: Returns ErrNegativeOccurrence if any count is negative.
func FromOccurrences(offset int, counts []*big.Int) (Distribution, error) {
	cp := make([]*big.Int, len(counts))
	for i, c := range counts {
		if c == nil {
			cp[i] = new(big.Int)
			continue
		}
		if c.Sign() < 0 {
			return Distribution{}, fmt.Errorf("value %d: %w", offset+i, ErrNegativeOccurrence)
		}
		cp[i] = new(big.Int).Set(c)
	}
	return Distribution{counts: cp, offset: offset}, nil
}

// Probability returns the exact probability of value, or 0/1 when value is
// outside the stored range.
func (d Distribution) Probability(value int) *big.Rat {
	count := d.count(value)
	if count.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(count, d.Total())
}

// ProbabilityFloat64 is the floating point view of Probability.
func (d Distribution) ProbabilityFloat64(value int) float64 {
	f, _ := d.Probability(value).Float64()
	return f
}

// Total returns the sum of all occurrence counts: the number of distinct ways
// to roll the expression, and the denominator of every probability.
func (d Distribution) Total() *big.Int {
	total := new(big.Int)
	for _, c := range d.counts {
		total.Add(total, c)
	}
	return total
}

// Occurrence returns a copy of the occurrence count for value.
func (d Distribution) Occurrence(value int) *big.Int {
	return new(big.Int).Set(d.count(value))
}

// Occurrences yields (value, count) pairs in ascending order of value,
// skipping values that never occur. The sequence may be ranged over any
// number of times.
func (d Distribution) Occurrences() iter.Seq2[int, *big.Int] {
	return func(yield func(int, *big.Int) bool) {
		for i, c := range d.counts {
			if c.Sign() == 0 {
				continue
			}
			if !yield(d.offset+i, new(big.Int).Set(c)) {
				return
			}
		}
	}
}

// Table collects Occurrences into a slice.
func (d Distribution) Table() []Occurrence {
	table := make([]Occurrence, 0, len(d.counts))
	for v, c := range d.Occurrences() {
		table = append(table, Occurrence{Value: v, Count: c})
	}
	return table
}

// Min returns the lowest stored value (inclusive).
func (d Distribution) Min() int {
	return d.offset
}

// Max returns the highest stored value (inclusive).
func (d Distribution) Max() int {
	return d.offset + len(d.counts) - 1
}

// Mean returns the expected value: the sum of value * probability over the
// occurring values. Each probability is converted to float64 before summing
// so that huge occurrence counts never meet in one integer product.
func (d Distribution) Mean() float64 {
	total := d.Total()
	if total.Sign() == 0 {
		return 0
	}
	var mean float64
	p := new(big.Rat)
	for i, c := range d.counts {
		if c.Sign() == 0 {
			continue
		}
		f, _ := p.SetFrac(c, total).Float64()
		mean += float64(d.offset+i) * f
	}
	return mean
}

// Clean returns a copy of d with leading and trailing zero-occurrence entries
// removed.
//
// Postcondition: the first and last stored counts of the result are non-zero,
// unless d has no non-zero counts at all.
func (d Distribution) Clean() Distribution {
	lo := 0
	for lo < len(d.counts) && d.counts[lo].Sign() == 0 {
		lo++
	}
	hi := len(d.counts)
	for hi > lo && d.counts[hi-1].Sign() == 0 {
		hi--
	}
	counts := make([]*big.Int, hi-lo)
	copy(counts, d.counts[lo:hi])
	return Distribution{counts: counts, offset: d.offset + lo}
}

// Equal reports whether d and other assign the same count to every value.
// Stored zero padding is ignored.
func (d Distribution) Equal(other Distribution) bool {
	a, b := d.Clean(), other.Clean()
	if len(a.counts) != len(b.counts) {
		return false
	}
	if len(a.counts) == 0 {
		return true
	}
	if a.offset != b.offset {
		return false
	}
	for i := range a.counts {
		if a.counts[i].Cmp(b.counts[i]) != 0 {
			return false
		}
	}
	return true
}

// String renders the distribution as "{v:count v:count ...}/total".
func (d Distribution) String() string {
	s := "{"
	first := true
	for v, c := range d.Occurrences() {
		if !first {
			s += " "
		}
		first = false
		s += fmt.Sprintf("%d:%s", v, c)
	}
	return s + "}/" + d.Total().String()
}

func (d Distribution) count(value int) *big.Int {
	index := value - d.offset
	if index < 0 || index >= len(d.counts) {
		return new(big.Int)
	}
	return d.counts[index]
}
