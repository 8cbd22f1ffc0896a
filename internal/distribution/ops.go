package distribution

import (
	"errors"
	"math/big"
)

// ErrDivideByZero is returned by FloorDiv when the divisor can be zero.
var ErrDivideByZero = errors.New("divisor can be zero")

// ComparisonOp is a binary comparison between two distributions.
type ComparisonOp int

const (
	Gt ComparisonOp = iota
	Ge
	Eq
	Le
	Lt
)

func (op ComparisonOp) String() string {
	switch op {
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "=="
	case Le:
		return "<="
	case Lt:
		return "<"
	default:
		return "?"
	}
}

// holds reports whether a op b.
func (op ComparisonOp) holds(a, b int) bool {
	switch op {
	case Gt:
		return a > b
	case Ge:
		return a >= b
	case Eq:
		return a == b
	case Le:
		return a <= b
	case Lt:
		return a < b
	default:
		panic("distribution: unknown comparison operator")
	}
}

// nonZero is the indexed form of Occurrences used inside operators. Counts
// are shared with d and must not be modified.
func (d Distribution) nonZero() []Occurrence {
	out := make([]Occurrence, 0, len(d.counts))
	for i, c := range d.counts {
		if c.Sign() != 0 {
			out = append(out, Occurrence{Value: d.offset + i, Count: c})
		}
	}
	return out
}

// cross accumulates a.count*b.count at combine(a.value, b.value) for every
// pair of occurring values.
func cross(a, b Distribution, combine func(x, y int) int) Distribution {
	var out builder
	bs := b.nonZero()
	n := new(big.Int)
	for _, x := range a.nonZero() {
		for _, y := range bs {
			out.addOccurrences(combine(x.Value, y.Value), n.Mul(x.Count, y.Count))
		}
	}
	return out.finish()
}

// Add returns the distribution of the sum of independent draws from a and b.
//
// Postcondition: Add(a, b).Total() == a.Total() * b.Total().
func Add(a, b Distribution) Distribution {
	return cross(a, b, func(x, y int) int { return x + y })
}

// Sum folds ds with Add. The sum of no distributions is Modifier(0).
func Sum(ds ...Distribution) Distribution {
	if len(ds) == 0 {
		return Modifier(0)
	}
	acc := ds[0]
	for _, d := range ds[1:] {
		acc = Add(acc, d)
	}
	return acc
}

// Negate reflects d about zero.
func Negate(d Distribution) Distribution {
	counts := make([]*big.Int, len(d.counts))
	for i, c := range d.counts {
		counts[len(counts)-1-i] = c
	}
	return Distribution{counts: counts, offset: -d.Max()}
}

// Product returns the distribution of the product of independent draws from
// a and b.
func Product(a, b Distribution) Distribution {
	return cross(a, b, func(x, y int) int { return x * y })
}

// FloorDiv returns the distribution of floor(x / y) for independent draws x
// from a and y from b.
//
// Postcondition: Returns ErrDivideByZero, before dividing anything, if b has
// a non-zero probability of producing 0.
func FloorDiv(a, b Distribution) (Distribution, error) {
	if b.count(0).Sign() != 0 {
		return Distribution{}, ErrDivideByZero
	}
	return cross(a, b, floorDiv), nil
}

func floorDiv(x, y int) int {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

// Compare returns the distribution of the boolean (0 or 1) outcome of
// "x op y" for independent draws x from a and y from b.
//
// A comparison that is certain collapses to Modifier(0) or Modifier(1), so
// later operators work on a single value instead of the full cross product.
func Compare(a Distribution, op ComparisonOp, b Distribution) Distribution {
	d := cross(a, b, func(x, y int) int {
		if op.holds(x, y) {
			return 1
		}
		return 0
	})
	switch {
	case d.count(1).Sign() == 0:
		return Modifier(0)
	case d.count(0).Sign() == 0:
		return Modifier(1)
	default:
		return d
	}
}
