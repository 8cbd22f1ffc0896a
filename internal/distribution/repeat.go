package distribution

import (
	"cmp"
	"errors"
	"fmt"
	"math/big"
	"slices"
)

var (
	// ErrNegativeCount is returned by Repeat when the roll count can be negative.
	ErrNegativeCount = errors.New("roll count can be negative")
	// ErrKeepTooFew is returned by Repeat when the ranker keeps more dice than
	// may be rolled.
	ErrKeepTooFew = errors.New("keeps more dice than are rolled")
	// ErrNegativeKeep is returned by Repeat for a Highest or Lowest ranker
	// with a negative keep count.
	ErrNegativeKeep = errors.New("keep count must be non-negative")
	// ErrCombinationLimit is returned by Repeat when exact enumeration would
	// exceed the configured number of combinations.
	ErrCombinationLimit = errors.New("too many combinations to enumerate")
)

// RankKind selects which rolled dice a Ranker keeps.
type RankKind int

const (
	KeepAll RankKind = iota
	KeepHighest
	KeepLowest
)

// Ranker is the keep rule of a repetition: keep every die, or keep the Keep
// highest or lowest dice.
type Ranker struct {
	Kind RankKind
	Keep int
}

// All keeps every rolled die.
func All() Ranker { return Ranker{Kind: KeepAll} }

// Highest keeps the n highest dice.
func Highest(n int) Ranker { return Ranker{Kind: KeepHighest, Keep: n} }

// Lowest keeps the n lowest dice.
func Lowest(n int) Ranker { return Ranker{Kind: KeepLowest, Keep: n} }

// KeepCount is the minimum number of dice the ranker needs. KeepAll needs none.
func (r Ranker) KeepCount() int {
	if r.Kind == KeepAll {
		return 0
	}
	return r.Keep
}

// String renders the ranker suffix in dice notation ("", "kh3", "kl1").
func (r Ranker) String() string {
	switch r.Kind {
	case KeepHighest:
		return fmt.Sprintf("kh%d", r.Keep)
	case KeepLowest:
		return fmt.Sprintf("kl%d", r.Keep)
	default:
		return ""
	}
}

// keep returns the sum of the values the ranker keeps. rolled may be
// reordered.
func (r Ranker) keep(rolled []int) int {
	kept := rolled
	switch r.Kind {
	case KeepHighest:
		slices.SortFunc(rolled, func(a, b int) int { return cmp.Compare(b, a) })
		kept = rolled[:r.Keep]
	case KeepLowest:
		slices.Sort(rolled)
		kept = rolled[:r.Keep]
	}
	total := 0
	for _, v := range kept {
		total += v
	}
	return total
}

// Combinations returns the number of ordered dice combinations Repeat
// enumerates for count and value: the sum over every possible roll count n of
// (number of occurring values)^n.
func Combinations(count, value Distribution) *big.Int {
	faces := big.NewInt(int64(len(value.nonZero())))
	total := new(big.Int)
	for _, n := range count.nonZero() {
		if n.Value < 0 {
			continue
		}
		total.Add(total, new(big.Int).Exp(faces, big.NewInt(int64(n.Value)), nil))
	}
	return total
}

// Repeat returns the distribution of rolling value count times and summing
// the dice kept by ranker. count may itself be random.
//
// Every ordered combination of dice is enumerated exactly. The cost grows as
// (number of occurring values)^count, so limit bounds the number of
// combinations; 0 disables the bound.
//
// Postcondition: Returns ErrNegativeCount if count.Min() < 0, ErrNegativeKeep
// if the ranker keeps a negative number of dice, ErrKeepTooFew if
// count.Min() < ranker.KeepCount(), or ErrCombinationLimit if the enumeration
// exceeds limit. No enumeration happens on error.
func Repeat(count, value Distribution, ranker Ranker, limit int) (Distribution, error) {
	if count.Min() < 0 {
		return Distribution{}, ErrNegativeCount
	}
	if ranker.KeepCount() < 0 {
		return Distribution{}, ErrNegativeKeep
	}
	if count.Min() < ranker.KeepCount() {
		return Distribution{}, ErrKeepTooFew
	}
	if limit > 0 {
		if combos := Combinations(count, value); combos.Cmp(big.NewInt(int64(limit))) > 0 {
			return Distribution{}, fmt.Errorf("%w: %s > %d", ErrCombinationLimit, combos, limit)
		}
	}

	var out builder
	faces := value.nonZero()
	for _, n := range count.nonZero() {
		enumerate(faces, n.Value, func(rolled []int, weight *big.Int) {
			out.addOccurrences(ranker.keep(rolled), weight.Mul(weight, n.Count))
		})
	}
	return out.finish(), nil
}

// enumerate calls visit once for every element of the n-fold cartesian power
// of faces, in odometer order. visit receives the rolled values (a scratch
// slice it may reorder) and the product of their counts (a scratch value it
// may overwrite).
func enumerate(faces []Occurrence, n int, visit func(rolled []int, weight *big.Int)) {
	if n > 0 && len(faces) == 0 {
		return
	}
	index := make([]int, n)
	rolled := make([]int, n)
	weight := new(big.Int)
	for {
		weight.SetInt64(1)
		for i, f := range index {
			rolled[i] = faces[f].Value
			weight.Mul(weight, faces[f].Count)
		}
		visit(rolled, weight)

		i := n - 1
		for ; i >= 0; i-- {
			index[i]++
			if index[i] < len(faces) {
				break
			}
			index[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
