package dice

import (
	"fmt"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// DefaultMaxCombinations bounds the dice combinations a single repetition may
// enumerate when no limit is configured.
const DefaultMaxCombinations = 1 << 22

// EvalError reports the subexpression whose evaluation failed.
type EvalError struct {
	// Expression is the display form of the failing subexpression.
	Expression string
	// Err is one of the distribution package's sentinel errors.
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("dice: evaluating %q: %v", e.Expression, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Evaluator folds expressions into distributions.
//
// The zero value enumerates without a combination limit.
type Evaluator struct {
	// MaxCombinations bounds the enumeration of each repetition node.
	// 0 means unbounded.
	MaxCombinations int
}

// NewEvaluator returns an Evaluator with the given combination limit.
func NewEvaluator(maxCombinations int) *Evaluator {
	return &Evaluator{MaxCombinations: maxCombinations}
}

// Distribution computes the exact distribution of expr.
//
// Postcondition: the result is clean (no zero counts at either end), or the
// error is an *EvalError naming the first subexpression that failed.
func (ev *Evaluator) Distribution(expr Expression) (distribution.Distribution, error) {
	d, err := ev.eval(expr)
	if err != nil {
		return distribution.Distribution{}, err
	}
	return d.Clean(), nil
}

func (ev *Evaluator) eval(expr Expression) (distribution.Distribution, error) {
	switch e := expr.(type) {
	case Modifier:
		return distribution.Modifier(e.Value), nil
	case Die:
		return distribution.Die(e.Faces), nil
	case Negated:
		inner, err := ev.eval(e.Inner)
		if err != nil {
			return distribution.Distribution{}, err
		}
		return distribution.Negate(inner), nil
	case Repeated:
		count, err := ev.eval(e.Count)
		if err != nil {
			return distribution.Distribution{}, err
		}
		value, err := ev.eval(e.Value)
		if err != nil {
			return distribution.Distribution{}, err
		}
		d, err := distribution.Repeat(count, value, e.Ranker, ev.MaxCombinations)
		if err != nil {
			return distribution.Distribution{}, &EvalError{Expression: e.String(), Err: err}
		}
		return d, nil
	case Product:
		a, b, err := ev.evalPair(e.Left, e.Right)
		if err != nil {
			return distribution.Distribution{}, err
		}
		return distribution.Product(a, b), nil
	case Floor:
		a, b, err := ev.evalPair(e.Left, e.Right)
		if err != nil {
			return distribution.Distribution{}, err
		}
		d, err := distribution.FloorDiv(a, b)
		if err != nil {
			return distribution.Distribution{}, &EvalError{Expression: e.String(), Err: err}
		}
		return d, nil
	case Sum:
		terms := make([]distribution.Distribution, 0, len(e.Terms))
		for _, t := range e.Terms {
			d, err := ev.eval(t)
			if err != nil {
				return distribution.Distribution{}, err
			}
			terms = append(terms, d)
		}
		return distribution.Sum(terms...), nil
	case Comparison:
		a, b, err := ev.evalPair(e.Left, e.Right)
		if err != nil {
			return distribution.Distribution{}, err
		}
		return distribution.Compare(a, e.Op, b), nil
	default:
		panic(fmt.Sprintf("dice: unknown expression type %T", expr))
	}
}

func (ev *Evaluator) evalPair(left, right Expression) (distribution.Distribution, distribution.Distribution, error) {
	a, err := ev.eval(left)
	if err != nil {
		return distribution.Distribution{}, distribution.Distribution{}, err
	}
	b, err := ev.eval(right)
	if err != nil {
		return distribution.Distribution{}, distribution.Distribution{}, err
	}
	return a, b, nil
}
