// Package dice provides the dice-notation expression tree, its parser, and
// the evaluator that folds an expression into an exact distribution.
package dice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// Expression is a node of a parsed dice expression.
//
// String returns the display form, which Parse accepts and maps back to an
// equal tree.
type Expression interface {
	fmt.Stringer
	expression()
}

// Modifier is a constant.
type Modifier struct {
	Value int
}

// Die is a single roll of a die with Faces faces.
type Die struct {
	Faces int
}

// Negated is the arithmetic negation of Inner.
type Negated struct {
	Inner Expression
}

// Repeated rolls Value Count times and sums the dice kept by Ranker.
type Repeated struct {
	Count  Expression
	Value  Expression
	Ranker distribution.Ranker
}

// Product multiplies Left by Right.
type Product struct {
	Left, Right Expression
}

// Floor divides Left by Right, rounding toward negative infinity.
type Floor struct {
	Left, Right Expression
}

// Sum adds Terms. An empty sum is 0.
type Sum struct {
	Terms []Expression
}

// Comparison is 1 when "Left Op Right" holds and 0 otherwise.
type Comparison struct {
	Left  Expression
	Op    distribution.ComparisonOp
	Right Expression
}

func (Modifier) expression()   {}
func (Die) expression()        {}
func (Negated) expression()    {}
func (Repeated) expression()   {}
func (Product) expression()    {}
func (Floor) expression()      {}
func (Sum) expression()        {}
func (Comparison) expression() {}

func (m Modifier) String() string { return strconv.Itoa(m.Value) }

func (d Die) String() string { return "d" + strconv.Itoa(d.Faces) }

func (n Negated) String() string {
	switch n.Inner.(type) {
	case Die, Repeated:
		return "-" + n.Inner.String()
	default:
		// "-3" would read back as a negative literal.
		return "-(" + n.Inner.String() + ")"
	}
}

func (r Repeated) String() string {
	var b strings.Builder
	if m, ok := r.Count.(Modifier); ok && m.Value >= 0 {
		b.WriteString(m.String())
	} else {
		b.WriteString("(" + r.Count.String() + ")")
	}
	if d, ok := r.Value.(Die); ok {
		b.WriteString(d.String())
	} else {
		b.WriteString("(" + r.Value.String() + ")")
	}
	b.WriteString(r.Ranker.String())
	return b.String()
}

func (p Product) String() string { return group(p.Left) + " * " + group(p.Right) }

func (f Floor) String() string { return group(f.Left) + " /_ " + group(f.Right) }

func (s Sum) String() string {
	if len(s.Terms) == 0 {
		return "0"
	}
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		switch t.(type) {
		case Sum, Comparison:
			parts[i] = "(" + t.String() + ")"
		default:
			parts[i] = t.String()
		}
	}
	return strings.Join(parts, " + ")
}

func (c Comparison) String() string {
	side := func(e Expression) string {
		if _, ok := e.(Comparison); ok {
			return "(" + e.String() + ")"
		}
		return e.String()
	}
	return side(c.Left) + " " + c.Op.String() + " " + side(c.Right)
}

// group parenthesizes e unless it binds tighter than any binary operator.
func group(e Expression) string {
	switch e.(type) {
	case Modifier, Die, Repeated:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}
