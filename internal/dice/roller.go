package dice

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// RollResult is one outcome drawn from an expression's distribution.
type RollResult struct {
	Expression string // display form of the rolled expression
	Value      int
	// Probability is the exact chance of rolling Value.
	Probability *big.Rat
}

// String returns a human-readable audit string, e.g. "4d6kh3 → 14 (p=0.1327)".
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	p, _ := r.Probability.Float64()
	return fmt.Sprintf("%s → %d (p=%.4f)", r.Expression, r.Value, p)
}

// Draw picks one value from d with probability exactly proportional to its
// occurrence count.
//
// Precondition: d.Total() > 0; src must be non-nil.
func Draw(d distribution.Distribution, src Source) int {
	pick := src.Int(d.Total())
	acc := new(big.Int)
	for v, c := range d.Occurrences() {
		acc.Add(acc, c)
		if pick.Cmp(acc) < 0 {
			return v
		}
	}
	panic("dice: Draw found no value; source returned out of range")
}

// Roller draws outcomes from the exact distribution of an expression.
// Every roll is logged at debug level.
type Roller struct {
	eval   *LoggedEvaluator
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that evaluates with eval, draws with src,
// and logs each roll to logger.
//
// Precondition: eval, src and logger must be non-nil.
func NewLoggedRoller(eval *LoggedEvaluator, src Source, logger *zap.Logger) *Roller {
	return &Roller{eval: eval, src: src, logger: logger}
}

// Roll evaluates expr and draws one outcome from its distribution.
//
// Postcondition: Returns a RollResult whose Value has non-zero probability,
// or the evaluation error.
func (r *Roller) Roll(expr Expression) (RollResult, error) {
	results, err := r.RollN(expr, 1)
	if err != nil {
		return RollResult{}, err
	}
	return results[0], nil
}

// RollN evaluates expr once and draws n outcomes from that distribution.
//
// Precondition: n >= 1.
// Postcondition: Returns n results, or the evaluation error.
func (r *Roller) RollN(expr Expression, n int) ([]RollResult, error) {
	if n < 1 {
		panic(fmt.Sprintf("dice: RollN called with n %d < 1", n))
	}
	d, err := r.eval.Distribution(expr)
	if err != nil {
		return nil, err
	}
	display := expr.String()
	results := make([]RollResult, n)
	for i := range results {
		v := Draw(d, r.src)
		results[i] = RollResult{
			Expression:  display,
			Value:       v,
			Probability: d.Probability(v),
		}
		r.logger.Debug("dice roll",
			zap.String("expression", display),
			zap.Int("value", v),
			zap.String("probability", results[i].Probability.RatString()),
		)
	}
	return results, nil
}

// RollExpr parses expr and rolls it.
//
// Postcondition: Returns a RollResult or a parse/evaluation error.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e)
}
