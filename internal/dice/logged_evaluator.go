package dice

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// Observer receives the outcome of every evaluation. Metrics collectors
// implement it.
type Observer interface {
	ObserveEvaluation(elapsed time.Duration, err error)
}

// LoggedEvaluator wraps an Evaluator and logs every evaluation.
// Successful evaluations are logged at debug level, failures at warn.
type LoggedEvaluator struct {
	eval     *Evaluator
	logger   *zap.Logger
	observer Observer
}

// NewLoggedEvaluator creates a LoggedEvaluator. observer may be nil.
//
// Precondition: eval and logger must be non-nil.
func NewLoggedEvaluator(eval *Evaluator, logger *zap.Logger, observer Observer) *LoggedEvaluator {
	return &LoggedEvaluator{eval: eval, logger: logger, observer: observer}
}

// Distribution evaluates expr and logs the result.
//
// Postcondition: same as Evaluator.Distribution.
func (l *LoggedEvaluator) Distribution(expr Expression) (distribution.Distribution, error) {
	start := time.Now()
	d, err := l.eval.Distribution(expr)
	elapsed := time.Since(start)
	if l.observer != nil {
		l.observer.ObserveEvaluation(elapsed, err)
	}
	if err != nil {
		l.logger.Warn("dice evaluation failed",
			zap.String("expression", expr.String()),
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
		)
		return distribution.Distribution{}, err
	}
	l.logger.Debug("dice evaluation",
		zap.String("expression", expr.String()),
		zap.Int("min", d.Min()),
		zap.Int("max", d.Max()),
		zap.String("total", d.Total().String()),
		zap.Float64("mean", d.Mean()),
		zap.Duration("elapsed", elapsed),
	)
	return d, nil
}

// DistributionExpr parses expr and evaluates it.
func (l *LoggedEvaluator) DistributionExpr(expr string) (Expression, distribution.Distribution, error) {
	e, err := Parse(expr)
	if err != nil {
		return nil, distribution.Distribution{}, err
	}
	d, err := l.Distribution(e)
	if err != nil {
		return nil, distribution.Distribution{}, err
	}
	return e, d, nil
}
