package dice_test

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/distribution"
)

// fixedSource always returns pick, clamped into [0, n).
type fixedSource struct{ pick int64 }

func (f fixedSource) Int(n *big.Int) *big.Int {
	p := big.NewInt(f.pick)
	if p.Cmp(n) >= 0 {
		return new(big.Int).Sub(n, big.NewInt(1))
	}
	return p
}

type recordingObserver struct {
	calls  int
	failed int
}

func (r *recordingObserver) ObserveEvaluation(_ time.Duration, err error) {
	r.calls++
	if err != nil {
		r.failed++
	}
}

func newRoller(t *testing.T, src dice.Source) *dice.Roller {
	t.Helper()
	logger := zaptest.NewLogger(t)
	eval := dice.NewLoggedEvaluator(dice.NewEvaluator(dice.DefaultMaxCombinations), logger, nil)
	return dice.NewLoggedRoller(eval, src, logger)
}

func TestDraw_InverseCDF(t *testing.T) {
	d := distribution.Add(distribution.Die(4), distribution.Die(4))
	// Cumulative counts: 2:1 3:3 4:6 5:10 6:13 7:15 8:16.
	for pick, want := range map[int64]int{0: 2, 1: 3, 2: 3, 3: 4, 9: 5, 10: 6, 15: 8} {
		assert.Equal(t, want, dice.Draw(d, fixedSource{pick}), "pick %d", pick)
	}
}

func TestDraw_Property_AlwaysOccurs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := distribution.Compare(distribution.Die(6), distribution.Gt, distribution.Die(6))
		pick := rapid.Int64Range(0, 35).Draw(rt, "pick")
		v := dice.Draw(d, fixedSource{pick})
		assert.Positive(rt, d.Occurrence(v).Sign())
	})
}

func TestCryptoSource_Int_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	n := big.NewInt(6)
	for i := 0; i < 1000; i++ {
		v := src.Int(n)
		assert.GreaterOrEqual(t, v.Sign(), 0)
		assert.Negative(t, v.Cmp(n))
	}
}

func TestCryptoSource_Int_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Int(big.NewInt(0)) })
}

func TestRoller_RollExpr(t *testing.T) {
	r := newRoller(t, fixedSource{0})
	result, err := r.RollExpr("4d6kh3")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Value)
	assert.Equal(t, "4d6kh3", result.Expression)
	assert.Equal(t, 0, result.Probability.Cmp(big.NewRat(1, 1296)))
}

func TestRoller_RollN_EvaluatesOnce(t *testing.T) {
	logger := zaptest.NewLogger(t)
	obs := &recordingObserver{}
	eval := dice.NewLoggedEvaluator(dice.NewEvaluator(dice.DefaultMaxCombinations), logger, obs)
	r := dice.NewLoggedRoller(eval, dice.NewCryptoSource(), logger)

	results, err := r.RollN(dice.MustParse("7d6kh3"), 20)
	require.NoError(t, err)
	require.Len(t, results, 20)
	assert.Equal(t, 1, obs.calls)
	for _, res := range results {
		assert.Equal(t, "7d6kh3", res.Expression)
		assert.GreaterOrEqual(t, res.Value, 3)
		assert.LessOrEqual(t, res.Value, 18)
		assert.Positive(t, res.Probability.Sign())
	}
}

func TestRoller_RollN_Errors(t *testing.T) {
	r := newRoller(t, dice.NewCryptoSource())
	_, err := r.RollN(dice.MustParse("2d4kh3"), 5)
	assert.ErrorIs(t, err, distribution.ErrKeepTooFew)
	assert.Panics(t, func() { _, _ = r.RollN(dice.MustParse("d6"), 0) })
}

func TestRoller_RollExpr_Errors(t *testing.T) {
	r := newRoller(t, dice.NewCryptoSource())
	_, err := r.RollExpr("2d4kh3")
	assert.ErrorIs(t, err, distribution.ErrKeepTooFew)
	_, err = r.RollExpr("2d")
	assert.Error(t, err)
}

func TestRoller_Property_RollWithinBounds(t *testing.T) {
	r := newRoller(t, dice.NewCryptoSource())
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "count")
		faces := rapid.IntRange(1, 12).Draw(rt, "faces")
		result, err := r.Roll(dice.Repeated{
			Count: dice.Modifier{Value: n}, Value: dice.Die{Faces: faces}, Ranker: distribution.All(),
		})
		require.NoError(rt, err)
		assert.GreaterOrEqual(rt, result.Value, n)
		assert.LessOrEqual(rt, result.Value, n*faces)
	})
}

func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{Expression: "1d4", Value: 3, Probability: big.NewRat(1, 4)}
	assert.Equal(t, "1d4 → 3 (p=0.2500)", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	r := dice.RollResult{Value: 4, Probability: big.NewRat(1, 1)}
	assert.Panics(t, func() { _ = r.String() })
}

func TestLoggedEvaluator_LogsSuccessAndFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	obs := &recordingObserver{}
	eval := dice.NewLoggedEvaluator(dice.NewEvaluator(0), zap.New(core), obs)

	_, d, err := eval.DistributionExpr("2d6")
	require.NoError(t, err)
	assert.Equal(t, int64(36), d.Total().Int64())

	_, _, err = eval.DistributionExpr("(1d3-2)d4")
	require.Error(t, err)

	assert.Equal(t, 2, obs.calls)
	assert.Equal(t, 1, obs.failed)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "2d6", entries[0].ContextMap()["expression"])
	assert.Equal(t, "36", entries[0].ContextMap()["total"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.True(t, strings.Contains(entries[1].ContextMap()["error"].(string), "roll count can be negative"))
}

func TestLoggedEvaluator_ParseErrorNotObserved(t *testing.T) {
	obs := &recordingObserver{}
	eval := dice.NewLoggedEvaluator(dice.NewEvaluator(0), zaptest.NewLogger(t), obs)
	_, _, err := eval.DistributionExpr("1d")
	require.Error(t, err)
	assert.Zero(t, obs.calls)
}
