package dice_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/distribution"
)

// drawExpression generates a random expression tree no deeper than depth.
func drawExpression(t *rapid.T, depth int) dice.Expression {
	leaf := func() dice.Expression {
		if rapid.Bool().Draw(t, "leaf_die") {
			return dice.Die{Faces: rapid.IntRange(1, 6).Draw(t, "faces")}
		}
		return dice.Modifier{Value: rapid.IntRange(-5, 5).Draw(t, "modifier")}
	}
	if depth == 0 {
		return leaf()
	}
	switch rapid.IntRange(0, 7).Draw(t, "kind") {
	case 0:
		return leaf()
	case 1:
		return dice.Negated{Inner: drawExpression(t, depth-1)}
	case 2:
		n := rapid.IntRange(0, 3).Draw(t, "count")
		keep := rapid.IntRange(0, n).Draw(t, "keep")
		ranker := []distribution.Ranker{
			distribution.All(), distribution.Highest(keep), distribution.Lowest(keep),
		}[rapid.IntRange(0, 2).Draw(t, "ranker")]
		return dice.Repeated{Count: dice.Modifier{Value: n}, Value: drawExpression(t, depth-1), Ranker: ranker}
	case 3:
		return dice.Product{Left: drawExpression(t, depth-1), Right: drawExpression(t, depth-1)}
	case 4:
		return dice.Floor{Left: drawExpression(t, depth-1), Right: dice.Die{Faces: rapid.IntRange(1, 6).Draw(t, "divisor")}}
	case 5:
		terms := make([]dice.Expression, rapid.IntRange(2, 3).Draw(t, "terms"))
		for i := range terms {
			terms[i] = drawExpression(t, depth-1)
		}
		return dice.Sum{Terms: terms}
	default:
		op := distribution.ComparisonOp(rapid.IntRange(0, 4).Draw(t, "op"))
		return dice.Comparison{Left: drawExpression(t, depth-1), Op: op, Right: drawExpression(t, depth-1)}
	}
}

func TestParse_Forms(t *testing.T) {
	cases := map[string]dice.Expression{
		"d20":  dice.Die{Faces: 20},
		"3":    dice.Modifier{Value: 3},
		"-3":   dice.Modifier{Value: -3},
		"-(3)": dice.Negated{Inner: dice.Modifier{Value: 3}},
		"2d6":  dice.Repeated{Count: dice.Modifier{Value: 2}, Value: dice.Die{Faces: 6}, Ranker: distribution.All()},
		"4d6kh3": dice.Repeated{
			Count: dice.Modifier{Value: 4}, Value: dice.Die{Faces: 6}, Ranker: distribution.Highest(3),
		},
		"2d20kl": dice.Repeated{
			Count: dice.Modifier{Value: 2}, Value: dice.Die{Faces: 20}, Ranker: distribution.Lowest(1),
		},
		"(1d4)(4)kl2": dice.Repeated{
			Count:  dice.Repeated{Count: dice.Modifier{Value: 1}, Value: dice.Die{Faces: 4}, Ranker: distribution.All()},
			Value:  dice.Modifier{Value: 4},
			Ranker: distribution.Lowest(2),
		},
		"d4 + 1": dice.Sum{Terms: []dice.Expression{dice.Die{Faces: 4}, dice.Modifier{Value: 1}}},
		"d4 - 1": dice.Sum{Terms: []dice.Expression{dice.Die{Faces: 4}, dice.Modifier{Value: -1}}},
		"d4 - d6": dice.Sum{Terms: []dice.Expression{
			dice.Die{Faces: 4}, dice.Negated{Inner: dice.Die{Faces: 6}},
		}},
		"d4 /_ 2": dice.Floor{Left: dice.Die{Faces: 4}, Right: dice.Modifier{Value: 2}},
		"d4 * 2 + 1": dice.Sum{Terms: []dice.Expression{
			dice.Product{Left: dice.Die{Faces: 4}, Right: dice.Modifier{Value: 2}},
			dice.Modifier{Value: 1},
		}},
		"d4 >= 2 + 1": dice.Comparison{
			Left:  dice.Die{Faces: 4},
			Op:    distribution.Ge,
			Right: dice.Sum{Terms: []dice.Expression{dice.Modifier{Value: 2}, dice.Modifier{Value: 1}}},
		},
	}
	for input, want := range cases {
		got, err := dice.Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, input := range []string{
		"", "d", "d0", "2d", "(1d4", "1d4)", "1d4 +", "1d4 / 2", "3kh1",
		"1 > 2 > 3", "1d4 ? 2", "99999999999d6",
	} {
		_, err := dice.Parse(input)
		var se *dice.SyntaxError
		assert.True(t, errors.As(err, &se), "input %q: want *SyntaxError, got %v", input, err)
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := dice.Parse("1d4 + x")
	var se *dice.SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 6, se.Pos)
	assert.Contains(t, se.Error(), `"1d4 + x"`)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("1d") })
}

func TestExpression_String(t *testing.T) {
	for input, want := range map[string]string{
		"1d20+3 >= 17":             "1d20 + 3 >= 17",
		"(1d3-2)d4":                "(1d3 + -2)d4",
		"2((1d20+3 >= 17) * 1d10)": "2((1d20 + 3 >= 17) * 1d10)",
		"-d6":                      "-d6",
		"-(2 * 3)":                 "-(2 * 3)",
		"1d4 * 2 * 3":              "(1d4 * 2) * 3",
		"(1d4)(4)kl2":              "(1d4)(4)kl2",
		"2d20kh":                   "2d20kh1",
	} {
		assert.Equal(t, want, dice.MustParse(input).String(), input)
	}
}

func TestExpression_Property_StringRoundTrips(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := drawExpression(rt, 3)
		parsed, err := dice.Parse(expr.String())
		require.NoError(rt, err, "parsing %q", expr.String())
		assert.Equal(rt, expr, parsed, "display %q", expr.String())
	})
}
