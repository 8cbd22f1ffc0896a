package scripting_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/scripting"
)

func runScript(t *testing.T, mgr *scripting.Manager, luaSrc, hook string, args ...lua.LValue) lua.LValue {
	t.Helper()
	dir := writeTempLua(t, "test.lua", luaSrc)
	set := "modtest_" + t.Name()
	require.NoError(t, mgr.Load(set, dir, 0))
	ret, err := mgr.CallHook(set, hook, args...)
	require.NoError(t, err)
	return ret
}

type countingObserver struct{ n int }

func (c *countingObserver) ObserveEvaluation(time.Duration, error) { c.n++ }

func TestOddsMean(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `function f() return odds.mean("2d6") end`, "f")
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestOddsProbability(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `function f() return odds.probability("1d4 > 3", 1) end`, "f")
	assert.Equal(t, lua.LNumber(0.25), ret)
}

func TestOddsMinMax(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function f()
			return odds.min("3d6 + 2") * 100 + odds.max("3d6 + 2")
		end
	`, "f")
	assert.Equal(t, lua.LNumber(5*100+20), ret)
}

func TestOddsTable(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function f()
			local rows = odds.table("2d4")
			local total = 0
			for _, r in ipairs(rows) do total = total + r.probability end
			assert(#rows == 7, "expected 7 rows, got " .. #rows)
			assert(rows[4].value == 5, "middle value")
			assert(rows[4].count == "4", "middle count")
			return total
		end
	`, "f")
	assert.InDelta(t, 1.0, float64(ret.(lua.LNumber)), 1e-12)
}

func TestOddsRoll(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function f()
			local r = odds.roll("1d6 + 10")
			if type(r.value) ~= "number" then error("value field missing") end
			if r.probability ~= 1/6 then error("probability " .. r.probability) end
			return r.value
		end
	`, "f")
	v := int(ret.(lua.LNumber))
	assert.GreaterOrEqual(t, v, 11)
	assert.LessOrEqual(t, v, 16)
}

func TestOdds_InvalidExpressionRaises(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function f()
			local ok, err = pcall(odds.mean, "2d4kh3")
			assert(not ok, "expected failure")
			return err
		end
	`, "f")
	assert.Contains(t, ret.String(), "keep")

	ret = runScript(t, mgr, `
		function g()
			local ok, err = pcall(odds.roll, "1d")
			return ok
		end
	`, "g")
	assert.Equal(t, lua.LFalse, ret)
}

func TestOddsLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t)
	runScript(t, mgr, `
		function do_all_logs()
			odds.log.debug("d")
			odds.log.info("i")
			odds.log.warn("w")
		end
	`, "do_all_logs")

	entries := logs.FilterField(zap.String("source", "lua")).All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "i", entries[1].Message)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
}

func TestOdds_EvaluationsAreObserved(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	obs := &countingObserver{}
	eval := dice.NewLoggedEvaluator(dice.NewEvaluator(0), logger, obs)
	mgr := scripting.NewManager(eval, dice.NewLoggedRoller(eval, dice.NewCryptoSource(), logger), logger)
	defer mgr.Close()

	runScript(t, mgr, `function f() return odds.mean("1d6") + odds.max("1d8") end`, "f")
	assert.Equal(t, 2, obs.n)
}

func TestProperty_OddsMeanMatchesEngine(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load("prop", writeTempLua(t, "m.lua", `function m(e) return odds.mean(e) end`), 0))
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "n")
		faces := rapid.IntRange(1, 20).Draw(rt, "faces")
		mod := rapid.IntRange(-10, 10).Draw(rt, "mod")
		expr := fmt.Sprintf("%dd%d + %d", n, faces, mod)

		ret, err := mgr.CallHook("prop", "m", lua.LString(expr))
		require.NoError(rt, err)
		want := float64(n)*float64(faces+1)/2 + float64(mod)
		assert.InDelta(rt, want, float64(ret.(lua.LNumber)), 1e-9)
	})
}
