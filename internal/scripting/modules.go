package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// RegisterModules defines the odds global in L:
//
//	odds.mean(expr)               -> number
//	odds.probability(expr, value) -> number in [0, 1]
//	odds.min(expr), odds.max(expr) -> integer
//	odds.table(expr)              -> array of {value, count, probability}
//	odds.roll(expr)               -> {value, probability}
//	odds.log.debug|info|warn(msg)
//
// Invalid expressions raise a Lua error, so scripts may pcall them.
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState) {
	odds := L.NewTable()
	L.SetFuncs(odds, map[string]lua.LGFunction{
		"mean":        m.luaMean,
		"probability": m.luaProbability,
		"min":         m.luaMin,
		"max":         m.luaMax,
		"table":       m.luaTable,
		"roll":        m.luaRoll,
	})

	log := L.NewTable()
	L.SetFuncs(log, map[string]lua.LGFunction{
		"debug": m.luaLog(zap.DebugLevel),
		"info":  m.luaLog(zap.InfoLevel),
		"warn":  m.luaLog(zap.WarnLevel),
	})
	L.SetField(odds, "log", log)

	L.SetGlobal("odds", odds)
}

// distributionArg evaluates the expression in argument 1, raising a Lua
// error on failure.
func (m *Manager) distributionArg(L *lua.LState) distribution.Distribution {
	src := L.CheckString(1)
	_, d, err := m.eval.DistributionExpr(src)
	if err != nil {
		L.RaiseError("odds: %s", err.Error())
	}
	return d
}

func (m *Manager) luaMean(L *lua.LState) int {
	L.Push(lua.LNumber(m.distributionArg(L).Mean()))
	return 1
}

func (m *Manager) luaProbability(L *lua.LState) int {
	d := m.distributionArg(L)
	p := d.ProbabilityFloat64(L.CheckInt(2))
	L.Push(lua.LNumber(p))
	return 1
}

func (m *Manager) luaMin(L *lua.LState) int {
	L.Push(lua.LNumber(m.distributionArg(L).Min()))
	return 1
}

func (m *Manager) luaMax(L *lua.LState) int {
	L.Push(lua.LNumber(m.distributionArg(L).Max()))
	return 1
}

func (m *Manager) luaTable(L *lua.LState) int {
	d := m.distributionArg(L)
	out := L.NewTable()
	for _, o := range d.Table() {
		row := L.NewTable()
		row.RawSetString("value", lua.LNumber(o.Value))
		// Counts can exceed float precision; keep them exact as strings.
		row.RawSetString("count", lua.LString(o.Count.String()))
		row.RawSetString("probability", lua.LNumber(d.ProbabilityFloat64(o.Value)))
		out.Append(row)
	}
	L.Push(out)
	return 1
}

func (m *Manager) luaRoll(L *lua.LState) int {
	result, err := m.roller.RollExpr(L.CheckString(1))
	if err != nil {
		L.RaiseError("odds: %s", err.Error())
	}
	p, _ := result.Probability.Float64()
	t := L.NewTable()
	t.RawSetString("value", lua.LNumber(result.Value))
	t.RawSetString("probability", lua.LNumber(p))
	L.Push(t)
	return 1
}

func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		if ce := m.logger.Check(level, L.CheckString(1)); ce != nil {
			ce.Write(zap.String("source", "lua"))
		}
		return 0
	}
}
