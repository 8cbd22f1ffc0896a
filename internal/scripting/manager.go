package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/odds/internal/dice"
)

// globalSet is the reserved key for scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no named set is found.
const globalSet = "__global__"

// vm is one loaded script set. An LState is single-threaded, so every use
// holds mu.
type vm struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	cancel context.CancelFunc
}

// Manager owns one sandboxed LState per script set and dispatches hooks.
//
// Manager is safe for concurrent use. Calls into the same set are serialized;
// different sets run concurrently.
type Manager struct {
	mu     sync.RWMutex
	sets   map[string]*vm
	eval   *dice.LoggedEvaluator
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager whose odds.* module evaluates through eval
// and rolls through roller.
//
// Precondition: eval, roller, and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no script sets.
func NewManager(eval *dice.LoggedEvaluator, roller *dice.Roller, logger *zap.Logger) *Manager {
	if eval == nil {
		panic("scripting: NewManager requires a non-nil evaluator")
	}
	if roller == nil {
		panic("scripting: NewManager requires a non-nil roller")
	}
	if logger == nil {
		panic("scripting: NewManager requires a non-nil logger")
	}
	return &Manager{
		sets:   make(map[string]*vm),
		eval:   eval,
		roller: roller,
		logger: logger,
	}
}

// Load creates a sandboxed VM for set, registers the odds module, then
// executes every *.lua file in scriptDir in lexicographic order. Loading an
// existing set replaces it.
//
// Precondition: set must be non-empty; scriptDir must be a readable directory.
// Postcondition: The set's VM is registered; returns error on Lua load failure.
func (m *Manager) Load(set, scriptDir string, instLimit int) error {
	return m.loadInto(set, scriptDir, instLimit)
}

// LoadGlobal loads the shared VM that CallHook falls back to.
//
// Precondition: scriptDir must be a readable directory.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalSet, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)
	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.sets[key]
	m.sets[key] = &vm{L: L, limit: instLimit, cancel: cancel}
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	m.logger.Debug("scripting: loaded script set",
		zap.String("set", key),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// CallHook calls the named Lua global function in set's VM, falling back to
// the global VM when set has none. Returns (LNil, nil) if the hook is not
// defined or no VM exists. Each call gets a fresh instruction budget.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil and an
// error wrapping the Lua runtime error.
func (m *Manager) CallHook(set, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.sets[set]
	if !ok {
		v = m.sets[globalSet]
	}
	m.mu.RUnlock()

	if v == nil {
		m.logger.Info("scripting: no VM for set",
			zap.String("set", set),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L == nil {
		return lua.LNil, nil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	v.cancel()
	v.cancel = ResetLimit(v.L, v.limit)

	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("set", set),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: hook %q in %q: %w", hook, set, err)
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM. Subsequent CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	sets := m.sets
	m.sets = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range sets {
		v.close()
	}
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L == nil {
		return
	}
	v.cancel()
	v.L.Close()
	v.L = nil
}
