// Package main provides the odds CLI: evaluate, roll, and compare dice
// expressions, list the roll catalog, and run Lua report scripts.
//
// Usage:
//
//	odds [-config file] eval [-json] [-server addr] <expr>
//	odds [-config file] roll [-n count] [-server addr] <expr>
//	odds [-config file] history -server addr [-limit n] <expr>
//	odds [-config file] compare <expr> <expr>
//	odds [-config file] catalog [-dir dir]
//	odds [-config file] script [-dir dir] -hook name [args...]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/cory-johannsen/odds/internal/config"
	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/observability"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "odds: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand receives.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	eval   *dice.LoggedEvaluator
	out    io.Writer
}

type command func(e *env, args []string) error

var commands = map[string]command{
	"eval":    runEval,
	"roll":    runRoll,
	"history": runHistory,
	"compare": runCompare,
	"catalog": runCatalog,
	"script":  runScript,
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("odds", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file (defaults and ODDS_ environment when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("missing command: one of eval, roll, history, compare, catalog, script")
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	e := &env{
		cfg:    cfg,
		logger: logger,
		eval:   dice.NewLoggedEvaluator(dice.NewEvaluator(cfg.Engine.MaxCombinations), logger, nil),
		out:    out,
	}
	return cmd(e, fs.Args()[1:])
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	v := config.New()
	observability.SetCLIDefaults(v)
	return config.LoadFromViper(v)
}

