package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	lua "github.com/yuin/gopher-lua"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/cory-johannsen/odds/internal/catalog"
	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/distribution"
	"github.com/cory-johannsen/odds/internal/oddsserver"
	"github.com/cory-johannsen/odds/internal/report"
	"github.com/cory-johannsen/odds/internal/scripting"
)

const rpcTimeout = 30 * time.Second

// oneExpression joins the remaining arguments so that "odds eval 2d6 + 3"
// works without quoting.
func oneExpression(fs *flag.FlagSet) (string, error) {
	if fs.NArg() == 0 {
		return "", errors.New("missing expression")
	}
	return strings.Join(fs.Args(), " "), nil
}

func dial(addr string) (*oddsserver.Client, func(), error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return oddsserver.NewClient(cc), func() { _ = cc.Close() }, nil
}

func runEval(e *env, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the distribution as JSON")
	addr := fs.String("server", "", "evaluate on an odds server at host:port instead of locally")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, err := oneExpression(fs)
	if err != nil {
		return err
	}

	var (
		display string
		d       distribution.Distribution
	)
	if *addr != "" {
		client, closeFn, err := dial(*addr)
		if err != nil {
			return err
		}
		defer closeFn()
		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		resp, err := client.Evaluate(ctx, text)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(e, resp)
		}
		display = resp.GetFields()["expression"].GetStringValue()
		if d, err = report.FromStruct(resp); err != nil {
			return err
		}
	} else {
		expr, dist, err := e.eval.DistributionExpr(text)
		if err != nil {
			return err
		}
		display, d = expr.String(), dist
		if *asJSON {
			return writeJSON(e, report.Struct(display, d))
		}
	}
	return report.WriteTable(e.out, display, d)
}

func writeJSON(e *env, m proto.Message) error {
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, string(b))
	return err
}

func runRoll(e *env, args []string) error {
	fs := flag.NewFlagSet("roll", flag.ContinueOnError)
	n := fs.Int("n", 1, "number of rolls")
	addr := fs.String("server", "", "roll on an odds server at host:port instead of locally")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, err := oneExpression(fs)
	if err != nil {
		return err
	}
	if *n < 1 {
		return fmt.Errorf("-n must be at least 1, got %d", *n)
	}

	if *addr != "" {
		client, closeFn, err := dial(*addr)
		if err != nil {
			return err
		}
		defer closeFn()
		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		rolls, err := client.RollMany(ctx, text, *n)
		if err != nil {
			return err
		}
		for _, r := range rolls {
			f := r.GetFields()
			fmt.Fprintf(e.out, "%s → %d (p=%.4f)\n",
				f["expression"].GetStringValue(),
				int(f["value"].GetNumberValue()),
				f["probability_float"].GetNumberValue(),
			)
		}
		return nil
	}

	expr, err := dice.Parse(text)
	if err != nil {
		return err
	}
	roller := dice.NewLoggedRoller(e.eval, dice.NewCryptoSource(), e.logger)
	results, err := roller.RollN(expr, *n)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintln(e.out, res.String())
	}
	return nil
}

// runHistory compares the rolls a server has recorded for an expression
// with its exact odds. Roll history lives in the server's database, so
// there is no local mode.
func runHistory(e *env, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	addr := fs.String("server", "", "odds server at host:port (required)")
	limit := fs.Int("limit", 10, "number of recent rolls to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		return errors.New("-server is required")
	}
	text, err := oneExpression(fs)
	if err != nil {
		return err
	}

	client, closeFn, err := dial(*addr)
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	resp, err := client.History(ctx, text, *limit)
	if err != nil {
		return err
	}

	f := resp.GetFields()
	fmt.Fprintf(e.out, "%s (%d rolls recorded)\n",
		f["expression"].GetStringValue(), int64(f["observed"].GetNumberValue()))
	table := tablewriter.NewWriter(e.out)
	table.SetHeader([]string{"Value", "Rolled", "Observed %", "Exact %"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, v := range f["values"].GetListValue().GetValues() {
		row := v.GetStructValue().GetFields()
		table.Append([]string{
			strconv.Itoa(int(row["value"].GetNumberValue())),
			strconv.FormatInt(int64(row["rolled"].GetNumberValue()), 10),
			strconv.FormatFloat(100*row["observed_fraction"].GetNumberValue(), 'f', 2, 64),
			strconv.FormatFloat(100*row["probability_float"].GetNumberValue(), 'f', 2, 64),
		})
	}
	table.Render()

	recent := f["recent"].GetListValue().GetValues()
	if len(recent) == 0 {
		return nil
	}
	values := make([]string, len(recent))
	for i, v := range recent {
		values[i] = strconv.Itoa(int(v.GetNumberValue()))
	}
	_, err = fmt.Fprintf(e.out, "recent: %s\n", strings.Join(values, " "))
	return err
}

// runCompare prints both means and the chance each side wins.
func runCompare(e *env, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("compare takes exactly two expressions")
	}
	left, err := dice.Parse(fs.Arg(0))
	if err != nil {
		return err
	}
	right, err := dice.Parse(fs.Arg(1))
	if err != nil {
		return err
	}

	for _, side := range []dice.Expression{left, right} {
		d, err := e.eval.Distribution(side)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%-24s mean %.4f\n", side.String(), d.Mean())
	}
	for _, op := range []distribution.ComparisonOp{distribution.Gt, distribution.Eq, distribution.Lt} {
		cmp := dice.Comparison{Left: left, Op: op, Right: right}
		d, err := e.eval.Distribution(cmp)
		if err != nil {
			return err
		}
		p := d.Probability(1)
		pf, _ := p.Float64()
		fmt.Fprintf(e.out, "P(%s) = %s ≈ %.4f\n", cmp.String(), p.RatString(), pf)
	}
	return nil
}

func runCatalog(e *env, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	dir := fs.String("dir", e.cfg.Catalog.Dir, "directory of catalog YAML files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return errors.New("no catalog directory: set -dir or catalog.dir")
	}
	cat, err := catalog.LoadDirectory(*dir)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(e.out)
	table.SetHeader([]string{"ID", "Name", "Expression", "Mean"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for _, r := range cat.All() {
		mean := "error"
		if d, err := e.eval.Distribution(r.Parsed); err == nil {
			mean = strconv.FormatFloat(d.Mean(), 'f', 4, 64)
		}
		table.Append([]string{r.ID, r.Name, r.Parsed.String(), mean})
	}
	table.Render()
	return nil
}

// runScript calls a Lua hook. Numeric arguments are passed as numbers.
func runScript(e *env, args []string) error {
	fs := flag.NewFlagSet("script", flag.ContinueOnError)
	dir := fs.String("dir", e.cfg.Scripting.Dir, "directory of *.lua scripts")
	hook := fs.String("hook", "", "global Lua function to call (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hook == "" {
		return errors.New("-hook is required")
	}
	if *dir == "" {
		return errors.New("no script directory: set -dir or scripting.dir")
	}

	roller := dice.NewLoggedRoller(e.eval, dice.NewCryptoSource(), e.logger)
	mgr := scripting.NewManager(e.eval, roller, e.logger)
	defer mgr.Close()
	if err := mgr.LoadGlobal(*dir, e.cfg.Scripting.InstructionLimit); err != nil {
		return err
	}

	luaArgs := make([]lua.LValue, 0, fs.NArg())
	for _, a := range fs.Args() {
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			luaArgs = append(luaArgs, lua.LNumber(f))
		} else {
			luaArgs = append(luaArgs, lua.LString(a))
		}
	}
	ret, err := mgr.CallHook("cli", *hook, luaArgs...)
	if err != nil {
		return err
	}
	if ret == lua.LNil {
		return fmt.Errorf("hook %q is not defined or returned nil", *hook)
	}
	_, err = fmt.Fprintln(e.out, ret.String())
	return err
}
