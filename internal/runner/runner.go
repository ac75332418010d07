// Package runner collects test scripts, loads them through the assertion
// loader chain, and executes their test functions sequentially in a yaegi
// interpreter.
package runner

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"attest/internal/assertion"
	"attest/internal/rewrite"
)

// Config selects the run's behavior. Mode and the capability flag go
// straight into assertion.Install; providers listed here are consulted
// before the built-in explanation chain.
type Config struct {
	Mode             assertion.Mode
	RewriteSupported bool
	Verbose          int
	RootDir          string
	CacheDir         string
	Excludes         []string
	RewriteNames     []string
	Providers        []assertion.Provider
	Trace            *zap.SugaredLogger
}

// TestResult is the outcome of one test function.
type TestResult struct {
	Name     string
	Script   string
	Passed   bool
	Message  string
	Duration time.Duration
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Mode      assertion.Mode
	StartedAt time.Time
	Duration  time.Duration
	Tests     []TestResult
	Failed    int
}

// Runner owns the run-scoped assertion state, the explanation registry, and
// the interpreter runtime. One Runner serves one configuration; Close
// releases the state and detaches the hook.
type Runner struct {
	cfg       Config
	state     *assertion.State
	undo      func()
	registry  *assertion.Registry
	explainer *assertion.Explainer
	rt        *assertion.Runtime
	trace     *zap.SugaredLogger
}

func New(cfg Config) *Runner {
	state, undo := assertion.Install(assertion.Config{
		Mode:             cfg.Mode,
		RewriteSupported: cfg.RewriteSupported,
		CacheDir:         cfg.CacheDir,
		Excludes:         cfg.Excludes,
		RewriteNames:     cfg.RewriteNames,
		Trace:            cfg.Trace,
	})

	registry := &assertion.Registry{}
	providers := append(append([]assertion.Provider{}, cfg.Providers...), assertion.DefaultProviders()...)
	return &Runner{
		cfg:       cfg,
		state:     state,
		undo:      undo,
		registry:  registry,
		explainer: assertion.NewExplainer(state.Mode, cfg.Verbose, assertion.RunningOnCI(), providers, cfg.Trace),
		rt:        assertion.NewRuntime(state.Mode, registry, nil, cfg.Trace),
		trace:     cfg.Trace,
	}
}

// State exposes the run's assertion state (late rewrite registration goes
// through it).
func (r *Runner) State() *assertion.State {
	return r.state
}

// Close tears the run configuration down. Safe to call more than once.
func (r *Runner) Close() {
	if r.undo != nil {
		r.undo()
		r.undo = nil
	}
}

// Run loads every script reachable from paths and executes their test
// functions one at a time, in collection order. Tests run strictly
// sequentially: the registry slot is installed before each test and cleared
// after it, unconditionally.
func (r *Runner) Run(ctx context.Context, paths []string) (*Result, error) {
	session := NewSession(r.cfg.RootDir, r.cfg.Verbose)
	r.state.SetSession(session)
	defer r.state.SetSession(nil)

	scripts, err := collectScripts(paths)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load interpreter stdlib: %w", err)
	}
	if err := i.Use(r.symbols()); err != nil {
		return nil, fmt.Errorf("load assertion runtime: %w", err)
	}
	if _, err := i.Eval(prelude); err != nil {
		return nil, fmt.Errorf("load assertion prelude: %w", err)
	}

	loader := r.state.Loader()
	type collected struct {
		script string
		name   string
	}
	var tests []collected
	for _, script := range scripts {
		art, err := loader.Load(script)
		if err != nil {
			return nil, err
		}
		if _, err := i.Eval(art.Source); err != nil {
			return nil, fmt.Errorf("load %s: %w", script, err)
		}
		names, err := testFuncs(art.Source)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", script, err)
		}
		for _, name := range names {
			tests = append(tests, collected{script: script, name: name})
		}
	}

	result := &Result{
		RunID:     session.ID,
		Mode:      r.state.Mode,
		StartedAt: session.StartedAt,
	}
	for _, tc := range tests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := r.runTest(i, tc.script, tc.name)
		if !res.Passed {
			result.Failed++
		}
		result.Tests = append(result.Tests, res)
	}
	result.Duration = time.Since(session.StartedAt)
	return result, nil
}

// runTest executes one test function with the explanation callback installed
// for exactly its duration.
func (r *Runner) runTest(i *interp.Interpreter, script, name string) (res TestResult) {
	res = TestResult{Name: name, Script: script, Passed: true}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	v, err := i.Eval("main." + name)
	if err != nil {
		res.Passed = false
		res.Message = fmt.Sprintf("cannot resolve test function: %v", err)
		return res
	}
	fn, ok := v.Interface().(func())
	if !ok {
		res.Passed = false
		res.Message = "test function must take no arguments and return nothing"
		return res
	}

	r.registry.Install(r.explainer.Callback())
	defer r.registry.Clear()
	defer func() {
		if rec := recover(); rec != nil {
			res.Passed = false
			res.Message = failureMessage(rec)
		}
	}()

	fn()
	return res
}

// failureMessage unwraps an assertion failure from a recovered panic,
// including one that crossed interpreter frames.
func failureMessage(rec interface{}) string {
	if p, ok := rec.(interp.Panic); ok {
		rec = p.Value
	}
	if fe, ok := rec.(*assertion.FailureError); ok {
		return fe.Message
	}
	return fmt.Sprintf("panic: %v", rec)
}

// collectScripts expands the given paths into an ordered script list:
// helper scripts first, then test scripts, each group sorted by name, so
// helpers are defined before the tests that use them.
func collectScripts(paths []string) ([]string, error) {
	var all []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			all = append(all, path)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(path, "*.go"))
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}

	sort.SliceStable(all, func(a, b int) bool {
		ta, tb := isTestScript(all[a]), isTestScript(all[b])
		if ta != tb {
			return !ta
		}
		return all[a] < all[b]
	})
	return all, nil
}

func isTestScript(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "test_")
}

// testFuncs returns the names of niladic TestXxx functions declared in a
// script, in declaration order.
func testFuncs(src string) ([]string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, 0)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		if !strings.HasPrefix(fn.Name.Name, "Test") {
			continue
		}
		if len(fn.Type.Params.List) != 0 || fn.Type.Results != nil {
			continue
		}
		names = append(names, fn.Name.Name)
	}
	return names, nil
}

var _ rewrite.Session = (*Session)(nil)
