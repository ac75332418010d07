package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"attest/internal/assertion"
	"attest/internal/config"
	"attest/internal/runner"
	"attest/internal/store"
	"attest/internal/watch"
)

var (
	assertMode string
	watchMode  bool
)

// errTestsFailed signals a clean run with failing tests. It travels back
// through Execute so every deferred Close and the logger sync still run;
// main maps it to exit code 1 without printing it (the report already did).
var errTestsFailed = errors.New("tests failed")

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Run test scripts",
	Long: `Run the test scripts at the given paths (directories are scanned for
*.go files). With no paths the run root is scanned.`,
	RunE: runTests,
}

func init() {
	runCmd.Flags().StringVar(&assertMode, "assert", "", "assertion mode: rewrite, reinterp or plain (default from config)")
	runCmd.Flags().BoolVar(&watchMode, "watch", false, "rerun when scripts change")
	rootCmd.AddCommand(runCmd)
}

// hostSupportsRewrite is the capability probe for script rewriting, computed
// once at startup and passed into configuration.
func hostSupportsRewrite() bool {
	return runtime.Compiler == "gc"
}

func runTests(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	if assertMode != "" {
		cfg.Assert = assertMode
	}
	mode, err := assertion.ParseMode(cfg.Assert)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{rootDir}
	}

	trace := logger.Sugar().Named("assertion")
	r := runner.New(runner.Config{
		Mode:             mode,
		RewriteSupported: hostSupportsRewrite(),
		Verbose:          cfg.Verbose + verbose,
		RootDir:          rootDir,
		CacheDir:         cfg.CacheDir,
		Excludes:         cfg.Exclude,
		RewriteNames:     cfg.Rewrite,
		Trace:            trace,
	})
	defer r.Close()

	var results *store.ResultStore
	if cfg.Store != "" {
		results, err = store.Open(cfg.Store)
		if err != nil {
			trace.Warnw("run history disabled", "error", err)
		} else {
			defer results.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	failed := false
	runOnce := func() {
		mu.Lock()
		defer mu.Unlock()

		result, err := r.Run(ctx, paths)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			failed = true
			return
		}
		fmt.Fprint(cmd.OutOrStdout(), runner.Render(result))
		failed = result.Failed > 0
		if results != nil {
			if err := results.RecordRun(result); err != nil {
				trace.Warnw("could not record run", "error", err)
			}
		}
	}

	runOnce()

	if watchMode {
		w, err := watch.New(rootDir, cfg.WatchDebounce, runOnce, trace)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		<-ctx.Done()
		return nil
	}

	if failed {
		return errTestsFailed
	}
	return nil
}
