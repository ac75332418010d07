package assertion

import (
	"go.uber.org/zap"

	"attest/internal/rewrite"
)

// Config is everything Install needs to build the run's assertion state. The
// capability flag is computed once by the caller at startup, not probed here.
type Config struct {
	Mode             Mode
	RewriteSupported bool
	CacheDir         string
	Excludes         []string
	RewriteNames     []string
	Trace            *zap.SugaredLogger
}

// State is the per-run assertion record: the effective mode, the trace sink,
// and the installed rewrite hook when the mode calls for one. Exactly one
// State exists per run configuration.
type State struct {
	Mode  Mode
	Trace *zap.SugaredLogger

	hook *rewrite.Hook
}

// Install builds the run state and, in rewrite mode, constructs the loader
// hook. The returned undo func detaches the hook and must run at the end of
// the run.
func Install(cfg Config) (*State, func()) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeRewrite
	}
	if mode == ModeRewrite && !cfg.RewriteSupported {
		if cfg.Trace != nil {
			cfg.Trace.Infow("host cannot rewrite scripts, downgrading", "mode", ModeReinterp)
		}
		mode = ModeReinterp
	}

	state := &State{Mode: mode, Trace: cfg.Trace}
	if mode == ModeRewrite {
		policy := rewrite.NewPolicy(cfg.Excludes, cfg.RewriteNames, cfg.Trace)
		cache := rewrite.NewCache(cfg.CacheDir, cfg.Trace)
		state.hook = rewrite.NewHook(rewrite.SourceLoader{}, policy, cache, rewrite.NewTransformer(), cfg.Trace)
	}
	if cfg.Trace != nil {
		cfg.Trace.Infow("assertions configured", "mode", mode)
	}

	undo := func() {
		if state.hook != nil {
			state.hook.SetSession(nil)
			state.hook = nil
		}
	}
	return state, undo
}

// Loader returns the head of the loader chain for this run: the rewrite hook
// when installed, otherwise the plain source loader.
func (s *State) Loader() rewrite.Loader {
	if s.hook != nil {
		return s.hook
	}
	return rewrite.SourceLoader{}
}

// Hook exposes the installed hook, or nil outside rewrite mode.
func (s *State) Hook() *rewrite.Hook {
	return s.hook
}

// RegisterRewrite marks script names eligible for rewriting before they are
// loaded. With no hook installed (mode is not rewrite, or the run is over)
// this is a silent no-op, so calling it is always safe.
func (s *State) RegisterRewrite(names ...string) {
	if s.hook == nil {
		return
	}
	s.hook.MarkRewrite(names...)
}

// SetSession forwards the run-scoped back-reference to the hook. Safe to
// call with nil and safe outside rewrite mode.
func (s *State) SetSession(session rewrite.Session) {
	if s.hook == nil {
		return
	}
	s.hook.SetSession(session)
}
