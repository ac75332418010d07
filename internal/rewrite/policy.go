package rewrite

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Policy decides, per script path, whether assertion rewriting should be
// attempted. Decisions are memoized for the run: once a script has been
// loaded under a decision, marking it later does not retroactively change it.
type Policy struct {
	excludes []string
	marked   map[string]struct{}
	decided  map[string]bool
	trace    *zap.SugaredLogger
}

// NewPolicy builds a policy from config excludes (glob patterns matched
// against the script basename) and an initial allow-list of script names.
func NewPolicy(excludes, marked []string, trace *zap.SugaredLogger) *Policy {
	p := &Policy{
		excludes: excludes,
		marked:   make(map[string]struct{}),
		decided:  make(map[string]bool),
		trace:    trace,
	}
	p.Mark(marked...)
	return p
}

// Mark adds script names (basename without extension) to the allow-list.
// Names registered here become eligible before their first load; scripts
// whose eligibility was already decided keep their recorded decision.
func (p *Policy) Mark(names ...string) {
	for _, name := range names {
		name = strings.TrimSuffix(name, ".go")
		if name == "" {
			continue
		}
		p.marked[name] = struct{}{}
	}
}

// ShouldRewrite reports whether the script at path is eligible for rewriting.
// Any error while deciding means "not eligible": rewriting is a diagnostics
// feature and must never be the reason an importable script fails to load.
func (p *Policy) ShouldRewrite(path string) bool {
	key := filepath.Clean(path)
	if decided, ok := p.decided[key]; ok {
		return decided
	}
	eligible := p.decide(key)
	p.decided[key] = eligible
	if p.trace != nil {
		p.trace.Debugw("eligibility decided", "script", key, "rewrite", eligible)
	}
	return eligible
}

func (p *Policy) decide(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".go") {
		return false
	}
	for _, pattern := range p.excludes {
		ok, err := filepath.Match(pattern, base)
		if err != nil {
			// Broken pattern: skip it rather than block all rewriting.
			continue
		}
		if ok {
			return false
		}
	}
	if strings.HasPrefix(base, "test_") {
		return true
	}
	name := strings.TrimSuffix(base, ".go")
	_, ok := p.marked[name]
	return ok
}
