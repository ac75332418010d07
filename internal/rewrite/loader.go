package rewrite

import (
	"path/filepath"

	"go.uber.org/zap"
)

// Loader produces an executable artifact for a script path. Loaders compose
// into an explicit chain; the rewriting hook sits at the head and delegates
// to the next loader whenever it declines a script.
type Loader interface {
	Load(path string) (*Artifact, error)
}

// Session is the run-scoped context a hook may consult while loading. The
// reference is non-owning and may be absent at any time.
type Session interface {
	RootDir() string
}

// SourceLoader is the standard tail of the chain: it reads the script as-is.
type SourceLoader struct{}

func (SourceLoader) Load(path string) (*Artifact, error) {
	fp, src, err := FingerprintFile(path)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Path:        path,
		Fingerprint: fp,
		Version:     Version,
		Source:      string(src),
	}, nil
}

// HookStats counts what the hook did during a run.
type HookStats struct {
	Loads      int
	Delegated  int
	CacheHits  int
	Transforms int
	Fallbacks  int
}

// Hook intercepts script loading for eligible scripts and routes them through
// the transformer and artifact cache. Everything it cannot or should not
// handle is delegated to the next loader unchanged, so rewriting can never by
// itself break an otherwise loadable script. The one exception is a genuine
// syntax error in the script source, which always surfaces.
type Hook struct {
	next        Loader
	policy      *Policy
	cache       *Cache
	transformer *Transformer
	session     Session
	trace       *zap.SugaredLogger

	stats HookStats
}

func NewHook(next Loader, policy *Policy, cache *Cache, transformer *Transformer, trace *zap.SugaredLogger) *Hook {
	return &Hook{
		next:        next,
		policy:      policy,
		cache:       cache,
		transformer: transformer,
		trace:       trace,
	}
}

// MarkRewrite adds script names to the eligibility allow-list. Decisions
// already recorded for previously loaded scripts are not revisited.
func (h *Hook) MarkRewrite(names ...string) {
	h.policy.Mark(names...)
}

// SetSession attaches or detaches the run-scoped back-reference. Passing nil
// is always safe, including before the first attach.
func (h *Hook) SetSession(s Session) {
	h.session = s
}

// Stats returns a copy of the hook's counters.
func (h *Hook) Stats() HookStats {
	return h.stats
}

func (h *Hook) Load(path string) (*Artifact, error) {
	h.stats.Loads++

	if !h.policy.ShouldRewrite(h.displayPath(path)) {
		h.stats.Delegated++
		return h.next.Load(path)
	}

	fp, src, err := FingerprintFile(path)
	if err != nil {
		// Fingerprinting trouble means "not eligible", not "broken".
		h.stats.Delegated++
		if h.trace != nil {
			h.trace.Debugw("fingerprint failed, loading unrewritten", "script", path, "error", err)
		}
		return h.next.Load(path)
	}

	if art := h.cache.Get(path, fp); art != nil {
		h.stats.CacheHits++
		if h.trace != nil {
			h.trace.Debugw("cache hit", "script", path)
		}
		return art, nil
	}

	out, rewritten, err := h.transformer.File(path, src)
	if err != nil {
		if IsSyntaxError(err) {
			return nil, err
		}
		// Internal transform failure: degrade to the unrewritten script.
		h.stats.Fallbacks++
		if h.trace != nil {
			h.trace.Warnw("transform failed, loading unrewritten", "script", path, "error", err)
		}
		return &Artifact{Path: path, Fingerprint: fp, Version: Version, Source: string(src)}, nil
	}

	h.stats.Transforms++
	art := &Artifact{
		Path:        path,
		Fingerprint: fp,
		Version:     Version,
		Source:      string(out),
		Rewritten:   rewritten,
	}
	if err := h.cache.Put(art); err != nil && h.trace != nil {
		h.trace.Warnw("cache write failed", "script", path, "error", err)
	}
	return art, nil
}

// displayPath relativizes the script path against the session root when one
// is attached, so exclusion globs behave the same however the runner was
// invoked.
func (h *Hook) displayPath(path string) string {
	if h.session == nil {
		return path
	}
	root := h.session.RootDir()
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
