package assertion

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Provider is a pluggable comparison explainer. Given an operator and the two
// operand values of a failed comparison it may return explanation lines: the
// first line a one-line summary, the rest supporting detail. Returning nil
// passes the question to the next provider.
type Provider func(op string, left, right interface{}) []string

// Callback is the explanation entry point installed into the Registry for
// the duration of a single test.
type Callback func(op string, left, right interface{}) (string, bool)

// Registry is the single-slot holder for the active explanation callback.
// It is owned by the runner and installed/cleared around each test, so an
// explainer set up for one test is never visible to the next. Test execution
// is strictly sequential, so the slot needs no locking.
type Registry struct {
	active Callback
}

// Install sets the active callback for the test about to run.
func (r *Registry) Install(cb Callback) {
	r.active = cb
}

// Clear removes the active callback. It runs unconditionally after every
// test, even one that failed for unrelated reasons.
func (r *Registry) Clear() {
	r.active = nil
}

// Explain asks the active callback for a detailed explanation. With no
// callback installed it reports no explanation, and callers fall back to the
// generic message.
func (r *Registry) Explain(op string, left, right interface{}) (string, bool) {
	if r.active == nil {
		return "", false
	}
	return r.active(op, left, right)
}

const (
	// detailBudget is the character budget for detail lines before low
	// verbosity truncation kicks in.
	detailBudget = 80 * 8
	// showMax is how many lines survive truncation.
	showMax = 10
	// lineJoin glues explanation lines into the one-string report form.
	lineJoin = "\n~"
)

// Explainer runs the ordered provider chain and normalizes the winning
// result into a single report string.
type Explainer struct {
	providers []Provider
	verbose   int
	onCI      bool
	mode      Mode
	trace     *zap.SugaredLogger
}

// NewExplainer builds an explainer for one run. Providers are consulted in
// registration order; the first non-empty result wins.
func NewExplainer(mode Mode, verbose int, onCI bool, providers []Provider, trace *zap.SugaredLogger) *Explainer {
	return &Explainer{
		providers: providers,
		verbose:   verbose,
		onCI:      onCI,
		mode:      mode,
		trace:     trace,
	}
}

// Callback returns the function to install into the Registry before a test.
func (e *Explainer) Callback() Callback {
	return e.explain
}

// explain queries the provider chain and prepares the winning result:
//
//   - overly verbose detail is dropped unless -vv was given or we run on CI
//   - embedded newlines are escaped so the joined string stays one report line
//     per explanation line
//   - in rewrite mode percent characters are doubled, because the rewritten
//     failure path applies one more formatting pass to the message
func (e *Explainer) explain(op string, left, right interface{}) (string, bool) {
	var lines []string
	for _, provider := range e.providers {
		lines = e.callProvider(provider, op, left, right)
		if len(lines) > 0 {
			break
		}
	}
	if len(lines) == 0 {
		return "", false
	}

	detail := 0
	for _, line := range lines[1:] {
		detail += len(line)
	}
	if detail > detailBudget && e.verbose < 2 && !e.onCI && len(lines) > showMax {
		omitted := len(lines) - showMax
		lines = append(lines[:showMax:showMax],
			"Detailed information truncated ("+strconv.Itoa(omitted)+" more lines), use \"-vv\" to show")
	}

	for i, line := range lines {
		lines[i] = strings.ReplaceAll(line, "\n", "\\n")
	}
	res := strings.Join(lines, lineJoin)
	if e.mode == ModeRewrite {
		res = strings.ReplaceAll(res, "%", "%%")
	}
	return res, true
}

// callProvider shields the chain from a misbehaving provider: a panic is
// logged and treated as "no explanation" so the next provider still runs.
func (e *Explainer) callProvider(provider Provider, op string, left, right interface{}) (lines []string) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			if e.trace != nil {
				e.trace.Warnw("explanation provider panicked", "op", op, "panic", r)
			}
		}
	}()
	return provider(op, left, right)
}
