// Package assertion holds the run-scoped assertion machinery: the active
// mode, the per-test explanation registry, the comparison explainer chain,
// and the runtime helpers that rewritten scripts call when an assertion
// fails.
package assertion

import (
	"fmt"
	"os"
)

// Mode selects how assert statements behave for a run.
type Mode string

const (
	// ModeRewrite rewrites eligible scripts on load so failing assertions
	// report captured subexpression values.
	ModeRewrite Mode = "rewrite"
	// ModeReinterp skips rewriting and explains failures after the fact
	// through a Reinterpreter, when one is configured.
	ModeReinterp Mode = "reinterp"
	// ModePlain performs no assertion debugging at all.
	ModePlain Mode = "plain"
)

// ParseMode validates a mode string from config or CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRewrite, ModeReinterp, ModePlain:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown assertion mode %q (want rewrite, reinterp or plain)", s)
}

// ciEnvVars is the fixed set of environment variables whose presence marks a
// continuous-integration run. Presence is what matters, not the value.
var ciEnvVars = []string{"CI", "BUILD_NUMBER"}

// RunningOnCI reports whether this process appears to run on a CI system.
func RunningOnCI() bool {
	for _, name := range ciEnvVars {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}
