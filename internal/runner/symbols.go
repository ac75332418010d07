package runner

import (
	"reflect"

	"github.com/traefik/yaegi/interp"
)

// prelude is evaluated into the interpreter before any script. It defines
// the assert builtin every script can call, plus the package-level failure
// helpers rewritten scripts call. Scripts share one interpreted package, so
// the helper import lives here and nowhere else: a rewritten script carrying
// its own import would be rejected as a redeclaration.
const prelude = `package main

import __attest "attestrt"

func assert(cond bool, msg ...interface{}) {
	__attest.Assert(cond, msg...)
}

func __attest_fail(pos, expr string, msg ...interface{}) {
	__attest.Fail(pos, expr, msg...)
}

func __attest_failBool(pos, expr, detail string, msg ...interface{}) {
	__attest.FailBool(pos, expr, detail, msg...)
}

func __attest_failCmp(pos, expr, op string, left, right interface{}, msg ...interface{}) {
	__attest.FailCmp(pos, expr, op, left, right, msg...)
}
`

// symbols exposes the assertion runtime to interpreted scripts under the
// import path the transformer injects.
func (r *Runner) symbols() interp.Exports {
	return interp.Exports{
		"attestrt/attestrt": {
			"Assert":   reflect.ValueOf(r.rt.Assert),
			"Fail":     reflect.ValueOf(r.rt.Fail),
			"FailBool": reflect.ValueOf(r.rt.FailBool),
			"FailCmp":  reflect.ValueOf(r.rt.FailCmp),
		},
	}
}
