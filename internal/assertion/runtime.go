package assertion

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FailureError is the assertion-failure signal raised by the runtime
// helpers. The runner recovers it at the test boundary and turns it into a
// failure report; any other panic stays an error.
type FailureError struct {
	Pos     string // script:line of the assert statement
	Expr    string // original source text of the asserted expression
	Message string // full report, first line "assert <expr>"
}

func (e *FailureError) Error() string {
	return e.Message
}

// Reinterpreter explains a failed plain assertion after the fact. It is an
// external collaborator; runs without one fall back to the generic message.
type Reinterpreter interface {
	Reinterpret(pos string) (string, error)
}

// Runtime implements the functions a script can reach: the plain assert
// builtin, and the failure helpers that rewritten assert statements call.
// The registry reference is how a failing assertion reaches the per-test
// explanation callback.
type Runtime struct {
	mode  Mode
	reg   *Registry
	reint Reinterpreter
	trace *zap.SugaredLogger
}

func NewRuntime(mode Mode, reg *Registry, reint Reinterpreter, trace *zap.SugaredLogger) *Runtime {
	return &Runtime{mode: mode, reg: reg, reint: reint, trace: trace}
}

// Assert is the builtin available to unrewritten scripts (and every script
// in plain or reinterp mode). It carries no captured values.
func (rt *Runtime) Assert(cond bool, msg ...interface{}) {
	if cond {
		return
	}
	message := "assertion failed"
	if len(msg) > 0 {
		message = fmt.Sprint(msg...)
	}
	if rt.mode == ModeReinterp && rt.reint != nil {
		if detail, err := rt.reint.Reinterpret(""); err == nil && detail != "" {
			message += lineJoin + detail
		}
	}
	panic(&FailureError{Message: message})
}

// Fail reports a generic rewritten assertion failure (no comparison to
// explain, just the rendered expression).
func (rt *Runtime) Fail(pos, expr string, msg ...interface{}) {
	panic(&FailureError{Pos: pos, Expr: expr, Message: "assert " + expr + userSuffix(msg)})
}

// FailBool reports a failed boolean combination along with which operand
// decided the result.
func (rt *Runtime) FailBool(pos, expr, detail string, msg ...interface{}) {
	message := "assert " + expr + userSuffix(msg) + lineJoin + detail
	panic(&FailureError{Pos: pos, Expr: expr, Message: message})
}

// FailCmp reports a failed comparison. The detailed explanation comes from
// the registry's active callback when one produced something; otherwise the
// generic value rendering is used. Never both for the same failure.
func (rt *Runtime) FailCmp(pos, expr, op string, left, right interface{}, msg ...interface{}) {
	detail, ok := rt.reg.Explain(op, left, right)
	if ok {
		if rt.mode == ModeRewrite {
			// The explainer escaped percent characters for exactly this
			// final formatting pass.
			detail = strings.ReplaceAll(detail, "%%", "%")
		}
	} else {
		detail = genericCompare(op, left, right)
	}
	message := "assert " + expr + userSuffix(msg) + lineJoin + detail
	panic(&FailureError{Pos: pos, Expr: expr, Message: message})
}

// genericCompare states why the comparison failed by rendering the relation
// that actually holds between the two values.
func genericCompare(op string, left, right interface{}) string {
	inverse := map[string]string{
		"==": "!=",
		"!=": "==",
		"<":  ">=",
		"<=": ">",
		">":  "<=",
		">=": "<",
	}
	rel, ok := inverse[op]
	if !ok {
		return fmt.Sprintf("%v %s %v is false", left, op, right)
	}
	return fmt.Sprintf("%v %s %v", left, rel, right)
}

func userSuffix(msg []interface{}) string {
	if len(msg) == 0 {
		return ""
	}
	return ": " + fmt.Sprint(msg...)
}
