package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformComparison(t *testing.T) {
	src := `package main

func TestEq() {
	x := 5
	y := 6
	assert(x == y)
}
`
	tr := NewTransformer()
	out, rewritten, err := tr.File("test_eq.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	code := string(out)
	assert.Contains(t, code, "__attest_l, __attest_r := x, y")
	assert.Contains(t, code, "__attest_failCmp")
	assert.Contains(t, code, `"x == y"`)
	assert.Contains(t, code, `"=="`)
	assert.Contains(t, code, `"test_eq.go:6"`)
}

func TestTransformConstantsStayInline(t *testing.T) {
	src := `package main

func TestEq() {
	assert(1 + 1 == 3)
}
`
	out, rewritten, err := NewTransformer().File("test_const.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	code := string(out)
	assert.Contains(t, code, "__attest_failCmp")
	assert.Contains(t, code, `"1 + 1 == 3"`)
	// Untyped constants must not be hoisted into typed temporaries.
	assert.NotContains(t, code, "__attest_l")
	assert.NotContains(t, code, "__attest_r")
}

func TestTransformAddsNoImport(t *testing.T) {
	src := `package main

func TestEq() {
	x := 5
	assert(x == 6)
}
`
	out, rewritten, err := NewTransformer().File("test_imp.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	// Every script is evaluated into one shared interpreted package, where a
	// repeated import declaration is a redeclaration error. The failure
	// helpers are plain identifiers the runner prelude defines.
	assert.NotContains(t, string(out), "import")
}

func TestTransformRendersOriginalSpacing(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"spaced", "1 + 1 == 3"},
		{"dense", "1+1 == 3"},
		{"mixed", "x*2 == y + 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package main\n\nfunc TestR() {\n\tx, y := 1, 2\n\t_ = x\n\t_ = y\n\tassert(" + tt.expr + ")\n}\n"
			out, rewritten, err := NewTransformer().File("test_render.go", []byte(src))
			require.NoError(t, err)
			require.True(t, rewritten)
			assert.Contains(t, string(out), `"`+tt.expr+`"`,
				"failure message must carry the expression exactly as written")
		})
	}
}

func TestTransformNilComparisonStaysInline(t *testing.T) {
	src := `package main

func TestErr() {
	var err error
	assert(err == nil)
}
`
	out, rewritten, err := NewTransformer().File("test_nil.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	code := string(out)
	// nil cannot seed a := temporary.
	assert.NotContains(t, code, ":= nil")
	assert.Contains(t, code, "__attest_l := err")
}

func TestTransformBooleanShortCircuit(t *testing.T) {
	src := `package main

func TestAnd() {
	a, b := true, false
	assert(a && b)
	assert(a || b)
}
`
	out, rewritten, err := NewTransformer().File("test_bool.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	code := string(out)
	assert.Contains(t, code, "__attest_failBool")
	assert.Contains(t, code, `"b is false"`)
	assert.Contains(t, code, `"a is false"`)
	assert.Contains(t, code, `"a and b are both false"`)
	// The right operand only evaluates behind the left's result.
	assert.Contains(t, code, "if __attest_l {")
	assert.Contains(t, code, "if !(__attest_l) {")
}

func TestTransformGenericFallback(t *testing.T) {
	src := `package main

func ready() bool { return false }

func TestReady() {
	assert(ready())
}
`
	out, rewritten, err := NewTransformer().File("test_ready.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	code := string(out)
	assert.Contains(t, code, "__attest_ok := ready()")
	assert.Contains(t, code, "__attest_fail(")
	assert.Contains(t, code, `"ready()"`)
}

func TestTransformNestedFunctionLiteral(t *testing.T) {
	src := `package main

func TestNested() {
	run := func() {
		assert(2 == 3)
	}
	run()
}
`
	out, rewritten, err := NewTransformer().File("test_nested.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)
	assert.Contains(t, string(out), "__attest_failCmp")
}

func TestTransformNoAssertsIsByteIdentical(t *testing.T) {
	src := `package main

import "fmt"

func helper() { fmt.Println("no assertions here") }
`
	out, rewritten, err := NewTransformer().File("helpers.go", []byte(src))
	require.NoError(t, err)
	assert.False(t, rewritten)
	assert.Equal(t, src, string(out))
}

func TestTransformMessageArgsKept(t *testing.T) {
	src := `package main

func TestMsg() {
	n := 1
	assert(n == 2, "n should be two, got ", n)
}
`
	out, _, err := NewTransformer().File("test_msg.go", []byte(src))
	require.NoError(t, err)
	code := string(out)
	assert.Contains(t, code, `"n should be two, got "`)
}

func TestTransformSyntaxErrorPropagates(t *testing.T) {
	src := `package main

func TestBroken( {
	assert(1 == 1)
}
`
	_, _, err := NewTransformer().File("test_broken.go", []byte(src))
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))
}

func TestTransformOutputReparses(t *testing.T) {
	src := `package main

func TestAll() {
	x := 1
	assert(x == 1)
	assert(x == 1 || x == 2)
	assert(x > 0 && x < 10)
	for i := 0; i < 3; i++ {
		assert(i < 3)
	}
	switch x {
	case 1:
		assert(x != 0)
	}
}
`
	out, rewritten, err := NewTransformer().File("test_all.go", []byte(src))
	require.NoError(t, err)
	require.True(t, rewritten)

	// The artifact must itself be valid Go.
	_, again, err := NewTransformer().File("test_all.go", out)
	require.NoError(t, err)
	assert.False(t, again, "rewritten artifact must contain no assert statements left to rewrite")
	assert.False(t, strings.Contains(string(out), "\tassert("))
}
