package rewrite

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/scanner"
	"go/token"
	"path/filepath"
	"strconv"
)

// Version tags every transformed artifact. Bumping it invalidates all cached
// entries produced by earlier transformer revisions.
const Version = 2

// Failure helpers a rewritten script calls. The runner's prelude defines
// them as package-level functions in the interpreted package, so transformed
// scripts need no import of their own: successive evaluations into the same
// interpreted package would reject a repeated import declaration.
const (
	failHelper     = "__attest_fail"
	failBoolHelper = "__attest_failBool"
	failCmpHelper  = "__attest_failCmp"
)

// TransformError reports an internal inability to rewrite a script. It is
// never fatal: callers fall back to loading the script unrewritten.
type TransformError struct {
	Path   string
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("rewrite of %s failed: %s", e.Path, e.Reason)
}

// IsSyntaxError reports whether err is a genuine Go syntax error in the
// script source. Syntax errors are the one failure kind that always
// propagates to the user unchanged.
func IsSyntaxError(err error) bool {
	var list scanner.ErrorList
	return errors.As(err, &list)
}

// Transformer rewrites assert statements in a parsed script into
// value-capturing equivalents. Everything outside assert statements is left
// untouched; a script with no assert statements passes through byte-for-byte.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// File rewrites the script source. It returns the transformed source and
// whether any assert statement was rewritten. A parse failure is returned
// as-is; any other internal failure comes back as *TransformError.
func (t *Transformer) File(path string, src []byte) (out []byte, rewritten bool, err error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		return nil, false, err
	}

	defer func() {
		if r := recover(); r != nil {
			out, rewritten = nil, false
			err = &TransformError{Path: path, Reason: fmt.Sprint(r)}
		}
	}()

	count := t.rewriteFile(fset, file, src)
	if count == 0 {
		return src, false, nil
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, false, &TransformError{Path: path, Reason: err.Error()}
	}
	return buf.Bytes(), true, nil
}

// rewriteFile substitutes assert statements everywhere they occur: function
// bodies, nested blocks, case and select clauses, function literals. The same
// substitution rule applies uniformly at every depth.
func (t *Transformer) rewriteFile(fset *token.FileSet, file *ast.File, src []byte) int {
	var lists []*[]ast.Stmt
	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.BlockStmt:
			lists = append(lists, &n.List)
		case *ast.CaseClause:
			lists = append(lists, &n.Body)
		case *ast.CommClause:
			lists = append(lists, &n.Body)
		}
		return true
	})

	count := 0
	for _, list := range lists {
		for i, stmt := range *list {
			call := assertCall(stmt)
			if call == nil {
				continue
			}
			(*list)[i] = t.rewriteAssert(fset, src, call)
			count++
		}
	}
	return count
}

// assertCall returns the call expression if stmt is a statement-form
// assert(...) with at least the condition argument.
func assertCall(stmt ast.Stmt) *ast.CallExpr {
	expr, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return nil
	}
	call, ok := expr.X.(*ast.CallExpr)
	if !ok {
		return nil
	}
	fun, ok := call.Fun.(*ast.Ident)
	if !ok || fun.Name != "assert" || len(call.Args) == 0 {
		return nil
	}
	return call
}

func (t *Transformer) rewriteAssert(fset *token.FileSet, src []byte, call *ast.CallExpr) ast.Stmt {
	cond := call.Args[0]
	msgs := call.Args[1:]
	variadic := call.Ellipsis.IsValid()

	pos := fset.Position(call.Pos())
	posLit := stringLit(fmt.Sprintf("%s:%d", filepath.Base(pos.Filename), pos.Line))
	renderedLit := stringLit(render(fset, src, cond))

	if bin, ok := unparen(cond).(*ast.BinaryExpr); ok {
		switch bin.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			return t.rewriteComparison(bin, posLit, renderedLit, msgs, variadic)
		case token.LAND:
			return t.rewriteAnd(fset, src, bin, posLit, renderedLit, msgs, variadic)
		case token.LOR:
			return t.rewriteOr(fset, src, bin, posLit, renderedLit, msgs, variadic)
		}
	}

	// Generic form: capture the whole expression once, report it on false.
	okIdent := ast.NewIdent("__attest_ok")
	return block(
		define(okIdent, cond),
		ifNot(okIdent, helperCall(failHelper, variadic, append([]ast.Expr{posLit, renderedLit}, msgs...))),
	)
}

// rewriteComparison hoists each non-constant operand into a temporary so it
// is evaluated exactly once, in source order, then tests with the native
// operator. Constant operands stay inline: hoisting an untyped constant would
// change the type it takes in the comparison.
func (t *Transformer) rewriteComparison(bin *ast.BinaryExpr, posLit, renderedLit ast.Expr, msgs []ast.Expr, variadic bool) ast.Stmt {
	var stmts []ast.Stmt
	left, right := bin.X, bin.Y
	leftRef, rightRef := left, right

	hoistLeft := !isConstExpr(left)
	hoistRight := !isConstExpr(right)
	switch {
	case hoistLeft && hoistRight:
		l, r := ast.NewIdent("__attest_l"), ast.NewIdent("__attest_r")
		stmts = append(stmts, &ast.AssignStmt{
			Lhs: []ast.Expr{l, r},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{left, right},
		})
		leftRef, rightRef = l, r
	case hoistLeft:
		l := ast.NewIdent("__attest_l")
		stmts = append(stmts, define(l, left))
		leftRef = l
	case hoistRight:
		r := ast.NewIdent("__attest_r")
		stmts = append(stmts, define(r, right))
		rightRef = r
	}

	cond := &ast.BinaryExpr{X: leftRef, Op: bin.Op, Y: rightRef}
	failArgs := append([]ast.Expr{posLit, renderedLit, stringLit(bin.Op.String()), leftRef, rightRef}, msgs...)
	stmts = append(stmts, &ast.IfStmt{
		Cond: notExpr(cond),
		Body: block(exprStmt(helperCall(failCmpHelper, variadic, failArgs))),
	})
	return block(stmts...)
}

// rewriteAnd preserves short-circuiting: the right operand only evaluates
// when the left is true, and the failure report names the operand that
// decided the result.
func (t *Transformer) rewriteAnd(fset *token.FileSet, src []byte, bin *ast.BinaryExpr, posLit, renderedLit ast.Expr, msgs []ast.Expr, variadic bool) ast.Stmt {
	l, r := ast.NewIdent("__attest_l"), ast.NewIdent("__attest_r")
	leftDetail := stringLit(render(fset, src, bin.X) + " is false")
	rightDetail := stringLit(render(fset, src, bin.Y) + " is false")

	return block(
		define(l, bin.X),
		&ast.IfStmt{
			Cond: l,
			Body: block(
				define(r, bin.Y),
				ifNot(r, helperCall(failBoolHelper, variadic, append([]ast.Expr{posLit, renderedLit, rightDetail}, msgs...))),
			),
			Else: block(
				exprStmt(helperCall(failBoolHelper, variadic, append([]ast.Expr{posLit, renderedLit, leftDetail}, msgs...))),
			),
		},
	)
}

// rewriteOr fails only when both operands are false, evaluating the right
// operand only if the left was false.
func (t *Transformer) rewriteOr(fset *token.FileSet, src []byte, bin *ast.BinaryExpr, posLit, renderedLit ast.Expr, msgs []ast.Expr, variadic bool) ast.Stmt {
	l, r := ast.NewIdent("__attest_l"), ast.NewIdent("__attest_r")
	detail := stringLit(render(fset, src, bin.X) + " and " + render(fset, src, bin.Y) + " are both false")

	return block(
		define(l, bin.X),
		&ast.IfStmt{
			Cond: notExpr(l),
			Body: block(
				define(r, bin.Y),
				ifNot(r, helperCall(failBoolHelper, variadic, append([]ast.Expr{posLit, renderedLit, detail}, msgs...))),
			),
		},
	)
}

// isConstExpr reports whether expr is built purely from literals (and the
// predeclared nil/true/false), so it is safe to mention twice and must not be
// hoisted into a typed temporary.
func isConstExpr(expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.BasicLit:
		return true
	case *ast.Ident:
		return e.Name == "nil" || e.Name == "true" || e.Name == "false"
	case *ast.ParenExpr:
		return isConstExpr(e.X)
	case *ast.UnaryExpr:
		return isConstExpr(e.X)
	case *ast.BinaryExpr:
		return isConstExpr(e.X) && isConstExpr(e.Y)
	default:
		return false
	}
}

// render returns the original source text of an expression, spacing and all,
// by slicing the source at the expression's offsets. Printing the AST would
// re-space the text.
func render(fset *token.FileSet, src []byte, expr ast.Expr) string {
	start := fset.Position(expr.Pos()).Offset
	end := fset.Position(expr.End()).Offset
	if start >= 0 && end <= len(src) && start < end {
		return string(src[start:end])
	}
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, fset, expr)
	return buf.String()
}

func unparen(expr ast.Expr) ast.Expr {
	for {
		paren, ok := expr.(*ast.ParenExpr)
		if !ok {
			return expr
		}
		expr = paren.X
	}
}

func helperCall(name string, variadic bool, args []ast.Expr) *ast.CallExpr {
	call := &ast.CallExpr{
		Fun:  ast.NewIdent(name),
		Args: args,
	}
	if variadic {
		call.Ellipsis = token.Pos(1)
	}
	return call
}

func stringLit(s string) ast.Expr {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func define(name *ast.Ident, value ast.Expr) ast.Stmt {
	return &ast.AssignStmt{Lhs: []ast.Expr{name}, Tok: token.DEFINE, Rhs: []ast.Expr{value}}
}

func block(stmts ...ast.Stmt) *ast.BlockStmt {
	return &ast.BlockStmt{List: stmts}
}

func exprStmt(call *ast.CallExpr) ast.Stmt {
	return &ast.ExprStmt{X: call}
}

func notExpr(expr ast.Expr) ast.Expr {
	return &ast.UnaryExpr{Op: token.NOT, X: &ast.ParenExpr{X: expr}}
}

func ifNot(cond ast.Expr, call *ast.CallExpr) ast.Stmt {
	return &ast.IfStmt{Cond: notExpr(cond), Body: block(exprStmt(call))}
}
