package assertion

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxRepr = 48

// DefaultProviders returns the built-in explanation chain. User providers
// registered through the runner are consulted before these.
func DefaultProviders() []Provider {
	return []Provider{TextDiffProvider, DeepDiffProvider, OrderingProvider}
}

// TextDiffProvider explains failed equality between multiline strings with a
// line diff.
func TextDiffProvider(op string, left, right interface{}) []string {
	if op != "==" {
		return nil
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return nil
	}
	if !strings.Contains(ls, "\n") && !strings.Contains(rs, "\n") {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(ls, rs)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	lines := []string{summaryLine(op, left, right)}
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			lines = append(lines, prefix+line)
		}
	}
	return lines
}

// DeepDiffProvider explains failed equality between composite values with a
// structural diff. Values with unexported fields make cmp panic; the
// explainer treats that as "no explanation" and moves on.
func DeepDiffProvider(op string, left, right interface{}) []string {
	if op != "==" || !isComposite(left) || !isComposite(right) {
		return nil
	}
	diff := cmp.Diff(left, right)
	if diff == "" {
		return nil
	}
	lines := []string{summaryLine(op, left, right)}
	return append(lines, strings.Split(strings.TrimSuffix(diff, "\n"), "\n")...)
}

// OrderingProvider explains failed ordering comparisons. For numbers it
// reports the relation that holds and by how much; for strings, which side
// sorts first.
func OrderingProvider(op string, left, right interface{}) []string {
	switch op {
	case "<", "<=", ">", ">=":
	default:
		return nil
	}

	if l, lok := toFloat(left); lok {
		r, rok := toFloat(right)
		if !rok {
			return nil
		}
		lines := []string{summaryLine(op, left, right) + " is false"}
		switch {
		case l > r:
			lines = append(lines, fmt.Sprintf("left is greater by %v", l-r))
		case l < r:
			lines = append(lines, fmt.Sprintf("left is smaller by %v", r-l))
		default:
			lines = append(lines, "both sides are equal")
		}
		return lines
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return nil
	}
	lines := []string{summaryLine(op, left, right) + " is false"}
	switch {
	case ls < rs:
		lines = append(lines, "left sorts before right")
	case ls > rs:
		lines = append(lines, "left sorts after right")
	default:
		lines = append(lines, "both sides are equal")
	}
	return lines
}

func toFloat(v interface{}) (float64, bool) {
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func isComposite(v interface{}) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Pointer:
		return true
	default:
		return false
	}
}

func summaryLine(op string, left, right interface{}) string {
	return fmt.Sprintf("%s %s %s", truncRepr(left), op, truncRepr(right))
}

// truncRepr renders a value for the one-line summary, bounded so a huge
// operand cannot blow up the first report line.
func truncRepr(v interface{}) string {
	var s string
	if str, ok := v.(string); ok {
		s = fmt.Sprintf("%q", str)
	} else {
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > maxRepr {
		s = s[:maxRepr-3] + "..."
	}
	return s
}
