package assertion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longProvider(n, width int) Provider {
	return func(op string, left, right interface{}) []string {
		lines := []string{"summary"}
		for i := 0; i < n; i++ {
			lines = append(lines, strings.Repeat("x", width))
		}
		return lines
	}
}

func TestExplainerTruncatesVerboseDetail(t *testing.T) {
	e := NewExplainer(ModePlain, 0, false, []Provider{longProvider(20, 100)}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)

	lines := strings.Split(res, lineJoin)
	require.Len(t, lines, showMax+1)
	assert.Equal(t, "summary", lines[0])
	assert.Equal(t, `Detailed information truncated (11 more lines), use "-vv" to show`, lines[showMax])
}

func TestExplainerKeepsDetailWhenVerbose(t *testing.T) {
	e := NewExplainer(ModePlain, 2, false, []Provider{longProvider(20, 100)}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)
	assert.Len(t, strings.Split(res, lineJoin), 21)
}

func TestExplainerKeepsDetailOnCI(t *testing.T) {
	e := NewExplainer(ModePlain, 0, true, []Provider{longProvider(20, 100)}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)
	assert.Len(t, strings.Split(res, lineJoin), 21)
}

func TestExplainerShortDetailNeverTruncated(t *testing.T) {
	e := NewExplainer(ModePlain, 0, false, []Provider{longProvider(20, 10)}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)
	assert.Len(t, strings.Split(res, lineJoin), 21)
	assert.NotContains(t, res, "truncated")
}

func TestExplainerEscapesNewlines(t *testing.T) {
	provider := func(op string, left, right interface{}) []string {
		return []string{"first\nline", "second"}
	}
	e := NewExplainer(ModePlain, 0, false, []Provider{provider}, nil)
	res, ok := e.explain("==", "a", "b")
	require.True(t, ok)
	assert.Equal(t, `first\nline`+lineJoin+"second", res)
}

func TestExplainerDoublesPercentOnlyInRewriteMode(t *testing.T) {
	provider := func(op string, left, right interface{}) []string {
		return []string{"50% done"}
	}
	rewrite := NewExplainer(ModeRewrite, 0, false, []Provider{provider}, nil)
	res, ok := rewrite.explain("==", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "50%% done", res)

	plain := NewExplainer(ModePlain, 0, false, []Provider{provider}, nil)
	res, ok = plain.explain("==", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "50% done", res)
}

func TestExplainerFirstMatchWins(t *testing.T) {
	secondCalled := false
	first := func(op string, left, right interface{}) []string { return []string{"from first"} }
	second := func(op string, left, right interface{}) []string {
		secondCalled = true
		return []string{"from second"}
	}
	e := NewExplainer(ModePlain, 0, false, []Provider{first, second}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "from first", res)
	assert.False(t, secondCalled)
}

func TestExplainerSkipsDecliningProvider(t *testing.T) {
	declines := func(op string, left, right interface{}) []string { return nil }
	answers := func(op string, left, right interface{}) []string { return []string{"answer"} }
	e := NewExplainer(ModePlain, 0, false, []Provider{declines, answers}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "answer", res)
}

func TestExplainerSurvivesProviderPanic(t *testing.T) {
	panics := func(op string, left, right interface{}) []string { panic("unexported field") }
	answers := func(op string, left, right interface{}) []string { return []string{"answer"} }
	e := NewExplainer(ModePlain, 0, false, []Provider{panics, answers}, nil)
	res, ok := e.explain("==", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "answer", res)
}

func TestExplainerNoProviders(t *testing.T) {
	e := NewExplainer(ModePlain, 0, false, nil, nil)
	_, ok := e.explain("==", 1, 2)
	assert.False(t, ok)
}

func TestRegistryLifecycle(t *testing.T) {
	var reg Registry
	_, ok := reg.Explain("==", 1, 2)
	assert.False(t, ok, "empty slot explains nothing")

	reg.Install(func(op string, left, right interface{}) (string, bool) {
		return "installed", true
	})
	res, ok := reg.Explain("==", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "installed", res)

	reg.Clear()
	_, ok = reg.Explain("==", 1, 2)
	assert.False(t, ok)
}
