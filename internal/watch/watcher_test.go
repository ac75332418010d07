package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcherTriggersRerun(t *testing.T) {
	dir := t.TempDir()
	reran := make(chan struct{}, 8)

	w, err := New(dir, 50*time.Millisecond, func() { reran <- struct{}{} }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_a.go"), []byte("package main\n"), 0o644))

	select {
	case <-reran:
	case <-time.After(3 * time.Second):
		t.Fatal("rerun was not triggered")
	}
}

func TestWatcherIgnoresNonGoFiles(t *testing.T) {
	dir := t.TempDir()
	reran := make(chan struct{}, 8)

	w, err := New(dir, 50*time.Millisecond, func() { reran <- struct{}{} }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-reran:
		t.Fatal("non-Go file must not trigger a rerun")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_b.go")
	reran := make(chan struct{}, 64)

	w, err := New(dir, time.Minute, func() { reran <- struct{}{} }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-reran:
	case <-time.After(3 * time.Second):
		t.Fatal("first write must trigger a rerun")
	}

	// All remaining writes land inside the debounce window.
	select {
	case <-reran:
		t.Fatal("burst writes must be debounced into one rerun")
	case <-time.After(300 * time.Millisecond):
	}

	stats := w.Stats()
	assert.Equal(t, 1, stats.Reruns)
	assert.GreaterOrEqual(t, stats.Debounced, 1)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), 0, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcherStartTwice(t *testing.T) {
	w, err := New(t.TempDir(), 0, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
