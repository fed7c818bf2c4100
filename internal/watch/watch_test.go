// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsnotify/fsnotify"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"tex write", fsnotify.Event{Name: "doc.tex", Op: fsnotify.Write}, true},
		{"bib create", fsnotify.Event{Name: "refs.bib", Op: fsnotify.Create}, true},
		{"cls rename", fsnotify.Event{Name: "my.cls", Op: fsnotify.Rename}, true},
		{"sty write uppercase ext", fsnotify.Event{Name: "A.STY", Op: fsnotify.Write}, true},
		{"pdf write ignored", fsnotify.Event{Name: "doc.pdf", Op: fsnotify.Write}, false},
		{"log write ignored", fsnotify.Event{Name: "doc.log", Op: fsnotify.Write}, false},
		{"tex chmod ignored", fsnotify.Event{Name: "doc.tex", Op: fsnotify.Chmod}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev))
		})
	}
}

func TestWatcher_DebouncesIntoOneCallback(t *testing.T) {
	dir := t.TempDir()

	batches := make(chan []string, 4)
	w, err := New(dir, 50*time.Millisecond, func(paths []string) {
		batches <- paths
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	// A burst of writes, as editors produce on save.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.tex"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.tex"), []byte("ab"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "refs.bib"), []byte("@book{a}"), 0o644))

	select {
	case paths := <-batches:
		assert.NotEmpty(t, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no callback within timeout")
	}

	// The burst settles into a single callback; no stragglers follow.
	select {
	case extra := <-batches:
		t.Fatalf("unexpected second callback: %v", extra)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()

	batches := make(chan []string, 1)
	w, err := New(dir, 50*time.Millisecond, func(paths []string) {
		batches <- paths
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.pdf"), []byte("pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.log"), []byte("log"), 0o644))

	select {
	case paths := <-batches:
		t.Fatalf("unexpected callback for irrelevant files: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), 0, func([]string) {})
	require.Error(t, err)
}
