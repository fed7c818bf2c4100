// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch triggers recompiles when source files change. It monitors a
// document's directory, filters for the LaTeX file types that affect
// compilation, and debounces bursts of events (editors often write a file
// several times per save) into a single callback.
// Implements: prd005-cli (watch mode); docs/ARCHITECTURE § Watch.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// sourceExtensions are the file types whose changes warrant a recompile.
var sourceExtensions = []string{".tex", ".bib", ".cls", ".sty"}

// DefaultDebounce is used when the configuration does not set one.
const DefaultDebounce = 300 * time.Millisecond

// Watcher monitors one directory and invokes a callback after changes settle.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func(paths []string)
}

// New creates a Watcher over dir. onChange receives the batch of changed
// paths once debounce has elapsed since the last relevant event.
func New(dir string, debounce time.Duration, onChange func(paths []string)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{fsw: fsw, debounce: debounce, onChange: onChange}, nil
}

// Run processes events until ctx is cancelled. It blocks; callers run it on
// its own goroutine or as the main loop of a watch command.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			// Watch errors are transient on most platforms; keep going.
			_ = err

		case <-timerC:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = make(map[string]struct{})
			timer = nil
			timerC = nil
			w.onChange(paths)
		}
	}
}

// relevant reports whether the event should trigger a recompile: a write,
// create, or rename of a LaTeX source file type.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	for _, e := range sourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
