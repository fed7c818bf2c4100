// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texflow/internal/compile"
	"github.com/pdiddy/texflow/internal/state"
	"github.com/pdiddy/texflow/internal/toolchain"
	"github.com/pdiddy/texflow/internal/watch"
	"github.com/pdiddy/texflow/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file.tex]",
	Short: "Recompile the document whenever its sources change",
	Long: `Watch monitors the document's directory for changes to .tex, .bib, .cls,
and .sty files and recompiles after changes settle. A change arriving while a
compile is in flight is deferred until that compile finishes; compiles never
overlap. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	target, err := resolveTarget(args[0])
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)

	cfg := projectConfig()
	store, err := state.NewStore(cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	tools := toolchain.New(cfg.Compile.EnginePath, cfg.Compile.BiberPath)
	orch := compile.New(tools)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// The consumer owns the overlap policy: one compile at a time, tracked
	// with a flag, with at most one queued recompile for changes that
	// arrived mid-compile.
	compiling := false
	queued := false
	done := make(chan struct{}, 1)

	runOnce := func() {
		compiling = true
		source, err := os.ReadFile(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading %s: %v\n", target, err)
			compiling = false
			return
		}
		previous, _ := store.LastFingerprints(ctx, target)
		req := types.Request{
			Source:     string(source),
			TargetPath: target,
			Previous:   previous,
		}
		started := time.Now()
		ch := orch.Compile(req)
		go func() {
			result := drainCompile(ch, os.Stdout)
			recordOutcome(ctx, store, target, started, result)
			done <- struct{}{}
		}()
	}

	changes := make(chan []string, 1)
	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	watcher, err := watch.New(dir, debounce, func(paths []string) {
		select {
		case changes <- paths:
		default:
		}
	})
	if err != nil {
		return err
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", dir)
	runOnce()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case paths := <-changes:
			fmt.Printf("Changed: %v\n", paths)
			if compiling {
				queued = true
				continue
			}
			runOnce()
		case <-done:
			compiling = false
			if queued {
				queued = false
				runOnce()
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
