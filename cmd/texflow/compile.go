// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texflow/internal/compile"
	"github.com/pdiddy/texflow/internal/state"
	"github.com/pdiddy/texflow/internal/toolchain"
	"github.com/pdiddy/texflow/pkg/types"
)

var compileCmd = &cobra.Command{
	Use:   "compile [file.tex]",
	Short: "Compile a LaTeX document to PDF",
	Long: `Compile runs the tectonic engine on the document with SyncTeX emission and
intermediate-file retention. When the document uses biblatex, biber runs only
if the citation control file or a .bib database changed since the last
successful compile; fingerprints are kept in the state directory.

Diagnostics extracted from engine output are printed with their source lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	target, err := resolveTarget(args[0])
	if err != nil {
		return err
	}
	rootFile, _ := cmd.Flags().GetString("root")
	if rootFile != "" {
		if rootFile, err = resolveTarget(rootFile); err != nil {
			return err
		}
	}

	source, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", target, err)
	}

	cfg := projectConfig()
	store, err := state.NewStore(cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	previous, err := store.LastFingerprints(ctx, target)
	if err != nil {
		return err
	}

	req := types.Request{
		Source:       string(source),
		TargetPath:   target,
		RootOverride: rootFile,
		Previous:     previous,
	}

	tools := toolchain.New(cfg.Compile.EnginePath, cfg.Compile.BiberPath)
	orch := compile.New(tools)

	started := time.Now()
	result := drainCompile(orch.Compile(req), os.Stdout)
	recordOutcome(ctx, store, target, started, result)

	if result.terminal.Kind == types.MsgSuccess {
		fmt.Printf("PDF written to %s\n", result.terminal.PDFPath)
		return nil
	}
	return fmt.Errorf("compilation failed:\n%s", result.terminal.Text)
}

// recordOutcome persists one finished compile: the run row for every terminal
// outcome, the fingerprints only after a success that produced them. Both the
// compile command and watch-mode recompiles go through here, so history shows
// watcher-triggered runs too.
func recordOutcome(ctx context.Context, store *state.Store, target string, started time.Time, result compileResult) {
	run := state.Run{
		Target:          target,
		Status:          string(result.terminal.Kind),
		PDFPath:         result.terminal.PDFPath,
		Message:         result.terminal.Text,
		DiagnosticCount: result.diagnosticCount,
		StartedAt:       started,
		FinishedAt:      time.Now(),
	}
	if err := store.RecordRun(ctx, run); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording run failed: %v\n", err)
	}

	if result.terminal.Kind == types.MsgSuccess && result.terminal.Fingerprints.BCF != "" {
		if err := store.SaveFingerprints(ctx, target, result.terminal.Fingerprints); err != nil {
			fmt.Fprintf(os.Stderr, "warning: saving fingerprints failed: %v\n", err)
		}
	}
}

// resolveTarget makes a document path absolute. The engine runs with the
// document directory as its working directory, so a relative path handed
// through would be resolved against that directory a second time.
func resolveTarget(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

// compileResult summarizes one drained message stream.
type compileResult struct {
	terminal        types.Message
	diagnosticCount int
}

// drainCompile consumes a compile's message stream, printing progress, and
// returns the terminal message. The channel is closed by the worker after
// the terminal message, so ranging drains everything in emission order.
func drainCompile(ch <-chan types.Message, w io.Writer) compileResult {
	var result compileResult
	for msg := range ch {
		switch msg.Kind {
		case types.MsgStart:
			fmt.Fprintln(w, "Compilation started.")
		case types.MsgLog:
			fmt.Fprintln(w, msg.Text)
		case types.MsgDiagnostics:
			result.diagnosticCount = len(msg.Diagnostics)
			for _, d := range msg.Diagnostics {
				fmt.Fprintf(w, "%s:%d: %s\n", d.File, d.Line, d.Message)
			}
		case types.MsgSuccess, types.MsgError:
			result.terminal = msg
		}
	}
	return result
}

func init() {
	compileCmd.Flags().String("root", "", "root document to compile instead of the target (multi-file documents)")

	rootCmd.AddCommand(compileCmd)
}
