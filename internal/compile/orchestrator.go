// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compile drives the external typesetting toolchain for one
// compilation request: write source, run the engine, conditionally resolve
// the bibliography, and report progress over a message channel.
// Implements: prd001-compilation, prd002-diagnostics;
//
//	docs/ARCHITECTURE § Compilation.
package compile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/texflow/internal/citecache"
	"github.com/pdiddy/texflow/internal/toolchain"
	"github.com/pdiddy/texflow/pkg/types"
)

// Runner invokes the typesetting executables. *toolchain.Toolchain is the
// production implementation.
type Runner interface {
	RunEngine(target, dir string) (toolchain.Result, error)
	RunBiber(stem, dir string) (toolchain.Result, error)
}

// messageBuffer sizes the per-compile channel. A full run emits well under
// this many messages, so the worker never blocks on a slow consumer.
const messageBuffer = 16

// Orchestrator turns compilation requests into message streams. It holds no
// per-request state; each Compile call spawns an independent worker.
//
// Overlapping compiles of the same target are a caller responsibility: the
// consumer must not submit a new request for a target while one is
// outstanding, since both workers would write the same source file. There is
// no cancellation; a compile runs to completion or failure once started.
type Orchestrator struct {
	tools Runner
}

// New returns an Orchestrator invoking the toolchain through tools.
func New(tools Runner) *Orchestrator {
	return &Orchestrator{tools: tools}
}

// Compile starts a background worker for the request and returns its message
// channel. The call never blocks. The stream begins with a start message,
// ends with exactly one success or error message, and is closed afterwards.
func (o *Orchestrator) Compile(req types.Request) <-chan types.Message {
	ch := make(chan types.Message, messageBuffer)
	go func() {
		defer close(ch)
		o.run(req, ch)
	}()
	return ch
}

func (o *Orchestrator) run(req types.Request, ch chan<- types.Message) {
	ch <- types.Message{Kind: types.MsgStart}

	// A BOM before \documentclass breaks the engine's environment
	// detection, so strip one before the source hits disk.
	source := strings.TrimPrefix(req.Source, "\ufeff")
	if err := os.WriteFile(req.TargetPath, []byte(source), 0o644); err != nil {
		ch <- types.Message{Kind: types.MsgError, Text: fmt.Sprintf("write error: %v", err)}
		return
	}

	target := req.Target()
	dir := filepath.Dir(target)
	stem := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))

	ch <- types.Message{Kind: types.MsgLog, Text: "Compiling document..."}
	res, err := o.tools.RunEngine(target, dir)

	// Optimistic first pass: most compiles converge without biber. When the
	// document uses biblatex and the engine produced a citation control
	// file, compare fingerprints against the previous run and only pay for
	// biber (plus a second engine pass) when citations actually changed.
	//
	// The biblatex check is a substring match on the source text. It can
	// false-positive on a commented-out \usepackage and false-negative when
	// the package is loaded from an included file; inherited imprecision,
	// kept as is.
	var prints types.FingerprintPair
	if strings.Contains(source, "biblatex") && err == nil && res.Success() {
		bcfPath := filepath.Join(dir, stem+".bcf")
		if fileExists(bcfPath) {
			prints = citecache.Fingerprints(bcfPath, dir)

			if prints.Matches(req.Previous) {
				ch <- types.Message{Kind: types.MsgLog, Text: "Citations unchanged."}
			} else {
				res, err = o.resolveBibliography(stem, target, dir, res, ch)
			}
		}
	}

	if err == nil {
		combined := res.Stdout + "\n" + res.Stderr
		if diags := ParseDiagnostics(combined, req.TargetPath); len(diags) > 0 {
			ch <- types.Message{Kind: types.MsgDiagnostics, Diagnostics: diags}
		}
	}

	switch {
	case err != nil:
		ch <- types.Message{Kind: types.MsgError, Text: fmt.Sprintf("failed to run tectonic: %v", err)}
	case res.Success():
		pdfPath := filepath.Join(dir, stem+".pdf")
		if fileExists(pdfPath) {
			ch <- types.Message{
				Kind:         types.MsgSuccess,
				PDFPath:      pdfPath,
				Fingerprints: prints,
			}
		} else {
			// Zero exit but no artifact: an environment inconsistency we
			// cannot explain, surfaced as a failure rather than guessed at.
			ch <- types.Message{Kind: types.MsgError, Text: "PDF file not found after compilation"}
		}
	default:
		ch <- types.Message{
			Kind: types.MsgError,
			Text: fmt.Sprintf("Compilation failed with code: %d\n\nSTDOUT:\n%s\n\nSTDERR:\n%s",
				res.ExitCode, res.Stdout, res.Stderr),
		}
	}
}

// resolveBibliography runs biber and re-runs the engine to absorb the
// updated bibliography data. A non-zero biber exit is logged as a warning,
// not escalated; the engine re-run still happens and decides the outcome. A
// biber spawn failure skips the re-run and leaves the first pass's result in
// place.
func (o *Orchestrator) resolveBibliography(stem, target, dir string, res toolchain.Result, ch chan<- types.Message) (toolchain.Result, error) {
	ch <- types.Message{Kind: types.MsgLog, Text: "Citations changed. Processing bibliography with Biber..."}

	biberRes, biberErr := o.tools.RunBiber(stem, dir)
	if biberErr != nil {
		ch <- types.Message{Kind: types.MsgLog, Text: "Failed to execute Biber."}
		return res, nil
	}
	if !biberRes.Success() {
		ch <- types.Message{Kind: types.MsgLog, Text: fmt.Sprintf("Biber warning/error: %s", biberRes.Stderr)}
	}

	ch <- types.Message{Kind: types.MsgLog, Text: "Re-compiling document to link citations..."}
	return o.tools.RunEngine(target, dir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
