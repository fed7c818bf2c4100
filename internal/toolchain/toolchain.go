// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolchain locates and invokes the external typesetting executables:
// the tectonic engine and the biber bibliography processor.
// Implements: prd001-compilation (R2, R5); docs/ARCHITECTURE § Toolchain.
package toolchain

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	binEngine = "tectonic"
	binBiber  = "biber"
)

// Result holds everything captured from one child-process invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the process exited with code zero.
func (r Result) Success() bool { return r.ExitCode == 0 }

// executor abstracts command execution for testing.
type executor interface {
	// Output runs name with args in dir and captures both streams. A
	// non-zero exit is reported through Result, not err; err is reserved
	// for spawn failures (missing or unexecutable binary).
	Output(name string, args []string, dir string) (Result, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) Output(name string, args []string, dir string) (Result, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return Result{}, err
	}
}

// Toolchain invokes the engine and biber with located binary paths.
type Toolchain struct {
	enginePath string
	biberPath  string
	exec       executor
}

// New locates the engine and biber binaries and returns a Toolchain using
// them. Non-empty override paths from configuration win over probing. A
// binary that cannot be located anywhere resolves to its bare name; the
// spawn failure surfaces on first use rather than here.
func New(engineOverride, biberOverride string) *Toolchain {
	t := &Toolchain{exec: &osExecutor{}}
	t.enginePath = engineOverride
	if t.enginePath == "" {
		t.enginePath = locate(binEngine, os.Executable, fileExists)
	}
	t.biberPath = biberOverride
	if t.biberPath == "" {
		t.biberPath = locate(binBiber, os.Executable, fileExists)
	}
	return t
}

// EnginePath returns the resolved engine binary path.
func (t *Toolchain) EnginePath() string { return t.enginePath }

// BiberPath returns the resolved biber binary path.
func (t *Toolchain) BiberPath() string { return t.biberPath }

// RunEngine compiles target with synchronization-file emission and
// intermediate-file retention, working from dir. The captured output is a
// single blocking read; nothing is streamed.
func (t *Toolchain) RunEngine(target, dir string) (Result, error) {
	args := []string{target, "--synctex", "--keep-intermediates"}
	return t.exec.Output(t.enginePath, args, dir)
}

// RunBiber resolves citations for the document with the given file stem,
// working from the document's directory (biber finds <stem>.bcf there).
func (t *Toolchain) RunBiber(stem, dir string) (Result, error) {
	return t.exec.Output(t.biberPath, []string{stem}, dir)
}

// binaryName appends the platform executable suffix.
func binaryName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

// locate probes for a bundled binary, in order: alongside the running
// executable, a deps/ directory next to it, and a deps/ directory at the
// project root two levels up (development tree layout). When nothing
// matches it returns the bare name and relies on PATH.
func locate(base string, exePath func() (string, error), exists func(string) bool) string {
	name := binaryName(base)

	exe, err := exePath()
	if err != nil {
		return name
	}
	exeDir := filepath.Dir(exe)

	candidates := []string{
		filepath.Join(exeDir, name),
		filepath.Join(exeDir, "deps", name),
		filepath.Join(exeDir, "..", "..", "deps", name),
	}
	for _, c := range candidates {
		if exists(c) {
			return c
		}
	}
	return name
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
