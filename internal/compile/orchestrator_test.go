// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/pdiddy/texflow/internal/toolchain"
	"github.com/pdiddy/texflow/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner implements Runner for testing. Engine invocations optionally
// create artifact files in the working directory, mimicking what tectonic
// leaves behind.
type fakeRunner struct {
	engineResult  toolchain.Result
	engineErr     error
	engineCreates []string // file names created in dir on each engine run
	engineCalls   int

	biberResult toolchain.Result
	biberErr    error
	biberCalls  int
}

func (f *fakeRunner) RunEngine(target, dir string) (toolchain.Result, error) {
	f.engineCalls++
	if f.engineErr != nil {
		return toolchain.Result{}, f.engineErr
	}
	for _, name := range f.engineCreates {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			panic(err)
		}
	}
	return f.engineResult, nil
}

func (f *fakeRunner) RunBiber(stem, dir string) (toolchain.Result, error) {
	f.biberCalls++
	if f.biberErr != nil {
		return toolchain.Result{}, f.biberErr
	}
	return f.biberResult, nil
}

// collect drains a compile stream into a slice.
func collect(t *testing.T, ch <-chan types.Message) []types.Message {
	t.Helper()
	var msgs []types.Message
	for m := range ch {
		msgs = append(msgs, m)
	}
	return msgs
}

// checkStream verifies the ordering invariant: start first, exactly one
// terminal message, terminal last, at most one diagnostics message.
func checkStream(t *testing.T, msgs []types.Message) types.Message {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("empty message stream")
	}
	if msgs[0].Kind != types.MsgStart {
		t.Errorf("first message = %q, want start", msgs[0].Kind)
	}
	terminals, diagCount := 0, 0
	for _, m := range msgs {
		if m.Terminal() {
			terminals++
		}
		if m.Kind == types.MsgDiagnostics {
			diagCount++
		}
	}
	if terminals != 1 {
		t.Errorf("terminal messages = %d, want exactly 1", terminals)
	}
	if diagCount > 1 {
		t.Errorf("diagnostics messages = %d, want at most 1", diagCount)
	}
	last := msgs[len(msgs)-1]
	if !last.Terminal() {
		t.Errorf("last message = %q, want terminal", last.Kind)
	}
	return last
}

func texTarget(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "doc.tex")
}

func TestCompile_Success(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{engineCreates: []string{"doc.pdf"}}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{
		Source:     "\\documentclass{article}\\begin{document}hi\\end{document}",
		TargetPath: target,
	}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgSuccess {
		t.Fatalf("terminal = %+v, want success", last)
	}
	if last.PDFPath != filepath.Join(filepath.Dir(target), "doc.pdf") {
		t.Errorf("pdf path = %q", last.PDFPath)
	}
	if runner.engineCalls != 1 {
		t.Errorf("engine calls = %d, want 1", runner.engineCalls)
	}
	if runner.biberCalls != 0 {
		t.Errorf("biber calls = %d, want 0 without biblatex", runner.biberCalls)
	}
}

func TestCompile_WritesSourceAndStripsBOM(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{engineCreates: []string{"doc.pdf"}}
	orch := New(runner)

	body := "\\documentclass{article}"
	msgs := collect(t, orch.Compile(types.Request{
		Source:     "\ufeff" + body,
		TargetPath: target,
	}))
	checkStream(t, msgs)

	first, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != body {
		t.Errorf("written source = %q, want BOM stripped", first)
	}

	// Re-submitting what the first pass wrote must produce identical bytes:
	// stripping is idempotent, no double-stripping artifacts.
	msgs = collect(t, orch.Compile(types.Request{
		Source:     string(first),
		TargetPath: target,
	}))
	checkStream(t, msgs)

	second, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != string(first) {
		t.Errorf("second write differs: %q vs %q", second, first)
	}
}

func TestCompile_WriteFailureIsTerminal(t *testing.T) {
	runner := &fakeRunner{}
	orch := New(runner)

	// Target inside a directory that does not exist.
	msgs := collect(t, orch.Compile(types.Request{
		Source:     "x",
		TargetPath: filepath.Join(t.TempDir(), "missing", "doc.tex"),
	}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgError || !strings.Contains(last.Text, "write error") {
		t.Fatalf("terminal = %+v, want write error", last)
	}
	if runner.engineCalls != 0 {
		t.Errorf("engine ran despite write failure")
	}
}

func TestCompile_EngineFailureSurfacesOutput(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{engineResult: toolchain.Result{
		Stdout:   "some stdout",
		Stderr:   "fatal problem",
		ExitCode: 1,
	}}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: "x", TargetPath: target}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgError {
		t.Fatalf("terminal = %+v, want error", last)
	}
	for _, want := range []string{"code: 1", "some stdout", "fatal problem"} {
		if !strings.Contains(last.Text, want) {
			t.Errorf("error text missing %q: %s", want, last.Text)
		}
	}
}

func TestCompile_SpawnFailure(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{engineErr: errors.New("no such binary")}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: "x", TargetPath: target}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgError || !strings.Contains(last.Text, "failed to run tectonic") {
		t.Fatalf("terminal = %+v, want spawn failure", last)
	}
}

func TestCompile_ArtifactMissing(t *testing.T) {
	target := texTarget(t)
	// Engine reports success but creates nothing.
	runner := &fakeRunner{}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: "x", TargetPath: target}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgError || !strings.Contains(last.Text, "PDF file not found") {
		t.Fatalf("terminal = %+v, want artifact-missing error", last)
	}
}

func TestCompile_DiagnosticsEmitted(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{
		engineResult: toolchain.Result{
			Stdout:   "error: doc.tex:42: Undefined control sequence",
			ExitCode: 1,
		},
	}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: "x", TargetPath: target}))

	checkStream(t, msgs)
	var diags []types.Diagnostic
	for _, m := range msgs {
		if m.Kind == types.MsgDiagnostics {
			diags = m.Diagnostics
		}
	}
	if len(diags) != 1 || diags[0].Line != 42 {
		t.Fatalf("diagnostics = %v, want one at line 42", diags)
	}
	if diags[0].File != target {
		t.Errorf("diagnostic file = %q, want %q", diags[0].File, target)
	}
}

const biblatexSource = "\\documentclass{article}\\usepackage{biblatex}\\begin{document}\\cite{a}\\end{document}"

func TestCompile_BiberRunsOnFirstCompile(t *testing.T) {
	target := texTarget(t)
	dir := filepath.Dir(target)
	if err := os.WriteFile(filepath.Join(dir, "refs.bib"), []byte("@book{a}"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{engineCreates: []string{"doc.pdf", "doc.bcf"}}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: biblatexSource, TargetPath: target}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgSuccess {
		t.Fatalf("terminal = %+v, want success", last)
	}
	if runner.biberCalls != 1 {
		t.Errorf("biber calls = %d, want 1", runner.biberCalls)
	}
	if runner.engineCalls != 2 {
		t.Errorf("engine calls = %d, want 2 (initial + re-run)", runner.engineCalls)
	}
	if last.Fingerprints.BCF == "" || last.Fingerprints.Bib == "" {
		t.Errorf("success message missing fingerprints: %+v", last.Fingerprints)
	}
}

func TestCompile_BiberSkippedWhenCitationsUnchanged(t *testing.T) {
	target := texTarget(t)
	dir := filepath.Dir(target)
	if err := os.WriteFile(filepath.Join(dir, "refs.bib"), []byte("@book{a}"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{engineCreates: []string{"doc.pdf", "doc.bcf"}}
	orch := New(runner)

	first := checkStream(t, collect(t, orch.Compile(types.Request{
		Source: biblatexSource, TargetPath: target,
	})))
	if runner.biberCalls != 1 {
		t.Fatalf("first compile: biber calls = %d, want 1", runner.biberCalls)
	}

	msgs := collect(t, orch.Compile(types.Request{
		Source:     biblatexSource,
		TargetPath: target,
		Previous:   first.Fingerprints,
	}))
	last := checkStream(t, msgs)
	if last.Kind != types.MsgSuccess {
		t.Fatalf("second terminal = %+v, want success", last)
	}
	if runner.biberCalls != 1 {
		t.Errorf("second compile re-ran biber: calls = %d, want still 1", runner.biberCalls)
	}
	if !hasLog(msgs, "Citations unchanged.") {
		t.Error("expected 'Citations unchanged.' log message")
	}
}

func TestCompile_BibChangeInvalidatesSkip(t *testing.T) {
	target := texTarget(t)
	dir := filepath.Dir(target)
	bibPath := filepath.Join(dir, "refs.bib")
	if err := os.WriteFile(bibPath, []byte("@book{a}"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{engineCreates: []string{"doc.pdf", "doc.bcf"}}
	orch := New(runner)

	first := checkStream(t, collect(t, orch.Compile(types.Request{
		Source: biblatexSource, TargetPath: target,
	})))

	// One appended byte must change the bib-set fingerprint.
	if err := os.WriteFile(bibPath, []byte("@book{a}x"), 0o644); err != nil {
		t.Fatal(err)
	}

	collect(t, orch.Compile(types.Request{
		Source:     biblatexSource,
		TargetPath: target,
		Previous:   first.Fingerprints,
	}))
	if runner.biberCalls != 2 {
		t.Errorf("biber calls = %d, want 2 after .bib change", runner.biberCalls)
	}
}

func TestCompile_BiberWarningNotEscalated(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{
		engineCreates: []string{"doc.pdf", "doc.bcf"},
		biberResult:   toolchain.Result{Stderr: "data source not found", ExitCode: 2},
	}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: biblatexSource, TargetPath: target}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgSuccess {
		t.Fatalf("terminal = %+v, want success despite biber warning", last)
	}
	if !hasLog(msgs, "Biber warning/error") {
		t.Error("expected biber warning in log")
	}
}

func TestCompile_BiberSpawnFailureSkipsRerun(t *testing.T) {
	target := texTarget(t)
	runner := &fakeRunner{
		engineCreates: []string{"doc.pdf", "doc.bcf"},
		biberErr:      errors.New("exec format error"),
	}
	orch := New(runner)

	msgs := collect(t, orch.Compile(types.Request{Source: biblatexSource, TargetPath: target}))

	last := checkStream(t, msgs)
	if last.Kind != types.MsgSuccess {
		t.Fatalf("terminal = %+v, want success from first pass", last)
	}
	if runner.engineCalls != 1 {
		t.Errorf("engine calls = %d, want 1 (no re-run after biber spawn failure)", runner.engineCalls)
	}
	if !hasLog(msgs, "Failed to execute Biber.") {
		t.Error("expected biber spawn failure log")
	}
}

func hasLog(msgs []types.Message, substr string) bool {
	for _, m := range msgs {
		if m.Kind == types.MsgLog && strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}
