// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data types for the compilation pipeline
// and the source/page synchronization engine.
package types

// Request is an immutable snapshot of everything one compilation needs.
// It is created fresh per compile invocation and owned exclusively by the
// worker goroutine for its lifetime; nothing mutates it after submission.
type Request struct {
	// Source is the full document text to compile.
	Source string `json:"source" yaml:"source"`

	// TargetPath is where Source is written before the engine runs.
	TargetPath string `json:"target_path" yaml:"target_path"`

	// RootOverride, when set, names the root document to compile instead
	// of TargetPath (multi-file documents compiled via \input).
	RootOverride string `json:"root_override,omitempty" yaml:"root_override,omitempty"`

	// Previous holds the citation fingerprints from the last successful
	// compile of this target, used to decide whether biber must re-run.
	Previous FingerprintPair `json:"previous" yaml:"previous"`
}

// Target returns the path the engine is invoked on: the root override when
// present, otherwise the target path itself.
func (r Request) Target() string {
	if r.RootOverride != "" {
		return r.RootOverride
	}
	return r.TargetPath
}

// MessageKind tags a Message variant.
type MessageKind string

const (
	// MsgStart is always the first message of a compile run.
	MsgStart MessageKind = "start"

	// MsgLog carries a human-readable progress line.
	MsgLog MessageKind = "log"

	// MsgDiagnostics carries engine diagnostics extracted from the output.
	MsgDiagnostics MessageKind = "diagnostics"

	// MsgSuccess is a terminal message: the compile produced a PDF.
	MsgSuccess MessageKind = "success"

	// MsgError is a terminal message: the compile failed.
	MsgError MessageKind = "error"
)

// Message is one event on the worker-to-consumer channel. For a single
// compile the stream is: exactly one MsgStart first, zero or more MsgLog and
// MsgDiagnostics, then exactly one of MsgSuccess or MsgError, after which the
// channel is closed.
type Message struct {
	Kind MessageKind `json:"kind" yaml:"kind"`

	// Text is the log line for MsgLog, or the failure description for MsgError.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Diagnostics is set for MsgDiagnostics.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	// PDFPath is the produced artifact path, set for MsgSuccess.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// Fingerprints holds the citation fingerprints computed during this run,
	// set for MsgSuccess. The consumer stores them for the next compile.
	Fingerprints FingerprintPair `json:"fingerprints,omitempty" yaml:"fingerprints,omitempty"`
}

// Terminal reports whether the message ends the stream.
func (m Message) Terminal() bool {
	return m.Kind == MsgSuccess || m.Kind == MsgError
}

// Diagnostic is one structured engine complaint tied to a source line.
type Diagnostic struct {
	// Line is the 1-based source line number.
	Line int `json:"line" yaml:"line"`

	// Message is the engine's description, without the location prefix.
	Message string `json:"message" yaml:"message"`

	// File is the source file the diagnostic refers to.
	File string `json:"file" yaml:"file"`
}

// FingerprintPair holds the content hashes that decide whether the
// bibliography tool must re-run: one over the engine's citation control file,
// one over the set of .bib databases. Hashes are hex strings; empty means
// "not computed" and never matches.
type FingerprintPair struct {
	BCF string `json:"bcf_hash,omitempty" yaml:"bcf_hash,omitempty"`
	Bib string `json:"bib_hash,omitempty" yaml:"bib_hash,omitempty"`
}

// Matches reports whether the pair equals prev and is non-empty. The
// non-empty guard prevents a first-run skip when no prior fingerprint exists.
func (p FingerprintPair) Matches(prev FingerprintPair) bool {
	return p.BCF == prev.BCF && p.Bib == prev.Bib && p.BCF != ""
}
