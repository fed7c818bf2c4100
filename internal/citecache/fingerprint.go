// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citecache computes the content fingerprints that decide whether
// the bibliography processor must re-run. Biber is expensive relative to a
// typical edit-compile cycle, so a compile only pays for it when the
// citation control file or a .bib database actually changed.
// Implements: prd003-citation-cache; docs/ARCHITECTURE § Citation Cache.
package citecache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/texflow/pkg/types"
)

// FingerprintFile returns the SHA-256 hex digest of the file's content, or
// an empty string when the file cannot be read. The empty string never
// satisfies FingerprintPair.Matches, so an unreadable control file always
// forces a biber run.
func FingerprintFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintBibSet returns the SHA-256 hex digest over the concatenated
// content of every .bib file directly in dir. Files are sorted by path
// before hashing; directory-enumeration order is platform dependent and
// must not produce spurious cache misses. Unreadable entries contribute
// nothing.
func FingerprintBibSet(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return hashPaths(nil)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".bib") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	return hashPaths(paths)
}

func hashPaths(paths []string) string {
	h := sha256.New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprints computes the pair for a document: the control file at
// bcfPath and the .bib set in the document's directory.
func Fingerprints(bcfPath, dir string) types.FingerprintPair {
	return types.FingerprintPair{
		BCF: FingerprintFile(bcfPath),
		Bib: FingerprintBibSet(dir),
	}
}
