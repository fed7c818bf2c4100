// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synctex parses the gzip-compressed synchronization file emitted by
// the engine and answers position queries in both directions: source line to
// rendered-page coordinate and back.
// Implements: prd004-synctex; docs/ARCHITECTURE § Synchronization.
package synctex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// recordKinds are the record-line lead bytes that carry a vertical
// coordinate: horizontal boxes, kerns, glue, void boxes, and rules.
const recordKinds = "xkgvh"

// Input is one registered source file: the engine assigns each input a
// numeric id that records refer back to.
type Input struct {
	ID   int
	Path string
}

// Record is one position record from the synchronization file. Page is the
// page marker active at the record's position in the stream; records are
// kept in stream order, which both search directions rely on.
type Record struct {
	FileID int
	Line   int
	Page   int
	V      int64 // vertical coordinate in scaled points
}

// Index is the parsed, queryable form of a synchronization file.
type Index struct {
	inputs  []Input
	records []Record
}

// Load reads and parses the synchronization file at path. A missing file
// returns the underlying not-exist error; callers treat it as a soft
// failure and fall back to the proportional estimators.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening synctex file: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	defer zr.Close()

	return Parse(zr)
}

// Parse builds an Index from decompressed synchronization text. Malformed
// lines are skipped; they reduce signal, not correctness.
func Parse(r io.Reader) (*Index, error) {
	idx := &Index{}
	currentPage := 1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Input:"):
			if in, ok := parseInput(line); ok {
				idx.inputs = append(idx.inputs, in)
			}
		case strings.HasPrefix(line, "{"):
			if p, err := strconv.Atoi(line[1:]); err == nil {
				currentPage = p
			}
		case len(line) > 1 && strings.IndexByte(recordKinds, line[0]) >= 0:
			if rec, ok := parseRecord(line); ok {
				rec.Page = currentPage
				idx.records = append(idx.records, rec)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading synctex content: %w", err)
	}
	return idx, nil
}

// parseInput parses "Input:<id>:<filepath>".
func parseInput(line string) (Input, bool) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return Input{}, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return Input{}, false
	}
	return Input{ID: id, Path: parts[2]}, true
}

// parseRecord parses a record line "<kind><fileID>,<line>:<h>,<v>[:dims]" and
// keeps the fields the index needs: file id, source line, and the vertical
// coordinate. Kern, rule, and box records carry colon-separated dimension
// fields after the coordinates; those vary by record kind and are ignored.
func parseRecord(line string) (Record, bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return Record{}, false
	}

	link := strings.Split(line[1:colon], ",")
	if len(link) < 2 {
		return Record{}, false
	}
	fileID, err := strconv.Atoi(link[0])
	if err != nil {
		return Record{}, false
	}
	srcLine, err := strconv.Atoi(link[1])
	if err != nil {
		return Record{}, false
	}

	// Coordinates run up to the next colon; anything past it is dimensions.
	seg := line[colon+1:]
	if i := strings.IndexByte(seg, ':'); i >= 0 {
		seg = seg[:i]
	}
	coords := strings.Split(seg, ",")
	if len(coords) < 2 {
		return Record{}, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(coords[1]), 10, 64)
	if err != nil {
		return Record{}, false
	}

	return Record{FileID: fileID, Line: srcLine, V: v}, true
}

// ResolveFileID returns the id of the first registered input whose path
// contains filename. Matching by filename substring rather than full path
// tolerates relative/absolute drift between the compiler and the editor.
func (idx *Index) ResolveFileID(filename string) (int, bool) {
	for _, in := range idx.inputs {
		if strings.Contains(in.Path, filename) {
			return in.ID, true
		}
	}
	return 0, false
}

// Records returns the records in stream order.
func (idx *Index) Records() []Record { return idx.records }

// Inputs returns the registered inputs in stream order.
func (idx *Index) Inputs() []Input { return idx.inputs }
