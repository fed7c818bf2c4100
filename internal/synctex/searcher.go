// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synctex

import (
	"bytes"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/pdiddy/texflow/pkg/types"
)

// DocShape is the document-level context the proportional estimators need:
// how many lines the source has and how many pages the last render produced.
type DocShape struct {
	TotalLines int
	PageCount  int
}

// Searcher is the outward synchronization surface. It rebuilds the index
// lazily from the on-disk synchronization file, caching the parsed form
// until the file changes, and degrades to the proportional estimators when
// the file is missing, corrupt, or has no matching record. Readers tolerate
// a partially written file as a miss, so no locking against an in-flight
// compile is needed.
type Searcher struct {
	path        string
	geom        types.PageGeometry
	toleranceSP int64

	mu      sync.Mutex
	cached  *Index
	modTime time.Time
	size    int64
	digest  uint64
}

// NewSearcher returns a Searcher over the synchronization file at path.
// tolerancePts bounds inverse-search distance; values <= 0 select the
// default.
func NewSearcher(path string, geom types.PageGeometry, tolerancePts float64) *Searcher {
	if tolerancePts <= 0 {
		tolerancePts = types.DefaultTolerancePts
	}
	return &Searcher{
		path:        path,
		geom:        geom,
		toleranceSP: int64(tolerancePts * types.ScaledPointsPerPoint),
	}
}

// Forward maps a source line to a page location, falling back to the
// proportional estimate when exact data is unavailable.
func (s *Searcher) Forward(line int, filename string, shape DocShape) types.PageLocation {
	if idx := s.index(); idx != nil {
		if loc, ok := idx.Forward(line, filename, s.geom); ok {
			return loc
		}
	}
	return EstimateForward(line, shape.TotalLines, shape.PageCount)
}

// Inverse maps a page click back to a source line, falling back to the
// proportional estimate when exact data is unavailable.
func (s *Searcher) Inverse(page int, fraction float64, shape DocShape) types.SourceLocation {
	if idx := s.index(); idx != nil {
		if loc, ok := idx.Inverse(page, fraction, s.geom, s.toleranceSP); ok {
			return loc
		}
	}
	return EstimateInverse(page, fraction, shape.PageCount, shape.TotalLines)
}

// index returns the parsed index, reusing the cache while the file is
// unchanged. The mtime/size check catches the common case; the content
// digest guards against same-second rewrites. Any failure yields nil and
// the caller's estimator takes over.
func (s *Searcher) index() *Index {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return nil
	}
	if s.cached != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.cached
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	digest := xxhash.Sum64(data)
	if s.cached != nil && digest == s.digest {
		s.modTime = info.ModTime()
		s.size = info.Size()
		return s.cached
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer zr.Close()

	idx, err := Parse(zr)
	if err != nil {
		return nil
	}

	s.cached = idx
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.digest = digest
	return idx
}
