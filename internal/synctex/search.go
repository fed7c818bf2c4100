// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synctex

import (
	"github.com/pdiddy/texflow/pkg/types"
)

// Forward maps a 1-based source line in the named file to a rendered-page
// location. It scans for the first record matching (file, line), takes the
// page marker active at that point, and converts the record's vertical
// coordinate into a fraction of the page height. Without geometry for the
// page the fraction defaults to 0.5.
func (idx *Index) Forward(line int, filename string, geom types.PageGeometry) (types.PageLocation, bool) {
	fileID, ok := idx.ResolveFileID(filename)
	if !ok {
		return types.PageLocation{}, false
	}

	for _, rec := range idx.records {
		if rec.FileID != fileID || rec.Line != line {
			continue
		}
		page := rec.Page - 1
		if page < 0 {
			page = 0
		}

		fraction := 0.5
		if height, ok := geom.Height(page); ok {
			vPt := float64(rec.V) / types.ScaledPointsPerPoint
			fraction = clamp01(vPt / height)
		}
		return types.PageLocation{Page: page, Fraction: fraction, Exact: true}, true
	}
	return types.PageLocation{}, false
}

// Inverse maps a click at the given fraction of a 0-based page back to a
// source line. It selects the record on that page with the smallest vertical
// distance to the click, provided the distance stays within toleranceSP
// scaled points; a generous but bounded tolerance keeps clicks in whitespace
// from snapping to unrelated content.
func (idx *Index) Inverse(page int, fraction float64, geom types.PageGeometry, toleranceSP int64) (types.SourceLocation, bool) {
	height, ok := geom.Height(page)
	if !ok {
		return types.SourceLocation{}, false
	}
	targetV := fraction * height * types.ScaledPointsPerPoint

	bestDist := float64(toleranceSP)
	bestLine := 0
	for _, rec := range idx.records {
		if rec.Page != page+1 {
			continue
		}
		dist := abs(float64(rec.V) - targetV)
		if dist < bestDist {
			bestDist = dist
			bestLine = rec.Line
		}
	}
	if bestLine == 0 {
		return types.SourceLocation{}, false
	}
	return types.SourceLocation{Line: bestLine, Exact: true}, true
}

// EstimateForward approximates a forward search proportionally: the target
// page is the line's relative position in the source applied to the page
// count, with the fraction pinned mid-page. Used when synchronization data
// is stale, absent, or has no record for the line; a coarse jump beats no
// response.
func EstimateForward(line, totalLines, pageCount int) types.PageLocation {
	if totalLines < 1 {
		totalLines = 1
	}
	rel := float64(line) / float64(totalLines)
	page := int(float64(pageCount) * rel)
	if page > pageCount-1 {
		page = pageCount - 1
	}
	if page < 0 {
		page = 0
	}
	return types.PageLocation{Page: page, Fraction: 0.5}
}

// EstimateInverse approximates an inverse search proportionally from the
// click's position within the page and the page's position within the
// document.
func EstimateInverse(page int, fraction float64, pageCount, totalLines int) types.SourceLocation {
	if pageCount < 1 {
		pageCount = 1
	}
	rel := (float64(page) + clamp01(fraction)) / float64(pageCount)
	line := int(float64(totalLines)*rel + 0.5)
	if line < 1 {
		line = 1
	}
	if line > totalLines && totalLines > 0 {
		line = totalLines
	}
	return types.SourceLocation{Line: line}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
