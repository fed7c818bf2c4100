// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ScaledPointsPerPoint is the fixed-point unit used by TeX-derived tools:
// 65536 scaled points = 1 point = 1/72 inch.
const ScaledPointsPerPoint = 65536

// PageSize is one rendered page's dimensions in points.
type PageSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// PageGeometry maps 0-based page indexes to page dimensions. It is supplied
// by the PDF-rendering collaborator; synchronization queries issued without
// it fall back to proportional estimates.
type PageGeometry map[int]PageSize

// Height returns the height of the given page in points and whether the
// geometry knows about that page.
func (g PageGeometry) Height(page int) (float64, bool) {
	size, ok := g[page]
	if !ok || size.Height <= 0 {
		return 0, false
	}
	return size.Height, true
}

// PageLocation is the result of a forward search: a 0-based page index and a
// vertical position as a fraction of the page height in [0, 1].
type PageLocation struct {
	Page     int     `json:"page" yaml:"page"`
	Fraction float64 `json:"fraction" yaml:"fraction"`

	// Exact reports whether the location came from synchronization data
	// rather than the proportional estimator.
	Exact bool `json:"exact" yaml:"exact"`
}

// SourceLocation is the result of an inverse search: a 1-based source line.
type SourceLocation struct {
	Line  int  `json:"line" yaml:"line"`
	Exact bool `json:"exact" yaml:"exact"`
}
