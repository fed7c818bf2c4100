// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/texflow/pkg/types"
)

// errorLineRe recognizes tectonic's "error: <path>:<line>: <message>"
// convention.
var errorLineRe = regexp.MustCompile(`error: .+:(\d+): (.*)`)

// ParseDiagnostics scans engine output line by line and extracts structured
// diagnostics. It is total: lines that do not match the pattern, or whose
// line-number capture does not parse, contribute nothing. The target path is
// recorded on each diagnostic so consumers can jump to the source file.
func ParseDiagnostics(output, targetPath string) []types.Diagnostic {
	var diags []types.Diagnostic
	for _, line := range strings.Split(output, "\n") {
		m := errorLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		diags = append(diags, types.Diagnostic{
			Line:    num,
			Message: m[2],
			File:    targetPath,
		})
	}
	return diags
}
