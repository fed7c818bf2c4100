// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/texflow/internal/synctex"
	"github.com/pdiddy/texflow/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Map between source lines and rendered-page positions",
	Long: `Sync queries the SyncTeX file from the last successful compile. Forward
maps a source line to a page and vertical fraction; inverse maps a page
position back to a source line.

Exact mapping needs page geometry (a YAML file of page sizes in points,
typically produced by the PDF renderer). Without geometry, or when the
SyncTeX file is missing or has no matching record, results fall back to a
proportional estimate and are marked inexact.`,
}

// --- forward subcommand ---

var syncForwardCmd = &cobra.Command{
	Use:   "forward [file.tex]",
	Short: "Map a source line to a rendered-page position",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncForward,
}

func runSyncForward(cmd *cobra.Command, args []string) error {
	texPath := args[0]
	line, _ := cmd.Flags().GetInt("line")
	if line < 1 {
		return fmt.Errorf("--line must be a 1-based source line number")
	}

	searcher, shape, err := searcherFromFlags(cmd, texPath)
	if err != nil {
		return err
	}

	loc := searcher.Forward(line, filepath.Base(texPath), shape)
	method := "synctex"
	if !loc.Exact {
		method = "estimate"
	}
	fmt.Printf("page %d, fraction %.4f (%s)\n", loc.Page, loc.Fraction, method)
	return nil
}

// --- inverse subcommand ---

var syncInverseCmd = &cobra.Command{
	Use:   "inverse [file.tex]",
	Short: "Map a rendered-page position back to a source line",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncInverse,
}

func runSyncInverse(cmd *cobra.Command, args []string) error {
	texPath := args[0]
	page, _ := cmd.Flags().GetInt("page")
	fraction, _ := cmd.Flags().GetFloat64("fraction")
	if page < 0 {
		return fmt.Errorf("--page must be a 0-based page index")
	}
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("--fraction must be within [0, 1]")
	}

	searcher, shape, err := searcherFromFlags(cmd, texPath)
	if err != nil {
		return err
	}

	loc := searcher.Inverse(page, fraction, shape)
	method := "synctex"
	if !loc.Exact {
		method = "estimate"
	}
	fmt.Printf("line %d (%s)\n", loc.Line, method)
	return nil
}

// --- shared helpers ---

// searcherFromFlags builds a Searcher for the document plus the document
// shape the estimators need.
func searcherFromFlags(cmd *cobra.Command, texPath string) (*synctex.Searcher, synctex.DocShape, error) {
	syncPath, _ := cmd.Flags().GetString("synctex")
	if syncPath == "" {
		stem := strings.TrimSuffix(texPath, filepath.Ext(texPath))
		syncPath = stem + ".synctex.gz"
	}

	geomPath, _ := cmd.Flags().GetString("geometry")
	geom, err := loadGeometry(geomPath)
	if err != nil {
		return nil, synctex.DocShape{}, err
	}

	cfg := projectConfig()
	searcher := synctex.NewSearcher(syncPath, geom, cfg.Sync.TolerancePts)

	shape := synctex.DocShape{PageCount: len(geom)}
	if pages, _ := cmd.Flags().GetInt("pages"); pages > 0 {
		shape.PageCount = pages
	}
	if data, err := os.ReadFile(texPath); err == nil {
		shape.TotalLines = strings.Count(string(data), "\n") + 1
	}
	return searcher, shape, nil
}

// loadGeometry reads a YAML page-geometry file: a mapping from 0-based page
// index to {width, height} in points. An empty path yields nil geometry and
// estimator-only behavior.
func loadGeometry(path string) (types.PageGeometry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geometry file: %w", err)
	}
	var geom types.PageGeometry
	if err := yaml.Unmarshal(data, &geom); err != nil {
		return nil, fmt.Errorf("parsing geometry file %s: %w", path, err)
	}
	return geom, nil
}

func init() {
	syncCmd.PersistentFlags().String("synctex", "", "path to the .synctex.gz file (default: derived from the document stem)")
	syncCmd.PersistentFlags().String("geometry", "", "YAML file of page sizes in points (page index -> width/height)")
	syncCmd.PersistentFlags().Int("pages", 0, "total page count for the estimator fallback (default: geometry size)")

	syncForwardCmd.Flags().Int("line", 0, "1-based source line to locate")

	syncInverseCmd.Flags().Int("page", 0, "0-based page index of the click")
	syncInverseCmd.Flags().Float64("fraction", 0.5, "vertical click position as a fraction of the page height")

	syncCmd.AddCommand(syncForwardCmd)
	syncCmd.AddCommand(syncInverseCmd)
	rootCmd.AddCommand(syncCmd)
}
