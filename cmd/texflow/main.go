// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the texflow CLI.
// Implements: prd001-compilation, prd004-synctex, prd005-cli (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/texflow/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the texflow CLI.
var rootCmd = &cobra.Command{
	Use:   "texflow",
	Short: "LaTeX compilation pipeline with source/page synchronization",
	Long: `texflow drives an external LaTeX toolchain (tectonic plus biber) and keeps
source positions and rendered-page positions in sync through SyncTeX.

Compilation skips the bibliography processor when citation fingerprints are
unchanged, extracts structured diagnostics from engine output, and records
per-target state so consecutive compiles stay cheap. The sync subcommands map
a source line to a page position and back.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./texflow.yaml or ~/.config/texflow/config.yaml)")
	rootCmd.PersistentFlags().String("state-dir", "", "state directory (default: .texflow)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("texflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "texflow"))
		}
	}

	viper.SetEnvPrefix("TEXFLOW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// projectConfig assembles the configuration from viper with flag overrides.
func projectConfig() types.ProjectConfig {
	cfg := types.ProjectConfig{
		Compile: types.CompileConfig{
			EnginePath: viper.GetString("compile.engine_path"),
			BiberPath:  viper.GetString("compile.biber_path"),
		},
		Sync: types.SyncConfig{
			TolerancePts: viper.GetFloat64("sync.tolerance_pts"),
		},
		State: types.StateConfig{
			Dir: viper.GetString("state.dir"),
		},
		Watch: types.WatchConfig{
			DebounceMs: viper.GetInt("watch.debounce_ms"),
		},
	}

	if dir, _ := rootCmd.PersistentFlags().GetString("state-dir"); dir != "" {
		cfg.State.Dir = dir
	}
	if cfg.Sync.TolerancePts <= 0 {
		cfg.Sync.TolerancePts = types.DefaultTolerancePts
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
