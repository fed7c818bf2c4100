// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// CompileConfig holds settings for the compilation stage.
type CompileConfig struct {
	// EnginePath overrides the located tectonic binary. Empty means probe
	// the standard locations and fall back to PATH.
	EnginePath string `json:"engine_path,omitempty" yaml:"engine_path,omitempty"`

	// BiberPath overrides the located biber binary.
	BiberPath string `json:"biber_path,omitempty" yaml:"biber_path,omitempty"`
}

// SyncConfig holds settings for source/page synchronization.
type SyncConfig struct {
	// TolerancePts bounds how far (in points) an inverse-search click may be
	// from the nearest record before the search reports no match. The right
	// value depends on typical line spacing, which is document-class
	// dependent; 50pt covers a few printed lines for common classes.
	TolerancePts float64 `json:"tolerance_pts" yaml:"tolerance_pts"`
}

// DefaultTolerancePts is the inverse-search distance bound used when the
// configuration does not set one.
const DefaultTolerancePts = 50.0

// StateConfig holds settings for the compile-history store.
type StateConfig struct {
	// Dir is the directory holding the state database (default ".texflow").
	Dir string `json:"dir" yaml:"dir"`
}

// WatchConfig holds settings for the recompile-on-save watcher.
type WatchConfig struct {
	// DebounceMs is how long the watcher waits after the last file event
	// before triggering a compile (default 300).
	DebounceMs int `json:"debounce_ms" yaml:"debounce_ms"`
}

// ProjectConfig groups all stage configurations.
type ProjectConfig struct {
	Compile CompileConfig `json:"compile" yaml:"compile"`
	Sync    SyncConfig    `json:"sync" yaml:"sync"`
	State   StateConfig   `json:"state" yaml:"state"`
	Watch   WatchConfig   `json:"watch" yaml:"watch"`
}
