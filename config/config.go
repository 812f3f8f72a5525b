package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"

	"imagededup/types"
)

// Methods toggles the individual detection signals. Disabling a method
// removes its edges entirely; it does not change the weights of the rest.
type Methods struct {
	Exact      bool `toml:"exact"`
	Perceptual bool `toml:"perceptual"`
	Exif       bool `toml:"exif"`
	Filename   bool `toml:"filename"`
}

// Config carries every tuning knob of the engine. Thresholds are meant to be
// calibrated against a labeled sample; the defaults suit 64-bit DCT hashes.
type Config struct {
	// TightDistance (T1) is the Hamming radius inside which a perceptual
	// match alone is strong evidence.
	TightDistance int `toml:"tight_distance"`
	// LooseDistance (T2) bounds the "similar, possibly unrelated" band.
	// Edges in (T1, T2] need a corroborating signal to be retained.
	LooseDistance int `toml:"loose_distance"`
	// MergeThreshold is the minimum combined edge weight that may merge two
	// clusters.
	MergeThreshold float64 `toml:"merge_threshold"`
	// AutoDeleteFloor is the minimum cluster confidence for the delete
	// disposition to be honored.
	AutoDeleteFloor float64 `toml:"auto_delete_floor"`
	// ReviewFloor routes any cluster below it to review regardless of the
	// configured disposition. Safety invariant, not a default.
	ReviewFloor float64 `toml:"review_floor"`
	// ExifTimeWindowSeconds is the capture-timestamp tolerance for
	// corroboration.
	ExifTimeWindowSeconds int `toml:"exif_time_window_seconds"`

	Methods Methods `toml:"methods"`

	// Disposition applies to non-canonical members: "move-to-review",
	// "delete" or "link".
	Disposition string `toml:"disposition"`
	DryRun      bool   `toml:"dry_run"`

	// Workers bounds the fingerprinting pool. 0 means 3/4 of the CPUs.
	Workers int `toml:"workers"`

	// Include/Exclude are substring filters applied to walked paths.
	// An empty Include list admits everything.
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`

	CheckpointPath string `toml:"checkpoint_path"`
	LogFile        string `toml:"log_file"`
	Debug          bool   `toml:"debug"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		TightDistance:         10,
		LooseDistance:         16,
		MergeThreshold:        0.5,
		AutoDeleteFloor:       0.95,
		ReviewFloor:           0.5,
		ExifTimeWindowSeconds: 3,
		Methods: Methods{
			Exact:      true,
			Perceptual: true,
			Exif:       true,
			Filename:   true,
		},
		Disposition: string(types.DispositionMoveToReview),
		DryRun:      true,
	}
}

// Load reads a TOML file over the defaults. A missing path is not an error;
// a malformed file is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects impossible threshold combinations. Any error here is
// fatal at startup, before a single file is touched.
func (c Config) Validate() error {
	if c.TightDistance < 0 || c.TightDistance > 64 {
		return &types.ConfigError{Field: "tight_distance", Reason: "must be within [0, 64]"}
	}
	if c.LooseDistance < c.TightDistance || c.LooseDistance > 64 {
		return &types.ConfigError{Field: "loose_distance", Reason: "must be within [tight_distance, 64]"}
	}
	if c.MergeThreshold <= 0 || c.MergeThreshold > 1 {
		return &types.ConfigError{Field: "merge_threshold", Reason: "must be within (0, 1]"}
	}
	if c.AutoDeleteFloor < 0 || c.AutoDeleteFloor > 1 {
		return &types.ConfigError{Field: "auto_delete_floor", Reason: "must be within [0, 1]"}
	}
	if c.ReviewFloor < 0 || c.ReviewFloor > 1 {
		return &types.ConfigError{Field: "review_floor", Reason: "must be within [0, 1]"}
	}
	if c.ExifTimeWindowSeconds < 0 {
		return &types.ConfigError{Field: "exif_time_window_seconds", Reason: "must not be negative"}
	}
	if c.Workers < 0 {
		return &types.ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	switch types.Disposition(c.Disposition) {
	case types.DispositionMoveToReview, types.DispositionDelete, types.DispositionLink:
	default:
		return &types.ConfigError{Field: "disposition", Reason: fmt.Sprintf("unknown disposition %q", c.Disposition)}
	}
	if !c.Methods.Exact && !c.Methods.Perceptual {
		return &types.ConfigError{Field: "methods", Reason: "at least one of exact or perceptual must be enabled"}
	}
	return nil
}

// ExifWindow returns the capture-timestamp tolerance as a duration.
func (c Config) ExifWindow() time.Duration {
	return time.Duration(c.ExifTimeWindowSeconds) * time.Second
}

// WorkerCount resolves the effective pool size.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := (runtime.NumCPU() * 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
