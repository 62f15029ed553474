package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Assignment strategies accepted by the "assignment" key.
const (
	AssignmentGreedy    = "greedy"
	AssignmentHungarian = "hungarian"
)

// TuningConfig represents the root configuration for tracking parameters.
// Every field is optional; the Get* methods fall back to built-in defaults
// for anything the JSON omits, so partial configs are safe.
type TuningConfig struct {
	// Identity resolution
	IoUThreshold *float64 `json:"iou_threshold,omitempty"`
	MaxTimeGap   *float64 `json:"max_time_gap,omitempty"` // seconds
	MaxFrameGap  *int     `json:"max_frame_gap,omitempty"`
	Assignment   *string  `json:"assignment,omitempty"` // "greedy" or "hungarian"

	// Ingest: used to derive timestamps for logs that carry only frame indices.
	FrameRate *float64 `json:"frame_rate,omitempty"`

	// Output filtering (report layer only; the resolver never drops objects)
	MinLifetimeSeconds *float64 `json:"min_lifetime_seconds,omitempty"`
	MinDetections      *int     `json:"min_detections,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		IoUThreshold:       ptrFloat64(empty.GetIoUThreshold()),
		MaxTimeGap:         ptrFloat64(empty.GetMaxTimeGap()),
		MaxFrameGap:        ptrInt(empty.GetMaxFrameGap()),
		Assignment:         ptrString(empty.GetAssignment()),
		FrameRate:          ptrFloat64(empty.GetFrameRate()),
		MinLifetimeSeconds: ptrFloat64(empty.GetMinLifetimeSeconds()),
		MinDetections:      ptrInt(empty.GetMinDetections()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/boxtrack/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
// Only fields that are set are checked.
func (c *TuningConfig) Validate() error {
	if c.IoUThreshold != nil {
		v := *c.IoUThreshold
		if math.IsNaN(v) || v <= 0 || v > 1 {
			return fmt.Errorf("iou_threshold must be in (0, 1], got %v", v)
		}
	}

	if c.MaxTimeGap != nil {
		if math.IsNaN(*c.MaxTimeGap) || *c.MaxTimeGap < 0 {
			return fmt.Errorf("max_time_gap must be non-negative, got %v", *c.MaxTimeGap)
		}
	}

	if c.MaxFrameGap != nil && *c.MaxFrameGap < 0 {
		return fmt.Errorf("max_frame_gap must be non-negative, got %d", *c.MaxFrameGap)
	}

	if c.Assignment != nil {
		switch *c.Assignment {
		case "", AssignmentGreedy, AssignmentHungarian:
		default:
			return fmt.Errorf("assignment must be %q or %q, got %q", AssignmentGreedy, AssignmentHungarian, *c.Assignment)
		}
	}

	if c.FrameRate != nil {
		v := *c.FrameRate
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("frame_rate must be positive, got %v", v)
		}
	}

	if c.MinLifetimeSeconds != nil {
		if math.IsNaN(*c.MinLifetimeSeconds) || *c.MinLifetimeSeconds < 0 {
			return fmt.Errorf("min_lifetime_seconds must be non-negative, got %v", *c.MinLifetimeSeconds)
		}
	}

	if c.MinDetections != nil && *c.MinDetections < 1 {
		return fmt.Errorf("min_detections must be at least 1, got %d", *c.MinDetections)
	}

	return nil
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.3
	}
	return *c.IoUThreshold
}

// GetMaxTimeGap returns the max_time_gap value or the default.
func (c *TuningConfig) GetMaxTimeGap() float64 {
	if c.MaxTimeGap == nil {
		return 1.0
	}
	return *c.MaxTimeGap
}

// GetMaxFrameGap returns the max_frame_gap value or the default.
func (c *TuningConfig) GetMaxFrameGap() int {
	if c.MaxFrameGap == nil {
		return 30
	}
	return *c.MaxFrameGap
}

// GetAssignment returns the assignment strategy or the default.
func (c *TuningConfig) GetAssignment() string {
	if c.Assignment == nil || *c.Assignment == "" {
		return AssignmentGreedy
	}
	return *c.Assignment
}

// GetFrameRate returns the frame_rate value or the default.
func (c *TuningConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 25.0
	}
	return *c.FrameRate
}

// GetMinLifetimeSeconds returns the min_lifetime_seconds value or the default.
func (c *TuningConfig) GetMinLifetimeSeconds() float64 {
	if c.MinLifetimeSeconds == nil {
		return 0 // default: report everything
	}
	return *c.MinLifetimeSeconds
}

// GetMinDetections returns the min_detections value or the default.
func (c *TuningConfig) GetMinDetections() int {
	if c.MinDetections == nil {
		return 1
	}
	return *c.MinDetections
}
