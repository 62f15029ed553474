package track

import (
	"fmt"
	"math"

	"github.com/banshee-data/boxtrack/internal/config"
)

// AssignmentStrategy selects how same-frame conflicts are resolved.
type AssignmentStrategy string

const (
	// AssignGreedy matches detection/object pairs in descending IoU order,
	// one object per detection per frame. This is the default.
	AssignGreedy AssignmentStrategy = config.AssignmentGreedy
	// AssignHungarian picks the frame-local assignment with the largest
	// total IoU, solved as a linear program by optimalAssign. It can produce
	// different identities than AssignGreedy when several detections compete
	// for several objects.
	AssignHungarian AssignmentStrategy = config.AssignmentHungarian
)

// ResolverConfig holds the identity decision parameters. It is fixed for
// the lifetime of a Resolver.
type ResolverConfig struct {
	IoUThreshold float64            // Minimum IoU to continue an object, in (0, 1]
	MaxTimeGap   float64            // Max seconds since last observation (+Inf disables)
	MaxFrameGap  int                // Max frames since last observation
	Assignment   AssignmentStrategy // Empty means AssignGreedy
}

// DefaultResolverConfig returns the built-in defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfigFromTuning(config.DefaultTuningConfig())
}

// ResolverConfigFromTuning builds a ResolverConfig from a loaded TuningConfig.
func ResolverConfigFromTuning(cfg *config.TuningConfig) ResolverConfig {
	return ResolverConfig{
		IoUThreshold: cfg.GetIoUThreshold(),
		MaxTimeGap:   cfg.GetMaxTimeGap(),
		MaxFrameGap:  cfg.GetMaxFrameGap(),
		Assignment:   AssignmentStrategy(cfg.GetAssignment()),
	}
}

// Validate returns an error wrapping ErrInvalidConfig if any parameter is
// out of range.
func (c ResolverConfig) Validate() error {
	if math.IsNaN(c.IoUThreshold) || c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("%w: iou_threshold must be in (0, 1], got %v", ErrInvalidConfig, c.IoUThreshold)
	}
	if math.IsNaN(c.MaxTimeGap) || c.MaxTimeGap < 0 {
		return fmt.Errorf("%w: max_time_gap must be non-negative, got %v", ErrInvalidConfig, c.MaxTimeGap)
	}
	if c.MaxFrameGap < 0 {
		return fmt.Errorf("%w: max_frame_gap must be non-negative, got %d", ErrInvalidConfig, c.MaxFrameGap)
	}
	switch c.Assignment {
	case "", AssignGreedy, AssignHungarian:
	default:
		return fmt.Errorf("%w: unknown assignment strategy %q", ErrInvalidConfig, c.Assignment)
	}
	return nil
}
