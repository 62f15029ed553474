package report

import (
	"github.com/banshee-data/boxtrack/internal/config"
	"github.com/banshee-data/boxtrack/internal/track"
)

// Filter selects which finalized objects are reported.
type Filter struct {
	MinLifetimeSeconds float64 // Keep objects whose first-to-last span is at least this long
	MinDetections      int     // Keep objects with at least this many detections
}

// FilterFromTuning builds a Filter from a loaded TuningConfig.
func FilterFromTuning(cfg *config.TuningConfig) Filter {
	return Filter{
		MinLifetimeSeconds: cfg.GetMinLifetimeSeconds(),
		MinDetections:      cfg.GetMinDetections(),
	}
}

// Keep reports whether obj passes the filter.
func (f Filter) Keep(obj *track.TrackedObject) bool {
	if len(obj.Detections) < f.MinDetections {
		return false
	}
	return obj.Duration() >= f.MinLifetimeSeconds
}

// Apply returns the objects that pass the filter, preserving order.
func (f Filter) Apply(objs []*track.TrackedObject) []*track.TrackedObject {
	out := make([]*track.TrackedObject, 0, len(objs))
	for _, obj := range objs {
		if f.Keep(obj) {
			out = append(out, obj)
		}
	}
	return out
}
