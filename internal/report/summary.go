package report

import (
	"sort"

	"github.com/banshee-data/boxtrack/internal/track"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a set of tracked objects. All values are zero for an
// empty set.
type Summary struct {
	Objects    int `json:"objects"`
	Live       int `json:"live"`
	Retired    int `json:"retired"`
	Detections int `json:"detections"`

	MeanLifetime   float64 `json:"mean_lifetime_seconds"`
	MedianLifetime float64 `json:"median_lifetime_seconds"`
	StdDevLifetime float64 `json:"stddev_lifetime_seconds"`
	MaxLifetime    float64 `json:"max_lifetime_seconds"`

	MeanDetections float64 `json:"mean_detections"`
	MaxDetections  int     `json:"max_detections"`

	// MeanContinuationIoU is the mean IoU between consecutive detections of
	// the same object, over every continuation in the set.
	MeanContinuationIoU float64 `json:"mean_continuation_iou"`
}

// Summarize computes a Summary over objs.
func Summarize(objs []*track.TrackedObject) Summary {
	s := Summary{Objects: len(objs)}
	if len(objs) == 0 {
		return s
	}

	lifetimes := make([]float64, len(objs))
	counts := make([]float64, len(objs))
	var ious []float64
	for i, obj := range objs {
		switch obj.State {
		case track.ObjectLive:
			s.Live++
		case track.ObjectRetired:
			s.Retired++
		}
		n := len(obj.Detections)
		s.Detections += n
		if n > s.MaxDetections {
			s.MaxDetections = n
		}
		lifetimes[i] = obj.Duration()
		counts[i] = float64(n)
		for j := 1; j < n; j++ {
			ious = append(ious, track.IoU(obj.Detections[j-1].Box, obj.Detections[j].Box))
		}
	}

	s.MeanLifetime = stat.Mean(lifetimes, nil)
	if len(lifetimes) > 1 {
		s.StdDevLifetime = stat.StdDev(lifetimes, nil)
	}
	s.MaxLifetime = floats.Max(lifetimes)

	sorted := append([]float64(nil), lifetimes...)
	sort.Float64s(sorted)
	s.MedianLifetime = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	s.MeanDetections = stat.Mean(counts, nil)
	if len(ious) > 0 {
		s.MeanContinuationIoU = stat.Mean(ious, nil)
	}
	return s
}
