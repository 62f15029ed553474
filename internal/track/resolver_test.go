package track

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/boxtrack/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(iou float64, timeGap float64, frameGap int) ResolverConfig {
	return ResolverConfig{IoUThreshold: iou, MaxTimeGap: timeGap, MaxFrameGap: frameGap}
}

func frame(index int64, ts float64, boxes ...Box) Frame {
	return Frame{Index: index, Timestamp: ts, Boxes: boxes}
}

func mustResolver(t *testing.T, cfg ResolverConfig) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r
}

func TestNewResolver_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ResolverConfig
	}{
		{"zero threshold", testConfig(0, 1, 1)},
		{"threshold above one", testConfig(1.5, 1, 1)},
		{"NaN threshold", testConfig(math.NaN(), 1, 1)},
		{"negative time gap", testConfig(0.3, -1, 1)},
		{"NaN time gap", testConfig(0.3, math.NaN(), 1)},
		{"negative frame gap", testConfig(0.3, 1, -1)},
		{"unknown strategy", ResolverConfig{IoUThreshold: 0.3, Assignment: "auction"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewResolver(tt.cfg)
			assert.Nil(t, r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNewResolver_DefaultsAssignment(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(1, math.Inf(1), 0))
	assert.Equal(t, AssignGreedy, r.Config.Assignment)
}

func TestResolver_SimpleContinuation(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 1)
	assert.Equal(t, ObjectID(1), objs[0].ID)
	assert.Len(t, objs[0].Detections, 2)
	assert.Equal(t, int64(2), objs[0].LastFrame)
	assert.Equal(t, 2.0, objs[0].LastTimestamp)
	assert.Equal(t, ObjectLive, objs[0].State)
}

func TestResolver_NewObjectOnLowOverlap(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(50, 50, 60, 60))))

	objs := r.Finalize()
	require.Len(t, objs, 2)
	assert.Len(t, objs[0].Detections, 1)
	assert.Len(t, objs[1].Detections, 1)
	assert.Equal(t, NewBox(50, 50, 60, 60), objs[1].LastBox)
}

func TestResolver_StalenessRetirement(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 100, 2))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(10, 10, NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 2)
	assert.Equal(t, ObjectRetired, objs[0].State)
	assert.Equal(t, int64(10), objs[0].RetiredAtFrame)
	assert.Equal(t, ObjectLive, objs[1].State)
	assert.Equal(t, 1, r.Stats().ObjectsRetired)
}

func TestResolver_TimeGapRetirement(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1.5, 100))

	require.NoError(t, r.ProcessFrame(frame(1, 0, NewBox(0, 0, 10, 10))))
	// Frame gap fine, time gap 2s > 1.5s.
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 2)
	assert.Equal(t, ObjectRetired, objs[0].State)
}

func TestResolver_GapsAreInclusive(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 2, 2))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	// Exactly at both limits: still eligible.
	require.NoError(t, r.ProcessFrame(frame(3, 3, NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 1)
	assert.Len(t, objs[0].Detections, 2)
}

func TestResolver_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()
	iou := IoU(NewBox(0, 0, 10, 10), NewBox(5, 0, 15, 10))
	r := mustResolver(t, testConfig(iou, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(5, 0, 15, 10))))

	assert.Equal(t, 1, r.Len())
}

func TestResolver_FrameLocalCompetition(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	// The weaker detection comes first in the batch; batch order must not matter.
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(1, 1, 11, 11), NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 2)

	assert.Len(t, objs[0].Detections, 2)
	assert.Equal(t, NewBox(0, 0, 10, 10), objs[0].LastBox)

	assert.Len(t, objs[1].Detections, 1)
	assert.Equal(t, NewBox(1, 1, 11, 11), objs[1].LastBox)
	assert.Equal(t, 1, r.Stats().Matches)
}

func TestResolver_LoserRematchesAnotherObject(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10), NewBox(4, 0, 14, 10))))
	require.Equal(t, 2, r.Len())

	// d0 overlaps o1 fully and o2 partly; d1 sits on o2.
	// d0 takes o1; d1 takes o2.
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10), NewBox(4, 0, 14, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 2)
	assert.Len(t, objs[0].Detections, 2)
	assert.Len(t, objs[1].Detections, 2)
	assert.Equal(t, NewBox(4, 0, 14, 10), objs[1].LastBox)
}

func TestResolver_SameFrameSpawnsNeverMatchEachOther(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10), NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 2)
	assert.Equal(t, ObjectID(1), objs[0].ID)
	assert.Equal(t, ObjectID(2), objs[1].ID)
}

func TestResolver_RepeatedFrameIndex(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10))))
	// A second batch for frame 2 cannot attach to the object already seen at frame 2.
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10))))

	objs := r.Finalize()
	require.Len(t, objs, 2)
	assert.Len(t, objs[0].Detections, 2)
	assert.Len(t, objs[1].Detections, 1)
}

func TestResolver_EmptyFrameAdvancesWatermark(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 10, 2))

	_, _, ok := r.Watermark()
	assert.False(t, ok)

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(5, 5)))

	idx, ts, ok := r.Watermark()
	assert.True(t, ok)
	assert.Equal(t, int64(5), idx)
	assert.Equal(t, 5.0, ts)

	// The empty frame already pushed the object past max_frame_gap.
	assert.Empty(t, r.Live())
	assert.Equal(t, 2, r.Stats().Frames)

	// An earlier frame is now an ordering violation.
	err := r.ProcessFrame(frame(4, 6, NewBox(0, 0, 10, 10)))
	assert.True(t, errors.Is(err, ErrOrderingViolation))
}

func TestResolver_OrderingViolation(t *testing.T) {
	t.Parallel()

	t.Run("frame index goes backwards", func(t *testing.T) {
		t.Parallel()
		r := mustResolver(t, testConfig(0.3, 1, 1))
		require.NoError(t, r.ProcessFrame(frame(5, 5, NewBox(0, 0, 10, 10))))

		err := r.ProcessFrame(frame(4, 6, NewBox(0, 0, 10, 10)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOrderingViolation))

		// State untouched by the rejected frame.
		objs := r.Finalize()
		require.Len(t, objs, 1)
		assert.Len(t, objs[0].Detections, 1)
	})

	t.Run("timestamp goes backwards", func(t *testing.T) {
		t.Parallel()
		r := mustResolver(t, testConfig(0.3, 1, 1))
		require.NoError(t, r.ProcessFrame(frame(5, 5, NewBox(0, 0, 10, 10))))

		err := r.ProcessFrame(frame(6, 4.9, NewBox(0, 0, 10, 10)))
		assert.True(t, errors.Is(err, ErrOrderingViolation))
	})

	t.Run("violation is sticky", func(t *testing.T) {
		t.Parallel()
		r := mustResolver(t, testConfig(0.3, 1, 1))
		require.NoError(t, r.ProcessFrame(frame(5, 5)))
		require.Error(t, r.ProcessFrame(frame(1, 1)))

		err := r.ProcessFrame(frame(6, 6, NewBox(0, 0, 10, 10)))
		assert.True(t, errors.Is(err, ErrOrderingViolation))
		assert.Equal(t, err, r.Err())
		assert.Equal(t, 0, r.Len())
	})

	t.Run("non-finite timestamp", func(t *testing.T) {
		t.Parallel()
		r := mustResolver(t, testConfig(0.3, 1, 1))
		err := r.ProcessFrame(frame(1, math.NaN(), NewBox(0, 0, 10, 10)))
		assert.True(t, errors.Is(err, ErrOrderingViolation))
	})
}

func TestResolver_MalformedDetectionsAreSkipped(t *testing.T) {
	// Not parallel: swaps the package logger.
	var logged []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, format)
	})
	defer func() { monitoring.Logf = original }()

	r := mustResolver(t, testConfig(0.3, 1, 1))
	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(2, 2,
		NewBox(10, 0, 0, 10), // inverted, overlaps the live object's area
		NewBox(0, 0, 10, 10),
		NewBox(math.NaN(), 0, 1, 1),
	)))

	rejections := r.Rejections()
	require.Len(t, rejections, 2)
	assert.Equal(t, 0, rejections[0].Position)
	assert.Equal(t, 2, rejections[1].Position)
	assert.Equal(t, int64(2), rejections[0].FrameIndex)
	for _, rej := range rejections {
		assert.True(t, errors.Is(rej.Err, ErrMalformedDetection))
	}
	assert.Len(t, logged, 2)

	objs := r.Finalize()
	require.Len(t, objs, 1)
	assert.Len(t, objs[0].Detections, 2)

	st := r.Stats()
	assert.Equal(t, 2, st.DetectionsAccepted)
	assert.Equal(t, 2, st.DetectionsRejected)
	assert.Equal(t, 4, st.DetectionsAccepted+st.DetectionsRejected, "every input box is accepted or rejected")
}

func TestResolver_Finalize(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))
	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10), NewBox(20, 20, 30, 30))))

	first := r.Finalize()
	require.Len(t, first, 2)

	// Returned objects are copies.
	first[0].Detections[0].Box = NewBox(99, 99, 100, 100)
	second := r.Finalize()
	assert.Equal(t, NewBox(0, 0, 10, 10), second[0].Detections[0].Box)

	err := r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10)))
	assert.True(t, errors.Is(err, ErrFinalized))
}

func TestResolver_Object(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))
	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))

	obj, ok := r.Object(1)
	require.True(t, ok)
	assert.Equal(t, ObjectID(1), obj.ID)

	_, ok = r.Object(0)
	assert.False(t, ok)
	_, ok = r.Object(2)
	assert.False(t, ok)
}

type recordingCollector struct {
	accepted int
	rejected int
}

func (c *recordingCollector) IsEnabled() bool { return true }

func (c *recordingCollector) RecordAssociation(frameIndex int64, detection int, objectID ObjectID, iou float64, accepted bool) {
	if accepted {
		c.accepted++
	} else {
		c.rejected++
	}
}

func TestResolver_DebugCollector(t *testing.T) {
	t.Parallel()
	r := mustResolver(t, testConfig(0.3, 1, 1))
	dc := &recordingCollector{}
	r.DebugCollector = dc

	require.NoError(t, r.ProcessFrame(frame(1, 1, NewBox(0, 0, 10, 10))))
	require.NoError(t, r.ProcessFrame(frame(2, 2, NewBox(0, 0, 10, 10), NewBox(1, 1, 11, 11), NewBox(50, 50, 60, 60))))

	// Three pairs evaluated against one object: one accepted, one lost the
	// competition, one below threshold.
	assert.Equal(t, 1, dc.accepted)
	assert.Equal(t, 2, dc.rejected)
}

func TestResolver_HungarianStrategy(t *testing.T) {
	t.Parallel()

	// d0 overlaps o1 best (0.90) and o2 weakly (0.38); d1 only reaches o1
	// (0.82). Greedy hands o1 to d0 and strands d1; the optimal assignment
	// keeps both identities.
	seed := frame(1, 1, NewBox(0, 0, 10, 10), NewBox(5, 0, 15, 10))
	next := frame(2, 2, NewBox(0.5, 0, 10.5, 10), NewBox(-1, 0, 9, 10))

	greedy, _, err := Resolve(testConfig(0.3, 1, 1), []Frame{seed, next})
	require.NoError(t, err)

	cfg := testConfig(0.3, 1, 1)
	cfg.Assignment = AssignHungarian
	optimal, _, err := Resolve(cfg, []Frame{seed, next})
	require.NoError(t, err)

	assert.Len(t, greedy, 3)
	assert.Len(t, optimal, 2)
}
