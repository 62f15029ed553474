package report

import (
	"bytes"
	"encoding/json"
	"image/png"
	"strings"
	"testing"

	"github.com/banshee-data/boxtrack/internal/config"
	"github.com/banshee-data/boxtrack/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

// resolvedScene returns three objects: obj_1 seen at t=0,1,2,3 drifting
// right, obj_2 seen once at t=1, obj_3 seen at t=2,3.
func resolvedScene(t *testing.T) ([]*track.TrackedObject, track.Stats) {
	t.Helper()
	frames := []track.Frame{
		{Index: 1, Timestamp: 100, Boxes: []track.Box{track.NewBox(0, 0, 10, 10)}},
		{Index: 2, Timestamp: 101, Boxes: []track.Box{track.NewBox(1, 0, 11, 10), track.NewBox(200, 200, 210, 210)}},
		{Index: 3, Timestamp: 102, Boxes: []track.Box{track.NewBox(2, 0, 12, 10), track.NewBox(400, 0, 420, 20)}},
		{Index: 4, Timestamp: 103, Boxes: []track.Box{track.NewBox(3, 0, 13, 10), track.NewBox(400, 0, 420, 20)}},
	}
	cfg := track.ResolverConfig{IoUThreshold: 0.3, MaxTimeGap: 5, MaxFrameGap: 5}
	objs, stats, err := track.Resolve(cfg, frames)
	require.NoError(t, err)
	require.Len(t, objs, 3)
	return objs, stats
}

func TestFilter(t *testing.T) {
	objs, _ := resolvedScene(t)

	tests := []struct {
		name   string
		filter Filter
		want   []track.ObjectID
	}{
		{"keep all", Filter{}, []track.ObjectID{1, 2, 3}},
		{"min detections 2", Filter{MinDetections: 2}, []track.ObjectID{1, 3}},
		{"min lifetime 1s", Filter{MinLifetimeSeconds: 1}, []track.ObjectID{1, 3}},
		{"min lifetime 2s", Filter{MinLifetimeSeconds: 2}, []track.ObjectID{1}},
		{"min detections 5", Filter{MinDetections: 5}, []track.ObjectID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := tt.filter.Apply(objs)
			ids := make([]track.ObjectID, len(kept))
			for i, obj := range kept {
				ids[i] = obj.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilterFromTuning(t *testing.T) {
	f := FilterFromTuning(config.EmptyTuningConfig())
	assert.Equal(t, Filter{MinLifetimeSeconds: 0, MinDetections: 1}, f)
}

func TestSummarize(t *testing.T) {
	objs, _ := resolvedScene(t)
	s := Summarize(objs)

	assert.Equal(t, 3, s.Objects)
	assert.Equal(t, 3, s.Live)
	assert.Equal(t, 0, s.Retired)
	assert.Equal(t, 7, s.Detections)
	assert.Equal(t, 4, s.MaxDetections)

	// Lifetimes 3, 0, 1.
	assert.InDelta(t, 4.0/3.0, s.MeanLifetime, 1e-9)
	assert.Equal(t, 1.0, s.MedianLifetime)
	assert.Equal(t, 3.0, s.MaxLifetime)
	assert.InDelta(t, 1.527525, s.StdDevLifetime, 1e-6)
	assert.InDelta(t, 7.0/3.0, s.MeanDetections, 1e-9)

	// Three continuations at 9/11 and one at 1.
	assert.InDelta(t, (3*9.0/11.0+1)/4, s.MeanContinuationIoU, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarize_Single(t *testing.T) {
	objs, _ := resolvedScene(t)
	s := Summarize(objs[1:2])
	assert.Equal(t, 0.0, s.StdDevLifetime)
	assert.Equal(t, 0.0, s.MeanContinuationIoU)
	assert.Equal(t, 1.0, s.MeanDetections)
}

func TestWriteJSON(t *testing.T) {
	objs, stats := resolvedScene(t)
	doc := NewDocument("camera-1", stats, objs, Filter{MinDetections: 2})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []Document{doc}))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "camera-1", decoded[0]["camera_id"])

	objects := decoded[0]["objects"].([]interface{})
	require.Len(t, objects, 2)
	first := objects[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, float64(100), first["date_created"])
	assert.Equal(t, float64(103), first["end_time"])
	assert.Equal(t, float64(3), first["time_alive"])

	// Stats cover the whole run, the summary only the reported objects.
	st := decoded[0]["stats"].(map[string]interface{})
	assert.Equal(t, float64(3), st["objects_created"])
	sum := decoded[0]["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), sum["objects"])
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRenderTimeline(t *testing.T) {
	objs, _ := resolvedScene(t)

	var buf bytes.Buffer
	require.NoError(t, RenderTimeline(&buf, "camera-1", objs))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "expected an HTML page")
	assert.Contains(t, html, "Object Timeline")
	assert.Contains(t, html, "obj_3")
}

func TestPlotTrajectories(t *testing.T) {
	objs, _ := resolvedScene(t)

	var buf bytes.Buffer
	require.NoError(t, PlotTrajectories(&buf, "camera-1", objs, 4*vg.Inch, 3*vg.Inch))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestGenerateColors(t *testing.T) {
	assert.Empty(t, generateColors(0))
	colors := generateColors(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])
}
