package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/banshee-data/boxtrack/internal/track"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxTimelineSeries caps the number of objects drawn; echarts slows down
// badly with thousands of series.
const maxTimelineSeries = 200

// RenderTimeline writes an HTML page with one row per object: a point for
// every detection at (timestamp relative to the first detection, object id).
// Objects beyond the first maxTimelineSeries are left out and noted in the
// subtitle.
func RenderTimeline(w io.Writer, camera string, objs []*track.TrackedObject) error {
	var origin float64
	for i, obj := range objs {
		if ts := obj.FirstTimestamp(); i == 0 || ts < origin {
			origin = ts
		}
	}

	shown := objs
	subtitle := fmt.Sprintf("camera=%s objects=%d", camera, len(objs))
	if len(shown) > maxTimelineSeries {
		shown = shown[:maxTimelineSeries]
		subtitle += fmt.Sprintf(" (first %d shown)", maxTimelineSeries)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracked Objects", Width: "1200px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Object Timeline", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "object", NameLocation: "middle", NameGap: 30}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)

	for _, obj := range shown {
		pts := make([]opts.ScatterData, 0, len(obj.Detections))
		for _, d := range obj.Detections {
			pts = append(pts, opts.ScatterData{
				Name:  fmt.Sprintf("%s frame %d", obj.ID, d.FrameIndex),
				Value: []interface{}{d.Timestamp - origin, int64(obj.ID)},
			})
		}
		scatter.AddSeries(obj.ID.String(), pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
