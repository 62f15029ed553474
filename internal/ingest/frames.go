package ingest

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/boxtrack/internal/monitoring"
	"github.com/banshee-data/boxtrack/internal/track"
)

// ErrMixedTimestamps reports a camera whose records carry date_created only
// some of the time.
var ErrMixedTimestamps = errors.New("camera mixes records with and without date_created")

// Stream is the ordered frame sequence of one camera.
type Stream struct {
	Camera string
	Frames []track.Frame
	// Skipped lists records whose windows could not be parsed. They still
	// produce an empty frame so the watermark advances.
	Skipped []error
}

// Detections returns the number of boxes across all frames.
func (s Stream) Detections() int {
	n := 0
	for _, f := range s.Frames {
		n += len(f.Boxes)
	}
	return n
}

// SortRecords orders records by camera, then frame index when every record
// of the camera carries one, otherwise by date_created. The sort is stable,
// so ties keep log order.
func SortRecords(records []Record) {
	hasIndex := make(map[string]bool)
	for _, r := range records {
		cam := r.Camera()
		if _, seen := hasIndex[cam]; !seen {
			hasIndex[cam] = true
		}
		if r.FrameIndex == nil {
			hasIndex[cam] = false
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		ca, cb := a.Camera(), b.Camera()
		if ca != cb {
			return ca < cb
		}
		if hasIndex[ca] && *a.FrameIndex != *b.FrameIndex {
			return *a.FrameIndex < *b.FrameIndex
		}
		return recordTime(a) < recordTime(b)
	})
}

func recordTime(r Record) float64 {
	if r.DateCreated == nil {
		return math.Inf(-1)
	}
	return *r.DateCreated
}

// Split groups records by camera and converts each group into frames, in
// log order. Cameras are returned sorted by id.
//
// A record's frame index is its frame_index field when present, otherwise
// its 1-based position within the camera's records. Its timestamp is
// date_created when present, otherwise frame index / frameRate. The two
// clocks do not share a scale, so a camera whose records mix them is
// rejected with ErrMixedTimestamps.
func Split(records []Record, frameRate float64) ([]Stream, error) {
	if math.IsNaN(frameRate) || math.IsInf(frameRate, 0) || frameRate <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %v", frameRate)
	}

	byCamera := make(map[string]*Stream)
	var cameras []string
	ordinal := make(map[string]int64)
	dated := make(map[string]bool)

	for _, rec := range records {
		cam := rec.Camera()
		s, ok := byCamera[cam]
		if !ok {
			s = &Stream{Camera: cam}
			byCamera[cam] = s
			cameras = append(cameras, cam)
		}
		ordinal[cam]++
		if ordinal[cam] == 1 {
			dated[cam] = rec.DateCreated != nil
		} else if dated[cam] != (rec.DateCreated != nil) {
			return nil, fmt.Errorf("%w: camera %s record %d (id %d)", ErrMixedTimestamps, cam, ordinal[cam], rec.ID)
		}

		index := ordinal[cam]
		if rec.FrameIndex != nil {
			index = *rec.FrameIndex
		}
		ts := float64(index) / frameRate
		if rec.DateCreated != nil {
			ts = *rec.DateCreated
		}

		boxes, err := rec.Boxes()
		if err != nil {
			monitoring.Logf("[ingest] camera %s: %v", cam, err)
			s.Skipped = append(s.Skipped, err)
			boxes = nil
		}
		s.Frames = append(s.Frames, track.Frame{Index: index, Timestamp: ts, Boxes: boxes})
	}

	sort.Strings(cameras)
	streams := make([]Stream, len(cameras))
	for i, cam := range cameras {
		streams[i] = *byCamera[cam]
	}
	return streams, nil
}
