// Package ingest turns persisted detection logs into ordered frames for the
// identity resolver.
//
// A log is a sequence of Records in the camera "windows" format: one record
// per captured image, its boxes packed as a comma-separated list of
// left,top,right,bottom integers. Logs are read from JSON arrays or JSON
// lines files, split per camera and converted to track.Frame values.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/boxtrack/internal/track"
)

// ErrMalformedRecord is returned for records whose windows string cannot be
// parsed into boxes.
var ErrMalformedRecord = errors.New("malformed record")

// DefaultCamera is used for records that carry no camera id.
const DefaultCamera = "default"

// Record is one entry of a detection log.
type Record struct {
	ID          int64    `json:"id"`
	Windows     string   `json:"windows"`
	DateCreated *float64 `json:"date_created,omitempty"` // Unix seconds
	NoFaces     *int     `json:"no_faces,omitempty"`
	CameraID    string   `json:"camera_id"`
	ImageID     string   `json:"image_id,omitempty"`
	Location    string   `json:"location,omitempty"`
	FrameIndex  *int64   `json:"frame_index,omitempty"`
}

// Camera returns the trimmed camera id, or DefaultCamera when empty.
// Logs written on some capture hosts carry a trailing "\r".
func (r Record) Camera() string {
	id := strings.TrimSpace(r.CameraID)
	if id == "" {
		return DefaultCamera
	}
	return id
}

// Empty reports whether the record explicitly has no detections.
func (r Record) Empty() bool {
	if r.NoFaces != nil && *r.NoFaces == 0 {
		return true
	}
	return strings.TrimSpace(r.Windows) == ""
}

// Boxes parses the record's windows string. An empty record yields no boxes.
func (r Record) Boxes() ([]track.Box, error) {
	if r.Empty() {
		return nil, nil
	}
	boxes, err := ParseWindows(r.Windows)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.ID, err)
	}
	return boxes, nil
}

// ParseWindows parses a comma-separated list of box corners in groups of
// four (left,top,right,bottom). Fewer than four values yields no boxes and a
// trailing incomplete group is dropped. Box geometry is not validated here;
// the resolver rejects inverted boxes itself.
func ParseWindows(s string) ([]track.Box, error) {
	fields := strings.Split(s, ",")
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: windows value %q: %v", ErrMalformedRecord, f, err)
		}
		values = append(values, v)
	}

	boxes := make([]track.Box, 0, len(values)/4)
	for i := 0; i+4 <= len(values); i += 4 {
		boxes = append(boxes, track.NewBox(values[i], values[i+1], values[i+2], values[i+3]))
	}
	return boxes, nil
}

// FormatWindows is the inverse of ParseWindows.
func FormatWindows(boxes []track.Box) string {
	parts := make([]string, 0, len(boxes)*4)
	for _, b := range boxes {
		for _, v := range b.Coords() {
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return strings.Join(parts, ",")
}
