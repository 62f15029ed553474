package track

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ObjectID is the identity token of a TrackedObject. IDs are issued from a
// per-resolver counter starting at 1 and are never reused within a run.
type ObjectID int64

func (id ObjectID) String() string {
	return fmt.Sprintf("obj_%d", int64(id))
}

// ObjectState represents the lifecycle state of a tracked object.
type ObjectState string

const (
	ObjectLive    ObjectState = "live"    // Eligible for matching
	ObjectRetired ObjectState = "retired" // Gap exceeded; kept for output only
)

// Detection is one observed box at one frame. Detections are immutable once
// created and belong to exactly one TrackedObject.
type Detection struct {
	Box        Box
	FrameIndex int64
	Timestamp  float64 // Seconds (Unix epoch or stream-relative)
}

// TrackedObject is a persistent identity aggregating the detections believed
// to be the same physical object, in frame order.
type TrackedObject struct {
	ID    ObjectID
	State ObjectState

	// Detections is non-empty and non-decreasing in frame index and timestamp.
	Detections []Detection

	// Cached from the last element of Detections.
	LastFrame     int64
	LastTimestamp float64
	LastBox       Box

	// RetiredAtFrame is the watermark frame at which the object stopped being
	// eligible. Zero while live.
	RetiredAtFrame int64
}

func newTrackedObject(id ObjectID, det Detection) *TrackedObject {
	o := &TrackedObject{
		ID:         id,
		State:      ObjectLive,
		Detections: make([]Detection, 0, 4),
	}
	o.observe(det)
	return o
}

// observe appends det and refreshes the last-seen cache.
func (o *TrackedObject) observe(det Detection) {
	o.Detections = append(o.Detections, det)
	o.LastFrame = det.FrameIndex
	o.LastTimestamp = det.Timestamp
	o.LastBox = det.Box
}

// eligibleAt reports whether the object may still be matched at the given
// frame index and timestamp. Both gaps must be within bounds.
func (o *TrackedObject) eligibleAt(frameIndex int64, timestamp float64, cfg ResolverConfig) bool {
	if frameIndex-o.LastFrame > int64(cfg.MaxFrameGap) {
		return false
	}
	return timestamp-o.LastTimestamp <= cfg.MaxTimeGap
}

// FirstTimestamp returns the timestamp of the first detection.
func (o *TrackedObject) FirstTimestamp() float64 {
	if len(o.Detections) == 0 {
		return 0
	}
	return o.Detections[0].Timestamp
}

// FirstFrame returns the frame index of the first detection.
func (o *TrackedObject) FirstFrame() int64 {
	if len(o.Detections) == 0 {
		return 0
	}
	return o.Detections[0].FrameIndex
}

// Duration returns the elapsed time between first and last detection in seconds.
func (o *TrackedObject) Duration() float64 {
	return o.LastTimestamp - o.FirstTimestamp()
}

// TimeAlive returns Duration truncated to whole seconds.
func (o *TrackedObject) TimeAlive() int64 {
	return int64(o.Duration())
}

func (o *TrackedObject) clone() *TrackedObject {
	c := *o
	c.Detections = make([]Detection, len(o.Detections))
	copy(c.Detections, o.Detections)
	return &c
}

// ObjectRecord is the serialized form of a TrackedObject.
type ObjectRecord struct {
	ID           ObjectID          `json:"id"`
	State        ObjectState       `json:"state"`
	DateCreated  float64           `json:"date_created"`
	EndTime      float64           `json:"end_time"`
	TimeAlive    int64             `json:"time_alive"`
	FirstFrame   int64             `json:"first_frame"`
	LastFrame    int64             `json:"last_frame"`
	LatestCoords [4]float64        `json:"latest_coords"`
	Detections   []DetectionRecord `json:"detections"`
}

// DetectionRecord is the serialized form of a Detection.
type DetectionRecord struct {
	Box          Box     `json:"box"`
	FrameIndex   int64   `json:"frame_index"`
	Timestamp    float64 `json:"timestamp"`
	ISOTimestamp string  `json:"iso_timestamp"`
}

// Record returns the serialized form of the object.
func (o *TrackedObject) Record() ObjectRecord {
	rec := ObjectRecord{
		ID:           o.ID,
		State:        o.State,
		DateCreated:  o.FirstTimestamp(),
		EndTime:      o.LastTimestamp,
		TimeAlive:    o.TimeAlive(),
		FirstFrame:   o.FirstFrame(),
		LastFrame:    o.LastFrame,
		LatestCoords: o.LastBox.Coords(),
		Detections:   make([]DetectionRecord, len(o.Detections)),
	}
	for i, d := range o.Detections {
		rec.Detections[i] = DetectionRecord{
			Box:          d.Box,
			FrameIndex:   d.FrameIndex,
			Timestamp:    d.Timestamp,
			ISOTimestamp: ISOTimestamp(d.Timestamp),
		}
	}
	return rec
}

// MarshalJSON encodes the object as its ObjectRecord.
func (o *TrackedObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Record())
}

// ISOTimestamp formats seconds since the Unix epoch as an RFC 3339 UTC
// timestamp with microsecond precision.
func ISOTimestamp(seconds float64) string {
	sec, frac := math.Modf(seconds)
	t := time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
	return t.Format("2006-01-02T15:04:05.000000Z07:00")
}
