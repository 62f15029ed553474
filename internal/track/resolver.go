package track

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/boxtrack/internal/monitoring"
)

// Frame is one batch of detections sharing a frame index and timestamp.
type Frame struct {
	Index     int64
	Timestamp float64 // Seconds
	Boxes     []Box
}

// Rejection records a detection that was skipped because its box was
// malformed. Rejected detections are never attached to any object.
type Rejection struct {
	FrameIndex int64
	Timestamp  float64
	Position   int // Index of the box within its frame
	Box        Box
	Err        error
}

// Stats holds running counters for a resolver.
type Stats struct {
	Frames             int `json:"frames"`
	DetectionsAccepted int `json:"detections_accepted"`
	DetectionsRejected int `json:"detections_rejected"`
	ObjectsCreated     int `json:"objects_created"`
	ObjectsRetired     int `json:"objects_retired"`
	Matches            int `json:"matches"`
}

// DebugCollector receives every detection/object association evaluated by
// the resolver. accepted is true for the pairs that produced a match.
type DebugCollector interface {
	IsEnabled() bool
	RecordAssociation(frameIndex int64, detection int, objectID ObjectID, iou float64, accepted bool)
}

// Resolver assigns persistent identities to per-frame detections.
//
// Frames must be fed in non-decreasing frame index and timestamp order.
// Each detection either continues the eligible live object it overlaps most
// (IoU ≥ threshold, within both gap limits, not yet matched in this frame)
// or starts a new object. Objects that fall outside the gap limits are
// retired: they stop matching but stay in the output.
type Resolver struct {
	Config ResolverConfig

	// objects is the arena of every object ever created, in creation order.
	// objects[i].ID == ObjectID(i+1).
	objects []*TrackedObject
	// live is the subset of objects still eligible for matching, in
	// creation order.
	live []*TrackedObject

	nextID ObjectID

	watermarkFrame int64
	watermarkTS    float64
	started        bool
	finalized      bool

	// err holds the first ordering violation; the run is dead after it.
	err error

	rejections []Rejection
	stats      Stats

	// DebugCollector captures association internals (optional).
	DebugCollector DebugCollector

	mu sync.RWMutex
}

// NewResolver creates a resolver with the given configuration. It returns an
// error wrapping ErrInvalidConfig if the configuration is out of range.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Assignment == "" {
		cfg.Assignment = AssignGreedy
	}
	return &Resolver{
		Config: cfg,
		nextID: 1,
	}, nil
}

// ProcessFrame matches the frame's detections against the live objects and
// advances the watermark to the frame. An empty frame only advances the
// watermark and retires stale objects.
//
// A frame behind the watermark returns ErrOrderingViolation and leaves the
// state untouched; the resolver then rejects every later frame. Malformed
// boxes are skipped, logged and recorded in Rejections.
func (r *Resolver) ProcessFrame(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrFinalized
	}
	if r.err != nil {
		return r.err
	}
	if err := r.checkOrder(frame); err != nil {
		r.err = err
		monitoring.Logf("[track] %v", err)
		return err
	}

	// Step 1: Retire objects that can no longer match at this frame.
	r.retireStale(frame.Index, frame.Timestamp)

	// Step 2: Validate detections.
	dets := make([]Detection, 0, len(frame.Boxes))
	for i, box := range frame.Boxes {
		if err := box.Validate(); err != nil {
			r.rejections = append(r.rejections, Rejection{
				FrameIndex: frame.Index,
				Timestamp:  frame.Timestamp,
				Position:   i,
				Box:        box,
				Err:        err,
			})
			r.stats.DetectionsRejected++
			monitoring.Logf("[track] frame %d: skipping detection %d: %v", frame.Index, i, err)
			continue
		}
		dets = append(dets, Detection{Box: box, FrameIndex: frame.Index, Timestamp: frame.Timestamp})
	}

	// Step 3: Candidates are live objects not already seen at this frame index.
	candidates := make([]*TrackedObject, 0, len(r.live))
	for _, obj := range r.live {
		if obj.LastFrame < frame.Index {
			candidates = append(candidates, obj)
		}
	}

	// Step 4: Associate and apply.
	assignments := r.associate(frame.Index, dets, candidates)
	matched := 0
	for di, det := range dets {
		if oi := assignments[di]; oi >= 0 {
			candidates[oi].observe(det)
			matched++
			continue
		}
		r.spawn(det)
	}
	r.stats.Matches += matched
	r.stats.DetectionsAccepted += len(dets)
	r.stats.Frames++

	// Step 5: Advance the watermark.
	r.watermarkFrame = frame.Index
	r.watermarkTS = frame.Timestamp
	r.started = true

	monitoring.Debugf("[track] frame %d t=%.3f: %d detections, %d matched, %d live",
		frame.Index, frame.Timestamp, len(dets), matched, len(r.live))
	return nil
}

// checkOrder returns an ErrOrderingViolation if frame is behind the watermark
// or carries a non-finite timestamp.
func (r *Resolver) checkOrder(frame Frame) error {
	if math.IsNaN(frame.Timestamp) || math.IsInf(frame.Timestamp, 0) {
		return fmt.Errorf("%w: frame %d has non-finite timestamp %v", ErrOrderingViolation, frame.Index, frame.Timestamp)
	}
	if !r.started {
		return nil
	}
	if frame.Index < r.watermarkFrame {
		return fmt.Errorf("%w: frame index %d is behind watermark %d", ErrOrderingViolation, frame.Index, r.watermarkFrame)
	}
	if frame.Timestamp < r.watermarkTS {
		return fmt.Errorf("%w: frame %d timestamp %.6f is behind watermark %.6f", ErrOrderingViolation, frame.Index, frame.Timestamp, r.watermarkTS)
	}
	return nil
}

// retireStale moves live objects outside either gap limit to ObjectRetired.
// Gaps only grow as the watermark advances, so retirement is permanent.
func (r *Resolver) retireStale(frameIndex int64, timestamp float64) {
	kept := r.live[:0]
	for _, obj := range r.live {
		if obj.eligibleAt(frameIndex, timestamp, r.Config) {
			kept = append(kept, obj)
			continue
		}
		obj.State = ObjectRetired
		obj.RetiredAtFrame = frameIndex
		r.stats.ObjectsRetired++
		monitoring.Debugf("[track] retired %s at frame %d (last seen frame %d)", obj.ID, frameIndex, obj.LastFrame)
	}
	for i := len(kept); i < len(r.live); i++ {
		r.live[i] = nil
	}
	r.live = kept
}

// associate builds every detection/candidate pair at or above the IoU
// threshold and resolves them with the configured strategy. Returns a slice
// indexed by detection: the candidate index, or -1 to spawn.
func (r *Resolver) associate(frameIndex int64, dets []Detection, candidates []*TrackedObject) []int {
	var pairs []candidatePair
	debug := r.DebugCollector != nil && r.DebugCollector.IsEnabled()

	for di, det := range dets {
		for oi, obj := range candidates {
			iou := IoU(det.Box, obj.LastBox)
			if iou >= r.Config.IoUThreshold {
				pairs = append(pairs, candidatePair{det: di, obj: oi, iou: iou})
			} else if debug {
				r.DebugCollector.RecordAssociation(frameIndex, di, obj.ID, iou, false)
			}
		}
	}

	var assignments []int
	switch r.Config.Assignment {
	case AssignHungarian:
		assignments = optimalAssign(len(dets), pairs)
	default:
		assignments = greedyAssign(len(dets), pairs)
	}

	if debug {
		for _, p := range pairs {
			accepted := assignments[p.det] == p.obj
			r.DebugCollector.RecordAssociation(frameIndex, p.det, candidates[p.obj].ID, p.iou, accepted)
		}
	}
	return assignments
}

// spawn creates a new live object seeded with det.
func (r *Resolver) spawn(det Detection) *TrackedObject {
	obj := newTrackedObject(r.nextID, det)
	r.nextID++
	r.objects = append(r.objects, obj)
	r.live = append(r.live, obj)
	r.stats.ObjectsCreated++
	return obj
}

// Finalize stops the run and returns every object ever created, live and
// retired, in creation order. Nothing is filtered. The returned objects are
// copies. Calling Finalize again returns the same result; ProcessFrame
// returns ErrFinalized afterwards.
func (r *Resolver) Finalize() []*TrackedObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true

	all := make([]*TrackedObject, len(r.objects))
	for i, obj := range r.objects {
		all[i] = obj.clone()
	}
	return all
}

// Live returns copies of the objects currently eligible for matching, in
// creation order.
func (r *Resolver) Live() []*TrackedObject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live := make([]*TrackedObject, len(r.live))
	for i, obj := range r.live {
		live[i] = obj.clone()
	}
	return live
}

// Object returns a copy of the object with the given ID.
func (r *Resolver) Object(id ObjectID) (*TrackedObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 1 || int(id) > len(r.objects) {
		return nil, false
	}
	return r.objects[id-1].clone(), true
}

// Len returns the number of objects created so far.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Stats returns a snapshot of the running counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Rejections returns the detections skipped as malformed so far.
func (r *Resolver) Rejections() []Rejection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rejection, len(r.rejections))
	copy(out, r.rejections)
	return out
}

// Watermark returns the most recently processed frame index and timestamp.
// ok is false before the first frame.
func (r *Resolver) Watermark() (frameIndex int64, timestamp float64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watermarkFrame, r.watermarkTS, r.started
}

// Err returns the ordering violation that stopped the run, if any.
func (r *Resolver) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Resolve runs a fresh resolver over frames and finalizes it. Processing
// stops at the first ordering violation; the objects resolved up to that
// point are returned with the error.
func Resolve(cfg ResolverConfig, frames []Frame) ([]*TrackedObject, Stats, error) {
	r, err := NewResolver(cfg)
	if err != nil {
		return nil, Stats{}, err
	}
	for _, f := range frames {
		if err := r.ProcessFrame(f); err != nil {
			return r.Finalize(), r.Stats(), err
		}
	}
	return r.Finalize(), r.Stats(), nil
}
