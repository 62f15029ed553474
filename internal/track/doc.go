// Package track owns identity resolution for per-frame bounding-box
// detections.
//
// Responsibilities: IoU computation, frame-local association (greedy by
// default, optional Hungarian), object lifecycle (creation, continuation,
// retirement) and serialization of resolved objects.
// Key types: Resolver, TrackedObject, Detection, Box.
//
// Dependency rule: track may depend on config and monitoring only.
// No SQL or file I/O is allowed in this package; ingest and db supply
// frames, report and db consume the finalized objects.
package track
