package track

import "errors"

var (
	// ErrInvalidConfig is returned by NewResolver when a threshold is out of range.
	ErrInvalidConfig = errors.New("invalid resolver config")

	// ErrOrderingViolation is returned when a frame arrives with a frame index
	// or timestamp below the resolver watermark. It is sticky: once returned,
	// every later ProcessFrame call on the same resolver fails with it.
	ErrOrderingViolation = errors.New("frame ordering violation")

	// ErrMalformedDetection marks a detection whose box cannot be matched.
	// Such detections are skipped and reported through Rejections.
	ErrMalformedDetection = errors.New("malformed detection")

	// ErrFinalized is returned by ProcessFrame after Finalize.
	ErrFinalized = errors.New("resolver already finalized")
)
