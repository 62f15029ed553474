// Package report renders finalized tracked objects: JSON documents, summary
// statistics, an HTML timeline and a trajectory plot.
//
// Output filters (minimum lifetime, minimum detections) live here. The
// resolver itself never drops an object.
package report
