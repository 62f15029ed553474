package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/boxtrack/internal/track"
)

// Document is the JSON report for one camera.
type Document struct {
	Camera  string               `json:"camera_id"`
	RunID   string               `json:"run_id,omitempty"`
	Stats   track.Stats          `json:"stats"`
	Summary Summary              `json:"summary"`
	Objects []track.ObjectRecord `json:"objects"`
}

// NewDocument builds the report for one camera from its finalized objects.
// The filter is applied to the listed objects and the summary; Stats
// always describes the whole run.
func NewDocument(camera string, stats track.Stats, objs []*track.TrackedObject, f Filter) Document {
	kept := f.Apply(objs)
	doc := Document{
		Camera:  camera,
		Stats:   stats,
		Summary: Summarize(kept),
		Objects: make([]track.ObjectRecord, len(kept)),
	}
	for i, obj := range kept {
		doc.Objects[i] = obj.Record()
	}
	return doc
}

// WriteJSON writes docs as an indented JSON array.
func WriteJSON(w io.Writer, docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
