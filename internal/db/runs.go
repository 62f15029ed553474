package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/boxtrack/internal/timeutil"
	"github.com/banshee-data/boxtrack/internal/track"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("tracking run not found")

// RunParams is the stored form of the resolver configuration for a run.
type RunParams struct {
	IoUThreshold float64  `json:"iou_threshold"`
	MaxTimeGap   *float64 `json:"max_time_gap,omitempty"` // nil when the time gate is disabled (+Inf)
	MaxFrameGap  int      `json:"max_frame_gap"`
	Assignment   string   `json:"assignment"`
}

// NewRunParams converts a resolver configuration into RunParams.
func NewRunParams(cfg track.ResolverConfig) RunParams {
	p := RunParams{
		IoUThreshold: cfg.IoUThreshold,
		MaxFrameGap:  cfg.MaxFrameGap,
		Assignment:   string(cfg.Assignment),
	}
	if !math.IsInf(cfg.MaxTimeGap, 1) {
		gap := cfg.MaxTimeGap
		p.MaxTimeGap = &gap
	}
	return p
}

// ResolverConfig converts the stored parameters back.
func (p RunParams) ResolverConfig() track.ResolverConfig {
	cfg := track.ResolverConfig{
		IoUThreshold: p.IoUThreshold,
		MaxTimeGap:   math.Inf(1),
		MaxFrameGap:  p.MaxFrameGap,
		Assignment:   track.AssignmentStrategy(p.Assignment),
	}
	if p.MaxTimeGap != nil {
		cfg.MaxTimeGap = *p.MaxTimeGap
	}
	return cfg
}

// TrackingRun is one resolver run over one camera's frames.
type TrackingRun struct {
	RunID       string      `json:"run_id"`
	Camera      string      `json:"camera_id"`
	CreatedAt   time.Time   `json:"created_at"`
	Params      RunParams   `json:"params"`
	ToolVersion string      `json:"tool_version"`
	Stats       track.Stats `json:"stats"`
}

// RunStore provides persistence for tracking runs and their objects.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, clock: timeutil.RealClock{}}
}

// SaveRun stores run and every object with its detections in one
// transaction. If run.RunID is empty a new UUID is generated; a zero
// CreatedAt is set from the store's clock.
func (s *RunStore) SaveRun(ctx context.Context, run *TrackingRun, objects []*track.TrackedObject) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock.Now()
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode run params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracking_runs (
			run_id, camera_id, created_at, params_json, tool_version,
			frame_count, detection_count, rejected_count, object_count,
			retired_count, match_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.Camera, run.CreatedAt.UnixNano(), string(params), run.ToolVersion,
		run.Stats.Frames, run.Stats.DetectionsAccepted, run.Stats.DetectionsRejected,
		run.Stats.ObjectsCreated, run.Stats.ObjectsRetired, run.Stats.Matches,
	)
	if err != nil {
		return fmt.Errorf("insert tracking run: %w", err)
	}

	objStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracked_objects (
			run_id, object_id, state, first_frame, last_frame, date_created,
			end_time, time_alive, retired_at_frame, detection_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare tracked object insert: %w", err)
	}
	defer objStmt.Close()

	detStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO object_detections (
			run_id, object_id, seq, frame_index, timestamp,
			box_left, box_top, box_right, box_bottom
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare object detection insert: %w", err)
	}
	defer detStmt.Close()

	for _, obj := range objects {
		_, err := objStmt.ExecContext(ctx,
			run.RunID, int64(obj.ID), string(obj.State), obj.FirstFrame(), obj.LastFrame,
			obj.FirstTimestamp(), obj.LastTimestamp, obj.TimeAlive(), obj.RetiredAtFrame,
			len(obj.Detections),
		)
		if err != nil {
			return fmt.Errorf("insert tracked object %s: %w", obj.ID, err)
		}
		for seq, d := range obj.Detections {
			_, err := detStmt.ExecContext(ctx,
				run.RunID, int64(obj.ID), seq, d.FrameIndex, d.Timestamp,
				d.Box.Left, d.Box.Top, d.Box.Right, d.Box.Bottom,
			)
			if err != nil {
				return fmt.Errorf("insert object detection %s/%d: %w", obj.ID, seq, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

const runColumns = `run_id, camera_id, created_at, params_json, tool_version,
	frame_count, detection_count, rejected_count, object_count, retired_count, match_count`

func scanRun(row interface{ Scan(...interface{}) error }) (*TrackingRun, error) {
	var (
		run       TrackingRun
		createdAt int64
		params    string
	)
	err := row.Scan(&run.RunID, &run.Camera, &createdAt, &params, &run.ToolVersion,
		&run.Stats.Frames, &run.Stats.DetectionsAccepted, &run.Stats.DetectionsRejected,
		&run.Stats.ObjectsCreated, &run.Stats.ObjectsRetired, &run.Stats.Matches)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decode params of run %s: %w", run.RunID, err)
	}
	return &run, nil
}

// GetRun returns the run with the given id, or ErrRunNotFound.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*TrackingRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM tracking_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get tracking run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. An empty camera lists every camera.
func (s *RunStore) ListRuns(ctx context.Context, camera string) ([]*TrackingRun, error) {
	query := `SELECT ` + runColumns + ` FROM tracking_runs`
	var args []interface{}
	if camera != "" {
		query += ` WHERE camera_id = ?`
		args = append(args, camera)
	}
	query += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracking runs: %w", err)
	}
	defer rows.Close()

	var runs []*TrackingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracking run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunObjects rebuilds the tracked objects of a run in creation order.
func (s *RunStore) RunObjects(ctx context.Context, runID string) ([]*track.TrackedObject, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT object_id, state, retired_at_frame
		FROM tracked_objects WHERE run_id = ? ORDER BY object_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracked objects: %w", err)
	}

	var objects []*track.TrackedObject
	byID := make(map[track.ObjectID]*track.TrackedObject)
	for rows.Next() {
		var (
			obj   track.TrackedObject
			id    int64
			state string
		)
		if err := rows.Scan(&id, &state, &obj.RetiredAtFrame); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tracked object: %w", err)
		}
		obj.ID = track.ObjectID(id)
		obj.State = track.ObjectState(state)
		objects = append(objects, &obj)
		byID[obj.ID] = &obj
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	detRows, err := s.db.QueryContext(ctx, `
		SELECT object_id, frame_index, timestamp, box_left, box_top, box_right, box_bottom
		FROM object_detections WHERE run_id = ? ORDER BY object_id, seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query object detections: %w", err)
	}
	defer detRows.Close()

	for detRows.Next() {
		var (
			id  int64
			det track.Detection
		)
		if err := detRows.Scan(&id, &det.FrameIndex, &det.Timestamp,
			&det.Box.Left, &det.Box.Top, &det.Box.Right, &det.Box.Bottom); err != nil {
			return nil, fmt.Errorf("scan object detection: %w", err)
		}
		obj, ok := byID[track.ObjectID(id)]
		if !ok {
			return nil, fmt.Errorf("detection for unknown object %d in run %s", id, runID)
		}
		obj.Detections = append(obj.Detections, det)
		obj.LastFrame = det.FrameIndex
		obj.LastTimestamp = det.Timestamp
		obj.LastBox = det.Box
	}
	return objects, detRows.Err()
}

// DeleteRun removes a run and, through cascading keys, its objects.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracking_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete tracking run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tracking run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
