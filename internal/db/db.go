// Package db persists detection logs and tracking runs in SQLite.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary. NewDB opens a database and brings it to the latest version;
// OpenDB opens it without touching the schema, for the migrate command.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/banshee-data/boxtrack/internal/ingest"
	"github.com/banshee-data/boxtrack/internal/timeutil"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// pragmas applied to every connection opened by OpenDB.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the SQLite database at path and applies connection pragmas.
// The schema is not migrated.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// foreign_keys is per connection; keep a single one so it sticks.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database at path and applies all pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrationsFS); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SetClock replaces the clock used to stamp imported rows.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

// Runs returns a RunStore sharing this database and clock.
func (db *DB) Runs() *RunStore {
	s := NewRunStore(db.DB)
	s.clock = db.clock
	return s
}

// getMigrationsFS returns the embedded migrations rooted at the directory
// holding the .sql files.
func getMigrationsFS() (fs.FS, error) {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return sub, nil
}

// InsertDetectionRecords appends records to the detection log in one
// transaction and returns the number written. Camera ids are stored
// trimmed.
func (db *DB) InsertDetectionRecords(ctx context.Context, records []ingest.Record) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detection_records (
			source_id, camera_id, frame_index, date_created, no_faces,
			windows, image_id, location, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare detection record insert: %w", err)
	}
	defer stmt.Close()

	importedAt := db.clock.Now().UnixNano()
	for i, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.Camera(),
			nullInt64(rec.FrameIndex),
			nullFloat64(rec.DateCreated),
			nullInt(rec.NoFaces),
			rec.Windows,
			rec.ImageID,
			rec.Location,
			importedAt,
		)
		if err != nil {
			return i, fmt.Errorf("insert detection record %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(records), nil
}

// Cameras returns the distinct camera ids in the detection log.
func (db *DB) Cameras(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT camera_id FROM detection_records ORDER BY camera_id`)
	if err != nil {
		return nil, fmt.Errorf("query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []string
	for rows.Next() {
		var cam string
		if err := rows.Scan(&cam); err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}
		cameras = append(cameras, cam)
	}
	return cameras, rows.Err()
}

// DetectionRecords returns the logged records for camera in import order.
// An empty camera returns every camera's records.
func (db *DB) DetectionRecords(ctx context.Context, camera string) ([]ingest.Record, error) {
	query := `
		SELECT source_id, camera_id, frame_index, date_created, no_faces,
		       windows, image_id, location
		FROM detection_records`
	var args []interface{}
	if camera != "" {
		query += ` WHERE camera_id = ?`
		args = append(args, camera)
	}
	query += ` ORDER BY camera_id, record_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query detection records: %w", err)
	}
	defer rows.Close()

	var records []ingest.Record
	for rows.Next() {
		var (
			rec         ingest.Record
			sourceID    sql.NullInt64
			frameIndex  sql.NullInt64
			dateCreated sql.NullFloat64
			noFaces     sql.NullInt64
		)
		if err := rows.Scan(&sourceID, &rec.CameraID, &frameIndex, &dateCreated, &noFaces,
			&rec.Windows, &rec.ImageID, &rec.Location); err != nil {
			return nil, fmt.Errorf("scan detection record: %w", err)
		}
		rec.ID = sourceID.Int64
		if frameIndex.Valid {
			v := frameIndex.Int64
			rec.FrameIndex = &v
		}
		if dateCreated.Valid {
			v := dateCreated.Float64
			rec.DateCreated = &v
		}
		if noFaces.Valid {
			v := int(noFaces.Int64)
			rec.NoFaces = &v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
