// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TempDBPath returns a path for a fresh SQLite database inside t.TempDir().
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "boxtrack.db")
}

// WriteFixture writes content to name inside dir and returns the full path.
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// SampleLog is a two-camera detection log in the windows record format.
// camera-1 shows one face for three frames, then a jump to a new position;
// camera-2 shows two faces once.
const SampleLog = `[
 {"windows": "", "image_id": "image_id", "location": "mac", "camera_id": "camera-1\r", "date_created": 1533227583.0, "id": 1140, "no_faces": 0},
 {"windows": "348,241,669,562", "image_id": "image_id", "location": "mac", "camera_id": "camera-1\r", "date_created": 1533227584.0, "id": 1141, "no_faces": 1},
 {"windows": "348,241,669,562", "image_id": "image_id", "location": "mac", "camera_id": "camera-1\r", "date_created": 1533227585.0, "id": 1142, "no_faces": 1},
 {"windows": "312,241,633,562", "image_id": "image_id", "location": "mac", "camera_id": "camera-1\r", "date_created": 1533227586.0, "id": 1143, "no_faces": 1},
 {"windows": "974,290,1359,675", "image_id": "image_id", "location": "mac", "camera_id": "camera-1\r", "date_created": 1533227587.0, "id": 1144, "no_faces": 1},
 {"windows": "100,100,200,200,562,99,883,420", "image_id": "image_id", "location": "lobby", "camera_id": "camera-2", "date_created": 1533227590.0, "id": 1145, "no_faces": 2}
]`
