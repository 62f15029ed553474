package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	AssertError(t, os.ErrNotExist)
}

func TestTempDBPath(t *testing.T) {
	path := TempDBPath(t)
	if filepath.Base(path) != "boxtrack.db" {
		t.Errorf("TempDBPath() = %q, want boxtrack.db basename", path)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("temp dir missing: %v", err)
	}
}

func TestWriteFixture(t *testing.T) {
	path := WriteFixture(t, t.TempDir(), "log.json", SampleLog)
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if !strings.Contains(string(data), "camera-2") {
		t.Error("fixture content not written")
	}
}
