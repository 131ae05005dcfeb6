package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spacetrack/pkg/query"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, false)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.GetSavedCount() != 0 {
		t.Error("Expected initial saved count to be 0")
	}
	if manager.Exists("iss", query.FormatJSON) {
		t.Error("Expected Exists to return false for a missing file")
	}

	testData := []byte(`[{"NORAD_CAT_ID":"25544"}]`)
	path, err := manager.Save(bytes.NewReader(testData), "iss", query.FormatJSON)
	if err != nil {
		t.Fatalf("Failed to save result: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "iss.json")
	if path != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, path)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.Exists("iss", query.FormatJSON) {
		t.Error("Expected Exists to return true for a saved file")
	}
	if manager.Exists("iss", query.FormatTLE) {
		t.Error("Other formats are separate files")
	}

	// no overwrite
	_, err = manager.Save(bytes.NewReader([]byte("other")), "iss", query.FormatJSON)
	if !errors.Is(err, ErrExists) {
		t.Errorf("Expected ErrExists, got %v", err)
	}

	// files from an earlier run are picked up
	manualFile := filepath.Join(tempDir, "decay.3le")
	if err := os.WriteFile(manualFile, []byte("0 X\n1\n2\n"), 0644); err != nil {
		t.Fatalf("Failed to create manual file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	manager2, err := NewManager(tempDir, true)
	if err != nil {
		t.Fatalf("Failed to create second manager: %v", err)
	}
	if manager2.GetSavedCount() != 2 {
		t.Errorf("Expected saved count to be 2 after scanning, got %d", manager2.GetSavedCount())
	}
	if !manager2.Exists("decay", query.Format3LE) {
		t.Error("Expected manually created file to be detected")
	}

	// overwrite enabled
	if _, err := manager2.Save(bytes.NewReader([]byte("new")), "iss", query.FormatJSON); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	content, _ = os.ReadFile(expectedPath)
	if string(content) != "new" {
		t.Errorf("Expected overwritten content, got %q", content)
	}

	leftovers, _ := filepath.Glob(filepath.Join(tempDir, "*.tmp"))
	hidden, _ := filepath.Glob(filepath.Join(tempDir, ".*.tmp"))
	if len(leftovers)+len(hidden) != 0 {
		t.Error("Temporary files should not be left behind")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name   string
		format query.Format
		want   string
	}{
		{"iss", query.FormatJSON, "iss.json"},
		{"ISS (ZARYA)", query.FormatTLE, "ISS_ZARYA.tle"},
		{"../../etc/passwd", query.FormatCSV, "etc_passwd.csv"},
		{"", query.FormatStream, "result.bin"},
		{"gp/latest", query.Format3LE, "gp_latest.3le"},
	}

	for _, tt := range tests {
		if got := FileName(tt.name, tt.format); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.name, tt.format, got, tt.want)
		}
	}
}
