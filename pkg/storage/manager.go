package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"spacetrack/pkg/query"
)

// ErrExists is returned when a result file is already present and the
// manager does not overwrite.
var ErrExists = errors.New("result file already exists")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// known result extensions, used when scanning the output directory
var knownExtensions = map[string]bool{
	".json": true, ".xml": true, ".html": true, ".csv": true,
	".tle": true, ".3le": true, ".kvn": true, ".bin": true,
}

// Manager writes query results to the output directory and remembers which
// names are already there.
type Manager struct {
	outputDir string
	overwrite bool
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string, overwrite bool) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		overwrite: overwrite,
		saved:     make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records result files left by earlier runs
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !knownExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		m.saved[entry.Name()] = true
	}

	return nil
}

// FileName is the file a result called name in format is saved as.
func FileName(name string, format query.Format) string {
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "result"
	}
	return name + "." + format.Extension()
}

// Path returns the full path for name in format.
func (m *Manager) Path(name string, format query.Format) string {
	return filepath.Join(m.outputDir, FileName(name, format))
}

// Exists checks if a result with the given name and format is already saved
func (m *Manager) Exists(name string, format query.Format) bool {
	file := FileName(name, format)

	m.mu.RLock()
	known := m.saved[file]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, file)); err == nil {
		m.mu.Lock()
		m.saved[file] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes r to the result file for name and format and returns its
// path. The file is written to a temporary name and renamed into place.
func (m *Manager) Save(r io.Reader, name string, format query.Format) (string, error) {
	if !m.overwrite && m.Exists(name, format) {
		return m.Path(name, format), fmt.Errorf("%w: %s", ErrExists, FileName(name, format))
	}

	filename := m.Path(name, format)
	out, err := os.CreateTemp(m.outputDir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save result data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[filepath.Base(filename)] = true
	m.mu.Unlock()

	return filename, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetSavedCount returns the number of result files known to the manager
func (m *Manager) GetSavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
