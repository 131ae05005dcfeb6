package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"spacetrack/internal/batch"
	"spacetrack/pkg/logger"
)

const currentVersion = 1

// Checkpoint is the state of one batch file's runs
type Checkpoint struct {
	BatchFile    string            `json:"batch_file"`
	Digest       string            `json:"digest"`
	Completed    map[string]string `json:"completed"` // query name -> result path
	Failed       map[string]string `json:"failed"`    // query name -> last error
	TotalQueries int               `json:"total_queries"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Version      int               `json:"version"`
}

// IsDone reports whether the query finished in an earlier run
func (c *Checkpoint) IsDone(name string) bool {
	_, ok := c.Completed[name]
	return ok
}

// Matches reports whether the checkpoint was taken for a batch file with
// the given digest.
func (c *Checkpoint) Matches(digest string) bool {
	return c.Version == currentVersion && c.Digest == digest
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager returns the manager for batchFile's checkpoint, kept in the
// user data directory under a name derived from the file's absolute path.
func NewManager(batchFile string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	abs, err := filepath.Abs(batchFile)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(abs))
	base := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	name := fmt.Sprintf("%s-%s.checkpoint.json", base, hex.EncodeToString(sum[:4]))

	return NewManagerAt(filepath.Join(checkpointsDir, name), logger.GetLogger()), nil
}

// NewManagerAt returns a manager that keeps its checkpoint at path.
func NewManagerAt(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{checkpointPath: path, logger: log}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string { return m.checkpointPath }

// FileDigest hashes a batch file's contents so edits invalidate its
// checkpoint.
func FileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Create starts a fresh checkpoint and saves it
func (m *Manager) Create(batchFile, digest string, total int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		BatchFile:    batchFile,
		Digest:       digest,
		Completed:    make(map[string]string),
		Failed:       make(map[string]string),
		TotalQueries: total,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      currentVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"batch_file": batchFile,
		"path":       m.checkpointPath,
	})

	return checkpoint, nil
}

// Load reads the checkpoint. It returns nil without error when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Completed == nil {
		checkpoint.Completed = make(map[string]string)
	}
	if checkpoint.Failed == nil {
		checkpoint.Failed = make(map[string]string)
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"batch_file": checkpoint.BatchFile,
		"completed":  len(checkpoint.Completed),
		"failed":     len(checkpoint.Failed),
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(checkpoint)
}

func (m *Manager) saveLocked(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordResult stores the outcome of one query. It is safe to call from
// several workers.
func (m *Manager) RecordResult(checkpoint *Checkpoint, result batch.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := result.Job.Name
	if result.Success || result.Skipped {
		checkpoint.Completed[name] = result.Path
		delete(checkpoint.Failed, name)
	} else if result.Error != nil {
		checkpoint.Failed[name] = result.Error.Error()
	}
	return m.saveLocked(checkpoint)
}

// Remaining returns the queries of f that the checkpoint does not mark done.
func (c *Checkpoint) Remaining(f *batch.File) *batch.File {
	rest := &batch.File{}
	for _, spec := range f.Queries {
		if !c.IsDone(spec.Name) {
			rest.Queries = append(rest.Queries, spec)
		}
	}
	return rest
}

// Recorder is a batch.Observer that writes every finished query to a
// checkpoint.
type Recorder struct {
	manager    *Manager
	checkpoint *Checkpoint
}

// NewRecorder returns an observer that records into checkpoint.
func NewRecorder(manager *Manager, checkpoint *Checkpoint) *Recorder {
	return &Recorder{manager: manager, checkpoint: checkpoint}
}

func (r *Recorder) QueryStarted(batch.Job) {}

func (r *Recorder) QueryFinished(result batch.Result) {
	if err := r.manager.RecordResult(r.checkpoint, result); err != nil {
		r.manager.logger.WithError(err).Warn("Failed to update checkpoint")
	}
}

var _ batch.Observer = (*Recorder)(nil)

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "spacetrack")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "spacetrack")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "spacetrack")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "spacetrack")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
