package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"spacetrack/internal/batch"
	"spacetrack/pkg/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManagerAt(filepath.Join(t.TempDir(), "run.checkpoint.json"), logger.NewNopLogger())
}

func TestCheckpointManager(t *testing.T) {
	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, err := mgr.Create("queries.yaml", "abc", 3)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.BatchFile != "queries.yaml" {
			t.Errorf("Expected batch file queries.yaml, got %s", cp.BatchFile)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.TotalQueries != 3 {
			t.Errorf("Expected 3 queries, got %d", loaded.TotalQueries)
		}
		if !loaded.Matches("abc") {
			t.Error("Expected checkpoint to match its digest")
		}
		if loaded.Matches("def") {
			t.Error("Expected checkpoint not to match another digest")
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, err := mgr.Load()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cp != nil {
			t.Errorf("Expected nil checkpoint, got %+v", cp)
		}
	})

	t.Run("LoadCorrupt", func(t *testing.T) {
		mgr := newTestManager(t)
		if err := os.WriteFile(mgr.Path(), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := mgr.Load(); err == nil {
			t.Error("Expected decode error")
		}
	})

	t.Run("RecordResult", func(t *testing.T) {
		mgr := newTestManager(t)
		cp, err := mgr.Create("queries.yaml", "abc", 3)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		results := []batch.Result{
			{Job: batch.Job{Name: "iss"}, Success: true, Path: "results/iss.3le"},
			{Job: batch.Job{Name: "decay"}, Skipped: true, Path: "results/decay.json"},
			{Job: batch.Job{Name: "satcat"}, Error: errors.New("server error (code 503)")},
		}
		for _, r := range results {
			if err := mgr.RecordResult(cp, r); err != nil {
				t.Fatalf("Failed to record result: %v", err)
			}
		}

		if !cp.IsDone("iss") || !cp.IsDone("decay") {
			t.Error("Expected iss and decay to be done")
		}
		if cp.IsDone("satcat") {
			t.Error("Expected satcat not to be done")
		}
		if !strings.Contains(cp.Failed["satcat"], "503") {
			t.Errorf("Expected satcat failure recorded, got %q", cp.Failed["satcat"])
		}

		// a later success clears the failure
		if err := mgr.RecordResult(cp, batch.Result{Job: batch.Job{Name: "satcat"}, Success: true, Path: "results/satcat.json"}); err != nil {
			t.Fatal(err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if len(loaded.Completed) != 3 || len(loaded.Failed) != 0 {
			t.Errorf("Expected 3 completed and 0 failed, got %d and %d", len(loaded.Completed), len(loaded.Failed))
		}
		if loaded.Completed["iss"] != "results/iss.3le" {
			t.Errorf("Expected iss path, got %q", loaded.Completed["iss"])
		}
	})

	t.Run("Remaining", func(t *testing.T) {
		cp := &Checkpoint{Completed: map[string]string{"iss": "results/iss.3le"}}
		f := &batch.File{Queries: []batch.Spec{{Name: "iss"}, {Name: "decay"}, {Name: "satcat"}}}

		rest := cp.Remaining(f)
		if len(rest.Queries) != 2 {
			t.Fatalf("Expected 2 remaining queries, got %d", len(rest.Queries))
		}
		if rest.Queries[0].Name != "decay" || rest.Queries[1].Name != "satcat" {
			t.Errorf("Unexpected remaining queries: %+v", rest.Queries)
		}
		if len(f.Queries) != 3 {
			t.Error("Expected the original file to be untouched")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr := newTestManager(t)
		if _, err := mgr.Create("queries.yaml", "abc", 1); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting a missing checkpoint should not fail: %v", err)
		}
	})

	t.Run("ConcurrentRecorder", func(t *testing.T) {
		mgr := newTestManager(t)
		cp, err := mgr.Create("queries.yaml", "abc", 20)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		rec := NewRecorder(mgr, cp)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				job := batch.Job{Index: n, Name: fmt.Sprintf("q%d", n)}
				rec.QueryStarted(job)
				rec.QueryFinished(batch.Result{Job: job, Success: true})
			}(i)
		}
		wg.Wait()

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint after concurrent saves: %v", err)
		}
		if len(loaded.Completed) != 20 {
			t.Errorf("Expected 20 completed queries, got %d", len(loaded.Completed))
		}
	})
}

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.yaml")

	if err := os.WriteFile(path, []byte("queries: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := FileDigest(path)
	if err != nil {
		t.Fatalf("Failed to hash file: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("Expected hex sha256, got %q", first)
	}

	if err := os.WriteFile(path, []byte("queries: [{class: gp}]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("Expected digest to change with file contents")
	}

	if _, err := FileDigest(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewManager(t *testing.T) {
	if os.Getenv("APPDATA") == "" && os.PathSeparator == '\\' {
		t.Skip("APPDATA not set")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	a, err := NewManager("queries.yaml")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	b, err := NewManager(filepath.Join("other", "queries.yaml"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if filepath.Dir(a.Path()) != filepath.Dir(b.Path()) {
		t.Error("Expected checkpoints in one directory")
	}
	if a.Path() == b.Path() {
		t.Error("Expected different batch files to get different checkpoints")
	}
	if !strings.HasPrefix(filepath.Base(a.Path()), "queries-") {
		t.Errorf("Unexpected checkpoint name %s", filepath.Base(a.Path()))
	}
}
