package pipeline_test

import (
	"errors"
	"path/filepath"
	"testing"

	"scholardigest/internal/pipeline"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scholardigest.lock")
	first, err := pipeline.AcquireLock(path)
	if err != nil {
		t.Fatalf("first AcquireLock: %v", err)
	}
	if _, err := pipeline.AcquireLock(path); !errors.Is(err, pipeline.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := pipeline.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	_ = second.Release()
}

func TestAcquireLockCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "scholardigest.lock")
	lock, err := pipeline.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()
	if lock.Path() != path {
		t.Fatalf("unexpected lock path %q", lock.Path())
	}
}
