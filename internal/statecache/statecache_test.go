package statecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/misty-step/tsq/internal/projector"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tasks.jsonl")

	state := projector.Empty()
	state.AppliedEvents = 3

	if err := Save(path, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ok {
		t.Fatalf("Load() ok = false, want true")
	}
	if got.AppliedEvents != 3 {
		t.Fatalf("Load().AppliedEvents = %d, want 3", got.AppliedEvents)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()
	got, ok, err := Load(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil || ok || got != nil {
		t.Fatalf("Load() = (%v, %v, %v), want (nil, false, nil)", got, ok, err)
	}
}

func TestLoadCorruptFileIsSilentlyDiscarded(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, ok, err := Load(path)
	if err != nil || ok || got != nil {
		t.Fatalf("Load() = (%v, %v, %v), want (nil, false, nil)", got, ok, err)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.jsonl")
	if err := Save(path, projector.Empty()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Save() did not create file at nested path: %v", err)
	}
}
