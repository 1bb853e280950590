package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/misty-step/tsq/internal/projector"
)

func testState(eventCount int) *projector.State {
	s := projector.Empty()
	s.AppliedEvents = eventCount
	return s
}

func TestWriteThenLoadLatestRoundTrips(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := Snapshot{TakenAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), EventCount: 5, State: testState(5)}
	if err := Write(dir, s); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, warning, err := LoadLatest(dir)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if got == nil || got.EventCount != 5 {
		t.Fatalf("LoadLatest() = %+v, want EventCount 5", got)
	}
}

func TestLoadLatestOnEmptyDirReturnsNil(t *testing.T) {
	t.Parallel()
	got, warning, err := LoadLatest(t.TempDir())
	if err != nil || warning != "" || got != nil {
		t.Fatalf("LoadLatest() = (%v, %q, %v), want (nil, \"\", nil)", got, warning, err)
	}
}

func TestLoadLatestOnMissingDirReturnsNil(t *testing.T) {
	t.Parallel()
	got, warning, err := LoadLatest(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil || warning != "" || got != nil {
		t.Fatalf("LoadLatest() = (%v, %q, %v), want (nil, \"\", nil)", got, warning, err)
	}
}

func TestLoadLatestPicksLatestAndSkipsInvalidCandidates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	older := Snapshot{TakenAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), EventCount: 1, State: testState(1)}
	newer := Snapshot{TakenAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), EventCount: 2, State: testState(2)}
	if err := Write(dir, older); err != nil {
		t.Fatalf("Write(older) error = %v", err)
	}
	if err := Write(dir, newer); err != nil {
		t.Fatalf("Write(newer) error = %v", err)
	}

	// A lexicographically-later but corrupt candidate must be skipped in
	// favor of the latest valid one.
	corruptName := "z-corrupt.json"
	if err := os.WriteFile(filepath.Join(dir, corruptName), []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, warning, err := LoadLatest(dir)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if got == nil || got.EventCount != 2 {
		t.Fatalf("LoadLatest() = %+v, want the newer valid snapshot (EventCount 2)", got)
	}
	if warning == "" {
		t.Fatalf("expected a warning naming the skipped corrupt candidate")
	}
}

func TestWritePrunesBeyondRetention(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for i := 0; i < Retention+3; i++ {
		s := Snapshot{
			TakenAt:    time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
			EventCount: i,
			State:      testState(i),
		}
		if err := Write(dir, s); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}

	names, err := listSorted(dir)
	if err != nil {
		t.Fatalf("listSorted() error = %v", err)
	}
	if len(names) != Retention {
		t.Fatalf("len(names) = %d, want %d", len(names), Retention)
	}

	got, _, err := LoadLatest(dir)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	wantLatest := Retention + 2
	if got == nil || got.EventCount != wantLatest {
		t.Fatalf("LoadLatest().EventCount = %v, want %d", got, wantLatest)
	}
}
