package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/tsqerr"
)

func newRecord(t *testing.T, id, taskID, title string) events.Record {
	t.Helper()
	rec, err := events.New(id, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "tester",
		events.TypeTaskCreated, taskID, &events.TaskCreatedPayload{Title: title})
	if err != nil {
		t.Fatalf("events.New() error = %v", err)
	}
	return rec
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	t.Parallel()
	recs, warning, err := Read(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil || warning != "" || len(recs) != 0 {
		t.Fatalf("Read() = (%v, %q, %v), want (empty, \"\", nil)", recs, warning, err)
	}
}

func TestAppendThenReadRoundTrips(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")

	first := []events.Record{newRecord(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "tsq-aaaaaaaa", "first")}
	if err := Append(path, first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	second := []events.Record{newRecord(t, "01ARZ3NDEKTSV4RRFFQ69G5FAW", "tsq-bbbbbbbb", "second")}
	if err := Append(path, second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	recs, warning, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(recs) != 2 {
		t.Fatalf("Read() returned %d records, want 2", len(recs))
	}
	if recs[0].TaskID != "tsq-aaaaaaaa" || recs[1].TaskID != "tsq-bbbbbbbb" {
		t.Fatalf("records out of order: %+v", recs)
	}
}

func TestAppendEmptyIsNoOp(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := Append(path, nil); err != nil {
		t.Fatalf("Append(nil) error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Append(nil) should not create the journal file")
	}
}

// A torn trailing line is dropped with a warning; a corrupted line
// anywhere else is fatal.
func TestReadTornTrailingLineWarnsAndDrops(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	good := newRecord(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "tsq-aaaaaaaa", "first")
	line, err := good.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	content := string(line) + "\n" + `{"event_id":"01ARZ3NDEKTSV4RRFFQ69G5FAW","ts":"2026-01-0`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	recs, warning, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if warning == "" {
		t.Fatalf("expected a non-empty warning for the torn trailing line")
	}
	if len(recs) != 1 {
		t.Fatalf("Read() returned %d records, want 1 (the dropped tail excluded)", len(recs))
	}
}

func TestReadCorruptMiddleLineFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	good := newRecord(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "tsq-aaaaaaaa", "first")
	line, err := good.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	content := "not json at all\n" + string(line) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, _, err = Read(path)
	if err == nil {
		t.Fatalf("Read() error = nil, want EVENTS_CORRUPT")
	}
	code, ok := tsqerr.CodeOf(err)
	if !ok || code != tsqerr.CodeEventsCorrupt {
		t.Fatalf("Read() error code = %v (ok=%v), want %s", code, ok, tsqerr.CodeEventsCorrupt)
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("Read() error = %q, want it to name line 1", err.Error())
	}
}
