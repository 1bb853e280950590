// Package snapshot stores immutable periodic checkpoints of projected
// state, bounding journal replay cost. Atomic writes follow the same
// temp+fsync+rename discipline as internal/config and internal/statecache.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// Retention is the maximum number of snapshots kept on disk.
const Retention = 5

// Snapshot is a checkpoint of projected state at a given event count.
type Snapshot struct {
	TakenAt    time.Time        `json:"taken_at"`
	EventCount int              `json:"event_count"`
	State      *projector.State `json:"state"`
}

// fileName encodes chronology so lexicographic order equals chronological
// order: "<taken_at with ':' and '.' replaced by '-'>-<event_count>.json".
// taken_at is rendered in UTC with a fixed nine-digit fraction so that every
// timestamp part has the same width.
func fileName(s Snapshot) string {
	ts := s.TakenAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("%s-%d.json", ts, s.EventCount)
}

// Write persists s under dir via temp+fsync+rename, then prunes oldest
// snapshots beyond Retention. The temp file is removed on any failure.
func Write(dir string, s Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "create snapshots dir", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "encode snapshot", err)
	}
	data = append(data, '\n')

	target := filepath.Join(dir, fileName(s))
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".snapshot-%d-*.tmp", os.Getpid()))
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "create temp snapshot file", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "write temp snapshot file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "fsync temp snapshot file", err)
	}
	if err := tmp.Close(); err != nil {
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "close temp snapshot file", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "rename snapshot into place", err)
	}
	success = true

	return prune(dir)
}

// prune deletes the oldest snapshots until at most Retention remain.
func prune(dir string) error {
	names, err := listSorted(dir)
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "list snapshots for pruning", err)
	}
	if len(names) <= Retention {
		return nil
	}
	for _, name := range names[:len(names)-Retention] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return tsqerr.Wrap(tsqerr.CodeSnapshotWrite, "prune old snapshot", err)
		}
	}
	return nil
}

func listSorted(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LoadLatest walks the directory newest-first and returns the first file
// that parses as a Snapshot, along with a warning enumerating any invalid
// candidates skipped along the way. A missing or empty directory returns a
// nil snapshot with no error.
func LoadLatest(dir string) (*Snapshot, string, error) {
	names, err := listSorted(dir)
	if err != nil {
		return nil, "", tsqerr.Wrap(tsqerr.CodeSnapshotRead, "list snapshots", err)
	}
	if len(names) == 0 {
		return nil, "", nil
	}

	var skipped []string
	for i := len(names) - 1; i >= 0; i-- {
		path := filepath.Join(dir, names[i])
		data, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", names[i], err))
			continue
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil || s.State == nil {
			skipped = append(skipped, fmt.Sprintf("%s: not a valid snapshot", names[i]))
			continue
		}
		warning := ""
		if len(skipped) > 0 {
			warning = "snapshot: skipped invalid candidates: " + strings.Join(skipped, "; ")
		}
		return &s, warning, nil
	}
	return nil, "snapshot: no valid candidates found; skipped: " + strings.Join(skipped, "; "), nil
}
