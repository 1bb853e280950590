// Package statecache persists the single latest projected-state document
// used to bound journal replay cost. Writes are atomic (temp+fsync+rename);
// a corrupt cache is never an error on read — the journal is the sole
// source of truth, so callers silently discard it and fall back to
// snapshot+tail replay.
package statecache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// Load reads the cached state at path. A missing or corrupt file returns
// (nil, false, nil): never an error.
func Load(path string) (*projector.State, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, nil
	}
	var state projector.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, nil
	}
	return &state, true, nil
}

// Save writes state to path via temp file + fsync + atomic rename.
func Save(path string, state *projector.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "encode state cache", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "create state cache dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tasks-*.tmp")
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "create temp state cache file", err)
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
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "write temp state cache file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "fsync temp state cache file", err)
	}
	if err := tmp.Close(); err != nil {
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "close temp state cache file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return tsqerr.Wrap(tsqerr.CodeStateWriteFailed, "rename state cache into place", err)
	}
	success = true
	return nil
}
