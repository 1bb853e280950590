// Package config reads and writes the repository's config.json as a
// pretty-printed JSON document, using the same atomic temp+fsync+rename
// write discipline as the state cache and snapshots.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/misty-step/tsq/internal/tsqerr"
)

// Config is the repository's on-disk configuration document.
type Config struct {
	SchemaVersion int `json:"schema_version"`
	SnapshotEvery int `json:"snapshot_every"`
}

// Default returns the configuration written by `init`.
func Default() Config {
	return Config{SchemaVersion: 1, SnapshotEvery: 200}
}

// Load reads path, returning the Default() when the file does not exist.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, tsqerr.Wrap(tsqerr.CodeConfigRead, "read config", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, tsqerr.Wrap(tsqerr.CodeConfigInvalid, "parse config", err)
	}
	return cfg, nil
}

// Save writes cfg to path via temp file + fsync + atomic rename.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "encode config", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "create config dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "create temp config file", err)
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
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "write temp config file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "fsync temp config file", err)
	}
	if err := tmp.Close(); err != nil {
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "close temp config file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return tsqerr.Wrap(tsqerr.CodeConfigWrite, "rename config into place", err)
	}
	success = true
	return nil
}
