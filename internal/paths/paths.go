// Package paths defines the on-disk layout of a tsq repository rooted at
// its ".tasque" directory.
package paths

import "path/filepath"

// Dir bundles the file locations used by every other core package, so that
// none of them hardcode ".tasque" or its children directly.
type Dir struct {
	root string
}

// New returns a Dir rooted at the ".tasque" directory inside projectRoot.
func New(projectRoot string) Dir {
	return Dir{root: filepath.Join(projectRoot, ".tasque")}
}

// Root is the ".tasque" directory itself.
func (d Dir) Root() string { return d.root }

// EventsFile is the append-only event journal.
func (d Dir) EventsFile() string { return filepath.Join(d.root, "events.jsonl") }

// ConfigFile is the repository configuration document.
func (d Dir) ConfigFile() string { return filepath.Join(d.root, "config.json") }

// StateFile is the cached projected state document.
func (d Dir) StateFile() string { return filepath.Join(d.root, "tasks.jsonl") }

// LockFile is the exclusive write-lock marker.
func (d Dir) LockFile() string { return filepath.Join(d.root, ".lock") }

// SnapshotsDir holds periodic full-state snapshots.
func (d Dir) SnapshotsDir() string { return filepath.Join(d.root, "snapshots") }

// SpecsDir holds per-task attached spec files.
func (d Dir) SpecsDir() string { return filepath.Join(d.root, "specs") }

// TaskSpecFile is the attached spec document for the given task ID.
func (d Dir) TaskSpecFile(taskID string) string {
	return filepath.Join(d.SpecsDir(), taskID, "spec.md")
}

// TaskSpecDir is the per-task directory under SpecsDir.
func (d Dir) TaskSpecDir(taskID string) string {
	return filepath.Join(d.SpecsDir(), taskID)
}
