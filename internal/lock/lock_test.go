package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/misty-step/tsq/internal/tsqerr"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".lock")

	h, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after Release()")
	}
}

// A held, non-stale lock causes a second acquirer to time out with
// CodeLockTimeout rather than hang indefinitely.
func TestAcquireTimesOutWhenHeld(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".lock")

	holder, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer func() { _ = holder.Release() }()

	_, err = Acquire(path, 100*time.Millisecond)
	if err == nil {
		t.Fatalf("Acquire() error = nil, want lock timeout")
	}
	code, ok := tsqerr.CodeOf(err)
	if !ok || code != tsqerr.CodeLockTimeout {
		t.Fatalf("Acquire() error code = %v (ok=%v), want %s", code, ok, tsqerr.CodeLockTimeout)
	}
}

func TestAcquireReclaimsStaleLockFromDeadProcess(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".lock")

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	stale := payload{Host: host, PID: deadPID(), CreatedAt: time.Now().UTC().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	h, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want stale lock to be reclaimed", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}

func TestAcquireDoesNotReclaimFreshLock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".lock")

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	fresh := payload{Host: host, PID: deadPID(), CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(fresh)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err = Acquire(path, 100*time.Millisecond)
	if err == nil {
		t.Fatalf("Acquire() error = nil, want timeout (lock is fresh, not stale)")
	}
	code, ok := tsqerr.CodeOf(err)
	if !ok || code != tsqerr.CodeLockTimeout {
		t.Fatalf("Acquire() error code = %v (ok=%v), want %s", code, ok, tsqerr.CodeLockTimeout)
	}
}

func TestForceRemoveMissingIsNotError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".lock")
	if err := ForceRemove(path); err != nil {
		t.Fatalf("ForceRemove() on missing file error = %v", err)
	}
}

func TestWithWriteLockRunsFnUnderLock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".lock")
	ran := false
	err := WithWriteLock(path, time.Second, func() error {
		ran = true
		if _, statErr := os.Stat(path); statErr != nil {
			t.Fatalf("lock file missing while fn runs: %v", statErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithWriteLock() error = %v", err)
	}
	if !ran {
		t.Fatalf("fn did not run")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("lock file not released after WithWriteLock()")
	}
}

// deadPID returns a PID very unlikely to correspond to a live process.
func deadPID() int {
	return 1 << 30
}
