// Package lock implements the cross-process mutual-exclusion file lock that
// serializes writers against a single tsq repository. Acquisition uses
// exclusive-create rather than advisory flock, which cannot express the
// race-safe rename-reread-confirm-delete reclaim rule needed for stale
// locks left by dead local processes.
package lock

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"time"

	"github.com/misty-step/tsq/internal/tsqerr"
)

const (
	// StaleThreshold is how old a local lock must be, with a dead owning
	// process, before it is eligible for reclamation.
	StaleThreshold = 30 * time.Second

	// DefaultTimeout is the default acquisition deadline, overridable via
	// TSQ_LOCK_TIMEOUT_MS.
	DefaultTimeout = 3000 * time.Millisecond

	backoffMin = 20 * time.Millisecond
	backoffMax = 80 * time.Millisecond
)

// payload is the JSON content of the lock file.
type payload struct {
	Host      string    `json:"host"`
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// Handle is an acquired lock; it must be released exactly once.
type Handle struct {
	path    string
	payload payload
}

// Acquire takes the write lock at path, retrying until timeout elapses.
// timeout <= 0 uses DefaultTimeout.
func Acquire(path string, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	deadline := time.Now().Add(timeout)

	for {
		mine := payload{Host: host, PID: os.Getpid(), CreatedAt: time.Now().UTC()}
		if ok, err := tryCreate(path, mine); err != nil {
			return nil, tsqerr.Wrap(tsqerr.CodeLockAcquireFail, "create lock file", err)
		} else if ok {
			return &Handle{path: path, payload: mine}, nil
		}

		reclaimed, err := tryReclaim(path, host)
		if err != nil {
			return nil, tsqerr.Wrap(tsqerr.CodeLockAcquireFail, "inspect lock file", err)
		}
		if reclaimed {
			continue // retry acquisition immediately
		}

		if time.Now().After(deadline) {
			return nil, tsqerr.New(tsqerr.CodeLockTimeout, "timed out waiting for lock")
		}
		time.Sleep(jitterBackoff())
	}
}

// tryCreate attempts exclusive-create acquisition, writing the payload
// durably on success.
func tryCreate(path string, mine payload) (bool, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = file.Close() }()

	data, err := json.Marshal(mine)
	if err != nil {
		return false, err
	}
	if _, err := file.Write(data); err != nil {
		return false, err
	}
	if err := file.Sync(); err != nil {
		return false, err
	}
	return true, nil
}

// tryReclaim inspects the existing lock file and, if it is local and stale
// with a dead owning process, reclaims it race-safely via
// rename-reread-confirm-delete. Returns true if the lock was removed and the
// caller should retry acquisition immediately.
func tryReclaim(path, localHost string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil // raced with a concurrent release; retry
		}
		return false, err
	}

	var held payload
	if err := json.Unmarshal(data, &held); err != nil {
		return false, nil // unparseable: do not reclaim
	}
	if held.Host != localHost {
		return false, nil // different host: do not reclaim
	}
	if time.Since(held.CreatedAt) <= StaleThreshold {
		return false, nil
	}
	if isProcessAlive(held.PID) {
		return false, nil
	}

	tmp := path + tempSuffix()
	if err := os.Rename(path, tmp); err != nil {
		if os.IsNotExist(err) {
			return true, nil // raced with a concurrent reclaim/release; retry
		}
		return false, err
	}

	reread, err := os.ReadFile(tmp)
	if err != nil {
		// Can't confirm; put it back as best effort and back off.
		_ = os.Rename(tmp, path)
		return false, err
	}
	if !bytes.Equal(reread, data) {
		// Holder refreshed the lock concurrently; restore and back off.
		if renameErr := os.Rename(tmp, path); renameErr != nil && !os.IsNotExist(renameErr) {
			return false, renameErr
		}
		return false, nil
	}

	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}

// Release re-reads the lock file and deletes it only if the payload exactly
// matches the holder recorded at acquisition time. A missing file is not an
// error.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return tsqerr.Wrap(tsqerr.CodeLockReleaseFail, "read lock file", err)
	}

	var held payload
	if err := json.Unmarshal(data, &held); err != nil {
		return nil // already reclaimed by someone else; nothing to do
	}
	if held != h.payload {
		return nil // already reclaimed by someone else; leave it
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return tsqerr.Wrap(tsqerr.CodeLockReleaseFail, "remove lock file", err)
	}
	return nil
}

// ForceRemove deletes the lock file unconditionally. Used only by
// operator-initiated repair (--force-unlock), never by normal acquisition.
func ForceRemove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return tsqerr.Wrap(tsqerr.CodeLockRemoveFail, "force-remove lock file", err)
	}
	return nil
}

// WithWriteLock acquires the lock, runs fn, and releases it. If fn fails and
// release also fails, both errors are surfaced together; if only one fails,
// that one is surfaced alone.
func WithWriteLock(path string, timeout time.Duration, fn func() error) error {
	h, err := Acquire(path, timeout)
	if err != nil {
		return err
	}
	fnErr := fn()
	relErr := h.Release()
	if fnErr != nil && relErr != nil {
		return tsqerr.Newf(tsqerr.CodeInternal, "operation failed: %v; lock release also failed: %v", fnErr, relErr).WithDetails(map[string]any{
			"operation_error": fnErr.Error(),
			"release_error":   relErr.Error(),
		})
	}
	if fnErr != nil {
		return fnErr
	}
	return relErr
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unixKill0(pid) == nil
}

func jitterBackoff() time.Duration {
	span := backoffMax - backoffMin
	return backoffMin + time.Duration(rand.Int63n(int64(span)))
}

func tempSuffix() string {
	return ".reclaim-" + time.Now().UTC().Format("20060102T150405.000000000")
}
