//go:build windows

package lock

import (
	"errors"
	"os"
)

// unixKill0 has no signal-0 equivalent on Windows; fall back to an
// open-by-PID liveness probe.
func unixKill0(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if proc == nil {
		return errors.New("lock: process not found")
	}
	return nil
}
