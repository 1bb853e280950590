//go:build !windows

package lock

import "syscall"

// unixKill0 sends the null signal to pid to test liveness without affecting
// the target process.
func unixKill0(pid int) error {
	return syscall.Kill(pid, syscall.Signal(0))
}
