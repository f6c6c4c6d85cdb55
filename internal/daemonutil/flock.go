// Package daemonutil provides the process-lifecycle building blocks shared
// by every daemon binary: single-instance flock enforcement, PID file
// bookkeeping, and graceful signal-driven shutdown.
package daemonutil

import "os"

// FileLock holds an exclusive file lock that auto-releases on process
// death, even SIGKILL, because the OS reclaims the lock when the file
// descriptor's owning process exits.
type FileLock struct {
	path string
	file *os.File
}

// LockPath returns the path to the lock file.
func (l *FileLock) LockPath() string {
	return l.path
}
