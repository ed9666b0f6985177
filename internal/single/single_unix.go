//go:build unix

package single

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Acquire takes an exclusive flock on <dir>/setu.lock. The kernel releases
// the lock when the process dies, so a stale lock file never blocks startup.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, "setu.lock")
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if err == unix.EWOULDBLOCK {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Lock{release: func() {
		unix.Flock(fd, unix.LOCK_UN)
		unix.Close(fd)
	}}, nil
}
