// Package single enforces that only one process instance runs per data
// directory.
package single

import "errors"

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Lock represents a held instance lock. Release it on shutdown; the lock is
// also dropped automatically when the process exits.
type Lock struct {
	release func()
}

func (l *Lock) Release() {
	if l != nil && l.release != nil {
		l.release()
		l.release = nil
	}
}
