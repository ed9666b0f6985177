//go:build !unix

package single

// Acquire is a no-op where flock is unavailable.
func Acquire(dir string) (*Lock, error) {
	return &Lock{}, nil
}
