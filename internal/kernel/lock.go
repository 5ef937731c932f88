//go:build unix

package kernel

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by AcquireLock when another instance already
// holds the role's lock file.
var ErrAlreadyRunning = fmt.Errorf("kernel: another instance already holds the lock")

// Lock is a held single-instance startup lock. Release drops it.
type Lock struct {
	file *os.File
}

// AcquireLock takes an exclusive, non-blocking advisory lock on path,
// creating it if necessary. Per spec §4.9, a daemon whose role lock is
// already held must abort startup silently; callers distinguish that case
// by checking errors.Is(err, ErrAlreadyRunning).
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock: %w", err)
	}
	return &Lock{file: f}, nil
}

// Release drops the lock and closes the underlying file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	return l.file.Close()
}
