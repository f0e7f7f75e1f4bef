// Package pathguard provides the advisory "operation in progress" guard held
// while a destination path is written. A lease excludes other writers in this
// process through an in-memory set and other processes through a flock on
// "<path>.lock".
package pathguard

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrBusy reports a destination already held by another operation.
var ErrBusy = errors.New("operation already in progress for path")

var (
	mu   sync.Mutex
	held = map[string]struct{}{}
)

// Lease is a held guard. Release it when the write finishes.
type Lease struct {
	path     string
	lock     *flock.Flock
	once     sync.Once
	released error
}

// Acquire takes the guard for path or fails with ErrBusy.
func Acquire(path string) (*Lease, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	mu.Lock()
	if _, busy := held[abs]; busy {
		mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, abs)
	}
	held[abs] = struct{}{}
	mu.Unlock()

	lock := flock.New(abs + ".lock")
	ok, err := lock.TryLock()
	if err != nil || !ok {
		forget(abs)
		if err != nil {
			return nil, fmt.Errorf("acquire lock for %s: %w", abs, err)
		}
		return nil, fmt.Errorf("%w: %s (held by another process)", ErrBusy, abs)
	}
	return &Lease{path: abs, lock: lock}, nil
}

// Path returns the guarded absolute path.
func (l *Lease) Path() string { return l.path }

// Release unlocks the guard. The lock file stays on disk: removing it would
// let a process holding the old inode and one creating a new file both
// believe they own the path. It is safe to call more than once.
func (l *Lease) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.released = l.lock.Unlock()
		forget(l.path)
	})
	return l.released
}

func forget(path string) {
	mu.Lock()
	delete(held, path)
	mu.Unlock()
}
