package invoke

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"curator/internal/config"
)

// ErrAlreadyRunning reports that another curator invocation holds the lock.
var ErrAlreadyRunning = errors.New("another curator invocation is already running")

// Lock serializes mutation runs so only one invocation touches the library
// and catalog at a time.
type Lock struct {
	path string
	lock *flock.Flock
}

// NewLock creates the invocation lock under the configured log directory.
func NewLock(cfg *config.Config) *Lock {
	path := filepath.Join(cfg.Paths.LogDir, "curator.lock")
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. It returns ErrAlreadyRunning when
// another invocation holds it.
func (l *Lock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire invocation lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}
