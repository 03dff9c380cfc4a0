package report

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// defaultLockTimeout is the timeout for acquiring the report file lock.
const defaultLockTimeout = 5 * time.Second

// withLock acquires an exclusive lock on path.lock, runs fn, then releases.
func withLock(path string, timeout time.Duration, fn func() error) error {
	lockPath := path + ".lock"
	fileLock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring lock on %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("timed out acquiring lock on %s", lockPath)
	}
	defer fileLock.Unlock()

	return fn()
}
