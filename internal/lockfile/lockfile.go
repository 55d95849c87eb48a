// Package lockfile provides the single-instance mutex: a pid file created
// exclusively at a well-known path.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrLocked means another run currently holds the lock.
var ErrLocked = errors.New("another instance is already running")

// DefaultStaleAfter is the age past which a leftover lock from a crashed
// run is considered stale and replaced.
const DefaultStaleAfter = 24 * time.Hour

type Lock struct {
	path string
}

// Acquire takes the lock or fails with ErrLocked. A lock file older than
// staleAfter is treated as a crash leftover and replaced.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	if err := tryCreate(path); err == nil {
		return &Lock{path: path}, nil
	} else if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		// Raced with a releasing process; one retry.
		if os.IsNotExist(err) {
			if cerr := tryCreate(path); cerr == nil {
				return &Lock{path: path}, nil
			}
		}
		return nil, ErrLocked
	}
	if time.Since(info.ModTime()) < staleAfter {
		return nil, ErrLocked
	}

	// Stale lock from a crashed run.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale lock %s: %w", path, err)
	}
	if err := tryCreate(path); err != nil {
		return nil, ErrLocked
	}
	return &Lock{path: path}, nil
}

func tryCreate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return err
}

// Release drops the lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
