// Package lock implements the process-level advisory file lock that
// guards a database path against concurrent access from other processes.
// It is independent of, and sits below, any in-process reader-writer
// lock over the value tree: this package protects cross-process
// concurrency, not intra-process.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mode selects how a handle participates in cross-process locking.
type Mode int

const (
	Exclusive Mode = iota
	Shared
	None
)

func ModeFromString(s string) Mode {
	switch strings.ToLower(s) {
	case "exclusive":
		return Exclusive
	case "shared":
		return Shared
	default:
		return None
	}
}

// ProcessLock is a held exclusive lock on a database path's sidecar lock
// file. Call Release when the handle closes.
type ProcessLock struct {
	file *os.File
	path string
}

// Acquire opens (creating if absent) "<dbPath>.process_lock" and takes a
// non-blocking exclusive flock on it. If the lock is already held, it
// checks whether the holding PID is still alive; a dead or unparsable PID
// is treated as stale, the lock file is removed, and acquisition is
// retried once.
func Acquire(dbPath string) (*ProcessLock, error) {
	lockPath := dbPath + ".process_lock"

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &jsonerr.IOError{Op: "open lock file", Err: err}
	}

	ok, err := tryLockExclusive(file)
	if err != nil {
		file.Close()
		return nil, &jsonerr.IOError{Op: "flock", Err: err}
	}

	if !ok {
		stale, err := isStaleLock(lockPath)
		if err != nil {
			file.Close()
			return nil, &jsonerr.IOError{Op: "read lock file", Err: err}
		}
		if !stale {
			file.Close()
			return nil, &jsonerr.AlreadyLockedError{Path: dbPath}
		}

		file.Close()
		os.Remove(lockPath)

		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
		if err != nil {
			return nil, &jsonerr.IOError{Op: "reopen lock file", Err: err}
		}

		ok, err = tryLockExclusive(file)
		if err != nil {
			file.Close()
			return nil, &jsonerr.IOError{Op: "flock", Err: err}
		}
		if !ok {
			file.Close()
			return nil, &jsonerr.AlreadyLockedError{Path: dbPath}
		}
	}

	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, &jsonerr.IOError{Op: "truncate lock file", Err: err}
	}
	if _, err := file.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0); err != nil {
		file.Close()
		return nil, &jsonerr.IOError{Op: "write pid", Err: err}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, &jsonerr.IOError{Op: "sync lock file", Err: err}
	}

	return &ProcessLock{file: file, path: lockPath}, nil
}

// Release unlocks and removes the lock file.
func (l *ProcessLock) Release() error {
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if err := l.file.Close(); err != nil {
		return &jsonerr.IOError{Op: "close lock file", Err: err}
	}
	os.Remove(l.path)
	return nil
}

// IsLocked reports whether dbPath is currently held by a live exclusive
// holder, without itself acquiring the lock. Used for Shared-mode opens.
func IsLocked(dbPath string) (bool, error) {
	lockPath := dbPath + ".process_lock"

	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false, nil
	}

	stale, err := isStaleLock(lockPath)
	if err != nil {
		return false, &jsonerr.IOError{Op: "read lock file", Err: err}
	}
	if stale {
		os.Remove(lockPath)
		return false, nil
	}

	file, err := os.OpenFile(lockPath, os.O_WRONLY, 0o644)
	if err != nil {
		return false, &jsonerr.IOError{Op: "open lock file", Err: err}
	}
	defer file.Close()

	ok, err := tryLockExclusive(file)
	if err != nil {
		return false, &jsonerr.IOError{Op: "flock", Err: err}
	}
	if ok {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		return false, nil
	}
	return true, nil
}

func isStaleLock(lockPath string) (bool, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true, nil // unparsable PID text: treat as stale
	}

	// Signal 0 probes for process existence without sending a real signal.
	if err := unix.Kill(pid, 0); err != nil {
		return true, nil
	}
	return false, nil
}

func tryLockExclusive(file *os.File) (bool, error) {
	err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if err == unix.EWOULDBLOCK {
		return false, nil
	}
	return false, err
}
