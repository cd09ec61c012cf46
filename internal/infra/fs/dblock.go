package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBLock is the cross-process advisory lock on the engine's SQLite path,
// held for the lifetime of one CLI invocation so two processes never run
// an upload batch and a recovery crawl against the same database at once.
// It wraps the platform flock primitives in flock_unix.go/flock_windows.go
// with a dedicated sidecar file (dbPath + ".lock") rather than locking the
// database file itself, so the lock survives independently of whatever the
// sqlite driver does with its own file handles.
type DBLock struct {
	file *os.File
	path string
}

// AcquireDBLock opens (creating if needed) the lock sidecar next to dbPath
// and blocks until an exclusive flock is obtained.
func AcquireDBLock(dbPath string) (*DBLock, error) {
	lockPath := dbPath + ".lock"
	if dir := filepath.Dir(lockPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("db lock: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("db lock: open %s: %w", lockPath, err)
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("db lock: another process holds %s: %w", lockPath, err)
	}
	return &DBLock{file: f, path: lockPath}, nil
}

// Release unlocks and closes the sidecar file. Safe to call once; the
// lock file itself is left in place for the next acquirer.
func (l *DBLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := flockUnlock(l.file); err != nil {
		l.file.Close()
		return fmt.Errorf("db lock: unlock %s: %w", l.path, err)
	}
	return l.file.Close()
}
