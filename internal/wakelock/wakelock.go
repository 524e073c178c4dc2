// Package wakelock provides the suspend-blocking resource lock held by a
// live session. The lock is acquired when a session starts binding and
// released once the remote service confirms it is running, the session is
// torn down, or a safety timeout expires - whichever comes first.
//
// Release is idempotent: the controller releases defensively from several
// code paths, and only the first release has any effect.
package wakelock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/reverielabs/reverie/internal/logging"
)

// Lock is a suspend-blocking lock owned by exactly one session.
type Lock interface {
	// Acquire takes the lock. It is called once, from the control goroutine,
	// when the session starts binding.
	Acquire() error

	// Release frees the lock. Safe to call from any code path and any
	// number of times; calls after the first are no-ops.
	Release() error
}

// Factory creates locks bound to session tokens. The controller is handed a
// Factory so lock placement is a caller decision, not a controller one.
type Factory interface {
	New(token string) Lock
}

// Record is the JSON payload written to a lock file. It identifies the
// session and the supervisor process that wrote it.
type Record struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// OwnerAlive reports whether the process recorded in the lock file still
// exists.
func (r Record) OwnerAlive() bool {
	return isProcessAlive(r.PID)
}

// FileLock is a file-backed Lock. Acquiring writes a JSON lock file named
// after the session token; releasing removes it. A crashed supervisor
// leaves a stale file behind, which Acquire detects via the recorded PID
// and cleans up.
type FileLock struct {
	Record

	path   string
	logger *logging.Logger

	mu   sync.Mutex
	held bool
}

// FileFactory creates FileLocks under a fixed directory.
type FileFactory struct {
	Dir    string
	Logger *logging.Logger
}

// New returns a FileLock for the given session token. The lock is not yet
// acquired.
func (f *FileFactory) New(token string) Lock {
	return &FileLock{
		Record: Record{Token: token},
		path:   filepath.Join(f.Dir, token+".lock"),
		logger: f.Logger,
	}
}

// Acquire writes the lock file. An existing file owned by a live process is
// an error; a stale file (dead owner) is removed first.
func (l *FileLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return fmt.Errorf("lock %s already held", l.Token)
	}

	if existing, err := readLockFile(l.path); err == nil {
		if isProcessAlive(existing.PID) {
			return fmt.Errorf("lock %s held by PID %d on %s", l.Token, existing.PID, existing.Hostname)
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
		if l.logger != nil {
			l.logger.Warn("stale wake lock cleaned",
				"token", l.Token,
				"old_pid", existing.PID)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	l.PID = os.Getpid()
	l.Hostname = hostname
	l.AcquiredAt = time.Now()

	data, err := json.MarshalIndent(l.Record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	// O_EXCL protects against a concurrent acquirer winning the race.
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", err)
	}

	l.held = true
	if l.logger != nil {
		l.logger.Debug("wake lock acquired", "token", l.Token)
	}
	return nil
}

// Release removes the lock file. Calls beyond the first are no-ops, as are
// calls on a lock that was never acquired.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}
	l.held = false

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	if l.logger != nil {
		l.logger.Debug("wake lock released", "token", l.Token)
	}
	return nil
}

// Held reports whether the lock is currently held by this process.
func (l *FileLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// readLockFile reads a lock file and returns the recorded lock info.
func readLockFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return rec, nil
}

// CleanStale removes lock files in dir whose owning processes are gone.
// Returns the number of locks cleaned.
func CleanStale(dir string, logger *logging.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cleaned := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lock" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := readLockFile(path)
		if err != nil {
			continue
		}
		if isProcessAlive(rec.PID) {
			continue
		}
		if err := os.Remove(path); err != nil {
			continue
		}
		cleaned++
		if logger != nil {
			logger.Warn("stale wake lock cleaned",
				"token", rec.Token,
				"old_pid", rec.PID)
		}
	}
	return cleaned, nil
}

// List returns the lock records present in dir, whether or not their
// owners are still alive. Used for diagnostics; missing dirs are empty.
func List(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lock" {
			continue
		}
		rec, err := readLockFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// On Unix, sending signal 0 checks if process exists without affecting it
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}
