package wakelock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	factory := &FileFactory{Dir: dir}

	lock := factory.New("tok-1").(*FileLock)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !lock.Held() {
		t.Error("Held() = false after Acquire")
	}

	lockPath := filepath.Join(dir, "tok-1.lock")
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("expected lock file: %v", err)
	}
	var onDisk Record
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("lock file is not valid JSON: %v", err)
	}
	if onDisk.Token != "tok-1" {
		t.Errorf("token = %q, want %q", onDisk.Token, "tok-1")
	}
	if onDisk.PID != os.Getpid() {
		t.Errorf("pid = %d, want %d", onDisk.PID, os.Getpid())
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if lock.Held() {
		t.Error("Held() = true after Release")
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file still exists after Release")
	}
}

func TestFileLock_ReleaseIdempotent(t *testing.T) {
	factory := &FileFactory{Dir: t.TempDir()}
	lock := factory.New("tok-2").(*FileLock)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := lock.Release(); err != nil {
			t.Errorf("Release() call %d error = %v", i+1, err)
		}
	}
}

func TestFileLock_ReleaseWithoutAcquire(t *testing.T) {
	factory := &FileFactory{Dir: t.TempDir()}
	lock := factory.New("tok-3")

	if err := lock.Release(); err != nil {
		t.Errorf("Release() on unacquired lock error = %v", err)
	}
}

func TestFileLock_AcquireTwiceFails(t *testing.T) {
	factory := &FileFactory{Dir: t.TempDir()}
	lock := factory.New("tok-4").(*FileLock)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := lock.Acquire(); err == nil {
		t.Error("second Acquire() should fail while held")
	}
}

func TestFileLock_HeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	factory := &FileFactory{Dir: dir}

	first := factory.New("tok-5")
	if err := first.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// A second lock for the same token sees a live owner (this process).
	second := factory.New("tok-5")
	if err := second.Acquire(); err == nil {
		t.Error("Acquire() should fail while a live process holds the lock")
	}
}

func TestFileLock_StaleLockCleaned(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "tok-6.lock")

	// Fabricate a lock owned by a PID that cannot be alive.
	stale := Record{Token: "tok-6", PID: 1 << 30, Hostname: "gone"}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	factory := &FileFactory{Dir: dir}
	lock := factory.New("tok-6")
	if err := lock.Acquire(); err != nil {
		t.Errorf("Acquire() should clean the stale lock, got error = %v", err)
	}
}

func TestCleanStale(t *testing.T) {
	dir := t.TempDir()

	stale := Record{Token: "dead", PID: 1 << 30}
	data, _ := json.Marshal(stale)
	if err := os.WriteFile(filepath.Join(dir, "dead.lock"), data, 0644); err != nil {
		t.Fatal(err)
	}

	factory := &FileFactory{Dir: dir}
	live := factory.New("live")
	if err := live.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	cleaned, err := CleanStale(dir, nil)
	if err != nil {
		t.Fatalf("CleanStale() error = %v", err)
	}
	if cleaned != 1 {
		t.Errorf("cleaned = %d, want 1", cleaned)
	}
	if _, err := os.Stat(filepath.Join(dir, "live.lock")); err != nil {
		t.Error("live lock should not have been cleaned")
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	stale := Record{Token: "dead", PID: 1 << 30}
	data, _ := json.Marshal(stale)
	if err := os.WriteFile(filepath.Join(dir, "dead.lock"), data, 0644); err != nil {
		t.Fatal(err)
	}

	factory := &FileFactory{Dir: dir}
	if err := factory.New("live").Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	records, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}

	byToken := make(map[string]Record)
	for _, rec := range records {
		byToken[rec.Token] = rec
	}
	if rec, ok := byToken["live"]; !ok || !rec.OwnerAlive() {
		t.Error("live lock should report a live owner")
	}
	if rec, ok := byToken["dead"]; !ok || rec.OwnerAlive() {
		t.Error("dead lock should report a dead owner")
	}
}

func TestList_MissingDir(t *testing.T) {
	records, err := List(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Errorf("List() on missing dir error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List() = %d records, want 0", len(records))
	}
}

func TestCleanStale_MissingDir(t *testing.T) {
	cleaned, err := CleanStale(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Errorf("CleanStale() on missing dir error = %v", err)
	}
	if cleaned != 0 {
		t.Errorf("cleaned = %d, want 0", cleaned)
	}
}
