package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireDBLock_ExclusiveAcrossProcesses(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "dblock_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "fle.db")

	first, err := AcquireDBLock(dbPath)
	if err != nil {
		t.Fatalf("first AcquireDBLock failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := AcquireDBLock(dbPath)
		if err != nil {
			acquired <- err
			return
		}
		acquired <- nil
		second.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second AcquireDBLock should have blocked while first holds the lock")
	case <-time.After(100 * time.Millisecond):
		// expected: still blocked
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second AcquireDBLock failed after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second AcquireDBLock never completed after release")
	}
}

func TestAcquireDBLock_CreatesLockFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "dblock_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "fle.db")
	lock, err := AcquireDBLock(dbPath)
	if err != nil {
		t.Fatalf("AcquireDBLock failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dbPath + ".lock"); os.IsNotExist(err) {
		t.Errorf("lock sidecar file was not created")
	}
}
