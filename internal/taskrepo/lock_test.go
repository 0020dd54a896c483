package taskrepo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/andywolf/taskrunner/internal/taskerr"
)

func TestTaskLock_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	lock := NewTaskLock(path, "task1")

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	// releasing twice is a no-op
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release() error: %v", err)
	}
}

func TestTaskLock_ContendedLockReturnsTaskBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	first := NewTaskLock(path, "task1")
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire() error: %v", err)
	}
	defer first.Release()

	second := NewTaskLock(path, "task1")
	err := second.Acquire()
	if err == nil {
		t.Fatal("second Acquire() should fail while first holds the lock")
	}
	if !taskerr.IsKind(err, taskerr.KindTaskBusy) {
		t.Errorf("error kind should be KindTaskBusy, got %v", err)
	}
}

func TestTaskLock_StaleLockIsReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	lock := NewTaskLock(path, "task1")
	lock.lockTTL = time.Millisecond

	if err := lock.Acquire(); err != nil {
		t.Fatalf("first Acquire() error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	second := NewTaskLock(path, "task1")
	second.lockTTL = time.Millisecond
	if err := second.Acquire(); err != nil {
		t.Fatalf("second Acquire() should reclaim stale lock, got error: %v", err)
	}
}
