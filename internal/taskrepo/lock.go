// Package taskrepo persists Task aggregates under a state directory and
// arbitrates exclusive access to each one via a per-task lock file, per
// spec.md §5: "per-task file lock <task_dir>/.lock acquired at the start
// of run/resume, released at terminal status."
package taskrepo

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/andywolf/taskrunner/internal/taskerr"
)

// lockInfo is the JSON contents of a task's .lock file.
type lockInfo struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// DefaultLockTTL is how long a lock file is honored before it is considered
// stale and reclaimable, regardless of whether its owning process is found.
const DefaultLockTTL = time.Hour

// TaskLock guards a single task's directory against concurrent run/resume.
// A contended lock surfaces as taskerr.TaskBusy, per spec.md §5.
type TaskLock struct {
	path    string
	taskID  string
	lockTTL time.Duration
}

// NewTaskLock builds a TaskLock for path (normally TaskPaths.LockPath()).
func NewTaskLock(path, taskID string) *TaskLock {
	return &TaskLock{path: path, taskID: taskID, lockTTL: DefaultLockTTL}
}

// Acquire takes the lock exclusively, reclaiming it first if the prior
// holder's lock has exceeded lockTTL and its process no longer exists.
func (l *TaskLock) Acquire() error {
	if data, err := os.ReadFile(l.path); err == nil {
		var info lockInfo
		if err := json.Unmarshal(data, &info); err == nil {
			if time.Since(info.AcquiredAt) < l.lockTTL && processExists(info.PID) {
				return taskerr.TaskBusy(l.taskID)
			}
			if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale lock: %w", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading lock file: %w", err)
	}

	hostname, _ := os.Hostname()
	data, err := json.Marshal(lockInfo{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling lock info: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return taskerr.TaskBusy(l.taskID)
		}
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("writing lock file: %w", err)
	}
	return nil
}

// Release drops the lock if this process owns it. Releasing an
// already-released or foreign lock is not an error: the terminal-status
// release path must be idempotent across crash/resume.
func (l *TaskLock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading lock file: %w", err)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("parsing lock info: %w", err)
	}
	if info.PID != os.Getpid() {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

func processExists(pid int) bool {
	if runtime.GOOS == "windows" && pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
