package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andywolf/taskrunner/internal/taskerr"
)

// TaskPaths maps a task id and its iteration/check/cache identifiers onto
// the on-disk layout rooted at <state_dir>/tasks/<task_id_hex>/, per
// spec.md §4.4. Every method that takes a caller-supplied component
// (condition id, check id, cache key) rejects path-traversal attempts by
// returning taskerr.InvalidIdentifier.
type TaskPaths struct {
	StateDir string
	TaskID   string // hex form of the task's uuid
}

// NewTaskPaths builds a TaskPaths rooted at stateDir for taskID.
func NewTaskPaths(stateDir, taskID string) TaskPaths {
	return TaskPaths{StateDir: stateDir, TaskID: taskID}
}

// TaskDir is <state_dir>/tasks/<task_id_hex>/.
func (p TaskPaths) TaskDir() string {
	return filepath.Join(p.StateDir, "tasks", p.TaskID)
}

// LockPath is the per-task advisory lock file, acquired at the start of
// run/resume and released at terminal status (spec.md §5).
func (p TaskPaths) LockPath() string {
	return filepath.Join(p.TaskDir(), ".lock")
}

// TimelinePath is the append-only stage-transition log.
func (p TaskPaths) TimelinePath() string {
	return filepath.Join(p.TaskDir(), "timeline.jsonl")
}

// IterationDir is iterations/<NNNN>/, zero-padded to 4 digits.
func (p TaskPaths) IterationDir(iteration int) string {
	return filepath.Join(p.TaskDir(), "iterations", fmt.Sprintf("%04d", iteration))
}

// IterationJSONPath is the atomically-rewritten iteration record.
func (p TaskPaths) IterationJSONPath(iteration int) string {
	return filepath.Join(p.IterationDir(iteration), "iteration.json")
}

// EventsPath is the append-only agent message stream for an iteration.
func (p TaskPaths) EventsPath(iteration int) string {
	return filepath.Join(p.IterationDir(iteration), "agent", "events.jsonl")
}

// TranscriptPath is the human-readable transcript for an iteration.
func (p TaskPaths) TranscriptPath(iteration int) string {
	return filepath.Join(p.IterationDir(iteration), "agent", "transcript.md")
}

// WorktreeDiffPath is the textual diff for an iteration.
func (p TaskPaths) WorktreeDiffPath(iteration int) string {
	return filepath.Join(p.IterationDir(iteration), "diffs", "worktree.diff")
}

// WorktreePatchPath is the patch form of the same diff.
func (p TaskPaths) WorktreePatchPath(iteration int) string {
	return filepath.Join(p.IterationDir(iteration), "diffs", "worktree.patch")
}

// CheckDir is iterations/<NNNN>/checks/<condition_id_hex>/. conditionID
// must not contain path separators or "..".
func (p TaskPaths) CheckDir(iteration int, conditionID string) (string, error) {
	safe, err := safeComponent("condition id", conditionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.IterationDir(iteration), "checks", safe), nil
}

// CheckResultPath is one <ts>.json check artifact. ts must already be in
// the YYYYMMDDTHHMMSSffffff UTC format (see FormatCheckTimestamp).
func (p TaskPaths) CheckResultPath(iteration int, conditionID, ts string) (string, error) {
	dir, err := p.CheckDir(iteration, conditionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ts+".json"), nil
}

// CheckLogPath is the sibling <ts>.log artifact.
func (p TaskPaths) CheckLogPath(iteration int, conditionID, ts string) (string, error) {
	dir, err := p.CheckDir(iteration, conditionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ts+".log"), nil
}

// CheckLastPath is the index pointing at the lexicographically largest
// <ts> pair for a condition.
func (p TaskPaths) CheckLastPath(iteration int, conditionID string) (string, error) {
	dir, err := p.CheckDir(iteration, conditionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "last.json"), nil
}

// InventoryBaselineDir is inventory/baseline/<check_id_hex>/.
func (p TaskPaths) InventoryBaselineDir(checkID string) (string, error) {
	safe, err := safeComponent("check id", checkID)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.TaskDir(), "inventory", "baseline", safe), nil
}

// CachePath is cache/<safe_key>.json — per-task, never shared across tasks.
func (p TaskPaths) CachePath(key string) (string, error) {
	safe, err := safeComponent("cache key", key)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.TaskDir(), "cache", safe+".json"), nil
}

// FinalDir is final/.
func (p TaskPaths) FinalDir() string {
	return filepath.Join(p.TaskDir(), "final")
}

// FinalResultPath is final/final_result.json.
func (p TaskPaths) FinalResultPath() string {
	return filepath.Join(p.FinalDir(), "final_result.json")
}

// FinalDiffPath is final/final.diff.
func (p TaskPaths) FinalDiffPath() string {
	return filepath.Join(p.FinalDir(), "final.diff")
}

// FinalPatchPath is final/final.patch.
func (p TaskPaths) FinalPatchPath() string {
	return filepath.Join(p.FinalDir(), "final.patch")
}

// safeComponent rejects any caller-supplied path component containing a
// path separator or a ".." traversal segment, per spec.md §4.4's path
// safety contract.
func safeComponent(field, value string) (string, error) {
	if value == "" || strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return "", taskerr.InvalidIdentifier(field, value)
	}
	return value, nil
}
