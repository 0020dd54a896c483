package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andywolf/taskrunner/internal/security"
	"github.com/andywolf/taskrunner/internal/task"
)

// EvidenceStore persists check and baseline-inventory results as
// <ts>.json/<ts>.log pairs, plus the per-cache and per-task-scoped cache
// entries described in spec.md §4.4. The <ts> component is always
// FormatCheckTimestamp(now), so lexicographic filename order is
// chronological order.
type EvidenceStore struct {
	paths    TaskPaths
	now      func() time.Time
	scrubber *security.Scrubber
}

// NewEvidenceStore builds an EvidenceStore rooted at paths.TaskDir(). now
// defaults to time.Now and is overridable for deterministic tests. Every
// check log a Condition's command prints is scrubbed of anything that
// looks like an API key, token, or credential before it touches disk —
// a Blocking condition's command is operator-authored shell, and its
// stdout/stderr is exactly the kind of untrusted external text that can
// carry a secret straight into long-lived evidence.
func NewEvidenceStore(paths TaskPaths, now func() time.Time) *EvidenceStore {
	if now == nil {
		now = time.Now
	}
	return &EvidenceStore{paths: paths, now: now, scrubber: security.NewScrubber()}
}

// lastIndex is the shape of checks/<condition_id>/last.json and
// inventory/baseline/<check_id>/last.json: a pointer at the
// lexicographically largest <ts> pair written so far.
type lastIndex struct {
	Timestamp string `json:"timestamp"`
	JSONPath  string `json:"json_path"`
	LogPath   string `json:"log_path"`
}

// RecordCheckResult writes iterations/<NNNN>/checks/<condition_id>/<ts>.json
// and the sibling .log, then atomically rewrites last.json to point at them.
// result.Timestamp is set to the ts used for this write.
func (s *EvidenceStore) RecordCheckResult(iteration int, result *task.CheckResult, log string) error {
	conditionID := result.ConditionID.String()
	dir, err := s.paths.CheckDir(iteration, conditionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create check dir: %w", err)
	}

	ts := FormatCheckTimestamp(s.now())
	result.Timestamp = ts

	jsonPath, err := s.paths.CheckResultPath(iteration, conditionID, ts)
	if err != nil {
		return err
	}
	logPath, err := s.paths.CheckLogPath(iteration, conditionID, ts)
	if err != nil {
		return err
	}

	if err := WriteJSONAtomic(jsonPath, result); err != nil {
		return err
	}
	if err := WriteFileAtomic(logPath, []byte(s.scrubber.Scrub(log)), 0o644); err != nil {
		return err
	}

	lastPath, err := s.paths.CheckLastPath(iteration, conditionID)
	if err != nil {
		return err
	}
	return WriteJSONAtomic(lastPath, lastIndex{
		Timestamp: ts,
		JSONPath:  filepath.Base(jsonPath),
		LogPath:   filepath.Base(logPath),
	})
}

// RecordBaselineInventory writes inventory/baseline/<check_id>/<ts>.json
// and .log, and rewrites that condition's last.json.
func (s *EvidenceStore) RecordBaselineInventory(checkID string, result interface{}, log string) error {
	dir, err := s.paths.InventoryBaselineDir(checkID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}

	ts := FormatCheckTimestamp(s.now())
	jsonPath := filepath.Join(dir, ts+".json")
	logPath := filepath.Join(dir, ts+".log")

	if err := WriteJSONAtomic(jsonPath, result); err != nil {
		return err
	}
	if err := WriteFileAtomic(logPath, []byte(log), 0o644); err != nil {
		return err
	}

	return WriteJSONAtomic(filepath.Join(dir, "last.json"), lastIndex{
		Timestamp: ts,
		JSONPath:  filepath.Base(jsonPath),
		LogPath:   filepath.Base(logPath),
	})
}

// WriteCache atomically writes cache/<key>.json, scoped to this task only —
// EvidenceStore never shares cache entries across tasks.
func (s *EvidenceStore) WriteCache(key string, v interface{}) error {
	path, err := s.paths.CachePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return WriteJSONAtomic(path, v)
}

// CachePath exposes the resolved path for a cache key, for callers that
// need to check existence or read directly.
func (s *EvidenceStore) CachePath(key string) (string, error) {
	return s.paths.CachePath(key)
}
