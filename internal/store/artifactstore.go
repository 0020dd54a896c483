package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andywolf/taskrunner/internal/agent/event"
	"github.com/andywolf/taskrunner/internal/task"
)

// ArtifactStore persists the per-iteration record of one task run: the
// iteration summary, the raw agent message stream, a human transcript, and
// the worktree diff, all under iterations/<NNNN>/ (spec.md §4.4).
type ArtifactStore struct {
	paths TaskPaths
}

// NewArtifactStore builds an ArtifactStore rooted at paths.TaskDir().
func NewArtifactStore(paths TaskPaths) *ArtifactStore {
	return &ArtifactStore{paths: paths}
}

// AppendTimelineEvent appends one record to timeline.jsonl, creating the
// task directory if this is the first write for the task.
func (s *ArtifactStore) AppendTimelineEvent(v interface{}) error {
	if err := os.MkdirAll(s.paths.TaskDir(), 0o755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}
	return AppendJSONLine(s.paths.TimelinePath(), v)
}

// SaveIteration atomically rewrites iteration.json for it.Number.
func (s *ArtifactStore) SaveIteration(it *task.Iteration) error {
	dir := s.paths.IterationDir(it.Number)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create iteration dir: %w", err)
	}
	return WriteJSONAtomic(s.paths.IterationJSONPath(it.Number), it)
}

// AppendEvent appends one agent event to iterations/<NNNN>/agent/events.jsonl.
func (s *ArtifactStore) AppendEvent(iteration int, evt *event.AgentEvent) error {
	dir := filepath.Dir(s.paths.EventsPath(iteration))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	return AppendJSONLine(s.paths.EventsPath(iteration), evt)
}

// WriteTranscript atomically writes the human-readable transcript for an
// iteration, overwriting any prior content.
func (s *ArtifactStore) WriteTranscript(iteration int, markdown string) error {
	dir := filepath.Dir(s.paths.TranscriptPath(iteration))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	return WriteFileAtomic(s.paths.TranscriptPath(iteration), []byte(markdown), 0o644)
}

// WriteWorktreeDiff atomically writes both the diff and patch renderings of
// an iteration's worktree changes.
func (s *ArtifactStore) WriteWorktreeDiff(iteration int, diff, patch string) error {
	dir := filepath.Dir(s.paths.WorktreeDiffPath(iteration))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create diffs dir: %w", err)
	}
	if err := WriteFileAtomic(s.paths.WorktreeDiffPath(iteration), []byte(diff), 0o644); err != nil {
		return err
	}
	return WriteFileAtomic(s.paths.WorktreePatchPath(iteration), []byte(patch), 0o644)
}

// WriteFinalResult atomically writes final/final_result.json and the
// matching diff/patch renderings, marking a task's terminal delivery.
func (s *ArtifactStore) WriteFinalResult(result interface{}, diff, patch string) error {
	if err := os.MkdirAll(s.paths.FinalDir(), 0o755); err != nil {
		return fmt.Errorf("create final dir: %w", err)
	}
	if err := WriteJSONAtomic(s.paths.FinalResultPath(), result); err != nil {
		return err
	}
	if err := WriteFileAtomic(s.paths.FinalDiffPath(), []byte(diff), 0o644); err != nil {
		return err
	}
	return WriteFileAtomic(s.paths.FinalPatchPath(), []byte(patch), 0o644)
}
