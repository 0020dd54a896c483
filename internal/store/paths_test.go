package store

import (
	"strings"
	"testing"

	"github.com/andywolf/taskrunner/internal/taskerr"
)

func TestTaskPaths_Layout(t *testing.T) {
	p := NewTaskPaths("/state", "abc123")

	if got, want := p.TaskDir(), "/state/tasks/abc123"; got != want {
		t.Errorf("TaskDir() = %q, want %q", got, want)
	}
	if got, want := p.LockPath(), "/state/tasks/abc123/.lock"; got != want {
		t.Errorf("LockPath() = %q, want %q", got, want)
	}
	if got, want := p.IterationDir(3), "/state/tasks/abc123/iterations/0003"; got != want {
		t.Errorf("IterationDir(3) = %q, want %q", got, want)
	}
	if got, want := p.EventsPath(1), "/state/tasks/abc123/iterations/0001/agent/events.jsonl"; got != want {
		t.Errorf("EventsPath(1) = %q, want %q", got, want)
	}
	if got, want := p.WorktreeDiffPath(1), "/state/tasks/abc123/iterations/0001/diffs/worktree.diff"; got != want {
		t.Errorf("WorktreeDiffPath(1) = %q, want %q", got, want)
	}
	if got, want := p.FinalResultPath(), "/state/tasks/abc123/final/final_result.json"; got != want {
		t.Errorf("FinalResultPath() = %q, want %q", got, want)
	}
}

func TestTaskPaths_CheckPaths(t *testing.T) {
	p := NewTaskPaths("/state", "abc123")

	dir, err := p.CheckDir(2, "cond-1")
	if err != nil {
		t.Fatalf("CheckDir() error: %v", err)
	}
	if want := "/state/tasks/abc123/iterations/0002/checks/cond-1"; dir != want {
		t.Errorf("CheckDir() = %q, want %q", dir, want)
	}

	result, err := p.CheckResultPath(2, "cond-1", "20260101T000000000000")
	if err != nil {
		t.Fatalf("CheckResultPath() error: %v", err)
	}
	if !strings.HasSuffix(result, "20260101T000000000000.json") {
		t.Errorf("CheckResultPath() = %q, want suffix .json", result)
	}

	last, err := p.CheckLastPath(2, "cond-1")
	if err != nil {
		t.Fatalf("CheckLastPath() error: %v", err)
	}
	if !strings.HasSuffix(last, "last.json") {
		t.Errorf("CheckLastPath() = %q, want suffix last.json", last)
	}
}

func TestTaskPaths_RejectsPathTraversal(t *testing.T) {
	p := NewTaskPaths("/state", "abc123")

	cases := []string{"../escape", "a/b", `a\b`, "..", ""}
	for _, c := range cases {
		if _, err := p.CheckDir(1, c); err == nil {
			t.Errorf("CheckDir(%q) should reject unsafe component", c)
		} else if !taskerr.IsKind(err, taskerr.KindInvalidIdentifier) {
			t.Errorf("CheckDir(%q) error kind should be KindInvalidIdentifier, got %v", c, err)
		}

		if _, err := p.CachePath(c); err == nil {
			t.Errorf("CachePath(%q) should reject unsafe component", c)
		}

		if _, err := p.InventoryBaselineDir(c); err == nil {
			t.Errorf("InventoryBaselineDir(%q) should reject unsafe component", c)
		}
	}
}

func TestTaskPaths_CachePath(t *testing.T) {
	p := NewTaskPaths("/state", "abc123")

	path, err := p.CachePath("analysis-v1")
	if err != nil {
		t.Fatalf("CachePath() error: %v", err)
	}
	if want := "/state/tasks/abc123/cache/analysis-v1.json"; path != want {
		t.Errorf("CachePath() = %q, want %q", path, want)
	}
}
