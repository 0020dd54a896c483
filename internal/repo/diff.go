// Package repo wraps the local git CLI to give the orchestrator per-repo
// diff/stash primitives and multi-repo workspace discovery, per spec.md
// §4.5. Every mutating and read operation shells out to the git binary
// resolved from PATH; there is no libgit2/go-git dependency because the
// corpus's git wrapper (quorum-ai's internal/adapters/git) is itself a CLI
// wrapper and spec.md names no richer contract than what the CLI exposes.
package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andywolf/taskrunner/internal/task"
)

// DiffService runs git diff/stash operations scoped to a single repository
// directory, per spec.md §4.5's per-repo operation list.
type DiffService struct {
	Timeout time.Duration
}

// NewDiffService builds a DiffService with a sensible per-command timeout.
func NewDiffService() *DiffService {
	return &DiffService{Timeout: 30 * time.Second}
}

// IsRepo reports whether repoPath is the root of a git repository.
func (s *DiffService) IsRepo(ctx context.Context, repoPath string) bool {
	_, err := s.run(ctx, repoPath, "rev-parse", "--git-dir")
	return err == nil
}

// HasHead reports whether repoPath's repository has at least one commit.
func (s *DiffService) HasHead(ctx context.Context, repoPath string) bool {
	_, err := s.run(ctx, repoPath, "rev-parse", "HEAD")
	return err == nil
}

// WorktreeDiff returns the combined unstaged+staged diff against HEAD,
// scoped to repoPath with "-- .". For a repository with no HEAD yet, it
// renders every untracked file as new, per spec.md §4.5's empty-repo edge
// case. A non-repo path returns a zero DiffResult, not an error.
func (s *DiffService) WorktreeDiff(ctx context.Context, repoPath string) (*task.DiffRecord, error) {
	if !s.IsRepo(ctx, repoPath) {
		return &task.DiffRecord{FilesChanged: []string{}}, nil
	}

	if !s.HasHead(ctx, repoPath) {
		return s.emptyRepoDiff(ctx, repoPath)
	}

	diff, err := s.run(ctx, repoPath, "diff", "HEAD", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("worktree diff: %w", err)
	}
	patch, err := s.run(ctx, repoPath, "diff", "HEAD", "--patch", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("worktree patch: %w", err)
	}
	stat, err := s.run(ctx, repoPath, "diff", "HEAD", "--stat", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("worktree stat: %w", err)
	}
	names, err := s.run(ctx, repoPath, "diff", "HEAD", "--name-only", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("worktree names: %w", err)
	}

	return &task.DiffRecord{
		Diff:         diff,
		Patch:        patch,
		FilesChanged: splitNonEmpty(names),
		Insertions:   parseCount(stat, insertionPattern),
		Deletions:    parseCount(stat, deletionPattern),
	}, nil
}

// StagedDiff returns the diff of staged changes only, scoped with "-- .".
func (s *DiffService) StagedDiff(ctx context.Context, repoPath string) (*task.DiffRecord, error) {
	if !s.IsRepo(ctx, repoPath) {
		return &task.DiffRecord{FilesChanged: []string{}}, nil
	}

	diff, err := s.run(ctx, repoPath, "diff", "--cached", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("staged diff: %w", err)
	}
	patch, err := s.run(ctx, repoPath, "diff", "--cached", "--patch", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("staged patch: %w", err)
	}
	stat, err := s.run(ctx, repoPath, "diff", "--cached", "--stat", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("staged stat: %w", err)
	}
	names, err := s.run(ctx, repoPath, "diff", "--cached", "--name-only", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("staged names: %w", err)
	}

	return &task.DiffRecord{
		Diff:         diff,
		Patch:        patch,
		FilesChanged: splitNonEmpty(names),
		Insertions:   parseCount(stat, insertionPattern),
		Deletions:    parseCount(stat, deletionPattern),
	}, nil
}

func (s *DiffService) emptyRepoDiff(ctx context.Context, repoPath string) (*task.DiffRecord, error) {
	untracked, err := s.run(ctx, repoPath, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("listing untracked files: %w", err)
	}
	files := splitNonEmpty(untracked)
	return &task.DiffRecord{
		Diff:         fmt.Sprintf("# New repository - %d untracked files", len(files)),
		FilesChanged: files,
	}, nil
}

// StashChanges stashes all current changes, including untracked files, and
// returns an opaque handle identifying the stash entry.
func (s *DiffService) StashChanges(ctx context.Context, repoPath, message string) (string, error) {
	output, err := s.run(ctx, repoPath, "stash", "push", "-u", "-m", message)
	if err != nil {
		return "", fmt.Errorf("stash changes: %w", err)
	}
	if strings.Contains(output, "No local changes to save") {
		return "", nil
	}
	return "stash@{0}", nil
}

// PopStash restores the most recent stash entry and removes it.
func (s *DiffService) PopStash(ctx context.Context, repoPath string) error {
	_, err := s.run(ctx, repoPath, "stash", "pop")
	if err != nil {
		return fmt.Errorf("pop stash: %w", err)
	}
	return nil
}

func (s *DiffService) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s timed out", strings.Join(args, " "))
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), stderr.String(), err)
	}
	return stdout.String(), nil
}

var (
	insertionPattern = regexp.MustCompile(`(\d+) insertion`)
	deletionPattern  = regexp.MustCompile(`(\d+) deletion`)
)

func parseCount(stat string, pattern *regexp.Regexp) int {
	m := pattern.FindStringSubmatch(stat)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func splitNonEmpty(s string) []string {
	out := make([]string, 0)
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
