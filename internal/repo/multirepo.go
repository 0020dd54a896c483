package repo

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/andywolf/taskrunner/internal/task"
)

// RepoStatus is the outcome of a status/stash/pop attempt against one
// repository.
type RepoStatus struct {
	Path       string `json:"path"`
	HasChanges bool   `json:"has_changes"`
	StashRef   string `json:"stash_ref,omitempty"`
	Error      string `json:"error,omitempty"`
}

// MultiRepoManager discovers git repositories under a workspace root and
// runs per-repo operations across all of them, tolerating partial failure
// (spec.md §4.5: "stash_all_repos returns a list of per-repo outcomes
// without rolling back successes").
type MultiRepoManager struct {
	MaxDepth    int
	diffService *DiffService
	stashRefs   map[string]string
}

// NewMultiRepoManager builds a manager that scans up to maxDepth
// directories deep for .git folders.
func NewMultiRepoManager(maxDepth int) *MultiRepoManager {
	return &MultiRepoManager{
		MaxDepth:    maxDepth,
		diffService: NewDiffService(),
		stashRefs:   make(map[string]string),
	}
}

// DiscoverRepos scans workspacePath for git repositories: itself first,
// then subdirectories up to MaxDepth deep, skipping hidden directories and
// symlinks, returned in lexicographic order by absolute path.
func (m *MultiRepoManager) DiscoverRepos(workspacePath string) (*task.WorkspaceInfo, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, err
	}

	if isGitRepoDir(abs) {
		return &task.WorkspaceInfo{IsWorkspace: false, Repos: []string{abs}, Root: abs}, nil
	}

	repos := scanForRepos(abs, 0, m.MaxDepth)
	sort.Strings(repos)

	return &task.WorkspaceInfo{
		IsWorkspace: len(repos) != 1 || repos[0] != abs,
		Repos:       repos,
		Root:        abs,
	}, nil
}

func isGitRepoDir(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

func scanForRepos(path string, depth, maxDepth int) []string {
	if depth > maxDepth {
		return nil
	}
	if isGitRepoDir(path) {
		return []string{path}
	}

	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink != 0 {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}

	var repos []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		repos = append(repos, scanForRepos(filepath.Join(path, entry.Name()), depth+1, maxDepth)...)
	}
	return repos
}

// GetStatusAll probes every discovered repo's status concurrently, bounded
// by errgroup, since status reads are independent and side-effect-free.
func (m *MultiRepoManager) GetStatusAll(ctx context.Context, repos []string) ([]RepoStatus, error) {
	statuses := make([]RepoStatus, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, r := range repos {
		i, r := i, r
		g.Go(func() error {
			statuses[i] = m.repoStatus(gctx, r)
			return nil
		})
	}
	_ = g.Wait()

	return statuses, nil
}

func (m *MultiRepoManager) repoStatus(ctx context.Context, repoPath string) RepoStatus {
	output, err := m.diffService.run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return RepoStatus{Path: repoPath, Error: err.Error()}
	}
	return RepoStatus{
		Path:       repoPath,
		HasChanges: strings.TrimSpace(output) != "",
		StashRef:   m.stashRefs[repoPath],
	}
}

// StashAllRepos stashes changes in every repo that has them. Stash/pop run
// serially, never concurrently with each other or with status probing
// (spec.md §5: "stash/pop remain serial"). A repo that errors does not
// prevent other repos from being stashed.
func (m *MultiRepoManager) StashAllRepos(ctx context.Context, repos []string, message string) []RepoStatus {
	results := make([]RepoStatus, 0, len(repos))

	for _, r := range repos {
		status := m.repoStatus(ctx, r)
		if status.Error != "" || !status.HasChanges {
			results = append(results, status)
			continue
		}

		ref, err := m.diffService.StashChanges(ctx, r, message)
		if err != nil {
			results = append(results, RepoStatus{Path: r, Error: err.Error()})
			continue
		}
		if ref != "" {
			m.stashRefs[r] = ref
		}
		results = append(results, RepoStatus{Path: r, HasChanges: false, StashRef: ref})
	}

	return results
}

// PopAllRepos restores the stash previously recorded for each repo that has
// one tracked.
func (m *MultiRepoManager) PopAllRepos(ctx context.Context, repos []string) []RepoStatus {
	var results []RepoStatus

	for _, r := range repos {
		if _, ok := m.stashRefs[r]; !ok {
			continue
		}
		if err := m.diffService.PopStash(ctx, r); err != nil {
			results = append(results, RepoStatus{Path: r, Error: err.Error()})
			continue
		}
		delete(m.stashRefs, r)
		results = append(results, m.repoStatus(ctx, r))
	}

	return results
}

// WorktreeDiffAll fans WorktreeDiff out across every repo and composes a
// MultiRepoDiff. A single repo's failure does not abort the others; its
// per-repo entry is simply omitted and the caller can detect the gap by
// comparing len(result.PerRepo) against len(repos).
func (m *MultiRepoManager) WorktreeDiffAll(ctx context.Context, repos []string) task.MultiRepoDiff {
	perRepo := make(map[string]task.DiffRecord, len(repos))

	for _, r := range repos {
		diff, err := m.diffService.WorktreeDiff(ctx, r)
		if err != nil {
			continue
		}
		perRepo[r] = *diff
	}

	return task.MergeDiffs(perRepo)
}
