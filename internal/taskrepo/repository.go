package taskrepo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/andywolf/taskrunner/internal/store"
	"github.com/andywolf/taskrunner/internal/task"
	"github.com/andywolf/taskrunner/internal/taskerr"
	"github.com/google/uuid"
)

const taskRecordFilename = "task.json"

// TaskRepository is the persistent map from task id to Task aggregate
// (spec.md §4's "TaskRepository.load(id) / save(task) / list()"). Each
// task's record lives at <state_dir>/tasks/<task_id_hex>/task.json,
// written through store.WriteJSONAtomic. A per-id in-process mutex guards
// concurrent goroutines in this runner instance; the file lock in lock.go
// guards concurrent processes, per spec.md §5.
type TaskRepository struct {
	stateDir string

	mu       sync.Mutex
	inFlight map[uuid.UUID]*sync.Mutex
}

// NewTaskRepository builds a TaskRepository rooted at stateDir.
func NewTaskRepository(stateDir string) *TaskRepository {
	return &TaskRepository{
		stateDir: stateDir,
		inFlight: make(map[uuid.UUID]*sync.Mutex),
	}
}

// taskMutex returns the in-process mutex for id, creating it on first use.
func (r *TaskRepository) taskMutex(id uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.inFlight[id]
	if !ok {
		m = &sync.Mutex{}
		r.inFlight[id] = m
	}
	return m
}

// Lock acquires this task's in-process mutex. Callers also take the
// cross-process file lock (lock.go's TaskLock) before mutating a task;
// Lock alone only protects against concurrent goroutines within this
// runner instance.
func (r *TaskRepository) Lock(id uuid.UUID) func() {
	m := r.taskMutex(id)
	m.Lock()
	return m.Unlock
}

func (r *TaskRepository) paths(id uuid.UUID) store.TaskPaths {
	return store.NewTaskPaths(r.stateDir, id.String())
}

func (r *TaskRepository) recordPath(id uuid.UUID) string {
	return filepath.Join(r.paths(id).TaskDir(), taskRecordFilename)
}

// Load reads the Task aggregate for id. A missing task returns
// taskerr.KindNotFound.
func (r *TaskRepository) Load(id uuid.UUID) (*task.Task, error) {
	data, err := os.ReadFile(r.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, taskerr.NotFound("task", id.String())
		}
		return nil, fmt.Errorf("reading task record: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing task record: %w", err)
	}
	return &t, nil
}

// Save atomically rewrites t's record, creating the task directory on
// first save.
func (r *TaskRepository) Save(t *task.Task) error {
	dir := r.paths(t.ID).TaskDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}
	return store.WriteJSONAtomic(r.recordPath(t.ID), t)
}

// List returns every task id the repository currently holds a record for,
// in lexicographic order of their directory names.
func (r *TaskRepository) List() ([]uuid.UUID, error) {
	tasksDir := filepath.Join(r.stateDir, "tasks")
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing tasks dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id, err := uuid.Parse(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TaskLockPath returns the per-task file lock path for id, for callers
// that need to construct a TaskLock directly.
func (r *TaskRepository) TaskLockPath(id uuid.UUID) string {
	return r.paths(id).LockPath()
}
