package taskrepo

import (
	"testing"
	"time"

	"github.com/andywolf/taskrunner/internal/task"
	"github.com/andywolf/taskrunner/internal/taskerr"
)

func TestTaskRepository_SaveAndLoad(t *testing.T) {
	repo := NewTaskRepository(t.TempDir())

	tsk := task.New("fix the bug", []string{"/repo"}, task.Budget{MaxIterations: 10})
	if err := repo.Save(tsk); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := repo.Load(tsk.ID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Description != tsk.Description {
		t.Errorf("Description = %q, want %q", loaded.Description, tsk.Description)
	}
	if loaded.ID != tsk.ID {
		t.Errorf("ID = %v, want %v", loaded.ID, tsk.ID)
	}
}

func TestTaskRepository_Load_MissingReturnsNotFound(t *testing.T) {
	repo := NewTaskRepository(t.TempDir())
	tsk := task.New("x", nil, task.Budget{})

	_, err := repo.Load(tsk.ID)
	if err == nil {
		t.Fatal("Load() should fail for an unsaved task")
	}
	if !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Errorf("error kind should be KindNotFound, got %v", err)
	}
}

func TestTaskRepository_List(t *testing.T) {
	repo := NewTaskRepository(t.TempDir())

	a := task.New("a", nil, task.Budget{})
	b := task.New("b", nil, task.Budget{})
	if err := repo.Save(a); err != nil {
		t.Fatalf("Save(a) error: %v", err)
	}
	if err := repo.Save(b); err != nil {
		t.Fatalf("Save(b) error: %v", err)
	}

	ids, err := repo.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
}

func TestTaskRepository_List_EmptyRepoReturnsNoError(t *testing.T) {
	repo := NewTaskRepository(t.TempDir())
	ids, err := repo.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("len(ids) = %d, want 0", len(ids))
	}
}

func TestTaskRepository_Lock_SerializesInProcessAccess(t *testing.T) {
	repo := NewTaskRepository(t.TempDir())
	tsk := task.New("x", nil, task.Budget{})

	unlock := repo.Lock(tsk.ID)
	done := make(chan struct{})
	go func() {
		unlock2 := repo.Lock(tsk.ID)
		unlock2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock() should block while the first is held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
}
