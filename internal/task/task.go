// Package task holds the value model the rest of the runner operates on:
// Task, Condition, Plan, Iteration, CheckResult, AgentMessage, DiffRecord
// and WorkspaceInfo, plus the total parsing functions that turn an agent's
// free-form JSON output into one of these types or a ParseFailure.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status is the task's position in the stage pipeline. Done, Blocked and
// Stopped are terminal: no new iteration may be appended once a task enters
// one of them, and only Resume may move it back to Executing.
type Status string

const (
	StatusIntake    Status = "intake"
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusDone      Status = "done"
	StatusBlocked   Status = "blocked"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether s is one of the pipeline's terminal statuses.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusBlocked || s == StatusStopped
}

// Budget bounds how much work the iteration loop is allowed to spend on a
// task before it is Stopped with reason "budget".
type Budget struct {
	MaxIterations int           `json:"max_iterations"`
	MaxDuration   time.Duration `json:"max_duration"`
}

// Task is the aggregate root the TaskRepository persists and the
// Orchestrator mutates under the per-task lock. Field order mirrors the
// order fields are populated across the stage pipeline: identity first,
// then goals/constraints from Intake, then the Plan and Conditions from
// Planning/Conditions, then the Iterations Delivery appends.
type Task struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Goals       []string  `json:"goals"`
	Constraints []string  `json:"constraints"`
	Sources     []string  `json:"sources"` // workspace root + any additional roots

	Status Status `json:"status"`

	Plan            *Plan                 `json:"plan,omitempty"`
	Conditions      []Condition           `json:"conditions"`
	Answers         []ClarificationAnswer `json:"answers,omitempty"`
	MCPServers      []string              `json:"mcp_servers,omitempty"` // selected via the MCPSelection stage
	Iterations      []Iteration           `json:"iterations"`
	Budget          Budget                `json:"budget"`
	StageName       string                `json:"stage"`          // current/last stage, for resume
	StageAttempt    int                   `json:"stage_attempt"`  // retry count within StageName, reset on advance
	TerminalReason  string                `json:"terminal_reason,omitempty"`
	StagnationCount int                   `json:"stagnation_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a Task in StatusIntake with a fresh ID, ready for the stage
// pipeline to populate.
func New(description string, sources []string, budget Budget) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.New(),
		Description: description,
		Sources:     sources,
		Status:      StatusIntake,
		Budget:      budget,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NextIterationNumber returns the ordinal the next appended Iteration must
// use: iterations are numbered contiguously starting at 1.
func (t *Task) NextIterationNumber() int {
	return len(t.Iterations) + 1
}

// BlockingConditions returns the subset of Conditions whose Role is
// Blocking, preserving order.
func (t *Task) BlockingConditions() []Condition {
	out := make([]Condition, 0, len(t.Conditions))
	for _, c := range t.Conditions {
		if c.Role == RoleBlocking {
			out = append(out, c)
		}
	}
	return out
}

// AllBlockingPass reports whether every Blocking condition's latest
// CheckResult is Pass. A task with zero Blocking conditions trivially
// passes.
func (t *Task) AllBlockingPass() bool {
	for _, c := range t.BlockingConditions() {
		if c.LastResult == nil || c.LastResult.Status != CheckPass {
			return false
		}
	}
	return true
}

// FailingBlockingIDs returns the sorted set of Blocking condition IDs whose
// latest CheckResult is not Pass. Sorted order is the tie-break the
// iteration loop uses to compare failing sets across iterations (spec
// "sorted sequence of failing condition ids").
func (t *Task) FailingBlockingIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range t.BlockingConditions() {
		if c.LastResult == nil || c.LastResult.Status != CheckPass {
			ids = append(ids, c.ID)
		}
	}
	sortUUIDs(ids)
	return ids
}

func sortUUIDs(ids []uuid.UUID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1].String() > ids[j].String(); j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
