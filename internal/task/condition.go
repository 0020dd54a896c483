package task

import "github.com/google/uuid"

// Role distinguishes conditions that gate task completion from those that
// are merely recorded.
type Role string

const (
	RoleBlocking Role = "blocking"
	RoleSignal   Role = "signal"
)

// ApprovalStatus tracks whether a user has approved a Condition the agent
// proposed. Agent-proposed conditions start Pending; user-added conditions
// start Approved.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// CheckStatus is the outcome of running a Condition's associated check.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckError   CheckStatus = "error"
	CheckSkipped CheckStatus = "skipped"
)

// CheckResult is one run of a Condition's check, persisted via the
// EvidenceStore as a <ts>.json/<ts>.log pair.
type CheckResult struct {
	ConditionID uuid.UUID   `json:"condition_id"`
	Status      CheckStatus `json:"status"`
	ExitCode    *int        `json:"exit_code,omitempty"`
	StdoutPath  string      `json:"stdout_path,omitempty"`
	StderrPath  string      `json:"stderr_path,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
	Timestamp   string      `json:"timestamp"` // YYYYMMDDTHHMMSSffffff UTC
}

// Condition is a success criterion attached to a Task. A task is Done only
// when every Blocking condition's latest CheckResult is Pass.
type Condition struct {
	ID          uuid.UUID      `json:"id"`
	Description string         `json:"description"`
	Role        Role           `json:"role"`
	Approval    ApprovalStatus `json:"approval"`
	Command     string         `json:"command,omitempty"` // shell command the CheckRunner invokes
	TimeoutSec  int            `json:"timeout_sec,omitempty"`
	LastResult  *CheckResult   `json:"last_result,omitempty"`
}

// NewCondition builds an agent-proposed Condition, which starts Pending.
func NewCondition(description string, role Role, command string) Condition {
	return Condition{
		ID:          uuid.New(),
		Description: description,
		Role:        role,
		Approval:    ApprovalPending,
		Command:     command,
	}
}

// NewUserCondition builds a user-added Condition, which starts Approved.
func NewUserCondition(description string, role Role, command string) Condition {
	c := NewCondition(description, role, command)
	c.Approval = ApprovalApproved
	return c
}
