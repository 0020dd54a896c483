// Package stage implements the deterministic state machine that sequences
// a Task through intake, planning, condition elicitation, iterative
// delivery, verification, and finalization. StageRunner drives each stage;
// Orchestrator (internal/orchestrator) owns the top-level run/resume loop
// that calls it.
package stage

import "time"

// Name identifies one stage in the canonical pipeline order.
type Name string

const (
	Intake                 Name = "intake"
	Strategy               Name = "strategy"
	VerificationInventory  Name = "verification_inventory"
	MCPSelection           Name = "mcp_selection"
	Clarification          Name = "clarification"
	Planning               Name = "planning"
	Conditions             Name = "conditions"
	ApprovalPlanConditions Name = "approval_plan_conditions"
	Delivery               Name = "delivery"
	Quality                Name = "quality"
	Finalize               Name = "finalize"
)

// Order is the canonical stage sequence a task with no gates and no loops
// advances through.
var Order = []Name{
	Intake, Strategy, VerificationInventory, MCPSelection, Clarification,
	Planning, Conditions, ApprovalPlanConditions, Delivery, Quality, Finalize,
}

// Next returns the stage that canonically follows n, or ("", false) if n
// is Finalize or unrecognized.
func Next(n Name) (Name, bool) {
	for i, s := range Order {
		if s == n && i+1 < len(Order) {
			return Order[i+1], true
		}
	}
	return "", false
}

// OutcomeKind is the disposition a stage's run leaves the pipeline in.
type OutcomeKind string

const (
	// Continue advances to the next stage in canonical order.
	Continue OutcomeKind = "continue"
	// Loop re-enters an earlier (or the same) stage with extra context
	// appended, e.g. ApprovalPlanConditions' FeedbackForPlan decision.
	Loop OutcomeKind = "loop"
	// Gate suspends the pipeline pending a user decision; Resume re-enters
	// the gating stage.
	Gate OutcomeKind = "gate"
	// Stop ends the task in a terminal status (Done, Blocked, or Stopped).
	Stop OutcomeKind = "stop"
)

// Outcome is what one stage invocation produced: a disposition, plus the
// extra fields each disposition needs (LoopTo/LoopContext for Loop,
// Reason/Status for Stop).
type Outcome struct {
	Kind OutcomeKind

	LoopTo      Name
	LoopContext string

	Reason string // machine-readable terminal reason, e.g. "parse-failure", "stagnated", "budget"
	Status string // "done" | "blocked" | "stopped", set only when Kind == Stop
}

// ContinueOutcome is the common case: advance to the next stage.
func ContinueOutcome() Outcome { return Outcome{Kind: Continue} }

// LoopOutcome re-enters to with context appended to its prompt.
func LoopOutcome(to Name, context string) Outcome {
	return Outcome{Kind: Loop, LoopTo: to, LoopContext: context}
}

// GateOutcome suspends the pipeline at the current stage pending user input.
func GateOutcome() Outcome { return Outcome{Kind: Gate} }

// StopOutcome ends the task with status and reason.
func StopOutcome(status, reason string) Outcome {
	return Outcome{Kind: Stop, Status: status, Reason: reason}
}

// TimelineEvent is the record StageRunner appends to timeline.jsonl before
// yielding from each stage invocation (spec.md §4.1).
type TimelineEvent struct {
	Stage      Name        `json:"stage"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
	Outcome    OutcomeKind `json:"outcome"`
	Reason     string      `json:"reason,omitempty"`
	LoopTo     Name        `json:"loop_to,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// NewTimelineEvent builds the persisted record for one stage invocation.
func NewTimelineEvent(stage Name, started, ended time.Time, outcome Outcome) TimelineEvent {
	return TimelineEvent{
		Stage:      stage,
		StartedAt:  started,
		EndedAt:    ended,
		Outcome:    outcome.Kind,
		Reason:     outcome.Reason,
		LoopTo:     outcome.LoopTo,
		DurationMS: ended.Sub(started).Milliseconds(),
	}
}

// ApprovalDecisionKind is the user's response to on_plan_and_conditions.
type ApprovalDecisionKind string

const (
	Approved        ApprovalDecisionKind = "approved"
	Rejected        ApprovalDecisionKind = "rejected"
	FeedbackForPlan ApprovalDecisionKind = "feedback_for_plan"
	EditConditions  ApprovalDecisionKind = "edit_conditions"
)
