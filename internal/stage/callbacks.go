package stage

import "github.com/andywolf/taskrunner/internal/task"

// ApprovalDecision is the user's response to on_plan_and_conditions.
type ApprovalDecision struct {
	Kind ApprovalDecisionKind

	// FeedbackText carries the user's revision notes when Kind is
	// FeedbackForPlan; Planning re-runs with it appended to its prompt.
	FeedbackText string

	// EditedConditions replaces Task.Conditions wholesale when Kind is
	// EditConditions.
	EditedConditions []task.Condition
}

// Callbacks is the set of host-provided hooks the stage pipeline invokes to
// hand control back to the caller, matching spec.md §6's external
// interface. A host embedding this runner implements one concrete type
// satisfying this interface; internal/cli's implementation drives a
// terminal prompt, a batch/headless caller can auto-approve.
type Callbacks interface {
	// OnPlanAndConditions is called at ApprovalPlanConditions with the
	// current plan and proposed conditions, and returns the user's
	// decision.
	OnPlanAndConditions(plan *task.Plan, conditions []task.Condition) (ApprovalDecision, error)

	// OnClarification is called at Clarification when the agent raised
	// questions, and returns the user's answers in the same order.
	OnClarification(questions []task.ClarificationQuestion) ([]task.ClarificationAnswer, error)

	// OnMCPSelection is called at MCPSelection with the servers the agent
	// suggests wiring in, and returns the subset (by name) the user wants
	// enabled.
	OnMCPSelection(suggestions []string) ([]string, error)

	// OnAgentMessage streams one message from the underlying agent as it
	// is produced, for any stage that drives the agent directly.
	OnAgentMessage(msg task.AgentMessage)

	// OnStage reports a stage's start (isStarting true, durationSeconds
	// zero) and its end (isStarting false, durationSeconds elapsed).
	OnStage(name Name, isStarting bool, durationSeconds float64)
}
