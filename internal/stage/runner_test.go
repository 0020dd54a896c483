package stage

import (
	"context"
	"testing"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/mcp"
	"github.com/andywolf/taskrunner/internal/store"
	"github.com/andywolf/taskrunner/internal/task"
)

// stubCallbacks auto-approves everything and records what it was shown, for
// tests that only care about a stage's output rather than the approval UI.
type stubCallbacks struct {
	approval     ApprovalDecision
	answers      []task.ClarificationAnswer
	mcpSelection []string
	messages     []task.AgentMessage
	stageEvents  []string
}

func (s *stubCallbacks) OnPlanAndConditions(plan *task.Plan, conditions []task.Condition) (ApprovalDecision, error) {
	return s.approval, nil
}
func (s *stubCallbacks) OnClarification(questions []task.ClarificationQuestion) ([]task.ClarificationAnswer, error) {
	return s.answers, nil
}
func (s *stubCallbacks) OnMCPSelection(suggestions []string) ([]string, error) {
	return s.mcpSelection, nil
}
func (s *stubCallbacks) OnAgentMessage(msg task.AgentMessage) { s.messages = append(s.messages, msg) }
func (s *stubCallbacks) OnStage(name Name, isStarting bool, durationSeconds float64) {
	s.stageEvents = append(s.stageEvents, string(name))
}

func newTestRunner(t *testing.T, provider agent.Provider, cb Callbacks) *Runner {
	t.Helper()
	paths := store.NewTaskPaths(t.TempDir(), "task1")
	return New(provider, mcp.DefaultRegistry(), store.NewArtifactStore(paths), store.NewEvidenceStore(paths, nil), cb)
}

func result(final string) *task.AgentResult {
	return &task.AgentResult{FinalResponse: final}
}

func TestRunner_Intake_ParsesGoalsAndConstraints(t *testing.T) {
	provider := agent.NewMock("mock", agent.MockCall{
		Result: result(`{"goals": ["ship feature"], "constraints": ["no new deps"]}`),
	})
	r := newTestRunner(t, provider, &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})

	outcome, err := r.Run(context.Background(), tk, Intake, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Continue {
		t.Fatalf("outcome.Kind = %v, want Continue", outcome.Kind)
	}
	if len(tk.Goals) != 1 || tk.Goals[0] != "ship feature" {
		t.Errorf("Goals = %v", tk.Goals)
	}
	if len(tk.Constraints) != 1 {
		t.Errorf("Constraints = %v", tk.Constraints)
	}
}

func TestRunner_Intake_SkipsWhenAlreadyPopulated(t *testing.T) {
	provider := agent.NewMock("mock")
	r := newTestRunner(t, provider, &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})
	tk.Goals = []string{"already known"}

	outcome, err := r.Run(context.Background(), tk, Intake, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Continue {
		t.Fatalf("outcome.Kind = %v, want Continue", outcome.Kind)
	}
	if provider.Calls() != 0 {
		t.Errorf("provider should not have been called, Calls() = %d", provider.Calls())
	}
}

func TestRunner_Intake_ParseFailureFirstAttemptLoops(t *testing.T) {
	provider := agent.NewMock("mock", agent.MockCall{Result: result("not json at all")})
	r := newTestRunner(t, provider, &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})
	tk.StageAttempt = 0

	outcome, err := r.Run(context.Background(), tk, Intake, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Loop || outcome.LoopTo != Intake {
		t.Fatalf("outcome = %+v, want Loop back to Intake", outcome)
	}
}

func TestRunner_Intake_ParseFailureSecondAttemptBlocks(t *testing.T) {
	provider := agent.NewMock("mock", agent.MockCall{Result: result("still not json")})
	r := newTestRunner(t, provider, &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})
	tk.StageAttempt = MaxStageAttempts - 1

	outcome, err := r.Run(context.Background(), tk, Intake, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Stop || outcome.Status != "blocked" || outcome.Reason != "parse_failure" {
		t.Fatalf("outcome = %+v, want Stop/blocked/parse_failure", outcome)
	}
}

func TestRunner_Planning_ProducesPlan(t *testing.T) {
	provider := agent.NewMock("mock", agent.MockCall{
		Result: result(`{"goal": "add widget", "steps": [{"number": 1, "description": "write it"}], "boundaries": []}`),
	})
	r := newTestRunner(t, provider, &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})

	outcome, err := r.Run(context.Background(), tk, Planning, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Continue {
		t.Fatalf("outcome.Kind = %v, want Continue", outcome.Kind)
	}
	if tk.Plan == nil || tk.Plan.Goal != "add widget" {
		t.Fatalf("Plan = %+v", tk.Plan)
	}
}

func TestRunner_Approval_RejectedStopsTask(t *testing.T) {
	cb := &stubCallbacks{approval: ApprovalDecision{Kind: Rejected}}
	r := newTestRunner(t, agent.NewMock("mock"), cb)
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})
	tk.Plan = &task.Plan{Goal: "g"}

	outcome, err := r.Run(context.Background(), tk, ApprovalPlanConditions, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Stop || outcome.Status != "stopped" {
		t.Fatalf("outcome = %+v, want Stop/stopped", outcome)
	}
}

func TestRunner_Approval_FeedbackLoopsToPlanning(t *testing.T) {
	cb := &stubCallbacks{approval: ApprovalDecision{Kind: FeedbackForPlan, FeedbackText: "use a different approach"}}
	r := newTestRunner(t, agent.NewMock("mock"), cb)
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})
	tk.Plan = &task.Plan{Goal: "g"}

	outcome, err := r.Run(context.Background(), tk, ApprovalPlanConditions, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Loop || outcome.LoopTo != Planning {
		t.Fatalf("outcome = %+v, want Loop to Planning", outcome)
	}
}

func TestRunner_Approval_ApprovedMarksConditions(t *testing.T) {
	cb := &stubCallbacks{approval: ApprovalDecision{Kind: Approved}}
	r := newTestRunner(t, agent.NewMock("mock"), cb)
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})
	tk.Conditions = []task.Condition{task.NewCondition("tests pass", task.RoleBlocking, "true")}

	outcome, err := r.Run(context.Background(), tk, ApprovalPlanConditions, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Continue {
		t.Fatalf("outcome.Kind = %v, want Continue", outcome.Kind)
	}
	if tk.Conditions[0].Approval != task.ApprovalApproved {
		t.Errorf("Condition.Approval = %v, want Approved", tk.Conditions[0].Approval)
	}
}

func TestRunner_Quality_AllPassContinues(t *testing.T) {
	r := newTestRunner(t, agent.NewMock("mock"), &stubCallbacks{})
	tk := task.New("add a widget", []string{t.TempDir()}, task.Budget{MaxIterations: 5})
	tk.Conditions = []task.Condition{task.NewCondition("trivially true", task.RoleBlocking, "exit 0")}

	outcome, err := r.Run(context.Background(), tk, Quality, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Continue {
		t.Fatalf("outcome.Kind = %v, want Continue; conditions = %+v", outcome.Kind, tk.Conditions)
	}
}

// TestRunner_Quality_FailingConditionStopsBlockedRegardlessOfBudget pins
// spec.md §4.1 stage 10: Quality re-runs every Blocking condition exactly
// once more and any failure demotes the task straight to Blocked — there
// is no re-entering Delivery for another iteration pass, even when
// iterations remain in the budget.
func TestRunner_Quality_FailingConditionStopsBlockedRegardlessOfBudget(t *testing.T) {
	r := newTestRunner(t, agent.NewMock("mock"), &stubCallbacks{})
	tk := task.New("add a widget", []string{t.TempDir()}, task.Budget{MaxIterations: 5})
	tk.Conditions = []task.Condition{task.NewCondition("always fails", task.RoleBlocking, "exit 1")}

	outcome, err := r.Run(context.Background(), tk, Quality, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Stop || outcome.Status != "blocked" {
		t.Fatalf("outcome = %+v, want Stop/blocked", outcome)
	}
}

func TestRunner_Quality_FailingConditionAtBudgetStops(t *testing.T) {
	r := newTestRunner(t, agent.NewMock("mock"), &stubCallbacks{})
	tk := task.New("add a widget", []string{t.TempDir()}, task.Budget{MaxIterations: 1})
	tk.Conditions = []task.Condition{task.NewCondition("always fails", task.RoleBlocking, "exit 1")}
	tk.Iterations = []task.Iteration{{Number: 1}}

	outcome, err := r.Run(context.Background(), tk, Quality, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Stop || outcome.Status != "blocked" {
		t.Fatalf("outcome = %+v, want Stop/blocked", outcome)
	}
}

func TestRunner_Finalize_WritesResultAndStops(t *testing.T) {
	r := newTestRunner(t, agent.NewMock("mock"), &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})

	outcome, err := r.Run(context.Background(), tk, Finalize, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Stop || outcome.Status != "done" {
		t.Fatalf("outcome = %+v, want Stop/done", outcome)
	}
}

func TestRunner_Delivery_IsANoOpContinue(t *testing.T) {
	r := newTestRunner(t, agent.NewMock("mock"), &stubCallbacks{})
	tk := task.New("add a widget", []string{"."}, task.Budget{MaxIterations: 5})

	outcome, err := r.Run(context.Background(), tk, Delivery, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Kind != Continue {
		t.Fatalf("outcome.Kind = %v, want Continue", outcome.Kind)
	}
}
