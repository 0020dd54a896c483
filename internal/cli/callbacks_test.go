package cli

import (
	"strings"
	"testing"

	"github.com/andywolf/taskrunner/internal/stage"
	"github.com/andywolf/taskrunner/internal/task"
	"github.com/google/uuid"
)

func TestTerminalCallbacks_AutoApprove_PlanAndConditions(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader(""), &out, true, false, nil)

	plan := &task.Plan{Goal: "ship a feature", Steps: []task.PlanStep{{Number: 1, Description: "write the code"}}}
	decision, err := cb.OnPlanAndConditions(plan, nil)
	if err != nil {
		t.Fatalf("OnPlanAndConditions() error = %v", err)
	}
	if decision.Kind != stage.Approved {
		t.Errorf("decision.Kind = %v, want Approved", decision.Kind)
	}
}

func TestTerminalCallbacks_PromptedApproval(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader("y\n"), &out, false, false, nil)

	plan := &task.Plan{Goal: "ship a feature"}
	decision, err := cb.OnPlanAndConditions(plan, nil)
	if err != nil {
		t.Fatalf("OnPlanAndConditions() error = %v", err)
	}
	if decision.Kind != stage.Approved {
		t.Errorf("decision.Kind = %v, want Approved", decision.Kind)
	}
}

func TestTerminalCallbacks_RejectOnBlankInput(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader("\n"), &out, false, false, nil)

	decision, err := cb.OnPlanAndConditions(&task.Plan{Goal: "g"}, nil)
	if err != nil {
		t.Fatalf("OnPlanAndConditions() error = %v", err)
	}
	if decision.Kind != stage.Rejected {
		t.Errorf("decision.Kind = %v, want Rejected", decision.Kind)
	}
}

func TestTerminalCallbacks_FreeformFeedback(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader("use a different approach\n"), &out, false, false, nil)

	decision, err := cb.OnPlanAndConditions(&task.Plan{Goal: "g"}, nil)
	if err != nil {
		t.Fatalf("OnPlanAndConditions() error = %v", err)
	}
	if decision.Kind != stage.FeedbackForPlan {
		t.Errorf("decision.Kind = %v, want FeedbackForPlan", decision.Kind)
	}
	if decision.FeedbackText != "use a different approach" {
		t.Errorf("decision.FeedbackText = %q", decision.FeedbackText)
	}
}

func TestTerminalCallbacks_ClarificationAutoApproveUsesDecideForMe(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader(""), &out, true, false, nil)

	qID := uuid.New()
	answers, err := cb.OnClarification([]task.ClarificationQuestion{{ID: qID, Question: "which database?"}})
	if err != nil {
		t.Fatalf("OnClarification() error = %v", err)
	}
	if len(answers) != 1 || answers[0].SelectedOption != task.DecideForMeOption.Key {
		t.Errorf("answers = %+v, want one DecideForMe answer", answers)
	}
}

func TestTerminalCallbacks_ClarificationPrompted(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader("postgres\n"), &out, false, false, nil)

	qID := uuid.New()
	answers, err := cb.OnClarification([]task.ClarificationQuestion{{ID: qID, Question: "which database?"}})
	if err != nil {
		t.Fatalf("OnClarification() error = %v", err)
	}
	if len(answers) != 1 || answers[0].SelectedOption != "postgres" {
		t.Errorf("answers = %+v, want selected option \"postgres\"", answers)
	}
}

func TestTerminalCallbacks_MCPSelection_AutoApproveAcceptsAll(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader(""), &out, true, false, nil)

	selected, err := cb.OnMCPSelection([]string{"github", "postgres"})
	if err != nil {
		t.Fatalf("OnMCPSelection() error = %v", err)
	}
	if len(selected) != 2 {
		t.Errorf("selected = %v, want both suggestions", selected)
	}
}

func TestTerminalCallbacks_MCPSelection_BlankAnswerEnablesNone(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader("\n"), &out, false, false, nil)

	selected, err := cb.OnMCPSelection([]string{"github"})
	if err != nil {
		t.Fatalf("OnMCPSelection() error = %v", err)
	}
	if len(selected) != 0 {
		t.Errorf("selected = %v, want none", selected)
	}
}

func TestTerminalCallbacks_OnStage_PrintsStart(t *testing.T) {
	var out strings.Builder
	cb := newTerminalCallbacks(strings.NewReader(""), &out, false, false, nil)

	cb.OnStage(stage.Planning, true, 0)
	if !strings.Contains(out.String(), string(stage.Planning)) {
		t.Errorf("output %q should mention the starting stage", out.String())
	}
}
