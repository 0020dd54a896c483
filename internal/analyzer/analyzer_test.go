package analyzer

import (
	"context"
	"testing"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/task"
)

func TestAnalyzer_Analyze_ParsesWellFormedResponse(t *testing.T) {
	response := `{
  "structure": {"root_files": ["go.mod"], "src_dirs": ["internal"], "test_dirs": ["internal"]},
  "commands": {"test": "go test ./...", "lint": "go vet ./...", "build": "go build ./...", "typecheck": null},
  "conventions": ["table-driven tests"],
  "frameworks": ["stdlib testing"]
}`
	provider := agent.NewMock("mock", agent.MockCall{
		Result: &task.AgentResult{FinalResponse: response},
	})

	a := New(provider)
	analysis, err := a.Analyze(context.Background(), "/repo", nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if analysis.Commands.Test == nil || *analysis.Commands.Test != "go test ./..." {
		t.Errorf("Commands.Test = %v, want \"go test ./...\"", analysis.Commands.Test)
	}
	if analysis.Commands.Typecheck != nil {
		t.Errorf("Commands.Typecheck = %v, want nil", analysis.Commands.Typecheck)
	}
	if len(analysis.Conventions) != 1 || analysis.Conventions[0] != "table-driven tests" {
		t.Errorf("Conventions = %v, want [table-driven tests]", analysis.Conventions)
	}
}

func TestAnalyzer_Analyze_MalformedResponseYieldsEmptyAnalysis(t *testing.T) {
	provider := agent.NewMock("mock", agent.MockCall{
		Result: &task.AgentResult{FinalResponse: "I couldn't figure this out, sorry."},
	})

	a := New(provider)
	analysis, err := a.Analyze(context.Background(), "/repo", nil)
	if err != nil {
		t.Fatalf("Analyze() should not error on a malformed response, got: %v", err)
	}
	if analysis.Commands.Test != nil || len(analysis.Conventions) != 0 {
		t.Errorf("analysis = %+v, want zero value", analysis)
	}
}

func TestAnalyzer_Analyze_ProviderErrorPropagates(t *testing.T) {
	wantErr := context.DeadlineExceeded
	provider := agent.NewMock("mock", agent.MockCall{Err: wantErr})

	a := New(provider)
	_, err := a.Analyze(context.Background(), "/repo", nil)
	if err != wantErr {
		t.Fatalf("Analyze() error = %v, want %v", err, wantErr)
	}
}

func TestAnalyzer_Analyze_StreamsMessagesViaCallback(t *testing.T) {
	msg := task.AgentMessage{Role: task.RoleToolUse, ToolName: "Read"}
	provider := agent.NewMock("mock", agent.MockCall{
		Result: &task.AgentResult{FinalResponse: "{}", Messages: []task.AgentMessage{msg}},
	})

	var seen []task.AgentMessage
	a := New(provider)
	if _, err := a.Analyze(context.Background(), "/repo", func(m task.AgentMessage) {
		seen = append(seen, m)
	}); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(seen) != 1 || seen[0].ToolName != "Read" {
		t.Errorf("seen = %+v, want one Read message", seen)
	}
}
