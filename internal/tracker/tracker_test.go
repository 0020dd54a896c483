package tracker

import (
	"strings"
	"testing"

	"github.com/andywolf/taskrunner/internal/task"
)

func TestCommandTracker_PairsBashToolUseWithResult(t *testing.T) {
	tr := NewCommandTracker()

	tr.OnMessage(task.AgentMessage{
		Role:      task.RoleToolUse,
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "go test ./..."},
	})
	tr.OnMessage(task.AgentMessage{
		Role:    task.RoleToolResult,
		Content: "ok  	module	0.5s",
	})

	records := tr.AllRecords()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Command != "go test ./..." {
		t.Errorf("Command = %q, want %q", records[0].Command, "go test ./...")
	}
	if records[0].ToolName != "Bash" {
		t.Errorf("ToolName = %q, want %q", records[0].ToolName, "Bash")
	}
}

func TestCommandTracker_FileToolsUseFilePath(t *testing.T) {
	tr := NewCommandTracker()
	tr.OnMessage(task.AgentMessage{
		Role:      task.RoleToolUse,
		ToolName:  "Edit",
		ToolInput: map[string]interface{}{"file_path": "main.go"},
	})
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolResult, Content: "applied"})

	records := tr.AllRecords()
	if len(records) != 1 || records[0].Command != "main.go" {
		t.Fatalf("records = %+v, want one record with Command \"main.go\"", records)
	}
}

func TestCommandTracker_GlobFormatsPatternAndPath(t *testing.T) {
	tr := NewCommandTracker()
	tr.OnMessage(task.AgentMessage{
		Role:      task.RoleToolUse,
		ToolName:  "Grep",
		ToolInput: map[string]interface{}{"pattern": "TODO", "path": "internal"},
	})
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolResult, Content: "3 matches"})

	records := tr.AllRecords()
	if len(records) != 1 || records[0].Command != "TODO in internal" {
		t.Fatalf("records = %+v, want Command \"TODO in internal\"", records)
	}
}

func TestCommandTracker_BashCommandsFiltersNonBash(t *testing.T) {
	tr := NewCommandTracker()
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolUse, ToolName: "Bash", ToolInput: map[string]interface{}{"command": "ls"}})
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolResult, Content: "file.go"})
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolUse, ToolName: "Read", ToolInput: map[string]interface{}{"file_path": "a.go"}})
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolResult, Content: "package a"})

	if len(tr.AllRecords()) != 2 {
		t.Fatalf("len(AllRecords()) = %d, want 2", len(tr.AllRecords()))
	}
	bash := tr.BashCommands()
	if len(bash) != 1 || bash[0].Command != "ls" {
		t.Fatalf("BashCommands() = %+v, want one record \"ls\"", bash)
	}
}

func TestCommandTracker_FormatForVerification_NoCommands(t *testing.T) {
	tr := NewCommandTracker()
	got := tr.FormatForVerification(20)
	want := "No shell commands were executed during implementation."
	if got != want {
		t.Errorf("FormatForVerification() = %q, want %q", got, want)
	}
}

func TestCommandTracker_FormatForVerification_LimitsToMostRecent(t *testing.T) {
	tr := NewCommandTracker()
	for i := 0; i < 5; i++ {
		tr.OnMessage(task.AgentMessage{Role: task.RoleToolUse, ToolName: "Bash", ToolInput: map[string]interface{}{"command": "cmd"}})
		tr.OnMessage(task.AgentMessage{Role: task.RoleToolResult, Content: "out"})
	}

	got := tr.FormatForVerification(2)
	lines := strings.Split(got, "\n")
	// header line + 2 records (each record may itself be multi-line, but with
	// no output preview here each record is one line)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3: %q", len(lines), got)
	}
}

func TestCommandRecord_FormatForPrompt_TruncatesOutput(t *testing.T) {
	r := CommandRecord{
		ToolName: "Bash",
		Command:  "go build ./...",
		Output:   strings.Repeat("x", 300),
	}
	got := r.FormatForPrompt()
	if !strings.Contains(got, "Output:") {
		t.Errorf("FormatForPrompt() = %q, want an Output section", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("FormatForPrompt() = %q, want suffix \"...\"", got)
	}
}

func TestCommandTracker_Clear(t *testing.T) {
	tr := NewCommandTracker()
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolUse, ToolName: "Bash", ToolInput: map[string]interface{}{"command": "ls"}})
	tr.OnMessage(task.AgentMessage{Role: task.RoleToolResult, Content: "x"})

	tr.Clear()
	if len(tr.AllRecords()) != 0 {
		t.Error("Clear() should empty the record list")
	}
}
