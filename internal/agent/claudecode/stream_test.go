package claudecode

import (
	"testing"

	"github.com/andywolf/taskrunner/internal/task"
)

func TestParseStreamJSON_EmptyInput(t *testing.T) {
	result := ParseStreamJSON([]byte(""))
	if len(result.Messages) != 0 {
		t.Errorf("Messages = %d, want 0", len(result.Messages))
	}
	if result.FinalText != "" {
		t.Errorf("FinalText = %q, want empty", result.FinalText)
	}
}

func TestParseStreamJSON_TextMessage(t *testing.T) {
	input := `{"type":"assistant","message":{"content":[{"type":"text","text":"Hello, world!"}]}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if len(result.Messages) != 1 {
		t.Fatalf("Messages = %d, want 1", len(result.Messages))
	}
	if result.Messages[0].Role != task.RoleAssistant {
		t.Errorf("Role = %q, want %q", result.Messages[0].Role, task.RoleAssistant)
	}
	if result.Messages[0].Content != "Hello, world!" {
		t.Errorf("Content = %q, want %q", result.Messages[0].Content, "Hello, world!")
	}
	if result.FinalText != "Hello, world!" {
		t.Errorf("FinalText = %q, want %q", result.FinalText, "Hello, world!")
	}
}

func TestParseStreamJSON_ToolUseCanonicalizesName(t *testing.T) {
	input := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"ls -la"}}]}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if len(result.Messages) != 1 {
		t.Fatalf("Messages = %d, want 1", len(result.Messages))
	}
	msg := result.Messages[0]
	if msg.Role != task.RoleToolUse || msg.ToolName != "Bash" {
		t.Errorf("Role/ToolName = %q/%q, want tool_use/Bash", msg.Role, msg.ToolName)
	}
	if msg.ToolInput["command"] != "ls -la" {
		t.Errorf("ToolInput[command] = %v, want %q", msg.ToolInput["command"], "ls -la")
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != "Bash" {
		t.Errorf("ToolsUsed = %v, want [Bash]", result.ToolsUsed)
	}
}

func TestParseStreamJSON_PassesThroughMCPToolName(t *testing.T) {
	input := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"github:create_issue","input":{}}]}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if result.Messages[0].ToolName != "github:create_issue" {
		t.Errorf("ToolName = %q, want namespaced name unchanged", result.Messages[0].ToolName)
	}
}

func TestParseStreamJSON_ToolResultEvent(t *testing.T) {
	input := `{"type":"user","message":{"content":[{"type":"tool_result","content":"file1.go\nfile2.go"}]}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if len(result.Messages) != 1 {
		t.Fatalf("Messages = %d, want 1", len(result.Messages))
	}
	if result.Messages[0].Role != task.RoleToolResult {
		t.Errorf("Role = %q, want tool_result", result.Messages[0].Role)
	}
	if result.Messages[0].Content != "file1.go\nfile2.go" {
		t.Errorf("Content = %q, want file1.go\\nfile2.go", result.Messages[0].Content)
	}
}

func TestParseStreamJSON_ThinkingTruncatedAtMax(t *testing.T) {
	long := make([]byte, MaxThinkingBytes+100)
	for i := range long {
		long[i] = 'x'
	}
	input := `{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"` + string(long) + `"}]}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if len(result.Messages[0].Content) != MaxThinkingBytes {
		t.Errorf("truncated length = %d, want %d", len(result.Messages[0].Content), MaxThinkingBytes)
	}
}

func TestParseStreamJSON_SkipsMalformedLines(t *testing.T) {
	input := "not json\n" + `{"type":"assistant","message":{"content":[{"type":"text","text":"ok"}]}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if len(result.Messages) != 1 {
		t.Fatalf("Messages = %d, want 1 (malformed line skipped)", len(result.Messages))
	}
}

func TestParseStreamJSON_ResultStopReason(t *testing.T) {
	input := `{"type":"result","result":{"content":[],"stop_reason":"end_turn"}}` + "\n"
	result := ParseStreamJSON([]byte(input))

	if result.StopReason != "end_turn" {
		t.Errorf("StopReason = %q, want end_turn", result.StopReason)
	}
}
