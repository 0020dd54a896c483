// Package tracker builds a factual, non-interpretive log of the
// Bash/Read/Write/Edit/Glob/Grep tool invocations an agent makes during an
// iteration, formatted as a short summary for the next iteration's prompt
// and for independent check verification. It never interprets what a
// command did — only what was run and the tail of its output.
package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/andywolf/taskrunner/internal/task"
)

// CommandRecord is one completed tool invocation: the resolved command
// text, the tool that ran it, and a preview of its result.
type CommandRecord struct {
	Command   string
	ToolName  string
	Output    string
	Timestamp time.Time
}

const outputPreviewChars = 200
const formattedPreviewChars = 100

// FormatForPrompt renders one record the way a verification prompt expects
// it: "- <tool>: `<command>`" with a short trailing output preview.
func (r CommandRecord) FormatForPrompt() string {
	line := fmt.Sprintf("- %s: `%s`", r.ToolName, r.Command)

	if r.Output == "" {
		return line
	}
	preview := r.Output
	if len(preview) > outputPreviewChars {
		preview = preview[len(preview)-outputPreviewChars:]
	}
	preview = strings.TrimSpace(preview)
	if preview == "" {
		return line
	}
	if len(preview) > formattedPreviewChars {
		preview = preview[:formattedPreviewChars]
	}
	return line + fmt.Sprintf("\n   Output: %s...", preview)
}

// CommandTracker pairs each tool_use message with the tool_result that
// follows it, accumulating a session-long list of CommandRecords.
type CommandTracker struct {
	records       []CommandRecord
	pendingCmd    string
	pendingTool   string
	now           func() time.Time
}

// NewCommandTracker builds an empty CommandTracker.
func NewCommandTracker() *CommandTracker {
	return &CommandTracker{now: time.Now}
}

// OnMessage feeds one AgentMessage from the provider's event stream into
// the tracker. Messages of any other role are ignored.
func (t *CommandTracker) OnMessage(msg task.AgentMessage) {
	switch msg.Role {
	case task.RoleToolUse:
		t.handleToolUse(msg)
	case task.RoleToolResult:
		t.handleToolResult(msg)
	}
}

func (t *CommandTracker) handleToolUse(msg task.AgentMessage) {
	if msg.ToolInput == nil {
		return
	}

	var command string
	toolName := msg.ToolName
	if toolName == "" {
		toolName = "unknown"
	}

	switch msg.ToolName {
	case "Bash":
		command = stringField(msg.ToolInput, "command")
	case "Read", "Write", "Edit":
		command = stringField(msg.ToolInput, "file_path")
	case "Glob", "Grep":
		pattern := stringField(msg.ToolInput, "pattern")
		path := stringField(msg.ToolInput, "path")
		if path == "" {
			path = "."
		}
		command = fmt.Sprintf("%s in %s", pattern, path)
	}

	if command != "" {
		t.pendingCmd = command
		t.pendingTool = toolName
	}
}

func (t *CommandTracker) handleToolResult(msg task.AgentMessage) {
	if t.pendingCmd != "" && t.pendingTool != "" {
		t.records = append(t.records, CommandRecord{
			Command:   t.pendingCmd,
			ToolName:  t.pendingTool,
			Output:    msg.Content,
			Timestamp: t.now(),
		})
	}
	t.pendingCmd = ""
	t.pendingTool = ""
}

// BashCommands returns only the Bash-tool records, in the order they ran.
func (t *CommandTracker) BashCommands() []CommandRecord {
	out := make([]CommandRecord, 0, len(t.records))
	for _, r := range t.records {
		if r.ToolName == "Bash" {
			out = append(out, r)
		}
	}
	return out
}

// AllRecords returns every recorded command, in the order they ran.
func (t *CommandTracker) AllRecords() []CommandRecord {
	out := make([]CommandRecord, len(t.records))
	copy(out, t.records)
	return out
}

// FormatForVerification renders the most recent maxCommands Bash commands
// as a factual summary for a verification prompt, prioritizing Bash since
// it is the most relevant signal for whether a check will pass.
func (t *CommandTracker) FormatForVerification(maxCommands int) string {
	bash := t.BashCommands()
	if len(bash) == 0 {
		return "No shell commands were executed during implementation."
	}

	recent := bash
	if len(recent) > maxCommands {
		recent = recent[len(recent)-maxCommands:]
	}

	lines := make([]string, 0, len(recent)+1)
	lines = append(lines, "Commands executed during implementation:")
	for _, r := range recent {
		lines = append(lines, r.FormatForPrompt())
	}
	return strings.Join(lines, "\n")
}

// Clear discards every recorded command, for reuse across iterations.
func (t *CommandTracker) Clear() {
	t.records = nil
	t.pendingCmd = ""
	t.pendingTool = ""
}

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}
