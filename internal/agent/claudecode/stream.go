// Package claudecode is the Provider adapter that shells out to the local
// `claude` CLI and decodes its stream-json output into task.AgentMessage.
package claudecode

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/andywolf/taskrunner/internal/task"
)

// streamEventType is the top-level NDJSON event kind Claude Code emits.
type streamEventType string

const (
	eventSystem    streamEventType = "system"
	eventAssistant streamEventType = "assistant"
	eventUser      streamEventType = "user"
	eventResult    streamEventType = "result"
)

// blockType is a content block kind within an assistant/user/result message.
type blockType string

const (
	blockText       blockType = "text"
	blockThinking   blockType = "thinking"
	blockToolUse    blockType = "tool_use"
	blockToolResult blockType = "tool_result"
)

// rawContentBlock is the wire shape of one content block.
type rawContentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Thinking string          `json:"thinking,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Content  interface{}     `json:"content,omitempty"`
}

// rawEvent is the top-level NDJSON line shape.
type rawEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type rawMessage struct {
	Content []rawContentBlock `json:"content"`
}

type rawResult struct {
	Content    []rawContentBlock `json:"content"`
	StopReason string            `json:"stop_reason,omitempty"`
}

// MaxThinkingBytes truncates thinking blocks before they reach persisted
// storage or Cloud Logging's per-entry size limit.
const MaxThinkingBytes = 50000

// ParseResult is the decoded form of one claude invocation's NDJSON stream.
type ParseResult struct {
	Messages   []task.AgentMessage
	FinalText  string
	ToolsUsed  []string
	StopReason string
}

// ParseStreamJSON decodes NDJSON output from `claude --print
// --output-format stream-json`. Malformed lines are skipped rather than
// failing the whole parse, since a single truncated line (e.g. the process
// was canceled mid-write) shouldn't discard everything read before it.
func ParseStreamJSON(data []byte) *ParseResult {
	result := &ParseResult{}
	var textParts [][]byte
	toolsSeen := map[string]bool{}

	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var evt rawEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}

		switch streamEventType(evt.Type) {
		case eventAssistant, eventUser:
			var msg rawMessage
			if err := json.Unmarshal(evt.Message, &msg); err != nil {
				continue
			}
			extractBlocks(msg.Content, result, &textParts, toolsSeen)

		case eventResult:
			var res rawResult
			if err := json.Unmarshal(evt.Result, &res); err != nil {
				continue
			}
			extractBlocks(res.Content, result, &textParts, toolsSeen)
			if res.StopReason != "" {
				result.StopReason = res.StopReason
			}

		case eventSystem:
			result.Messages = append(result.Messages, task.AgentMessage{
				Role:    task.RoleStatus,
				Content: evt.Subtype,
			})
		}
	}

	result.FinalText = string(bytes.Join(textParts, []byte("\n")))
	return result
}

func extractBlocks(blocks []rawContentBlock, result *ParseResult, textParts *[][]byte, toolsSeen map[string]bool) {
	for _, block := range blocks {
		switch blockType(block.Type) {
		case blockText:
			result.Messages = append(result.Messages, task.AgentMessage{
				Role:    task.RoleAssistant,
				Content: block.Text,
			})
			if block.Text != "" {
				*textParts = append(*textParts, []byte(block.Text))
			}

		case blockThinking:
			content := block.Thinking
			if len(content) > MaxThinkingBytes {
				content = content[:MaxThinkingBytes]
			}
			result.Messages = append(result.Messages, task.AgentMessage{
				Role:    task.RoleThought,
				Content: content,
			})

		case blockToolUse:
			name := canonicalToolName(block.Name)
			var input map[string]interface{}
			_ = json.Unmarshal(block.Input, &input)
			result.Messages = append(result.Messages, task.AgentMessage{
				Role:      task.RoleToolUse,
				ToolName:  name,
				ToolInput: input,
			})
			if !toolsSeen[name] {
				toolsSeen[name] = true
				result.ToolsUsed = append(result.ToolsUsed, name)
			}

		case blockToolResult:
			content := blockContentToString(block.Content)
			result.Messages = append(result.Messages, task.AgentMessage{
				Role:    task.RoleToolResult,
				Content: content,
			})
		}
	}
}

// canonicalTools is the vocabulary spec.md requires every provider adapter
// to normalize its tool names into; anything else (an MCP tool) is left as
// "<server>:<tool>" and passed through unchanged.
var canonicalTools = map[string]string{
	"Read": "Read", "Write": "Write", "Edit": "Edit",
	"Bash": "Bash", "Glob": "Glob", "Grep": "Grep",
}

func canonicalToolName(name string) string {
	if canonical, ok := canonicalTools[name]; ok {
		return canonical
	}
	return name
}

func blockContentToString(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var parts []string
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
