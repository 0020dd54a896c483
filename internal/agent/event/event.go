// Package event records the AgentMessages an AgentProvider emits during an
// iteration as the append-only stream at
// iterations/<NNNN>/agent/events.jsonl, so CommandTracker and a resumed task
// can see exactly what happened without re-running the agent.
package event

import (
	"encoding/json"
	"time"

	"github.com/andywolf/taskrunner/internal/task"
)

// EventType mirrors task.MessageRole plus the two transport-level cases
// (Error, System) that don't originate from the agent itself.
type EventType string

const (
	EventAssistant  EventType = "assistant"
	EventThought    EventType = "thought"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventStatus     EventType = "status"
	EventError      EventType = "error"
	EventSystem     EventType = "system"
)

func eventTypeFromRole(r task.MessageRole) EventType {
	switch r {
	case task.RoleAssistant:
		return EventAssistant
	case task.RoleToolUse:
		return EventToolUse
	case task.RoleToolResult:
		return EventToolResult
	case task.RoleThought:
		return EventThought
	case task.RoleStatus:
		return EventStatus
	default:
		return EventSystem
	}
}

// AgentEvent is one persisted line of an iteration's event stream: an
// AgentMessage plus the session/iteration metadata needed to make sense of
// it outside the file it was written to.
type AgentEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	TaskID    string            `json:"task_id"`
	Iteration int               `json:"iteration"`
	Type      EventType         `json:"type"`
	Summary   string            `json:"summary"`
	Content   string            `json:"content"`
	ToolName  string            `json:"tool_name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalJSONL marshals the event to a JSON line (no trailing newline).
func (e *AgentEvent) MarshalJSONL() ([]byte, error) {
	return json.Marshal(e)
}

// FromAgentMessage converts one task.AgentMessage into the persisted
// AgentEvent shape, summarizing tool input into Metadata when present.
func FromAgentMessage(taskID string, iteration int, msg task.AgentMessage) *AgentEvent {
	evt := &AgentEvent{
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Iteration: iteration,
		Type:      eventTypeFromRole(msg.Role),
		Summary:   TruncateSummary(msg.Content),
		Content:   msg.Content,
		ToolName:  msg.ToolName,
	}
	for k, v := range msg.ToolInput {
		if s, ok := v.(string); ok {
			evt.WithMetadata(k, s)
		}
	}
	return evt
}

// NewSystemEvent records a transport-level occurrence (e.g. a retried
// rate-limit error) that did not originate from the agent itself.
func NewSystemEvent(taskID string, iteration int, eventType EventType, summary, content string) *AgentEvent {
	return &AgentEvent{
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Iteration: iteration,
		Type:      eventType,
		Summary:   summary,
		Content:   content,
	}
}

// WithMetadata adds metadata to the event and returns it for chaining.
func (e *AgentEvent) WithMetadata(key, value string) *AgentEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// MaxSummaryLen is the maximum length for event summaries.
const MaxSummaryLen = 200

// TruncateSummary returns a truncated version of content suitable for the Summary field.
func TruncateSummary(content string) string {
	if len(content) <= MaxSummaryLen {
		return content
	}
	return content[:MaxSummaryLen-3] + "..."
}
