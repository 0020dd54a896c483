package task

// MessageRole is the discriminant of the AgentMessage sum type. The
// provider boundary decodes every vendor-specific event shape into exactly
// one of these variants before anything else in the runner sees it.
type MessageRole string

const (
	RoleAssistant  MessageRole = "assistant"
	RoleToolUse    MessageRole = "tool_use"
	RoleToolResult MessageRole = "tool_result"
	RoleThought    MessageRole = "thought"
	RoleStatus     MessageRole = "status"
)

// AgentMessage is one event in an agent's execution stream. ToolName and
// ToolInput are populated only for ToolUse messages; tool-name vocabulary
// is canonicalized to {Read, Write, Edit, Bash, Glob, Grep} plus namespaced
// external-tool names of the form "<server>:<tool>".
type AgentMessage struct {
	Role      MessageRole            `json:"role"`
	Content   string                 `json:"content"`
	ToolName  string                 `json:"tool_name,omitempty"`
	ToolInput map[string]interface{} `json:"tool_input,omitempty"`
}

// AgentInfo identifies the concrete provider and model that produced an
// AgentResult, when the provider can supply it.
type AgentInfo struct {
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	ModelProvider string `json:"model_provider,omitempty"`
}

// AgentResult is the return value of AgentProvider.Execute: every message
// produced during the call, the final textual response, the set of tool
// names used, and optional provider/model identification.
type AgentResult struct {
	Messages      []AgentMessage `json:"messages"`
	FinalResponse string         `json:"final_response"`
	ToolsUsed     []string       `json:"tools_used"`
	Info          *AgentInfo     `json:"agent_info,omitempty"`
}
