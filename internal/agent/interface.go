// Package agent defines the polymorphic interface to an external
// model-driven coding agent, a compile-time registry of concrete providers,
// and the retry policy the orchestrator applies uniformly across all of
// them regardless of vendor.
package agent

import (
	"context"

	"github.com/andywolf/taskrunner/internal/task"
)

// MessageCallback receives each AgentMessage as it is produced, for callers
// that want to stream output (live callback, CommandTracker) without
// waiting for Execute to return.
type MessageCallback func(task.AgentMessage)

// Provider is the capability set every concrete agent adapter satisfies: a
// blocking call that returns the full result, and a streaming call that
// yields messages as they arrive. Both are cancellable via ctx; a canceled
// ctx must surface as a taskerr.KindCancelled error from the provider.
type Provider interface {
	// Name identifies the provider for logging and the registry.
	Name() string

	// Execute runs the agent to completion on prompt within cwd, restricted
	// to allowedTools, optionally wiring in mcpServers. If onMessage is
	// non-nil it is invoked synchronously for every message as it arrives,
	// in addition to the full ordered list returned in AgentResult.
	Execute(ctx context.Context, req Request, onMessage MessageCallback) (*task.AgentResult, error)

	// Stream runs the agent and returns a channel of messages as they
	// arrive. The channel is closed when the agent finishes or ctx is
	// canceled; a send-side error is reported via the returned error
	// channel, which receives at most one value.
	Stream(ctx context.Context, req Request) (<-chan task.AgentMessage, <-chan error)
}

// Request bundles the inputs Execute/Stream share.
type Request struct {
	Prompt       string
	AllowedTools []string
	Cwd          string
	MCPServers   []string
}
