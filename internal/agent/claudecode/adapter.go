package claudecode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/task"
	"github.com/andywolf/taskrunner/internal/taskerr"
)

// BinaryName is the executable this adapter shells out to. It is a package
// variable rather than a constant so tests can point it at a fake.
var BinaryName = "claude"

// Adapter drives the local `claude` CLI in print mode with stream-json
// output, the non-containerized equivalent of how the reference controller
// invokes Claude Code inside a session container.
type Adapter struct{}

// New returns a claude-code Provider.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "claude-code" }

func (a *Adapter) buildArgs(req agent.Request) []string {
	args := []string{"--print", "--output-format", "stream-json", "--dangerously-skip-permissions"}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	for _, server := range req.MCPServers {
		args = append(args, "--mcp-server", server)
	}
	args = append(args, req.Prompt)
	return args
}

// Execute runs claude to completion, parses its stream-json output, and
// returns the accumulated result. onMessage, if non-nil, is invoked for
// every decoded message in order before Execute returns.
func (a *Adapter) Execute(ctx context.Context, req agent.Request, onMessage agent.MessageCallback) (*task.AgentResult, error) {
	cmd := exec.CommandContext(ctx, BinaryName, a.buildArgs(req)...)
	cmd.Dir = req.Cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, taskerr.Wrap(taskerr.KindCancelled, "claude-code execution canceled", ctx.Err())
	}
	if runErr != nil {
		// Left unwrapped in any particular taskerr.Kind: the retry policy
		// classifies by the error text itself (§4.3), and stderr's content
		// determines whether this is rate-limit, transient, or fatal.
		return nil, fmt.Errorf("claude-code exited with error: %s: %w", stderr.String(), runErr)
	}

	parsed := ParseStreamJSON(stdout.Bytes())
	if onMessage != nil {
		for _, msg := range parsed.Messages {
			onMessage(msg)
		}
	}

	return &task.AgentResult{
		Messages:      parsed.Messages,
		FinalResponse: parsed.FinalText,
		ToolsUsed:     parsed.ToolsUsed,
		Info:          &task.AgentInfo{Provider: a.Name()},
	}, nil
}

// Stream runs claude and delivers each decoded message over the returned
// channel once Execute's single parse pass produces it. claude's `--print`
// mode only exposes its NDJSON after the process exits, so this channel
// fills in one burst rather than incrementally as the subprocess writes.
func (a *Adapter) Stream(ctx context.Context, req agent.Request) (<-chan task.AgentMessage, <-chan error) {
	messages := make(chan task.AgentMessage)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		result, err := a.Execute(ctx, req, nil)
		if err != nil {
			errs <- err
			return
		}
		for _, msg := range result.Messages {
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return messages, errs
}

func init() {
	agent.Register("claude-code", func() agent.Provider {
		return New()
	})
}
