// Package checkrunner executes a Condition's shell command and reports
// whether it passed, the way the Orchestrator's condition-checking step
// requires: no shell interpretation beyond what the command itself needs,
// a bounded timeout, and a result that never panics regardless of how the
// command misbehaves.
package checkrunner

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/andywolf/taskrunner/internal/task"
)

// DefaultTimeout bounds a check's run when its Condition specifies none.
const DefaultTimeout = 5 * time.Minute

// Spec is one check to run: a condition id, the shell command to invoke,
// an optional timeout, and the working directory to run it in.
type Spec struct {
	ConditionID uuid.UUID
	Command     string
	Timeout     time.Duration
	Cwd         string
}

// Outcome is a check's result plus the raw log text the caller persists
// via EvidenceStore; Result.StdoutPath/StderrPath are left empty here for
// the caller to fill in once it knows where they were written.
type Outcome struct {
	Result task.CheckResult
	Stdout string
	Stderr string
}

// CheckRunner runs a Spec's command via the host shell and classifies the
// outcome.
type CheckRunner struct{}

// New builds a CheckRunner.
func New() *CheckRunner {
	return &CheckRunner{}
}

// Run executes spec.Command in spec.Cwd, bounded by spec.Timeout (or
// DefaultTimeout if zero). An empty command is Skipped without being run.
// A command that starts but fails to complete before the timeout, or
// whose process cannot be started at all, is reported as Error rather
// than Fail — Fail is reserved for a command that ran to completion with
// a non-zero exit code.
func (r *CheckRunner) Run(ctx context.Context, spec Spec) Outcome {
	if spec.Command == "" {
		return Outcome{Result: task.CheckResult{
			ConditionID: spec.ConditionID,
			Status:      task.CheckSkipped,
		}}
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", spec.Command)
	cmd.Dir = spec.Cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := task.CheckResult{
		ConditionID: spec.ConditionID,
		DurationMS:  duration.Milliseconds(),
	}

	switch {
	case err == nil:
		code := 0
		result.ExitCode = &code
		result.Status = task.CheckPass

	case runCtx.Err() == context.DeadlineExceeded:
		result.Status = task.CheckError

	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			result.ExitCode = &code
			result.Status = task.CheckFail
		} else {
			result.Status = task.CheckError
		}
	}

	return Outcome{Result: result, Stdout: stdout.String(), Stderr: stderr.String()}
}
