package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/agent/event"
	"github.com/andywolf/taskrunner/internal/checkrunner"
	"github.com/andywolf/taskrunner/internal/observability"
	"github.com/andywolf/taskrunner/internal/stage"
	"github.com/andywolf/taskrunner/internal/store"
	"github.com/andywolf/taskrunner/internal/task"
	"github.com/andywolf/taskrunner/internal/taskerr"
	"github.com/andywolf/taskrunner/internal/tracker"
)

// runDelivery is the Delivery stage's iteration loop (spec.md §4.2): each
// pass stashes a rollback point, drives the agent once, captures the
// resulting diff across every repo in workspace, runs the Blocking
// conditions' checks, and classifies the pass as Completed (every Blocking
// condition now passes), Stagnated (the diff is empty, or the failing
// Blocking condition set is identical to the previous pass's), or
// Progressed otherwise. Three consecutive Stagnated
// passes blocks the task; exhausting the iteration budget first stops it
// instead. The stash taken at the top of a pass is popped only if that
// pass's agent call itself fails outright — a Stagnated or unmet-condition
// pass still keeps its (unhelpful, but not broken) changes, since rolling
// those back would also discard the evidence of what was tried.
func (o *Orchestrator) runDelivery(ctx context.Context, t *task.Task, runner *stage.Runner, artifacts *store.ArtifactStore, evidence *store.EvidenceStore, workspace *task.WorkspaceInfo, trace observability.TraceContext) (stage.Outcome, error) {
	var previousFailing []uuid.UUID

	for {
		if err := ctx.Err(); err != nil {
			return stage.StopOutcome("stopped", "cancelled"), nil
		}
		if len(t.Iterations) >= t.Budget.MaxIterations {
			return stage.StopOutcome("stopped", "budget_exhausted"), nil
		}

		iterationNum := t.NextIterationNumber()
		started := o.nowFn()
		iterSpan := o.tracer().StartStage(trace, "delivery_iteration", observability.SpanOptions{Attempt: iterationNum})

		o.MultiRepo.StashAllRepos(ctx, workspace.Repos, fmt.Sprintf("task-%s-iter-%d-baseline", t.ID, iterationNum))

		tr := tracker.NewCommandTracker()
		combined := func(msg task.AgentMessage) {
			tr.OnMessage(msg)
			if runner.Callbacks != nil {
				runner.Callbacks.OnAgentMessage(msg)
			}
			if evt := event.FromAgentMessage(t.ID.String(), iterationNum, msg); evt != nil {
				_ = artifacts.AppendEvent(iterationNum, evt)
				if o.EventSink != nil {
					_ = o.EventSink.Write(evt)
				}
			}
		}

		prompt := buildDeliveryPrompt(t, tr)

		var result *task.AgentResult
		execErr := agent.RunWithRetryLimits(ctx, o.RetryLimits, o.nowFn, o.Sleeper, nil, func(rctx context.Context) error {
			var innerErr error
			result, innerErr = o.Provider.Execute(rctx, agent.Request{
				Prompt:       prompt,
				AllowedTools: []string{"Read", "Write", "Edit", "Bash", "Glob", "Grep"},
				Cwd:          workspace.Root,
				MCPServers:   t.MCPServers,
			}, combined)
			return innerErr
		})
		if execErr != nil {
			o.MultiRepo.PopAllRepos(ctx, workspace.Repos)
			o.tracer().RecordGeneration(iterSpan, observability.GenerationInput{
				Provider: o.Provider.Name(), Status: "error", DurationMs: o.nowFn().Sub(started).Milliseconds(),
			})
			if taskerr.IsKind(execErr, taskerr.KindCancelled) {
				o.tracer().EndStage(iterSpan, "cancelled", o.nowFn().Sub(started).Milliseconds())
				return stage.StopOutcome("stopped", "cancelled"), nil
			}
			o.tracer().EndStage(iterSpan, "agent_error", o.nowFn().Sub(started).Milliseconds())
			return stage.StopOutcome("blocked", "agent_error: "+execErr.Error()), nil
		}

		o.tracer().RecordGeneration(iterSpan, observability.GenerationInput{
			Provider:   o.Provider.Name(),
			ToolsUsed:  result.ToolsUsed,
			FinalText:  result.FinalResponse,
			Status:     "completed",
			DurationMs: o.nowFn().Sub(started).Milliseconds(),
		})

		diff := o.MultiRepo.WorktreeDiffAll(ctx, workspace.Repos)
		if err := artifacts.WriteWorktreeDiff(iterationNum, renderDiff(diff), renderPatch(diff)); err != nil {
			return stage.Outcome{}, err
		}
		if err := artifacts.WriteTranscript(iterationNum, renderTranscript(result)); err != nil {
			return stage.Outcome{}, err
		}

		failing := o.runBlockingChecks(ctx, t, runner, evidence, iterationNum)

		outcome := decideIterationOutcome(t, diff, previousFailing)
		previousFailing = failing

		iter := task.Iteration{
			Number:     iterationNum,
			StartedAt:  started,
			EndedAt:    o.nowFn(),
			DiffPath:   fmt.Sprintf("iterations/%04d/diffs/worktree.diff", iterationNum),
			EventsPath: fmt.Sprintf("iterations/%04d/agent/events.jsonl", iterationNum),
			Outcome:    outcome,
		}
		for i := range t.Conditions {
			if t.Conditions[i].LastResult != nil {
				iter.CheckResults = append(iter.CheckResults, *t.Conditions[i].LastResult)
			}
		}
		t.Iterations = append(t.Iterations, iter)
		if err := artifacts.SaveIteration(&iter); err != nil {
			return stage.Outcome{}, err
		}
		if err := o.Repository.Save(t); err != nil {
			return stage.Outcome{}, err
		}

		switch outcome {
		case task.OutcomeCompleted:
			t.StagnationCount = 0
			o.tracer().EndStage(iterSpan, "completed", o.nowFn().Sub(started).Milliseconds())
			return stage.ContinueOutcome(), nil
		case task.OutcomeStagnated:
			t.StagnationCount++
			if t.StagnationCount >= o.threshold() {
				o.tracer().EndStage(iterSpan, "stagnated", o.nowFn().Sub(started).Milliseconds())
				return stage.StopOutcome("blocked", "stagnated"), nil
			}
			o.tracer().EndStage(iterSpan, "stagnated", o.nowFn().Sub(started).Milliseconds())
		default: // Progressed
			t.StagnationCount = 0
			o.tracer().EndStage(iterSpan, "progressed", o.nowFn().Sub(started).Milliseconds())
		}
	}
}

func (o *Orchestrator) threshold() int {
	if o.StagnationThreshold > 0 {
		return o.StagnationThreshold
	}
	return DefaultStagnationThreshold
}

// runBlockingChecks runs every Blocking condition's check, persists the
// result, and returns the sorted ids of conditions still failing — the
// value decideIterationOutcome compares against the previous iteration's
// to detect stagnation.
func (o *Orchestrator) runBlockingChecks(ctx context.Context, t *task.Task, runner *stage.Runner, evidence *store.EvidenceStore, iterationNum int) []uuid.UUID {
	for i := range t.Conditions {
		c := &t.Conditions[i]
		if c.Role != task.RoleBlocking || c.Command == "" {
			continue
		}
		out := runner.Checks.Run(ctx, checkrunner.Spec{
			ConditionID: c.ID,
			Command:     c.Command,
			Timeout:     secondsToTimeout(c.TimeoutSec),
			Cwd:         runner.WorkspaceRoot(t),
		})
		result := out.Result
		c.LastResult = &result
		if evidence != nil {
			_ = evidence.RecordCheckResult(iterationNum, &result, out.Stdout+out.Stderr)
		}
	}
	return t.FailingBlockingIDs()
}

func secondsToTimeout(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

func decideIterationOutcome(t *task.Task, diff task.MultiRepoDiff, previousFailing []uuid.UUID) task.Outcome {
	if t.AllBlockingPass() {
		return task.OutcomeCompleted
	}
	failing := t.FailingBlockingIDs()
	if diff.IsEmpty() || sameIDs(failing, previousFailing) {
		return task.OutcomeStagnated
	}
	return task.OutcomeProgressed
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func buildDeliveryPrompt(t *task.Task, tr *tracker.CommandTracker) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement the following plan. Goal: %s.\n", planGoal(t.Plan))
	for _, step := range planSteps(t.Plan) {
		fmt.Fprintf(&b, "%d. %s\n", step.Number, step.Description)
	}
	if len(t.Conditions) > 0 {
		b.WriteString("\nSuccess conditions:\n")
		for _, c := range t.Conditions {
			fmt.Fprintf(&b, "- %s\n", c.Description)
		}
	}
	b.WriteString("\n" + tr.FormatForVerification(20))
	return b.String()
}

func planGoal(p *task.Plan) string {
	if p == nil {
		return ""
	}
	return p.Goal
}

func planSteps(p *task.Plan) []task.PlanStep {
	if p == nil {
		return nil
	}
	return p.Steps
}

func renderDiff(d task.MultiRepoDiff) string {
	var b strings.Builder
	for repoPath, rec := range d.PerRepo {
		fmt.Fprintf(&b, "# %s\n%s\n", repoPath, rec.Diff)
	}
	return b.String()
}

func renderPatch(d task.MultiRepoDiff) string {
	var b strings.Builder
	for repoPath, rec := range d.PerRepo {
		fmt.Fprintf(&b, "# %s\n%s\n", repoPath, rec.Patch)
	}
	return b.String()
}

func renderTranscript(result *task.AgentResult) string {
	if result == nil {
		return ""
	}
	return result.FinalResponse
}
