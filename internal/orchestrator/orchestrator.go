// Package orchestrator drives a Task through the stage pipeline end to
// end: internal/stage handles one stage invocation at a time, and this
// package owns everything that spans stages — locking, persistence between
// invocations, the Delivery stage's multi-iteration loop, and resume.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/agent/event"
	"github.com/andywolf/taskrunner/internal/mcp"
	"github.com/andywolf/taskrunner/internal/observability"
	"github.com/andywolf/taskrunner/internal/repo"
	"github.com/andywolf/taskrunner/internal/stage"
	"github.com/andywolf/taskrunner/internal/store"
	"github.com/andywolf/taskrunner/internal/task"
	"github.com/andywolf/taskrunner/internal/taskerr"
	"github.com/andywolf/taskrunner/internal/taskrepo"
)

// DefaultStagnationThreshold is how many consecutive Stagnated iterations
// the Delivery loop tolerates before giving up (an Open Question this
// runner resolved in favor of a small, configurable fixed default rather
// than a cost/time-based heuristic).
const DefaultStagnationThreshold = 3

// Orchestrator owns the top-level run/resume operations spec.md §4
// describes: acquiring a task's lock, walking the stage pipeline, entering
// Delivery's iteration loop, and persisting the Task after every step so a
// crash can resume from the last durable state.
type Orchestrator struct {
	Repository          *taskrepo.TaskRepository
	Provider            agent.Provider
	Registry            *mcp.ServerRegistry
	MultiRepo           *repo.MultiRepoManager
	StateDir            string
	Callbacks           stage.Callbacks
	StagnationThreshold int
	RetryLimits         agent.RetryLimits
	Tracer              observability.Tracer
	Sleeper             agent.Sleeper
	// EventSink, when set, mirrors every agent event across every
	// iteration into one combined JSONL stream in addition to the
	// per-iteration iterations/<NNNN>/agent/events.jsonl files
	// ArtifactStore.AppendEvent already writes — a single file an
	// operator can `tail -f` for the whole task rather than one
	// directory per iteration. Left nil by default (no extra file).
	EventSink *event.FileSink
	now       func() time.Time
}

// New builds an Orchestrator with DefaultStagnationThreshold and real
// time/sleep, both overridable on the returned value for tests.
func New(repository *taskrepo.TaskRepository, provider agent.Provider, registry *mcp.ServerRegistry, multiRepo *repo.MultiRepoManager, stateDir string, callbacks stage.Callbacks) *Orchestrator {
	return &Orchestrator{
		Repository:          repository,
		Provider:            provider,
		Registry:            registry,
		MultiRepo:           multiRepo,
		StateDir:            stateDir,
		Callbacks:           callbacks,
		StagnationThreshold: DefaultStagnationThreshold,
		RetryLimits:         agent.DefaultRetryLimits(),
		Tracer:              observability.NoOpTracer{},
		Sleeper:             agent.RealSleeper,
		now:                 time.Now,
	}
}

func (o *Orchestrator) nowFn() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

func (o *Orchestrator) tracer() observability.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return observability.NoOpTracer{}
}

// Run starts a brand-new task from StatusIntake through to a terminal
// status or a Gate suspension.
func (o *Orchestrator) Run(ctx context.Context, t *task.Task) error {
	return o.drive(ctx, t, stage.Intake)
}

// Resume re-enters a previously Gate-suspended or crashed task at its last
// recorded stage (spec.md §4.1's "resume re-enters the gating stage, or —
// for a crash with no Gate — the next stage in canonical order after the
// last one whose completion was durably recorded").
func (o *Orchestrator) Resume(ctx context.Context, t *task.Task) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("task %s is already terminal (%s)", t.ID, t.Status)
	}
	current := stage.Name(t.StageName)
	if current == "" {
		current = stage.Intake
	}
	return o.drive(ctx, t, current)
}

func (o *Orchestrator) drive(ctx context.Context, t *task.Task, start stage.Name) error {
	lock := taskrepo.NewTaskLock(o.Repository.TaskLockPath(t.ID), t.ID.String())
	if err := lock.Acquire(); err != nil {
		return err
	}
	unlock := o.Repository.Lock(t.ID)
	defer func() {
		unlock()
		_ = lock.Release()
	}()

	paths := store.NewTaskPaths(o.StateDir, t.ID.String())
	artifacts := store.NewArtifactStore(paths)
	evidence := store.NewEvidenceStore(paths, o.now)
	runner := stage.New(o.Provider, o.Registry, artifacts, evidence, o.Callbacks)

	workspace, err := o.MultiRepo.DiscoverRepos(o.workspaceRoot(t))
	if err != nil {
		return fmt.Errorf("discovering workspace: %w", err)
	}

	t.Status = task.StatusExecuting
	if err := o.Repository.Save(t); err != nil {
		return err
	}

	trace := o.tracer().StartTrace(t.ID.String(), observability.TraceOptions{Description: t.Description, Sources: t.Sources})
	driveErr := o.driveLoop(ctx, t, start, trace, runner, artifacts, evidence, workspace)
	o.tracer().CompleteTrace(trace, observability.CompleteOptions{
		Status:         string(t.Status),
		TerminalReason: t.TerminalReason,
		Iterations:     len(t.Iterations),
	})
	return driveErr
}

func (o *Orchestrator) driveLoop(ctx context.Context, t *task.Task, start stage.Name, trace observability.TraceContext, runner *stage.Runner, artifacts *store.ArtifactStore, evidence *store.EvidenceStore, workspace *task.WorkspaceInfo) error {
	current := start
	hint := ""

	for {
		if err := ctx.Err(); err != nil {
			return o.terminate(t, "stopped", "cancelled")
		}

		if current == stage.Delivery {
			span := o.tracer().StartStage(trace, string(current), observability.SpanOptions{Attempt: t.StageAttempt})
			started := o.nowFn()
			outcome, err := o.runDelivery(ctx, t, runner, artifacts, evidence, workspace, trace)
			o.tracer().EndStage(span, string(outcome.Kind), o.nowFn().Sub(started).Milliseconds())
			if err != nil {
				return err
			}
			if done, rerr := o.applyOutcome(t, current, outcome, &current, &hint); done {
				return rerr
			}
			continue
		}

		span := o.tracer().StartStage(trace, string(current), observability.SpanOptions{Attempt: t.StageAttempt})
		started := o.nowFn()
		o.notifyStage(current, true, 0)
		outcome, runErr := runner.Run(ctx, t, current, hint)
		ended := o.nowFn()
		o.notifyStage(current, false, ended.Sub(started).Seconds())
		o.tracer().EndStage(span, string(outcome.Kind), ended.Sub(started).Milliseconds())

		if err := artifacts.AppendTimelineEvent(stage.NewTimelineEvent(current, started, ended, outcome)); err != nil {
			return err
		}

		if runErr != nil {
			if handled, rerr := o.handleStageError(t, runErr); handled {
				return rerr
			}
			return runErr
		}

		if done, rerr := o.applyOutcome(t, current, outcome, &current, &hint); done {
			return rerr
		}
	}
}

func (o *Orchestrator) workspaceRoot(t *task.Task) string {
	if len(t.Sources) > 0 {
		return t.Sources[0]
	}
	return "."
}

func (o *Orchestrator) notifyStage(name stage.Name, isStarting bool, durationSeconds float64) {
	if o.Callbacks != nil {
		o.Callbacks.OnStage(name, isStarting, durationSeconds)
	}
}

// applyOutcome mutates t and *current/*hint according to outcome, persists
// t, and reports (true, err) when the pipeline has reached a stopping
// point (Gate or Stop) that the caller should return immediately.
func (o *Orchestrator) applyOutcome(t *task.Task, current stage.Name, outcome stage.Outcome, next *stage.Name, hint *string) (bool, error) {
	switch outcome.Kind {
	case stage.Continue:
		t.StageAttempt = 0
		*hint = ""
		if n, ok := stage.Next(current); ok {
			*next = n
		} else {
			*next = stage.Finalize
		}
		t.StageName = string(*next)
		return false, o.Repository.Save(t)

	case stage.Loop:
		if outcome.LoopTo == current {
			t.StageAttempt++
		} else {
			t.StageAttempt = 0
		}
		*next = outcome.LoopTo
		*hint = outcome.LoopContext
		t.StageName = string(*next)
		return false, o.Repository.Save(t)

	case stage.Gate:
		t.Status = task.StatusPending
		t.StageName = string(current)
		return true, o.Repository.Save(t)

	case stage.Stop:
		return true, o.terminate(t, outcome.Status, outcome.Reason)

	default:
		return true, fmt.Errorf("unrecognized stage outcome %q", outcome.Kind)
	}
}

func (o *Orchestrator) terminate(t *task.Task, status, reason string) error {
	t.Status = task.Status(status)
	t.TerminalReason = reason
	t.UpdatedAt = o.nowFn()
	return o.Repository.Save(t)
}

// handleStageError classifies a stage-invocation error using taskerr's
// disposition table (spec.md §7): rate-limit/transient errors are not
// handled here (internal/agent's retry policy already absorbs those at the
// provider boundary), so reaching this function with one of those kinds
// means retries were exhausted and the task terminates.
func (o *Orchestrator) handleStageError(t *task.Task, err error) (bool, error) {
	kind, ok := taskerr.KindOf(err)
	if !ok {
		return true, o.terminate(t, "blocked", "internal_error: "+err.Error())
	}
	switch kind {
	case taskerr.KindCancelled:
		return true, o.terminate(t, "stopped", "cancelled")
	case taskerr.KindAuth:
		return true, o.terminate(t, "blocked", "auth_failure")
	default:
		return true, o.terminate(t, "blocked", string(kind)+": "+err.Error())
	}
}
