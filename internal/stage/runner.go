package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/analyzer"
	"github.com/andywolf/taskrunner/internal/checkrunner"
	"github.com/andywolf/taskrunner/internal/mcp"
	"github.com/andywolf/taskrunner/internal/store"
	"github.com/andywolf/taskrunner/internal/task"
)

// MaxStageAttempts is the "single retry then Blocked" ceiling a
// parse-failing stage gets before the pipeline gives up on it (spec.md
// §4.1 "Failure semantics").
const MaxStageAttempts = 2

// Runner drives one stage invocation: it owns the agent provider and the
// supporting services a stage's implementation may call (project analysis,
// MCP catalog, shell checks, artifact persistence), and defers every
// user-facing decision to Callbacks.
type Runner struct {
	Provider  agent.Provider
	Analyzer  *analyzer.Analyzer
	Registry  *mcp.ServerRegistry
	Checks    *checkrunner.CheckRunner
	Artifacts *store.ArtifactStore
	Evidence  *store.EvidenceStore
	Callbacks Callbacks
}

// New builds a Runner from its constituent services.
func New(provider agent.Provider, reg *mcp.ServerRegistry, artifacts *store.ArtifactStore, evidence *store.EvidenceStore, callbacks Callbacks) *Runner {
	return &Runner{
		Provider:  provider,
		Analyzer:  analyzer.New(provider),
		Registry:  reg,
		Checks:    checkrunner.New(),
		Artifacts: artifacts,
		Evidence:  evidence,
		Callbacks: callbacks,
	}
}

func (r *Runner) workspaceRoot(t *task.Task) string {
	return r.WorkspaceRoot(t)
}

// WorkspaceRoot returns the directory agent calls and shell checks for t
// should run in: t's first configured source, or "." if none was given.
func (r *Runner) WorkspaceRoot(t *task.Task) string {
	if len(t.Sources) > 0 {
		return t.Sources[0]
	}
	return "."
}

func (r *Runner) onMessage(msg task.AgentMessage) {
	if r.Callbacks != nil {
		r.Callbacks.OnAgentMessage(msg)
	}
}

func (r *Runner) ask(ctx context.Context, t *task.Task, prompt string, tools []string) (string, error) {
	result, err := r.Provider.Execute(ctx, agent.Request{
		Prompt:       prompt,
		AllowedTools: tools,
		Cwd:          r.workspaceRoot(t),
		MCPServers:   t.MCPServers,
	}, r.onMessage)
	if err != nil {
		return "", err
	}
	return result.FinalResponse, nil
}

// Run executes one invocation of stage name against t, consuming and
// advancing t.StageAttempt as needed. hint carries context a Loop outcome
// attached on the prior invocation (e.g. a parse-failure reason, or the
// user's FeedbackForPlan text); it is "" on a fresh entry into the stage.
// Run never mutates t.Status or t.StageName; the caller
// (internal/orchestrator) applies the returned Outcome.
func (r *Runner) Run(ctx context.Context, t *task.Task, name Name, hint string) (Outcome, error) {
	switch name {
	case Intake:
		return r.runIntake(ctx, t, hint)
	case Strategy:
		return r.runStrategy(ctx, t)
	case VerificationInventory:
		return r.runVerificationInventory(ctx, t)
	case MCPSelection:
		return r.runMCPSelection(ctx, t)
	case Clarification:
		return r.runClarification(ctx, t, hint)
	case Planning:
		return r.runPlanning(ctx, t, hint)
	case Conditions:
		return r.runConditions(ctx, t, hint)
	case ApprovalPlanConditions:
		return r.runApproval(ctx, t)
	case Delivery:
		return r.runDelivery(ctx, t)
	case Quality:
		return r.runQuality(ctx, t)
	case Finalize:
		return r.runFinalize(ctx, t)
	default:
		return Outcome{}, fmt.Errorf("unknown stage %q", name)
	}
}

func withHint(prompt, hint string) string {
	if hint == "" {
		return prompt
	}
	return prompt + " Additional context from a prior attempt: " + hint
}

func (r *Runner) runIntake(ctx context.Context, t *task.Task, hint string) (Outcome, error) {
	if len(t.Goals) > 0 || len(t.Constraints) > 0 {
		return ContinueOutcome(), nil
	}

	prompt := withHint(fmt.Sprintf(
		"Given this task description, extract explicit goals and constraints as JSON "+
			`{"goals": [...], "constraints": [...]}. Description: %s`, t.Description), hint)
	raw, err := r.ask(ctx, t, prompt, nil)
	if err != nil {
		return Outcome{}, err
	}

	fields, failure := task.ParseIntakeFields(raw)
	if failure != nil {
		return r.parseFailureOutcome(t, failure)
	}

	t.Goals = fields.Goals
	t.Constraints = fields.Constraints
	return ContinueOutcome(), nil
}

func (r *Runner) runStrategy(ctx context.Context, t *task.Task) (Outcome, error) {
	prompt := fmt.Sprintf(
		"In two or three sentences, state the overall approach you will take to satisfy "+
			"this task. Do not write code yet. Goals: %s. Constraints: %s.",
		strings.Join(t.Goals, "; "), strings.Join(t.Constraints, "; "))
	strategy, err := r.ask(ctx, t, prompt, nil)
	if err != nil {
		return Outcome{}, err
	}
	if err := r.Artifacts.AppendTimelineEvent(map[string]string{"stage": string(Strategy), "strategy": strategy}); err != nil {
		return Outcome{}, err
	}
	return ContinueOutcome(), nil
}

func (r *Runner) runVerificationInventory(ctx context.Context, t *task.Task) (Outcome, error) {
	analysis, err := r.Analyzer.Analyze(ctx, r.workspaceRoot(t), r.onMessage)
	if err != nil {
		return Outcome{}, err
	}
	if r.Evidence != nil {
		if err := r.Evidence.RecordBaselineInventory("project_analysis", analysis, ""); err != nil {
			return Outcome{}, err
		}
	}
	return ContinueOutcome(), nil
}

func (r *Runner) runMCPSelection(ctx context.Context, t *task.Task) (Outcome, error) {
	if r.Registry == nil {
		return ContinueOutcome(), nil
	}

	suggestions := suggestServers(r.Registry, t.Description, t.Goals)
	if len(suggestions) == 0 {
		return ContinueOutcome(), nil
	}

	selected, err := r.Callbacks.OnMCPSelection(suggestions)
	if err != nil {
		return Outcome{}, err
	}
	t.MCPServers = selected
	return ContinueOutcome(), nil
}

// suggestServers returns registered template names whose description or
// category shares a keyword with the task's description or goals, sorted
// for deterministic output.
func suggestServers(reg *mcp.ServerRegistry, description string, goals []string) []string {
	haystack := strings.ToLower(description + " " + strings.Join(goals, " "))
	var matches []string
	for _, tpl := range reg.ListAll() {
		needle := strings.ToLower(tpl.Name + " " + tpl.Category + " " + tpl.Description)
		for _, word := range strings.Fields(needle) {
			if len(word) > 3 && strings.Contains(haystack, word) {
				matches = append(matches, tpl.Name)
				break
			}
		}
	}
	sort.Strings(matches)
	return matches
}

func (r *Runner) runClarification(ctx context.Context, t *task.Task, hint string) (Outcome, error) {
	prompt := withHint(fmt.Sprintf(
		"List any ambiguous decisions that would change your implementation approach for "+
			`this task, as a JSON array of questions (empty array if none). Task: %s`, t.Description), hint)
	raw, err := r.ask(ctx, t, prompt, nil)
	if err != nil {
		return Outcome{}, err
	}

	questions, failure := task.ParseClarificationQuestions(raw)
	if failure != nil {
		return r.parseFailureOutcome(t, failure)
	}
	if len(questions) == 0 {
		return ContinueOutcome(), nil
	}

	answers, err := r.Callbacks.OnClarification(questions)
	if err != nil {
		return Outcome{}, err
	}
	t.Answers = answers
	return ContinueOutcome(), nil
}

func (r *Runner) runPlanning(ctx context.Context, t *task.Task, hint string) (Outcome, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce an implementation plan as JSON {\"goal\":..,\"steps\":[{\"number\":..,\"description\":..}],\"boundaries\":[..]}. ")
	fmt.Fprintf(&b, "Task: %s. Goals: %s. Constraints: %s.", t.Description, strings.Join(t.Goals, "; "), strings.Join(t.Constraints, "; "))
	for _, a := range t.Answers {
		fmt.Fprintf(&b, " Answer to %s: %s%s.", a.QuestionID, a.SelectedOption, a.CustomValue)
	}

	raw, err := r.ask(ctx, t, withHint(b.String(), hint), nil)
	if err != nil {
		return Outcome{}, err
	}

	plan, failure := task.ParsePlan(raw)
	if failure != nil {
		return r.parseFailureOutcome(t, failure)
	}

	t.Plan = plan
	return ContinueOutcome(), nil
}

func (r *Runner) runConditions(ctx context.Context, t *task.Task, hint string) (Outcome, error) {
	prompt := withHint(fmt.Sprintf(
		"Propose success conditions for this plan as a JSON array of "+
			`{"description":..,"role":"blocking"|"signal","command":..,"timeout_sec":..}. `+
			"Blocking conditions must have a shell command that exits non-zero on failure. Goal: %s",
		planGoal(t.Plan)), hint)
	raw, err := r.ask(ctx, t, prompt, nil)
	if err != nil {
		return Outcome{}, err
	}

	proposed, failure := task.ParseConditions(raw)
	if failure != nil {
		return r.parseFailureOutcome(t, failure)
	}

	t.Conditions = append(t.Conditions, proposed...)
	return ContinueOutcome(), nil
}

func planGoal(p *task.Plan) string {
	if p == nil {
		return ""
	}
	return p.Goal
}

func (r *Runner) runApproval(ctx context.Context, t *task.Task) (Outcome, error) {
	decision, err := r.Callbacks.OnPlanAndConditions(t.Plan, t.Conditions)
	if err != nil {
		return Outcome{}, err
	}

	switch decision.Kind {
	case Approved:
		for i := range t.Conditions {
			if t.Conditions[i].Approval == task.ApprovalPending {
				t.Conditions[i].Approval = task.ApprovalApproved
			}
		}
		return ContinueOutcome(), nil
	case Rejected:
		return StopOutcome("stopped", "rejected_by_user"), nil
	case FeedbackForPlan:
		return LoopOutcome(Planning, decision.FeedbackText), nil
	case EditConditions:
		t.Conditions = decision.EditedConditions
		return ContinueOutcome(), nil
	default:
		return Outcome{}, fmt.Errorf("unrecognized approval decision %q", decision.Kind)
	}
}

// runDelivery itself does no work: the iteration loop that drives the
// agent across multiple cycles lives in internal/orchestrator (spec.md
// §4.2), since it spans many agent calls and stagnation bookkeeping that
// does not fit the single-invocation shape every other stage has. Reaching
// Delivery simply tells the orchestrator to enter that loop.
func (r *Runner) runDelivery(ctx context.Context, t *task.Task) (Outcome, error) {
	return ContinueOutcome(), nil
}

func (r *Runner) runQuality(ctx context.Context, t *task.Task) (Outcome, error) {
	iteration := t.NextIterationNumber() - 1
	for i := range t.Conditions {
		c := &t.Conditions[i]
		if c.Role != task.RoleBlocking || c.Command == "" {
			continue
		}
		outcome := r.Checks.Run(ctx, checkrunner.Spec{
			ConditionID: c.ID,
			Command:     c.Command,
			Timeout:     time.Duration(c.TimeoutSec) * time.Second,
			Cwd:         r.workspaceRoot(t),
		})
		result := outcome.Result
		c.LastResult = &result
		if r.Evidence != nil {
			log := outcome.Stdout + outcome.Stderr
			if err := r.Evidence.RecordCheckResult(iteration, &result, log); err != nil {
				return Outcome{}, err
			}
		}
	}

	if t.AllBlockingPass() {
		return ContinueOutcome(), nil
	}
	return StopOutcome("blocked", "unmet blocking conditions: "+strings.Join(idStrings(t.FailingBlockingIDs()), ",")), nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *Runner) runFinalize(ctx context.Context, t *task.Task) (Outcome, error) {
	result := map[string]interface{}{
		"task_id":     t.ID,
		"description": t.Description,
		"conditions":  t.Conditions,
		"iterations":  len(t.Iterations),
	}
	if err := r.Artifacts.WriteFinalResult(result, "", ""); err != nil {
		return Outcome{}, err
	}
	return StopOutcome("done", "completed"), nil
}

// parseFailureOutcome implements the single-retry-then-Blocked policy: the
// first parse failure for a stage loops back into the same stage with the
// failure reason appended to its prompt as corrective context; a second
// consecutive failure gives up.
func (r *Runner) parseFailureOutcome(t *task.Task, failure *task.ParseFailure) (Outcome, error) {
	if t.StageAttempt < MaxStageAttempts-1 {
		return LoopOutcome(Name(failure.Stage), "previous response could not be parsed: "+failure.Reason), nil
	}
	return StopOutcome("blocked", "parse_failure"), nil
}
