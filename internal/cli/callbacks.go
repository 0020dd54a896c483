package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/andywolf/taskrunner/internal/observability"
	"github.com/andywolf/taskrunner/internal/stage"
	"github.com/andywolf/taskrunner/internal/task"
)

// terminalCallbacks implements stage.Callbacks by prompting on a terminal.
// When AutoApprove is set, OnPlanAndConditions and OnMCPSelection return
// immediately without prompting, matching the --auto-approve flag named in
// spec.md §6. When Logger is non-nil, every agent message and stage
// transition is also mirrored to it, so a headless run still leaves a
// structured trail even with Verbose off.
type terminalCallbacks struct {
	In          *bufio.Reader
	Out         io.Writer
	AutoApprove bool
	Verbose     bool
	Logger      *observability.Logger
}

func newTerminalCallbacks(in io.Reader, out io.Writer, autoApprove, verbose bool, logger *observability.Logger) *terminalCallbacks {
	return &terminalCallbacks{In: bufio.NewReader(in), Out: out, AutoApprove: autoApprove, Verbose: verbose, Logger: logger}
}

func (c *terminalCallbacks) prompt(label string) string {
	fmt.Fprint(c.Out, label)
	line, _ := c.In.ReadString('\n')
	return strings.TrimSpace(line)
}

func (c *terminalCallbacks) OnPlanAndConditions(plan *task.Plan, conditions []task.Condition) (stage.ApprovalDecision, error) {
	fmt.Fprintf(c.Out, "\nPlan: %s\n", plan.Goal)
	for _, step := range plan.Steps {
		fmt.Fprintf(c.Out, "  %d. %s\n", step.Number, step.Description)
	}
	if len(plan.Boundaries) > 0 {
		fmt.Fprintln(c.Out, "Boundaries:")
		for _, b := range plan.Boundaries {
			fmt.Fprintf(c.Out, "  - %s\n", b)
		}
	}
	fmt.Fprintln(c.Out, "\nConditions:")
	for _, cond := range conditions {
		fmt.Fprintf(c.Out, "  [%s] %s (%s)\n", cond.Role, cond.Description, cond.Command)
	}

	if c.AutoApprove {
		fmt.Fprintln(c.Out, "\n--auto-approve set: approving plan and conditions.")
		return stage.ApprovalDecision{Kind: stage.Approved}, nil
	}

	answer := c.prompt("\nApprove this plan and these conditions? [y/N/feedback]: ")
	switch strings.ToLower(answer) {
	case "y", "yes":
		return stage.ApprovalDecision{Kind: stage.Approved}, nil
	case "n", "no", "":
		return stage.ApprovalDecision{Kind: stage.Rejected}, nil
	default:
		return stage.ApprovalDecision{Kind: stage.FeedbackForPlan, FeedbackText: answer}, nil
	}
}

func (c *terminalCallbacks) OnClarification(questions []task.ClarificationQuestion) ([]task.ClarificationAnswer, error) {
	answers := make([]task.ClarificationAnswer, 0, len(questions))
	for _, q := range questions {
		if c.AutoApprove {
			answers = append(answers, task.ClarificationAnswer{QuestionID: q.ID, SelectedOption: task.DecideForMeOption.Key})
			continue
		}

		fmt.Fprintf(c.Out, "\n%s\n", q.Question)
		if q.Context != "" {
			fmt.Fprintf(c.Out, "  %s\n", q.Context)
		}
		for _, opt := range q.Options {
			fmt.Fprintf(c.Out, "  [%s] %s\n", opt.Key, opt.Label)
		}
		fmt.Fprintf(c.Out, "  [%s] %s\n", task.DecideForMeOption.Key, task.DecideForMeOption.Label)

		choice := c.prompt("Choose: ")
		if choice == "" {
			choice = task.DecideForMeOption.Key
		}
		answers = append(answers, task.ClarificationAnswer{QuestionID: q.ID, SelectedOption: choice})
	}
	return answers, nil
}

func (c *terminalCallbacks) OnMCPSelection(suggestions []string) ([]string, error) {
	if len(suggestions) == 0 {
		return nil, nil
	}
	if c.AutoApprove {
		return suggestions, nil
	}

	fmt.Fprintf(c.Out, "\nSuggested MCP servers: %s\n", strings.Join(suggestions, ", "))
	answer := c.prompt("Enable which (comma-separated, blank for none)? ")
	if answer == "" {
		return nil, nil
	}
	parts := strings.Split(answer, ",")
	selected := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			selected = append(selected, p)
		}
	}
	return selected, nil
}

func (c *terminalCallbacks) OnAgentMessage(msg task.AgentMessage) {
	if c.Logger != nil && msg.Role == task.RoleToolUse {
		c.Logger.Log(observability.SeverityDebug, "agent tool use", map[string]string{"tool": msg.ToolName})
	}
	if !c.Verbose {
		return
	}
	switch msg.Role {
	case task.RoleToolUse:
		fmt.Fprintf(c.Out, "  > %s\n", msg.ToolName)
	case task.RoleAssistant:
		fmt.Fprintf(c.Out, "  %s\n", msg.Content)
	}
}

func (c *terminalCallbacks) OnStage(name stage.Name, isStarting bool, durationSeconds float64) {
	if c.Logger != nil {
		if isStarting {
			c.Logger.Log(observability.SeverityInfo, "stage started", map[string]string{"stage": string(name)})
		} else {
			c.Logger.Log(observability.SeverityInfo, "stage ended", map[string]string{"stage": string(name)})
		}
	}

	if isStarting {
		fmt.Fprintf(c.Out, "==> %s\n", name)
		return
	}
	if c.Verbose {
		fmt.Fprintf(c.Out, "<== %s (%.1fs)\n", name, durationSeconds)
	}
}
