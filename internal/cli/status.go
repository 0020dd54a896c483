package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/andywolf/taskrunner/internal/agent"
	_ "github.com/andywolf/taskrunner/internal/agent/claudecode"
	"github.com/andywolf/taskrunner/internal/agent/event"
	"github.com/andywolf/taskrunner/internal/mcp"
	"github.com/andywolf/taskrunner/internal/observability"
	"github.com/andywolf/taskrunner/internal/orchestrator"
	"github.com/andywolf/taskrunner/internal/repo"
	"github.com/andywolf/taskrunner/internal/taskrepo"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and resume tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's current stage, status, and conditions",
	Args:  cobra.ExactArgs(1),
	RunE:  taskStatus,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every task the repository holds a record for",
	RunE:  taskList,
}

var taskResumeCmd = &cobra.Command{
	Use:   "resume <task-id>",
	Short: "Resume a gated or crashed task at its last recorded stage",
	Args:  cobra.ExactArgs(1),
	RunE:  taskResume,
}

func init() {
	taskResumeCmd.Flags().Bool("auto-approve", false, "approve plans, conditions, and MCP suggestions without prompting")
	taskResumeCmd.Flags().String("events-file", "", "mirror every iteration's agent events into one combined JSONL file, for tailing the whole task")
	taskCmd.AddCommand(taskStatusCmd, taskListCmd, taskResumeCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return exitErr(1, fmt.Errorf("invalid task id: %w", err))
	}

	repository := taskrepo.NewTaskRepository(cfg.StateDir)
	t, err := repository.Load(id)
	if err != nil {
		return exitErr(1, fmt.Errorf("loading task %s: %w", id, err))
	}

	fmt.Printf("task:        %s\n", t.ID)
	fmt.Printf("description: %s\n", t.Description)
	fmt.Printf("status:      %s\n", t.Status)
	fmt.Printf("stage:       %s\n", t.StageName)
	if t.TerminalReason != "" {
		fmt.Printf("reason:      %s\n", t.TerminalReason)
	}
	fmt.Printf("iterations:  %d\n", len(t.Iterations))

	if len(t.Conditions) > 0 {
		fmt.Println("\nconditions:")
		for _, c := range t.Conditions {
			status := "pending"
			if c.LastResult != nil {
				status = string(c.LastResult.Status)
			}
			fmt.Printf("  [%s] %s (%s): %s\n", c.Role, c.Description, c.Command, status)
		}
	}
	return nil
}

func taskList(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	repository := taskrepo.NewTaskRepository(cfg.StateDir)
	ids, err := repository.List()
	if err != nil {
		return exitErr(1, fmt.Errorf("listing tasks: %w", err))
	}

	if len(ids) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	for _, id := range ids {
		t, err := repository.Load(id)
		if err != nil {
			fmt.Printf("%s  <error loading: %v>\n", id, err)
			continue
		}
		fmt.Printf("%s  %-10s  %-12s  %s\n", t.ID, t.Status, t.StageName, t.Description)
	}
	return nil
}

func taskResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return exitErr(1, fmt.Errorf("invalid task id: %w", err))
	}

	if !agent.Exists(cfg.Agent.Provider) {
		return exitErr(1, fmt.Errorf("unknown agent provider %q", cfg.Agent.Provider))
	}
	provider, err := agent.Get(cfg.Agent.Provider)
	if err != nil {
		return exitErr(1, err)
	}

	repository := taskrepo.NewTaskRepository(cfg.StateDir)
	t, err := repository.Load(id)
	if err != nil {
		return exitErr(1, fmt.Errorf("loading task %s: %w", id, err))
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	eventsFile, _ := cmd.Flags().GetString("events-file")

	ctx := context.Background()
	logger := observability.New(ctx, cfg.Cloud, t.ID.String())
	defer logger.Close()
	callbacks := newTerminalCallbacks(os.Stdin, os.Stdout, autoApprove, verbose, logger)

	multiRepo := repo.NewMultiRepoManager(4)
	var registry *mcp.ServerRegistry
	if cfg.MCP.Enabled {
		registry = mcp.DefaultRegistry()
	}
	orch := orchestrator.New(repository, provider, registry, multiRepo, cfg.StateDir, callbacks)
	if cfg.Delivery.StagnationThreshold > 0 {
		orch.StagnationThreshold = cfg.Delivery.StagnationThreshold
	}
	orch.RetryLimits = agent.RetryLimits{
		MaxRateLimitRetries: cfg.Retry.MaxRateLimitRetries,
		MaxTransientRetries: cfg.Retry.MaxTransientRetries,
	}
	orch.Tracer = observability.NewLoggingTracer(logger)

	if eventsFile != "" {
		sink, err := event.NewFileSink(eventsFile)
		if err != nil {
			return exitErr(1, fmt.Errorf("opening --events-file: %w", err))
		}
		defer sink.Close()
		orch.EventSink = sink
	}

	if err := orch.Resume(ctx, t); err != nil {
		return exitErr(1, err)
	}

	fmt.Printf("\ntask %s finished: %s\n", t.ID, t.Status)
	switch t.Status {
	case "done":
		return nil
	case "blocked", "stopped":
		return exitErr(2, fmt.Errorf("task ended in status %s", t.Status))
	default:
		return nil
	}
}
