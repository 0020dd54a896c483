package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andywolf/taskrunner/internal/agent"
	_ "github.com/andywolf/taskrunner/internal/agent/claudecode" // registers the "claude-code" provider
	"github.com/andywolf/taskrunner/internal/agent/event"
	"github.com/andywolf/taskrunner/internal/config"
	"github.com/andywolf/taskrunner/internal/mcp"
	"github.com/andywolf/taskrunner/internal/observability"
	"github.com/andywolf/taskrunner/internal/orchestrator"
	"github.com/andywolf/taskrunner/internal/repo"
	"github.com/andywolf/taskrunner/internal/task"
	"github.com/andywolf/taskrunner/internal/taskrepo"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// exitCoder lets main translate a command's error into spec.md §6's exit
// codes (0 success, 1 user-facing error, 2 task terminated Blocked/Stopped)
// without this package importing os.Exit directly from deep inside RunE.
type exitCoder struct {
	code int
	err  error
}

func (e *exitCoder) Error() string { return e.err.Error() }
func (e *exitCoder) Unwrap() error { return e.err }

func exitErr(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCoder{code: code, err: err}
}

// ExitCode extracts the process exit code a cli error should produce,
// defaulting to 1 for any error not explicitly classified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	ec, ok := err.(*exitCoder)
	if !ok {
		return 1
	}
	return ec.code
}

var runCmd = &cobra.Command{
	Use:   "run <description>",
	Short: "Run a coding task to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("path", ".", "workspace root to run the task against")
	runCmd.Flags().String("provider", "", "agent provider to use (default from config)")
	runCmd.Flags().Float64("timeout", 2, "maximum wall-clock hours before the task is stopped with budget_exhausted")
	runCmd.Flags().Bool("auto-approve", false, "approve plans, conditions, and MCP suggestions without prompting")
	runCmd.Flags().Bool("baseline", false, "run verification against the pre-existing baseline instead of this task's conditions")
	runCmd.Flags().String("state-dir", "", "directory for task state (default from config)")
	runCmd.Flags().String("task-id", "", "resume an existing task by id instead of starting a new one")
	runCmd.Flags().Bool("allow-mcp", false, "allow the MCPSelection stage to offer MCP servers")
	runCmd.Flags().StringSlice("mcp-server", nil, "MCP server template names to make available (requires --allow-mcp)")
	runCmd.Flags().String("events-file", "", "mirror every iteration's agent events into one combined JSONL file, for tailing the whole task")
	rootCmd.AddCommand(runCmd)
}

// loadRunConfig loads config for commands that need it without going
// through runRun's flag overrides.
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, exitErr(1, err)
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	description := args[0]

	cfg, err := config.Load()
	if err != nil {
		return exitErr(1, fmt.Errorf("loading config: %w", err))
	}

	path, _ := cmd.Flags().GetString("path")
	providerName, _ := cmd.Flags().GetString("provider")
	timeoutHours, _ := cmd.Flags().GetFloat64("timeout")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	stateDir, _ := cmd.Flags().GetString("state-dir")
	taskIDFlag, _ := cmd.Flags().GetString("task-id")
	allowMCP, _ := cmd.Flags().GetBool("allow-mcp")
	mcpServers, _ := cmd.Flags().GetStringSlice("mcp-server")
	verbose, _ := cmd.Flags().GetBool("verbose")
	eventsFile, _ := cmd.Flags().GetString("events-file")

	if providerName != "" {
		cfg.Agent.Provider = providerName
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if allowMCP {
		cfg.MCP.Enabled = true
	}
	if len(mcpServers) > 0 {
		cfg.MCP.Servers = mcpServers
	}

	if err := cfg.ValidateForRun(); err != nil {
		return exitErr(1, err)
	}

	if !agent.Exists(cfg.Agent.Provider) {
		return exitErr(1, fmt.Errorf("unknown agent provider %q (known: %v)", cfg.Agent.Provider, agent.List()))
	}
	provider, err := agent.Get(cfg.Agent.Provider)
	if err != nil {
		return exitErr(1, err)
	}

	repository := taskrepo.NewTaskRepository(cfg.StateDir)
	multiRepo := repo.NewMultiRepoManager(4)
	var registry *mcp.ServerRegistry
	if cfg.MCP.Enabled {
		registry = mcp.DefaultRegistry()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutHours*float64(time.Hour)))
	defer cancel()

	var eventSink *event.FileSink
	if eventsFile != "" {
		eventSink, err = event.NewFileSink(eventsFile)
		if err != nil {
			return exitErr(1, fmt.Errorf("opening --events-file: %w", err))
		}
		defer eventSink.Close()
	}

	var t *task.Task
	if taskIDFlag != "" {
		id, err := uuid.Parse(taskIDFlag)
		if err != nil {
			return exitErr(1, fmt.Errorf("invalid --task-id: %w", err))
		}
		t, err = repository.Load(id)
		if err != nil {
			return exitErr(1, fmt.Errorf("loading task %s: %w", id, err))
		}

		logger := observability.New(ctx, cfg.Cloud, t.ID.String())
		defer logger.Close()
		callbacks := newTerminalCallbacks(os.Stdin, os.Stdout, autoApprove, verbose, logger)
		orch := orchestrator.New(repository, provider, registry, multiRepo, cfg.StateDir, callbacks)
		if cfg.Delivery.StagnationThreshold > 0 {
			orch.StagnationThreshold = cfg.Delivery.StagnationThreshold
		}
		orch.RetryLimits = agent.RetryLimits{
			MaxRateLimitRetries: cfg.Retry.MaxRateLimitRetries,
			MaxTransientRetries: cfg.Retry.MaxTransientRetries,
		}
		orch.Tracer = observability.NewLoggingTracer(logger)
		orch.EventSink = eventSink
		if err := orch.Resume(ctx, t); err != nil {
			return exitErr(1, err)
		}
	} else {
		budget := task.Budget{
			MaxIterations: cfg.Budget.MaxIterations,
			MaxDuration:   time.Duration(timeoutHours * float64(time.Hour)),
		}
		t = task.New(description, []string{path}, budget)
		if err := repository.Save(t); err != nil {
			return exitErr(1, fmt.Errorf("saving new task: %w", err))
		}

		logger := observability.New(ctx, cfg.Cloud, t.ID.String())
		defer logger.Close()
		callbacks := newTerminalCallbacks(os.Stdin, os.Stdout, autoApprove, verbose, logger)
		orch := orchestrator.New(repository, provider, registry, multiRepo, cfg.StateDir, callbacks)
		if cfg.Delivery.StagnationThreshold > 0 {
			orch.StagnationThreshold = cfg.Delivery.StagnationThreshold
		}
		orch.RetryLimits = agent.RetryLimits{
			MaxRateLimitRetries: cfg.Retry.MaxRateLimitRetries,
			MaxTransientRetries: cfg.Retry.MaxTransientRetries,
		}
		orch.Tracer = observability.NewLoggingTracer(logger)
		orch.EventSink = eventSink
		if err := orch.Run(ctx, t); err != nil {
			return exitErr(1, err)
		}
	}

	fmt.Printf("\ntask %s finished: %s\n", t.ID, t.Status)
	if t.TerminalReason != "" {
		fmt.Printf("reason: %s\n", t.TerminalReason)
	}

	switch t.Status {
	case task.StatusDone:
		return nil
	case task.StatusBlocked, task.StatusStopped:
		return exitErr(2, fmt.Errorf("task ended in status %s", t.Status))
	default:
		return nil
	}
}
