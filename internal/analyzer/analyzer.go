// Package analyzer implements the VerificationInventory stage's
// collaborator: it asks an agent to read a workspace's own configuration
// files and report back the commands, conventions, and frameworks it
// finds, falling back to internal/scanner's static heuristic scan for
// whichever commands the agent's response left nil (a malformed or
// empty agent response degrades to a scanner-only ProjectAnalysis).
package analyzer

import (
	"context"
	"fmt"

	"github.com/andywolf/taskrunner/internal/agent"
	"github.com/andywolf/taskrunner/internal/jsonextract"
	"github.com/andywolf/taskrunner/internal/scanner"
)

// Commands holds the verification commands an analysis discovered, by
// kind. A nil entry means that kind was not found.
type Commands struct {
	Test      *string `json:"test"`
	Lint      *string `json:"lint"`
	Build     *string `json:"build"`
	Typecheck *string `json:"typecheck"`
}

// ProjectAnalysis is what VerificationInventory needs about a workspace:
// its rough layout, the verification commands discovered, and the
// conventions/frameworks the agent noticed along the way.
type ProjectAnalysis struct {
	Structure   map[string]interface{} `json:"structure"`
	Commands    Commands                `json:"commands"`
	Conventions []string                `json:"conventions"`
	Frameworks  []string                `json:"frameworks"`
}

var allowedTools = []string{"Read", "Glob", "Grep", "Bash"}

const analysisPrompt = `Analyze the project at %s and return a JSON with:
{
    "structure": {"root_files": [...], "src_dirs": [...], "test_dirs": [...]},
    "commands": {
        "test": "<command>" or null,
        "lint": "<command>" or null,
        "build": "<command>" or null,
        "typecheck": "<command>" or null
    },
    "conventions": ["<discovered convention>", ...],
    "frameworks": ["<discovered framework>", ...]
}

Read project config files to discover actual commands, conventions and frameworks used.
Return ONLY the JSON, no explanation or markdown code blocks.`

// Analyzer drives an agent.Provider to produce a ProjectAnalysis for a
// workspace path.
type Analyzer struct {
	provider agent.Provider
}

// New builds an Analyzer backed by provider.
func New(provider agent.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Analyze runs the agent against path, restricted to read-only inspection
// tools, and parses its response into a ProjectAnalysis, then fills any
// commands the agent left nil from a static scanner.Scan of path. A
// malformed or unparseable agent response degrades to an all-scanner
// ProjectAnalysis rather than an error: analysis is advisory input to
// later stages, not something worth failing the task over.
func (a *Analyzer) Analyze(ctx context.Context, path string, onMessage agent.MessageCallback) (ProjectAnalysis, error) {
	result, err := a.provider.Execute(ctx, agent.Request{
		Prompt:       fmtPrompt(path),
		AllowedTools: allowedTools,
		Cwd:          path,
	}, onMessage)
	if err != nil {
		return ProjectAnalysis{}, err
	}

	analysis := parseResponse(result.FinalResponse)
	return fillFromScan(analysis, path), nil
}

func fmtPrompt(path string) string {
	return fmt.Sprintf(analysisPrompt, path)
}

func parseResponse(response string) ProjectAnalysis {
	var analysis ProjectAnalysis
	if err := jsonextract.Object(response, &analysis); err != nil {
		return ProjectAnalysis{}
	}
	return analysis
}

// fillFromScan runs a static scanner.Scan of path and uses its findings to
// fill any of analysis's nil commands or empty frameworks, preferring
// whatever the agent already reported. Scan errors are ignored: a failed
// static scan just means no fallback is available, not a failed analysis.
func fillFromScan(analysis ProjectAnalysis, path string) ProjectAnalysis {
	info, err := scanner.New(path).Scan()
	if err != nil {
		return analysis
	}

	analysis.Commands.Test = firstOrExisting(analysis.Commands.Test, info.TestCommands)
	analysis.Commands.Lint = firstOrExisting(analysis.Commands.Lint, info.LintCommands)
	analysis.Commands.Build = firstOrExisting(analysis.Commands.Build, info.BuildCommands)

	if len(analysis.Frameworks) == 0 && info.Framework != "" {
		analysis.Frameworks = []string{info.Framework}
	}
	return analysis
}

func firstOrExisting(existing *string, candidates []string) *string {
	if existing != nil {
		return existing
	}
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[0]
}
