// Command taskrunner is the CLI entry point: it wires internal/cli's
// cobra command tree and translates its error into the process exit code
// spec.md §6 defines (0 success, 1 user-facing error, 2 task terminated
// Blocked/Stopped).
package main

import (
	"fmt"
	"os"

	"github.com/andywolf/taskrunner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
