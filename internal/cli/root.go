// Package cli implements the cobra command surface named in spec.md §6:
// run, task status|list|resume, mcp list|configure|installed. Flags parse
// directly into internal/config.Config and internal/orchestrator calls;
// no interactive wizard beyond the terminal stage.Callbacks implementation
// in callbacks.go.
package cli

import (
	"fmt"
	"os"

	"github.com/andywolf/taskrunner/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskrunner",
	Short: "Autonomous coding-task runner",
	Long: `taskrunner drives an AI coding agent through a fixed pipeline of
intake, planning, condition elicitation, iterative delivery, verification,
and finalization, persisting every stage transition and iteration so a
crashed or interrupted run can resume exactly where it left off.

Example:
  taskrunner run "add input validation to the signup form" --path .`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .taskrunner.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".taskrunner")
	}

	viper.SetEnvPrefix("TASKRUNNER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
