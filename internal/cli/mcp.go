package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/andywolf/taskrunner/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect and configure MCP servers",
}

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known MCP server templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		registry := mcp.DefaultRegistry()

		var templates []mcp.ServerTemplate
		if category != "" {
			templates = registry.ListByCategory(category)
		} else {
			templates = registry.ListAll()
		}

		if len(templates) == 0 {
			fmt.Println("No MCP servers found.")
			return nil
		}

		for _, t := range templates {
			fmt.Printf("%-18s %-14s %s\n", t.Name, t.Category, t.Description)
			if len(t.RequiredCredentials) > 0 {
				fmt.Printf("%-18s   requires: %s\n", "", strings.Join(t.RequiredCredentials, ", "))
			}
		}
		return nil
	},
}

var mcpConfigureCmd = &cobra.Command{
	Use:   "configure <server>",
	Short: "Configure an MCP server's credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		registry := mcp.DefaultRegistry()

		tmpl, ok := registry.Get(name)
		if !ok {
			return fmt.Errorf("unknown mcp server %q", name)
		}

		if len(tmpl.RequiredCredentials) == 0 {
			fmt.Printf("%s requires no credentials.\n", name)
			return nil
		}

		reader := bufio.NewReader(os.Stdin)
		credentials := make(map[string]string, len(tmpl.RequiredCredentials))
		for _, key := range tmpl.RequiredCredentials {
			if desc, ok := tmpl.CredentialDescriptions[key]; ok {
				fmt.Printf("%s (%s): ", key, desc)
			} else {
				fmt.Printf("%s: ", key)
			}
			value, _ := reader.ReadString('\n')
			credentials[key] = strings.TrimSpace(value)
		}

		cfg := tmpl.ToConfig(credentials, nil)
		if _, err := cfg.ToSDKConfig(); err != nil {
			return fmt.Errorf("configuring %s: %w", name, err)
		}

		fmt.Printf("%s configured.\n", name)
		return nil
	},
}

var mcpInstalledCmd = &cobra.Command{
	Use:   "installed",
	Short: "Show which known servers are configured for the current run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig()
		if err != nil {
			return err
		}

		registry := mcp.DefaultRegistry()
		for _, t := range registry.ListAll() {
			status := mcp.StatusNotConfigured
			for _, enabled := range cfg.MCP.Servers {
				if enabled == t.Name {
					status = mcp.StatusConfigured
					break
				}
			}
			fmt.Printf("%-18s %s\n", t.Name, status)
		}
		return nil
	},
}

func init() {
	mcpListCmd.Flags().String("category", "", "filter by category")
	mcpCmd.AddCommand(mcpListCmd, mcpConfigureCmd, mcpInstalledCmd)
	rootCmd.AddCommand(mcpCmd)
}
