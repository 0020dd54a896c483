package mcp

// DefaultRegistry returns a ServerRegistry pre-populated with the small set
// of MCP servers a coding-task runner commonly wants to offer during
// MCPSelection: source control, web fetch, and a generic database
// inspector. Callers can Register additional templates on top of it.
func DefaultRegistry() *ServerRegistry {
	r := NewServerRegistry()
	for _, t := range defaultTemplates {
		r.Register(t)
	}
	return r
}

var defaultTemplates = []ServerTemplate{
	{
		Name:           "filesystem",
		Description:    "Read and write files under a workspace root",
		Type:           ServerTypeStdio,
		InstallSource:  InstallNPM,
		InstallPackage: "@modelcontextprotocol/server-filesystem",
		Command:        "npx",
		DefaultArgs:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
		Category:       "filesystem",
	},
	{
		Name:           "github",
		Description:    "Query and operate on GitHub issues, PRs, and repos",
		Type:           ServerTypeStdio,
		InstallSource:  InstallNPM,
		InstallPackage: "@modelcontextprotocol/server-github",
		Command:        "npx",
		DefaultArgs:    []string{"-y", "@modelcontextprotocol/server-github"},
		RequiredCredentials: []string{"GITHUB_PERSONAL_ACCESS_TOKEN"},
		CredentialDescriptions: map[string]string{
			"GITHUB_PERSONAL_ACCESS_TOKEN": "A GitHub personal access token with repo scope",
		},
		Category: "source-control",
	},
	{
		Name:           "postgres",
		Description:    "Inspect schema and run read-only queries against a Postgres database",
		Type:           ServerTypeStdio,
		InstallSource:  InstallNPM,
		InstallPackage: "@modelcontextprotocol/server-postgres",
		Command:        "npx",
		DefaultArgs:    []string{"-y", "@modelcontextprotocol/server-postgres"},
		RequiredCredentials: []string{"DATABASE_URL"},
		CredentialDescriptions: map[string]string{
			"DATABASE_URL": "Postgres connection string",
		},
		Category: "database",
	},
	{
		Name:           "fetch",
		Description:    "Fetch and convert web pages to markdown for the agent to read",
		Type:           ServerTypeStdio,
		InstallSource:  InstallPip,
		InstallPackage: "mcp-server-fetch",
		Command:        "uvx",
		DefaultArgs:    []string{"mcp-server-fetch"},
		Category:       "web",
	},
	{
		Name:        "remote-context",
		Description: "Hosted context server reachable over SSE",
		Type:        ServerTypeSSE,
		InstallSource: InstallNone,
		URLTemplate: "https://${MCP_HOST}/sse",
		RequiredCredentials: []string{"MCP_HOST"},
		Category:    "remote",
	},
}
