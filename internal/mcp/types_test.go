package mcp

import "testing"

func TestServerConfig_ToSDKConfig_Stdio(t *testing.T) {
	c := ServerConfig{
		Name:    "filesystem",
		Type:    ServerTypeStdio,
		Command: "npx",
		Args:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
	}
	cfg, err := c.ToSDKConfig()
	if err != nil {
		t.Fatalf("ToSDKConfig() error: %v", err)
	}
	if cfg["type"] != "stdio" || cfg["command"] != "npx" {
		t.Errorf("ToSDKConfig() = %+v, want stdio/npx", cfg)
	}
}

func TestServerConfig_ToSDKConfig_StdioMissingCommand(t *testing.T) {
	c := ServerConfig{Name: "broken", Type: ServerTypeStdio}
	if _, err := c.ToSDKConfig(); err == nil {
		t.Fatal("ToSDKConfig() should fail without a command")
	}
}

func TestServerConfig_ToSDKConfig_SSE(t *testing.T) {
	c := ServerConfig{Name: "remote", Type: ServerTypeSSE, URL: "https://example.com/sse"}
	cfg, err := c.ToSDKConfig()
	if err != nil {
		t.Fatalf("ToSDKConfig() error: %v", err)
	}
	if cfg["type"] != "sse" || cfg["url"] != "https://example.com/sse" {
		t.Errorf("ToSDKConfig() = %+v, want sse/url", cfg)
	}
}

func TestServerConfig_ToSDKConfig_HTTPMissingURL(t *testing.T) {
	c := ServerConfig{Name: "broken", Type: ServerTypeHTTP}
	if _, err := c.ToSDKConfig(); err == nil {
		t.Fatal("ToSDKConfig() should fail without a url")
	}
}

func TestServerTemplate_ToConfig_SubstitutesCredentialsAndFiltersEnv(t *testing.T) {
	tmpl := ServerTemplate{
		Name:                "github",
		Type:                ServerTypeStdio,
		Command:             "npx",
		DefaultArgs:         []string{"-y", "server-github"},
		RequiredCredentials: []string{"GITHUB_PERSONAL_ACCESS_TOKEN"},
	}
	cfg := tmpl.ToConfig(map[string]string{
		"GITHUB_PERSONAL_ACCESS_TOKEN": "secret-token",
		"UNRELATED":                    "should-not-leak",
	}, []string{"--verbose"})

	if cfg.Env["GITHUB_PERSONAL_ACCESS_TOKEN"] != "secret-token" {
		t.Errorf("Env[token] = %q, want secret-token", cfg.Env["GITHUB_PERSONAL_ACCESS_TOKEN"])
	}
	if _, leaked := cfg.Env["UNRELATED"]; leaked {
		t.Error("ToConfig() should not copy credentials outside RequiredCredentials")
	}
	if len(cfg.Args) != 3 || cfg.Args[2] != "--verbose" {
		t.Errorf("Args = %v, want default args plus --verbose", cfg.Args)
	}
}

func TestServerTemplate_ToConfig_SubstitutesURLTemplate(t *testing.T) {
	tmpl := ServerTemplate{
		Name:                "remote-context",
		Type:                ServerTypeSSE,
		URLTemplate:         "https://${MCP_HOST}/sse",
		RequiredCredentials: []string{"MCP_HOST"},
	}
	cfg := tmpl.ToConfig(map[string]string{"MCP_HOST": "ctx.example.com"}, nil)
	want := "https://ctx.example.com/sse"
	if cfg.URL != want {
		t.Errorf("URL = %q, want %q", cfg.URL, want)
	}
}

func TestDefaultRegistry_ContainsKnownTemplates(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"filesystem", "github", "postgres", "fetch", "remote-context"} {
		if !r.Exists(name) {
			t.Errorf("DefaultRegistry() missing template %q", name)
		}
	}
}

func TestServerRegistry_ListByCategoryAndCategories(t *testing.T) {
	r := DefaultRegistry()
	cats := r.GetCategories()
	if len(cats) == 0 {
		t.Fatal("GetCategories() returned none")
	}
	dbServers := r.ListByCategory("database")
	if len(dbServers) != 1 || dbServers[0].Name != "postgres" {
		t.Errorf("ListByCategory(database) = %+v, want [postgres]", dbServers)
	}
}

func TestServerRegistry_GetMissingReturnsFalse(t *testing.T) {
	r := NewServerRegistry()
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get() should report false for an unregistered name")
	}
}

func TestServerRegistry_ListAllIsSortedByName(t *testing.T) {
	r := DefaultRegistry()
	all := r.ListAll()
	for i := 1; i < len(all); i++ {
		if all[i-1].Name > all[i].Name {
			t.Fatalf("ListAll() not sorted: %q before %q", all[i-1].Name, all[i].Name)
		}
	}
}
