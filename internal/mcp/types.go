// Package mcp defines the value types describing an MCP (Model Context
// Protocol) server: its transport configuration and the predefined
// template catalog a MCPSelection stage chooses from. Installing or
// configuring a server is out of this module's scope; these are the value
// shapes that cross the Orchestrator's on_mcp_selection callback.
package mcp

import "fmt"

// ServerType is an MCP server's transport.
type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
	ServerTypeHTTP  ServerType = "http"
)

// InstallSource is how a server's code is obtained.
type InstallSource string

const (
	InstallNPM    InstallSource = "npm"
	InstallPip    InstallSource = "pip"
	InstallBinary InstallSource = "binary"
	InstallNone   InstallSource = "none"
)

// ServerConfig is a concrete, ready-to-launch MCP server configuration.
type ServerConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Type        ServerType        `json:"type" yaml:"type"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`

	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	InstallSource     InstallSource `json:"install_source,omitempty" yaml:"install_source,omitempty"`
	InstallPackage    string        `json:"install_package,omitempty" yaml:"install_package,omitempty"`
	RequiredCredentials []string    `json:"required_credentials,omitempty" yaml:"required_credentials,omitempty"`
}

// ToSDKConfig renders the shape the agent SDK expects for this server,
// branching on transport type. It rejects a config missing the fields its
// transport requires, mirroring the validation the original value object
// performed at construction time.
func (c ServerConfig) ToSDKConfig() (map[string]interface{}, error) {
	switch c.Type {
	case ServerTypeStdio:
		if c.Command == "" {
			return nil, fmt.Errorf("mcp: stdio server %q requires a command", c.Name)
		}
		cfg := map[string]interface{}{
			"type":    "stdio",
			"command": c.Command,
		}
		if len(c.Args) > 0 {
			cfg["args"] = c.Args
		}
		if len(c.Env) > 0 {
			cfg["env"] = c.Env
		}
		return cfg, nil

	case ServerTypeSSE, ServerTypeHTTP:
		if c.URL == "" {
			return nil, fmt.Errorf("mcp: %s server %q requires a url", c.Type, c.Name)
		}
		cfg := map[string]interface{}{
			"type": string(c.Type),
			"url":  c.URL,
		}
		if len(c.Headers) > 0 {
			cfg["headers"] = c.Headers
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("mcp: unknown server type %q for %q", c.Type, c.Name)
	}
}

// ServerStatus describes where a server sits in the install/configure
// lifecycle from the CLI's point of view.
type ServerStatus string

const (
	StatusNotInstalled ServerStatus = "not_installed"
	StatusInstalled    ServerStatus = "installed"
	StatusConfigured   ServerStatus = "configured"
	StatusNotConfigured ServerStatus = "not_configured"
)

// ServerTemplate is a predefined, parameterizable MCP server entry in the
// registry: everything needed to produce a concrete ServerConfig once
// credentials are supplied.
type ServerTemplate struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Type        ServerType `yaml:"type"`

	InstallSource  InstallSource `yaml:"install_source"`
	InstallPackage string        `yaml:"install_package,omitempty"`
	Command        string        `yaml:"command,omitempty"`
	DefaultArgs    []string      `yaml:"default_args,omitempty"`

	RequiredCredentials   []string          `yaml:"required_credentials,omitempty"`
	CredentialDescriptions map[string]string `yaml:"credential_descriptions,omitempty"`

	URLTemplate string `yaml:"url_template,omitempty"`
	Category    string `yaml:"category,omitempty"`
}

// ToConfig materializes a ServerConfig from the template, substituting
// ${KEY} placeholders in URLTemplate from credentials and filtering
// credentials down to the ones this template actually requires.
func (t ServerTemplate) ToConfig(credentials map[string]string, extraArgs []string) ServerConfig {
	env := make(map[string]string)
	for _, key := range t.RequiredCredentials {
		if v, ok := credentials[key]; ok {
			env[key] = v
		}
	}

	url := t.URLTemplate
	for key, value := range credentials {
		url = replaceAll(url, "${"+key+"}", value)
	}

	args := make([]string, 0, len(t.DefaultArgs)+len(extraArgs))
	args = append(args, t.DefaultArgs...)
	args = append(args, extraArgs...)

	return ServerConfig{
		Name:                t.Name,
		Type:                t.Type,
		Description:         t.Description,
		Command:             t.Command,
		Args:                args,
		Env:                 env,
		URL:                 url,
		InstallSource:       t.InstallSource,
		InstallPackage:      t.InstallPackage,
		RequiredCredentials: append([]string(nil), t.RequiredCredentials...),
	}
}

func replaceAll(s, old, new string) string {
	if old == "" || s == "" {
		return s
	}
	out := ""
	for {
		i := indexOf(s, old)
		if i < 0 {
			return out + s
		}
		out += s[:i] + new
		s = s[i+len(old):]
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
