// Package config provides unified configuration for the antwort pipeline
// orchestration server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ANTWORT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the antwort server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Store         StoreConfig         `yaml:"store"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 0 (disabled; SSE streams run indefinitely)
	ProjectRoot  string        `yaml:"project_root"`  // default: "."
}

// PipelineConfig holds the Pipeline Driver's (component D) fixed,
// per-deployment configuration: the tool names it recognizes, the review
// round cap, the turn budget, tool timeout, and the prompt/guidelines
// material it embeds into the instruction handed to the upstream runtime.
type PipelineConfig struct {
	TranscribeTool string        `yaml:"transcribe_tool"` // default: "transcribe_audio"
	DraftTool      string        `yaml:"draft_tool"`      // default: "draft_document"
	ExportTool     string        `yaml:"export_tool"`     // default: "export_document"
	TodoTool       string        `yaml:"todo_tool"`       // default: "TodoWrite"
	ReviewRoundCap int           `yaml:"review_round_cap"` // default: 1; must be 0 or 1 (Validate rejects other values)
	MaxTurns       int           `yaml:"max_turns"`        // default: 50
	ToolTimeout    time.Duration `yaml:"tool_timeout"`     // default: 10m
	PromptPath     string        `yaml:"prompt_path"`      // optional, additive instruction file
	GuidelinesPath string        `yaml:"guidelines_path"`  // optional, embedded into the instruction prompt
}

// StoreConfig holds the Run Store's (component E) fixed constants. The
// spec fixes their production values (TTL=30m, ring cap=1000, sweep=5m);
// they are still exposed here so tests can exercise TTL/overflow behavior
// without waiting on real wall-clock minutes.
type StoreConfig struct {
	TTL           time.Duration `yaml:"ttl"`            // default: 30m
	RingCap       int           `yaml:"ring_cap"`        // default: 1000
	SweepInterval time.Duration `yaml:"sweep_interval"`  // default: 5m
	Heartbeat     time.Duration `yaml:"heartbeat"`       // default: 15s, used by the stream endpoint
}

// MCPConfig holds MCP (Model Context Protocol) server settings. The
// document-export tool provider is modeled as an MCP server connection;
// when no servers are configured the server falls back to a local export
// provider (see pkg/tools/builtins).
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth"`
}

// MCPAuthConfig describes the authentication configuration for an MCP
// server connection (not client-facing auth, which is a spec Non-goal).
type MCPAuthConfig struct {
	Type             string   `yaml:"type"` // "none", "static", "oauth_client_credentials"
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file"`
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"`
	Scopes           []string `yaml:"scopes"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: 30 * time.Second,
			ProjectRoot: ".",
		},
		Pipeline: PipelineConfig{
			TranscribeTool: "transcribe_audio",
			DraftTool:      "draft_document",
			ExportTool:     "export_document",
			TodoTool:       "TodoWrite",
			ReviewRoundCap: 1,
			MaxTurns:       50,
			ToolTimeout:    10 * time.Minute,
		},
		Store: StoreConfig{
			TTL:           30 * time.Minute,
			RingCap:       1000,
			SweepInterval: 5 * time.Minute,
			Heartbeat:     15 * time.Second,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
