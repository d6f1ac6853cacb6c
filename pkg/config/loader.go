package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ANTWORT_CONFIG env, ./config.yaml, /etc/antwort/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ANTWORT_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/antwort/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ANTWORT_CONFIG"); envPath != "" {
		return envPath
	}
	candidates := []string{
		"config.yaml",
		"/etc/antwort/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTWORT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ANTWORT_PROJECT_ROOT"); v != "" {
		cfg.Server.ProjectRoot = v
	}
	if v := os.Getenv("ANTWORT_REVIEW_ROUND_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.ReviewRoundCap = n
		}
	}
	if v := os.Getenv("ANTWORT_PROMPT_PATH"); v != "" {
		cfg.Pipeline.PromptPath = v
	}
	if v := os.Getenv("ANTWORT_GUIDELINES_PATH"); v != "" {
		cfg.Pipeline.GuidelinesPath = v
	}

	// ANTWORT_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("ANTWORT_MCP_SERVERS"); v != "" {
		servers, err := parseMCPServersJSON(v)
		if err == nil && len(servers) > 0 {
			cfg.MCP.Servers = servers
		}
	}
}

// parseMCPServersJSON parses a JSON array of MCP server configurations.
func parseMCPServersJSON(jsonStr string) ([]MCPServerConfig, error) {
	var servers []MCPServerConfig
	if err := json.Unmarshal([]byte(jsonStr), &servers); err != nil {
		return nil, fmt.Errorf("parsing MCP servers JSON: %w", err)
	}
	return servers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is
// empty and the file field is set, the file is read, whitespace is
// trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.MCP.Servers {
		auth := &cfg.MCP.Servers[i].Auth
		if auth.ClientIDFile != "" && auth.ClientID == "" {
			val, err := readSecretFile(auth.ClientIDFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_id_file: %w", i, err)
			}
			auth.ClientID = val
		}
		if auth.ClientSecretFile != "" && auth.ClientSecret == "" {
			val, err := readSecretFile(auth.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_secret_file: %w", i, err)
			}
			auth.ClientSecret = val
		}
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
