package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// The review-round cap must be 0 or 1 per SPEC_FULL.md §6's
	// process-wide constants; other values are rejected, not clamped.
	if c.Pipeline.ReviewRoundCap < 0 || c.Pipeline.ReviewRoundCap > 1 {
		errs = append(errs, fmt.Errorf("pipeline.review_round_cap must be 0 or 1, got %d", c.Pipeline.ReviewRoundCap))
	}

	if c.Pipeline.TranscribeTool == "" {
		errs = append(errs, fmt.Errorf("pipeline.transcribe_tool is required"))
	}
	if c.Pipeline.DraftTool == "" {
		errs = append(errs, fmt.Errorf("pipeline.draft_tool is required"))
	}
	if c.Pipeline.ExportTool == "" {
		errs = append(errs, fmt.Errorf("pipeline.export_tool is required"))
	}

	if c.Store.RingCap <= 0 {
		errs = append(errs, fmt.Errorf("store.ring_cap must be > 0, got %d", c.Store.RingCap))
	}
	if c.Store.TTL <= 0 {
		errs = append(errs, fmt.Errorf("store.ttl must be > 0, got %s", c.Store.TTL))
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("store.sweep_interval must be > 0, got %s", c.Store.SweepInterval))
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
	}

	return errors.Join(errs...)
}
