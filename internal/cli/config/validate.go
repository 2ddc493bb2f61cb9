package config

import (
	"fmt"

	intconfig "github.com/leapstack-labs/lineagebench/internal/config"
)

// DefaultSchemaForType returns the default schema for a database type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// Validate checks every section needed to run a benchmark.
func (c *Config) Validate() error {
	if err := intconfig.ValidateTarget(c.Target); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if err := c.Bench.Validate(); err != nil {
		return err
	}
	if err := c.Lineage.Validate(); err != nil {
		return err
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port %d is out of range", c.UI.Port)
	}
	return nil
}
