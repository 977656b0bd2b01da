// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for almond.
package config

import (
	ctxengine "github.com/flemzord/almond/internal/context"
	"github.com/flemzord/almond/internal/cron"
	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
	"github.com/flemzord/almond/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	Assistant   dispatch.AssistantConfig `yaml:"assistant"`
	Memory      memory.Config            `yaml:"memory"`
	Context     ctxengine.Config         `yaml:"context"`
	Dispatch    dispatch.Config          `yaml:"dispatch"`
	Provider    provider.Config          `yaml:"provider"`
	Maintenance cron.Config              `yaml:"maintenance"`
	Telemetry   telemetry.Config         `yaml:"telemetry"`
}

// Defaults fills zero values in every section.
func (c *Config) Defaults() {
	c.Assistant.Defaults()
	c.Memory.Defaults()
	c.Context.Defaults()
	c.Dispatch.Defaults()
	c.Provider.Defaults()
	c.Maintenance.Defaults()
	c.Telemetry.Defaults()
}
