package sqlite

import (
	"fmt"
	"slices"

	"github.com/flemzord/almond/internal/memory"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "memory.db"
	defaultIndexName   = "fragments"
)

// Config holds the SQLite memory module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/memory.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Tiers lists the tiers this module provides: "short", "long" or
	// both. Defaults to both, so a single-host deployment needs no other
	// store.
	Tiers []memory.Tier `yaml:"tiers"`

	// IndexName is the name reported for the full-text index.
	// Defaults to "fragments".
	IndexName string `yaml:"index_name"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if len(c.Tiers) == 0 {
		c.Tiers = []memory.Tier{memory.TierShort, memory.TierLong}
	}
	if c.IndexName == "" {
		c.IndexName = defaultIndexName
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) provides(t memory.Tier) bool {
	return slices.Contains(c.Tiers, t)
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	for _, t := range c.Tiers {
		if t != memory.TierShort && t != memory.TierLong {
			return fmt.Errorf("sqlite: unknown tier %q", t)
		}
	}
	return nil
}
