package provider

import "time"

// Config is the provider section of the configuration file. Primary and
// Fallbacks name loaded provider.* modules by their short name.
type Config struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`

	// Cooldown is how long a failed delegate is tried last. Default: 30s.
	Cooldown time.Duration `yaml:"cooldown"`

	// DuplicateWindow is the window of the duplicate-request guard.
	// Default: 600ms.
	DuplicateWindow time.Duration `yaml:"duplicate_window"`

	RetryConfig `yaml:",inline"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = 600 * time.Millisecond
	}
	c.RetryConfig.defaults()
}
