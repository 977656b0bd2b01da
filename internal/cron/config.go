package cron

// Config is the maintenance section of the configuration file. The forget
// sweep schedule lives with the memory settings.
type Config struct {
	// Disabled turns off scheduled maintenance entirely.
	Disabled bool `yaml:"disabled"`

	// LanePruneSchedule is the cron expression for idle-lane pruning.
	// Default: "*/5 * * * *".
	LanePruneSchedule string `yaml:"lane_prune_schedule"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.LanePruneSchedule == "" {
		c.LanePruneSchedule = defaultLanePruneSchedule
	}
}
