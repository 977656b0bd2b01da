package gateway

import (
	"cmp"
	"time"
)

// Config is the gateway.http module section.
type Config struct {
	// Bind is the listen address. Keep it on loopback unless Auth is set:
	// the /api routes expose conversation memory.
	Bind string     `yaml:"bind"`
	Auth AuthConfig `yaml:"auth"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	c.Bind = cmp.Or(c.Bind, "127.0.0.1:8080")
	c.ReadTimeout = positive(c.ReadTimeout, 10*time.Second)
	c.WriteTimeout = positive(c.WriteTimeout, 30*time.Second)
	c.ShutdownTimeout = positive(c.ShutdownTimeout, 5*time.Second)
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// AuthConfig guards the /api routes. Either a bearer token or a complete
// basic-auth pair enables them; without one they are not mounted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured reports whether any credential is usable.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
