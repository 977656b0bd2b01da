package elasticsearch

import (
	"errors"
	"time"
)

// Config holds the Elasticsearch long-form store configuration.
type Config struct {
	// Addresses lists cluster nodes. Default: http://localhost:9200.
	Addresses []string `yaml:"addresses"`

	// Username and Password enable basic authentication when set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Index is the fragment index name. Default: "almond-memory".
	Index string `yaml:"index"`

	// Refresh is passed to bulk writes so new fragments become searchable
	// ("true", "false" or "wait_for"). Default: "wait_for".
	Refresh string `yaml:"refresh"`

	// PageSize is how many fragments each List request fetches; List
	// keeps paging until the index is exhausted. Default: 1000.
	PageSize int `yaml:"page_size"`

	// Timeout bounds the startup check. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if len(c.Addresses) == 0 {
		c.Addresses = []string{"http://localhost:9200"}
	}
	if c.Index == "" {
		c.Index = "almond-memory"
	}
	if c.Refresh == "" {
		c.Refresh = "wait_for"
	}
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Refresh {
	case "true", "false", "wait_for":
	default:
		return errors.New(`elasticsearch: refresh must be "true", "false" or "wait_for"`)
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.New("elasticsearch: username and password must be set together")
	}
	return nil
}
