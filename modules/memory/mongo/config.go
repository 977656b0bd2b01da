package mongo

import (
	"errors"
	"time"
)

// Config holds the MongoDB short-form store configuration.
type Config struct {
	// URI is the connection string. Default: mongodb://localhost:27017.
	URI string `yaml:"uri"`

	// Username and Password enable basic (SCRAM) authentication when set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database defaults to "almond".
	Database string `yaml:"database"`

	// Collection holds persisted fragments. Default: "conversations".
	Collection string `yaml:"collection"`

	// StagingCollection holds fragments awaiting batch promotion.
	// Default: "temp_memories".
	StagingCollection string `yaml:"staging_collection"`

	// ConnectTimeout bounds connection and the startup ping. Default: 10s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *Config) defaults() {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "almond"
	}
	if c.Collection == "" {
		c.Collection = "conversations"
	}
	if c.StagingCollection == "" {
		c.StagingCollection = "temp_memories"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Collection == c.StagingCollection {
		return errors.New("mongo: collection and staging_collection must differ")
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.New("mongo: username and password must be set together")
	}
	return nil
}
