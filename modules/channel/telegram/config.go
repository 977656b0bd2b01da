package telegram

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram channel configuration.
type Config struct {
	Token            string        `yaml:"token"`
	PollingTimeout   time.Duration `yaml:"polling_timeout"`
	AllowedUpdates   []string      `yaml:"allowed_updates"`
	AllowUsers       []string      `yaml:"allow_users"`
	AllowGroups      []string      `yaml:"allow_groups"`
	Aliases          []string      `yaml:"aliases"`
	MaxMessageLength int           `yaml:"max_message_length"`
	APIURL           string        `yaml:"api_url"`
}

func (c *Config) defaults() {
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30 * time.Second
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = 4096
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
}

// validate checks configuration field constraints beyond presence checks.
func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	if !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
	}

	if c.PollingTimeout < 0 || c.PollingTimeout > 50*time.Second {
		return fmt.Errorf("telegram: polling_timeout must be 0-50s, got %s", c.PollingTimeout)
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > 4096 {
		return fmt.Errorf("telegram: max_message_length must be 1-4096, got %d", c.MaxMessageLength)
	}
	return nil
}
