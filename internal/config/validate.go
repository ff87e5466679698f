package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://dev.azure.com"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPollInterval   = "120s"
	DefaultNotifyTimeout  = 10 * time.Second
	DefaultRatePerSec     = 1
	DefaultHeadline       = "Ticket ready for testing"
	DefaultItemEmoji      = ":excitedstar:"
	DefaultIconEmoji      = ":robot_face:"
)

// ApplyDefaults fills omitted optional settings.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Azure.BaseURL) == "" {
		c.Azure.BaseURL = DefaultBaseURL
	}
	c.Azure.BaseURL = strings.TrimRight(strings.TrimSpace(c.Azure.BaseURL), "/")

	if strings.TrimSpace(string(c.Poll.Interval)) == "" && c.Poll.IntervalSeconds == 0 {
		c.Poll.Interval = DefaultPollInterval
	}

	n := &c.Notifier
	if n.RatePerSec <= 0 {
		n.RatePerSec = DefaultRatePerSec
	}
	if strings.TrimSpace(n.Headline) == "" {
		n.Headline = DefaultHeadline
	}
	if strings.TrimSpace(n.ItemEmoji) == "" {
		n.ItemEmoji = DefaultItemEmoji
	}
	if strings.TrimSpace(n.Slack.IconEmoji) == "" {
		n.Slack.IconEmoji = DefaultIconEmoji
	}
}

// Validate checks required settings. Names are not trimmed: board and column
// matching is exact.
func (c *Config) Validate() error {
	required := []struct{ field, v string }{
		{"azure.organization", c.Azure.Organization},
		{"azure.project", c.Azure.Project},
		{"azure.team", c.Azure.Team},
		{"azure.board", c.Azure.Board},
		{"azure.column", c.Azure.Column},
	}
	for _, r := range required {
		if strings.TrimSpace(r.v) == "" {
			return &ConfigError{Field: r.field, Msg: "required"}
		}
	}

	if _, err := ParseDurationField("azure.request_timeout", c.Azure.RequestTimeout); err != nil {
		return err
	}
	if c.Poll.IntervalSeconds < 0 {
		return &ConfigError{Field: "poll.interval_seconds", Msg: "must be >= 0"}
	}
	if _, err := ParseDurationField("notifier.timeout", c.Notifier.Timeout); err != nil {
		return err
	}
	if c.Notifier.Telegram.Enabled && c.Notifier.Telegram.ChatID == 0 {
		return &ConfigError{Field: "notifier.telegram.chat_id", Msg: "required when telegram is enabled"}
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return &ConfigError{Field: "storage.driver", Msg: "unknown driver " + quote(c.Storage.Driver)}
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if d := c.Debug; d != nil {
		if _, err := ParseDurationField("debug.read_timeout", d.ReadTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("debug.idle_timeout", d.IdleTimeout); err != nil {
			return err
		}
		if a := strings.TrimSpace(d.Addr); d.Enabled && a != "" {
			if _, _, err := net.SplitHostPort(a); err != nil {
				return &ConfigError{Field: "debug.addr", Msg: "expected host:port", Err: err}
			}
		}
	}
	return nil
}

// PollSpec returns the raw poll schedule string.
func (c *Config) PollSpec() string {
	if s := strings.TrimSpace(string(c.Poll.Interval)); s != "" {
		return s
	}
	return strconv.Itoa(c.Poll.IntervalSeconds) + "s"
}
